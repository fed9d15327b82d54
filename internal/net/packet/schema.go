package packet

import (
	"fmt"
	"sort"
)

// FieldKind is the wire encoding of one field.
type FieldKind uint8

const (
	FieldInt    FieldKind = iota + 1 // i32 BE
	FieldString                      // i32 code units + UTF-16BE
	FieldBool                        // 1 byte
	FieldInts                        // i32 count + i32 items
	FieldIntMap                      // i32 count + (string, i32) pairs sorted by key
)

func (k FieldKind) String() string {
	switch k {
	case FieldInt:
		return "int"
	case FieldString:
		return "string"
	case FieldBool:
		return "bool"
	case FieldInts:
		return "ints"
	case FieldIntMap:
		return "intmap"
	default:
		return fmt.Sprintf("FieldKind(%d)", uint8(k))
	}
}

// Field is one (name, kind) entry of a schema.
type Field struct {
	Name string
	Kind FieldKind
}

// Schema is the static wire layout of one message kind. Fields are listed in
// canonical order: ascending by name. The command tag precedes them on the
// wire and is not listed.
type Schema struct {
	Command string
	Fields  []Field
}

// Message is one protocol unit. Values returns pointers to the message's
// fields in schema order; encode and decode both walk them.
type Message interface {
	Command() string
	Values() []any
}

type kindEntry struct {
	schema Schema
	new    func() Message
}

// kindRegistry is the closed set of message kinds.
type kindRegistry map[string]kindEntry

func kind(s Schema, newFn func() Message) kindEntry {
	return kindEntry{schema: s, new: newFn}
}

// buildKinds validates every schema against a blank instance of its message.
// It panics on a malformed table, which is a programming error.
func buildKinds(entries ...kindEntry) kindRegistry {
	reg := make(kindRegistry, len(entries))
	for _, e := range entries {
		if err := e.validate(); err != nil {
			panic(err)
		}
		if _, dup := reg[e.schema.Command]; dup {
			panic(fmt.Sprintf("packet: duplicate command %q", e.schema.Command))
		}
		reg[e.schema.Command] = e
	}
	return reg
}

func (e kindEntry) validate() error {
	s := e.schema
	m := e.new()
	if m.Command() != s.Command {
		return fmt.Errorf("packet: %T reports command %q, schema says %q", m, m.Command(), s.Command)
	}
	if !sort.SliceIsSorted(s.Fields, func(i, j int) bool { return s.Fields[i].Name < s.Fields[j].Name }) {
		return fmt.Errorf("packet: %s: fields not in canonical order", s.Command)
	}
	vals := m.Values()
	if len(vals) != len(s.Fields) {
		return fmt.Errorf("packet: %s: %d values for %d fields", s.Command, len(vals), len(s.Fields))
	}
	for i, f := range s.Fields {
		if got := kindOf(vals[i]); got != f.Kind {
			return fmt.Errorf("packet: %s.%s: value is %s, schema says %s", s.Command, f.Name, got, f.Kind)
		}
	}
	return nil
}

func kindOf(v any) FieldKind {
	switch v.(type) {
	case *int32:
		return FieldInt
	case *string:
		return FieldString
	case *bool:
		return FieldBool
	case *[]int32:
		return FieldInts
	case *map[string]int32:
		return FieldIntMap
	default:
		return 0
	}
}

// SchemaOf returns the schema of a registered command.
func SchemaOf(command string) (Schema, bool) {
	e, ok := kinds[command]
	return e.schema, ok
}

// Commands returns every registered command, sorted.
func Commands() []string {
	out := make([]string, 0, len(kinds))
	for c := range kinds {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// New allocates a blank message of a registered command.
func New(command string) (Message, bool) {
	e, ok := kinds[command]
	if !ok {
		return nil, false
	}
	return e.new(), true
}
