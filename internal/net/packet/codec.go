package packet

import "fmt"

// Encode serializes msg: the command tag, then each field in schema order.
func Encode(msg Message) ([]byte, error) {
	e, ok := kinds[msg.Command()]
	if !ok {
		return nil, fmt.Errorf("encode %T: unregistered command %q", msg, msg.Command())
	}
	w := NewWriter()
	w.WriteString(e.schema.Command)
	for i, v := range msg.Values() {
		switch p := v.(type) {
		case *int32:
			w.WriteInt(*p)
		case *string:
			w.WriteString(*p)
		case *bool:
			w.WriteBool(*p)
		case *[]int32:
			w.WriteInts(*p)
		case *map[string]int32:
			w.WriteIntMap(*p)
		default:
			return nil, fmt.Errorf("encode %s: field %d has unsupported type %T", e.schema.Command, i, v)
		}
	}
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.schema.Command, err)
	}
	return w.Bytes(), nil
}

// Decode parses one frame payload. It fails closed: on any error no message
// is returned.
func Decode(payload []byte) (Message, error) {
	r := NewReader(payload)
	cmd := r.ReadString()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	e, ok := kinds[cmd]
	if !ok {
		return nil, fmt.Errorf("decode %q: %w", cmd, ErrUnknownCommand)
	}
	msg := e.new()
	for _, v := range msg.Values() {
		switch p := v.(type) {
		case *int32:
			*p = r.ReadInt()
		case *string:
			*p = r.ReadString()
		case *bool:
			*p = r.ReadBool()
		case *[]int32:
			*p = r.ReadInts()
		case *map[string]int32:
			*p = r.ReadIntMap()
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", cmd, err)
	}
	if n := r.Remaining(); n != 0 {
		return nil, fmt.Errorf("decode %s: %d bytes left: %w", cmd, n, ErrLengthMismatch)
	}
	return msg, nil
}
