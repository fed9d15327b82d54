package packet

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIsBitExact(t *testing.T) {
	got, err := Encode(&UpdateMessage{ID: 5, Key: "HP", Value: -1})
	require.NoError(t, err)
	want := []byte{
		0, 0, 0, 6, 0, 'u', 0, 'p', 0, 'd', 0, 'a', 0, 't', 0, 'e', // tag
		0, 0, 0, 5, // id
		0, 0, 0, 2, 0, 'H', 0, 'P', // key
		0xff, 0xff, 0xff, 0xff, // value
	}
	assert.Equal(t, want, got)
}

func TestStringLengthCountsUTF16Units(t *testing.T) {
	w := NewWriter()
	w.WriteString("a😀")
	b := w.Bytes()
	assert.Equal(t, int32(3), int32(binary.BigEndian.Uint32(b)))
	assert.Len(t, b, 4+6)

	r := NewReader(b)
	assert.Equal(t, "a😀", r.ReadString())
	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Remaining())
}

func TestIntMapIsSortedByKey(t *testing.T) {
	w := NewWriter()
	w.WriteIntMap(map[string]int32{"b": 2, "a": 1})
	want := []byte{
		0, 0, 0, 2,
		0, 0, 0, 1, 0, 'a', 0, 0, 0, 1,
		0, 0, 0, 1, 0, 'b', 0, 0, 0, 2,
	}
	assert.Equal(t, want, w.Bytes())
}

// fill sets every field of msg to a recognizable non-zero value.
func fill(msg Message) {
	for i, v := range msg.Values() {
		n := int32(i + 1)
		switch p := v.(type) {
		case *int32:
			*p = -n * 1000
		case *string:
			*p = "välue-" + string(rune('A'+i))
		case *bool:
			*p = true
		case *[]int32:
			*p = []int32{n, -n, 0}
		case *map[string]int32:
			*p = map[string]int32{"LIFE": n, "MANA": -n}
		}
	}
}

func TestRoundTripEveryCommand(t *testing.T) {
	for _, cmd := range Commands() {
		t.Run(cmd, func(t *testing.T) {
			msg, ok := New(cmd)
			require.True(t, ok)
			fill(msg)

			raw, err := Encode(msg)
			require.NoError(t, err)
			got, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestRoundTripEmptyCollections(t *testing.T) {
	raw, err := Encode(&ZoneMessage{ID: 4, Name: "Deck", Owner: 2, Size: 20})
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	z := got.(*ZoneMessage)
	assert.Empty(t, z.Entities)
	assert.Equal(t, int32(20), z.Size)
	assert.False(t, z.Known)
}

func TestDecodeFailsClosed(t *testing.T) {
	valid, err := Encode(&UseMessage{Action: "Play", GameID: 1, ID: 10})
	require.NoError(t, err)
	unknown, err := Encode(&LoginMessage{Username: "x"})
	require.NoError(t, err)
	unknown[7] = 'X' // "login" -> "lXgin"

	negative := NewWriter()
	negative.WriteString(CmdLogin)
	negative.WriteInt(-1)

	huge := NewWriter()
	huge.WriteString(CmdTargets)
	huge.WriteString("Attack")
	huge.WriteInt(1)
	huge.WriteInt(1 << 30)

	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"empty", nil, ErrShortPayload},
		{"truncated tag", valid[:5], ErrShortPayload},
		{"truncated field", valid[:len(valid)-2], ErrShortPayload},
		{"trailing bytes", append(append([]byte{}, valid...), 0), ErrLengthMismatch},
		{"unknown command", unknown, ErrUnknownCommand},
		{"negative length", negative.Bytes(), ErrBadValue},
		{"count beyond payload", huge.Bytes(), ErrShortPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.payload)
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrFraming)
		})
	}
}

type badOrder struct{ B, A int32 }

func (*badOrder) Command() string { return "bad" }
func (m *badOrder) Values() []any { return []any{&m.B, &m.A} }

type badKind struct{ A string }

func (*badKind) Command() string { return "badkind" }
func (m *badKind) Values() []any { return []any{&m.A} }

func TestBuildKindsRejectsMalformedSchemas(t *testing.T) {
	assert.Panics(t, func() {
		buildKinds(kind(Schema{"bad", []Field{{"b", FieldInt}, {"a", FieldInt}}},
			func() Message { return &badOrder{} }))
	})
	assert.Panics(t, func() {
		buildKinds(kind(Schema{"badkind", []Field{{"a", FieldInt}}},
			func() Message { return &badKind{} }))
	})
	assert.Panics(t, func() {
		buildKinds(kind(Schema{"other", []Field{{"a", FieldString}}},
			func() Message { return &badKind{} }))
	})
}

func TestSchemaOf(t *testing.T) {
	s, ok := SchemaOf(CmdUseable)
	require.True(t, ok)
	assert.Equal(t, []Field{
		{"action", FieldString},
		{"id", FieldInt},
		{"targetId", FieldInt},
		{"targetRequired", FieldBool},
	}, s.Fields)
	_, ok = SchemaOf("nope")
	assert.False(t, ok)
}
