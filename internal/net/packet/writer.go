package packet

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Writer builds one frame payload. All multi-byte writes are big-endian.
type Writer struct {
	buf []byte
	err error
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteInt writes 4 bytes big-endian.
func (w *Writer) WriteInt(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// WriteBool writes 1 byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// WriteString writes the length in UTF-16 code units, then UTF-16BE text
// without a byte order mark.
func (w *Writer) WriteString(s string) {
	if s == "" {
		w.WriteInt(0)
		return
	}
	encoded, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		if w.err == nil {
			w.err = fmt.Errorf("encode string %q: %w", s, err)
		}
		w.WriteInt(0)
		return
	}
	w.WriteInt(int32(len(encoded) / 2))
	w.buf = append(w.buf, encoded...)
}

// WriteInts writes a count followed by the ints.
func (w *Writer) WriteInts(v []int32) {
	w.WriteInt(int32(len(v)))
	for _, x := range v {
		w.WriteInt(x)
	}
}

// WriteIntMap writes a count followed by key/value pairs sorted by key.
func (w *Writer) WriteIntMap(m map[string]int32) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.WriteInt(int32(len(keys)))
	for _, k := range keys {
		w.WriteString(k)
		w.WriteInt(m[k])
	}
}

// Bytes returns the payload built so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Err() error { return w.err }
