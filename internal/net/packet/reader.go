package packet

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// Reader reads big-endian protocol fields from one frame payload. The first
// failure sticks: later reads return zero values and Err reports it.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.fail(fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrShortPayload, n, r.off, len(r.data)))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// count reads a length prefix and checks that n items of at least min bytes
// each can still follow.
func (r *Reader) count(min int) int {
	n := r.ReadInt()
	if r.err != nil {
		return 0
	}
	if n < 0 {
		r.fail(fmt.Errorf("%w: negative length %d", ErrBadValue, n))
		return 0
	}
	if int(n) > r.Remaining()/min {
		r.fail(fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrShortPayload, n, r.Remaining()))
		return 0
	}
	return int(n)
}

// ReadInt reads 4 bytes as big-endian int32.
func (r *Reader) ReadInt() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// ReadBool reads 1 byte; any nonzero value is true.
func (r *Reader) ReadBool() bool {
	b := r.take(1)
	return b != nil && b[0] != 0
}

// ReadString reads a length in UTF-16 code units followed by UTF-16BE text.
func (r *Reader) ReadString() string {
	n := r.count(2)
	raw := r.take(2 * n)
	if raw == nil || n == 0 {
		return ""
	}
	s, err := utf16be.NewDecoder().Bytes(raw)
	if err != nil {
		r.fail(fmt.Errorf("%w: %v", ErrBadValue, err))
		return ""
	}
	return string(s)
}

// ReadInts reads a count followed by that many ints.
func (r *Reader) ReadInts() []int32 {
	n := r.count(4)
	out := make([]int32, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.ReadInt())
	}
	return out
}

// ReadIntMap reads a count followed by that many key/value pairs.
func (r *Reader) ReadIntMap() map[string]int32 {
	n := r.count(8)
	out := make(map[string]int32, n)
	for i := 0; i < n && r.err == nil; i++ {
		k := r.ReadString()
		out[k] = r.ReadInt()
	}
	return out
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) Err() error { return r.err }
