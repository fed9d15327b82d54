package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cardshifter/server/internal/net/packet"
)

// DefaultMaxFrame bounds a single frame payload.
const DefaultMaxFrame = 1 << 20

// ReadFrame reads one protocol frame from r.
// Wire format: [4 bytes BE: payload length N][payload N bytes].
// A clean EOF before the header is returned as io.EOF; everything else that
// goes wrong is a packet.ErrFraming fault.
func ReadFrame(r io.Reader, maxFrame int) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame header: %w: %w", packet.ErrShortPayload, err)
	}

	n := int64(int32(binary.BigEndian.Uint32(header[:])))
	if n < 4 || n > int64(maxFrame) {
		return nil, fmt.Errorf("read frame: length %d: %w", n, packet.ErrFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w: %w", n, packet.ErrShortPayload, err)
	}
	return payload, nil
}

// WriteFrame writes one protocol frame to w.
func WriteFrame(w io.Writer, data []byte) error {
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
