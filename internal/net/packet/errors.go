package packet

import (
	"errors"
	"fmt"
)

// ErrFraming is the root of every decode fault. A connection that produced
// one cannot be resynchronized and must be closed.
var ErrFraming = errors.New("framing error")

var (
	ErrFrameSize      = fmt.Errorf("%w: invalid frame length", ErrFraming)
	ErrShortPayload   = fmt.Errorf("%w: short payload", ErrFraming)
	ErrLengthMismatch = fmt.Errorf("%w: trailing bytes in frame", ErrFraming)
	ErrUnknownCommand = fmt.Errorf("%w: unknown command", ErrFraming)
	ErrBadValue       = fmt.Errorf("%w: bad field value", ErrFraming)
)
