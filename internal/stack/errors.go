package stack

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for a frame or channel index outside the stack.
	ErrOutOfRange = errors.New("index out of range")
	// ErrClosed is returned once the FrameStack has been closed.
	ErrClosed = errors.New("frame stack closed")
)

// DecodeError reports a page that could not be read or decoded.
type DecodeError struct {
	Frame   int
	Channel int
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %d channel %d: %v", e.Frame, e.Channel, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
