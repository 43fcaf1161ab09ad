// Package stack presents a rows x cols x frames x channels volume, either
// held in memory or decoded one page at a time from a multi-page file.
package stack

import (
	"context"
	"fmt"
	"image"
)

// Shape is the logical size of a stack.
type Shape struct {
	Rows     int `json:"rows"`
	Cols     int `json:"cols"`
	Frames   int `json:"frames"`
	Channels int `json:"channels"`
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d, %d frames, %d channels", s.Cols, s.Rows, s.Frames, s.Channels)
}

// Contains reports whether k addresses a plane of the stack.
func (s Shape) Contains(k Key) bool {
	return k.Frame >= 0 && k.Frame < s.Frames && k.Channel >= 0 && k.Channel < s.Channels
}

// Key addresses one plane.
type Key struct {
	Frame   int
	Channel int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Frame, k.Channel)
}

// Source is the backing store of a FrameStack. A source must also
// implement either Viewer or Decoder.
type Source interface {
	Shape() Shape
	Close() error
}

// Viewer is an in-memory source whose planes are views, not copies.
type Viewer interface {
	Source
	View(k Key) (image.Image, error)
}

// Decoder is a source that must decode a plane on demand.
type Decoder interface {
	Source
	Decode(ctx context.Context, k Key) (image.Image, error)
}
