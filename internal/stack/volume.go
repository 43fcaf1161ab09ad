package stack

import (
	"encoding/binary"
	"fmt"
	"image"

	svimage "stackview/internal/image"
)

// Volume is an in-memory stack. Planes are laid out frame-major, then
// channel, then row: plane (f, c) starts at ((f*Channels)+c)*Rows*Cols.
type Volume struct {
	shape  Shape
	planes []image.Image
}

// NewVolume8 wraps 8-bit samples without copying them.
func NewVolume8(shape Shape, data []uint8) (*Volume, error) {
	plane, err := checkLayout(shape, len(data))
	if err != nil {
		return nil, err
	}
	v := &Volume{shape: shape, planes: make([]image.Image, shape.Frames*shape.Channels)}
	for i := range v.planes {
		v.planes[i] = &image.Gray{
			Pix:    data[i*plane : (i+1)*plane : (i+1)*plane],
			Stride: shape.Cols,
			Rect:   image.Rect(0, 0, shape.Cols, shape.Rows),
		}
	}
	return v, nil
}

// NewVolume16 stores 16-bit samples. They are converted once to the
// big-endian layout of image.Gray16; planes are views into that buffer.
func NewVolume16(shape Shape, data []uint16) (*Volume, error) {
	plane, err := checkLayout(shape, len(data))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 2*len(data))
	for i, s := range data {
		binary.BigEndian.PutUint16(buf[2*i:], s)
	}
	v := &Volume{shape: shape, planes: make([]image.Image, shape.Frames*shape.Channels)}
	for i := range v.planes {
		lo, hi := 2*i*plane, 2*(i+1)*plane
		v.planes[i] = &image.Gray16{
			Pix:    buf[lo:hi:hi],
			Stride: 2 * shape.Cols,
			Rect:   image.Rect(0, 0, shape.Cols, shape.Rows),
		}
	}
	return v, nil
}

// VolumeFromImages builds a stack from decoded frames that all share the
// same size. With separate set, color frames are split into red, green and
// blue channels; otherwise each frame is a single composite channel.
func VolumeFromImages(frames []image.Image, separate bool) (*Volume, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames")
	}
	b := frames[0].Bounds()
	channels := 1
	if separate {
		channels = svimage.Channels(frames[0].ColorModel())
	}
	v := &Volume{
		shape:  Shape{Rows: b.Dy(), Cols: b.Dx(), Frames: len(frames), Channels: channels},
		planes: make([]image.Image, 0, len(frames)*channels),
	}
	for f, img := range frames {
		if img.Bounds().Size() != b.Size() {
			return nil, fmt.Errorf("frame %d is %v, want %v", f, img.Bounds().Size(), b.Size())
		}
		for c := 0; c < channels; c++ {
			plane := img
			if channels > 1 {
				var err error
				if plane, err = svimage.ExtractChannel(img, c); err != nil {
					return nil, fmt.Errorf("frame %d: %w", f, err)
				}
			}
			v.planes = append(v.planes, plane)
		}
	}
	return v, nil
}

func checkLayout(shape Shape, n int) (int, error) {
	if shape.Rows <= 0 || shape.Cols <= 0 || shape.Frames <= 0 || shape.Channels <= 0 {
		return 0, fmt.Errorf("invalid shape %+v", shape)
	}
	plane := shape.Rows * shape.Cols
	if want := plane * shape.Frames * shape.Channels; n != want {
		return 0, fmt.Errorf("shape %+v needs %d samples, got %d", shape, want, n)
	}
	return plane, nil
}

// Shape returns the volume shape.
func (v *Volume) Shape() Shape { return v.shape }

// View returns plane k without copying.
func (v *Volume) View(k Key) (image.Image, error) {
	if !v.shape.Contains(k) {
		return nil, fmt.Errorf("%w: %v in %v", ErrOutOfRange, k, v.shape)
	}
	return v.planes[k.Frame*v.shape.Channels+k.Channel], nil
}

// Close releases nothing; it exists to satisfy Source.
func (v *Volume) Close() error { return nil }
