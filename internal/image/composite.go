package image

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Interpolation selects the resampling kernel used by Composite.
type Interpolation int

const (
	InterpNearest Interpolation = iota
	InterpBilinear
	InterpCatmullRom
)

func (m Interpolation) String() string {
	switch m {
	case InterpNearest:
		return "Nearest"
	case InterpBilinear:
		return "Bilinear"
	case InterpCatmullRom:
		return "CatmullRom"
	default:
		return "Unknown"
	}
}

func (m Interpolation) transformer() draw.Transformer {
	switch m {
	case InterpBilinear:
		return draw.ApproxBiLinear
	case InterpCatmullRom:
		return draw.CatmullRom
	default:
		return draw.NearestNeighbor
	}
}

// Composite paints a raster into a viewport-sized canvas.
type Composite struct {
	Width     int
	Height    int
	BackColor color.Color
	Interp    Interpolation
}

// NewComposite creates a new Composite with the specified dimensions.
func NewComposite(width, height int) *Composite {
	return &Composite{
		Width:     width,
		Height:    height,
		BackColor: color.RGBA{40, 40, 40, 255}, // Dark gray background
	}
}

// Render fills the background and draws src through the image-to-viewport
// matrix m.
func (c *Composite) Render(src image.Image, m f64.Aff3) *image.RGBA {
	result := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	c.RenderInto(result, src, m)
	return result
}

// RenderInto is Render with a caller-supplied destination, so a canvas can
// reuse its buffer between frames.
func (c *Composite) RenderInto(dst *image.RGBA, src image.Image, m f64.Aff3) {
	draw.Draw(dst, dst.Bounds(), &image.Uniform{c.BackColor}, image.Point{}, draw.Src)
	if src == nil {
		return
	}
	c.Interp.transformer().Transform(dst, m, Display(src), src.Bounds(), draw.Over, nil)
}
