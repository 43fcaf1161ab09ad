package viewport

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64"

	"stackview/pkg/geometry"
)

// Transform maps between image coordinates and viewport pixels for one
// scene rectangle, viewport size, aspect mode and flip setting.
// It is an immutable value; build a new one whenever any input changes.
type Transform struct {
	scene  geometry.Rect
	width  float64
	height float64
	mode   AspectMode
	flipH  bool
	flipV  bool

	sx, sy float64 // viewport pixels per image pixel
	ox, oy float64 // viewport position of the scene's displayed origin
}

// NewTransform builds the mapping that shows scene inside a viewport of the
// given size.
func NewTransform(scene geometry.Rect, width, height float64, mode AspectMode, flipH, flipV bool) (Transform, error) {
	if !(width > 0) || !(height > 0) {
		return Transform{}, fmt.Errorf("%w: size %gx%g", ErrInvalidViewport, width, height)
	}
	if scene.Empty() {
		return Transform{}, fmt.Errorf("%w: empty scene %+v", ErrInvalidViewport, scene)
	}

	sx := width / scene.Width
	sy := height / scene.Height
	switch mode {
	case AspectKeepFit:
		s := math.Min(sx, sy)
		sx, sy = s, s
	case AspectKeepFill:
		s := math.Max(sx, sy)
		sx, sy = s, s
	}

	return Transform{
		scene:  scene,
		width:  width,
		height: height,
		mode:   mode,
		flipH:  flipH,
		flipV:  flipV,
		sx:     sx,
		sy:     sy,
		ox:     (width - scene.Width*sx) / 2,
		oy:     (height - scene.Height*sy) / 2,
	}, nil
}

// Scene returns the image-space rectangle this transform displays.
func (t Transform) Scene() geometry.Rect { return t.scene }

// ViewportSize returns the viewport width and height in pixels.
func (t Transform) ViewportSize() (float64, float64) { return t.width, t.height }

// Mode returns the aspect mode the transform was built with.
func (t Transform) Mode() AspectMode { return t.mode }

// Scale returns viewport pixels per image pixel along each axis.
// Both values are equal unless the mode is AspectIgnore.
func (t Transform) Scale() (float64, float64) { return t.sx, t.sy }

// Offset returns the viewport position of the displayed scene's top-left
// corner. It is positive for letterboxing and negative when filling.
func (t Transform) Offset() (float64, float64) { return t.ox, t.oy }

// ToViewport maps an image point to viewport pixels.
func (t Transform) ToViewport(p geometry.Point2D) geometry.Point2D {
	u := p.X - t.scene.X
	v := p.Y - t.scene.Y
	if t.flipH {
		u = t.scene.Width - u
	}
	if t.flipV {
		v = t.scene.Height - v
	}
	return geometry.Point2D{X: t.ox + u*t.sx, Y: t.oy + v*t.sy}
}

// ToImage maps a viewport pixel back to image coordinates. It is the exact
// inverse of ToViewport.
func (t Transform) ToImage(p geometry.Point2D) geometry.Point2D {
	u := (p.X - t.ox) / t.sx
	v := (p.Y - t.oy) / t.sy
	if t.flipH {
		u = t.scene.Width - u
	}
	if t.flipV {
		v = t.scene.Height - v
	}
	return geometry.Point2D{X: t.scene.X + u, Y: t.scene.Y + v}
}

// ViewportRect maps an image rectangle to the viewport.
func (t Transform) ViewportRect(r geometry.Rect) geometry.Rect {
	return geometry.RectFromPoints(t.ToViewport(r.TopLeft()), t.ToViewport(r.BottomRight()))
}

// ImageRect maps a viewport rectangle to image coordinates.
func (t Transform) ImageRect(r geometry.Rect) geometry.Rect {
	return geometry.RectFromPoints(t.ToImage(r.TopLeft()), t.ToImage(r.BottomRight()))
}

// Visible returns the image-space area covered by the whole viewport,
// including any letterbox margins.
func (t Transform) Visible() geometry.Rect {
	return t.ImageRect(geometry.NewRect(0, 0, t.width, t.height))
}

// Matrix returns the image-to-viewport mapping as an affine matrix.
func (t Transform) Matrix() geometry.AffineTransform {
	m := geometry.AffineTransform{
		A: t.sx, TX: t.ox - t.scene.X*t.sx,
		D: t.sy, TY: t.oy - t.scene.Y*t.sy,
	}
	if t.flipH {
		m.A = -t.sx
		m.TX = t.ox + t.scene.MaxX()*t.sx
	}
	if t.flipV {
		m.D = -t.sy
		m.TY = t.oy + t.scene.MaxY()*t.sy
	}
	return m
}

// Aff3 returns the image-to-viewport matrix in the form expected by
// golang.org/x/image/draw transformers.
func (t Transform) Aff3() f64.Aff3 {
	m := t.Matrix()
	return f64.Aff3{m.A, m.B, m.TX, m.C, m.D, m.TY}
}

// ZoomLevel reports the magnification relative to showing full at the same
// viewport size and mode; 1 means the whole image fits. In AspectIgnore mode
// the geometric mean of the two axes is used.
func (t Transform) ZoomLevel(full geometry.Rect) float64 {
	base, err := NewTransform(full, t.width, t.height, t.mode, false, false)
	if err != nil {
		return 1
	}
	zx := t.sx / base.sx
	zy := t.sy / base.sy
	if t.mode == AspectIgnore {
		return math.Sqrt(zx * zy)
	}
	return zx
}
