// Package canvas provides the fyne widget that shows the current plane of
// a stack and turns pointer input into viewport gestures.
package canvas

import (
	"image"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/image/math/f64"

	"stackview/internal/app"
	svimage "stackview/internal/image"
	"stackview/internal/logging"
	"stackview/internal/viewport"
	"stackview/pkg/geometry"
)

// wheelNotch is the fyne scroll distance reported for one wheel notch.
const wheelNotch = 10

// ViewerCanvas draws the state's raster through the viewport transform
// and forwards mouse input to it.
type ViewerCanvas struct {
	widget.BaseWidget

	state  *app.State
	logger *slog.Logger
	raster *fynecanvas.Raster

	mu        sync.Mutex
	composite *svimage.Composite
	buf       *image.RGBA

	onStatus func(string)
}

var (
	_ fyne.Widget         = (*ViewerCanvas)(nil)
	_ fyne.Scrollable     = (*ViewerCanvas)(nil)
	_ fyne.Draggable      = (*ViewerCanvas)(nil)
	_ fyne.DoubleTappable = (*ViewerCanvas)(nil)
	_ desktop.Mouseable   = (*ViewerCanvas)(nil)
	_ desktop.Hoverable   = (*ViewerCanvas)(nil)
)

// NewViewerCanvas creates a canvas bound to state.
func NewViewerCanvas(state *app.State, logger *slog.Logger) *ViewerCanvas {
	vc := &ViewerCanvas{
		state:     state,
		logger:    logging.OrDiscard(logger),
		composite: svimage.NewComposite(0, 0),
	}
	vc.raster = fynecanvas.NewRaster(vc.draw)
	vc.raster.ScaleMode = fynecanvas.ImageScalePixels

	refresh := func(interface{}) { vc.raster.Refresh() }
	for _, ev := range []app.EventType{
		app.EventFrameReady,
		app.EventViewChanged,
		app.EventSourceReplaced,
		app.EventConfigApplied,
		app.EventROIsChanged,
	} {
		state.On(ev, refresh)
	}
	state.On(app.EventHover, func(interface{}) { vc.status() })
	state.On(app.EventFrameChanged, func(interface{}) { vc.status() })
	state.On(app.EventFrameReady, func(interface{}) { vc.status() })

	vc.ExtendBaseWidget(vc)
	return vc
}

// OnStatus sets the callback that receives the status line.
func (vc *ViewerCanvas) OnStatus(callback func(string)) {
	vc.onStatus = callback
}

// SetInterpolation selects the resampling kernel.
func (vc *ViewerCanvas) SetInterpolation(m svimage.Interpolation) {
	vc.mu.Lock()
	vc.composite.Interp = m
	vc.mu.Unlock()
	vc.raster.Refresh()
}

func (vc *ViewerCanvas) status() {
	if vc.onStatus != nil {
		vc.onStatus(vc.state.StatusText())
	}
}

// CreateRenderer implements fyne.Widget.
func (vc *ViewerCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(vc.raster)
}

// MinSize keeps the canvas usable in tight layouts.
func (vc *ViewerCanvas) MinSize() fyne.Size {
	return fyne.NewSize(160, 120)
}

// Resize keeps the viewport size in step with the widget.
func (vc *ViewerCanvas) Resize(size fyne.Size) {
	vc.state.Resize(float64(size.Width), float64(size.Height))
	vc.BaseWidget.Resize(size)
}

// Refresh redraws the raster.
func (vc *ViewerCanvas) Refresh() {
	vc.raster.Refresh()
}

// draw is the raster drawing function. w and h are device pixels; the
// viewport works in widget units, so everything is scaled by w/width.
func (vc *ViewerCanvas) draw(w, h int) image.Image {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if vc.buf == nil || vc.buf.Bounds().Dx() != w || vc.buf.Bounds().Dy() != h {
		vc.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	out := vc.buf

	scale := 1.0
	if size := vc.Size(); size.Width > 0 {
		scale = float64(w) / float64(size.Width)
	}

	frame, err := vc.state.Paint()
	img, _, ok := vc.state.Raster()
	if err != nil || !ok {
		if err != nil && ok {
			vc.logger.Debug("viewport not paintable", "error", err)
		}
		vc.composite.RenderInto(out, nil, f64.Aff3{})
		return out
	}

	m := frame.Transform.Aff3()
	for i := range m {
		m[i] *= scale
	}
	vc.composite.RenderInto(out, img, m)

	drawOverlays(out, vc.state.Overlays(), scale)
	if frame.HasBand {
		drawBand(out, frame.Band, scale)
	}
	return out
}

func point(p fyne.Position) geometry.Point2D {
	return geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// buttonFor maps fyne mouse buttons onto viewport buttons.
func buttonFor(b desktop.MouseButton) viewport.Button {
	switch b {
	case desktop.MouseButtonPrimary:
		return viewport.ButtonLeft
	case desktop.MouseButtonSecondary:
		return viewport.ButtonRight
	case desktop.MouseButtonTertiary:
		return viewport.ButtonMiddle
	default:
		return viewport.ButtonNone
	}
}

// MouseDown implements desktop.Mouseable.
func (vc *ViewerCanvas) MouseDown(ev *desktop.MouseEvent) {
	vc.state.Press(buttonFor(ev.Button), point(ev.Position))
	vc.raster.Refresh()
}

// MouseUp implements desktop.Mouseable.
func (vc *ViewerCanvas) MouseUp(ev *desktop.MouseEvent) {
	vc.state.Release(buttonFor(ev.Button), point(ev.Position))
	vc.raster.Refresh()
}

// MouseIn implements desktop.Hoverable.
func (vc *ViewerCanvas) MouseIn(ev *desktop.MouseEvent) {
	vc.state.Move(point(ev.Position))
}

// MouseMoved implements desktop.Hoverable.
func (vc *ViewerCanvas) MouseMoved(ev *desktop.MouseEvent) {
	vc.state.Move(point(ev.Position))
	vc.raster.Refresh()
}

// MouseOut implements desktop.Hoverable.
func (vc *ViewerCanvas) MouseOut() {
	vc.state.Leave()
}

// Dragged implements fyne.Draggable. Drags are reported as pointer motion;
// the press and release that bracket them arrive through Mouseable.
func (vc *ViewerCanvas) Dragged(ev *fyne.DragEvent) {
	vc.state.Move(point(ev.Position))
	vc.raster.Refresh()
}

// DragEnd implements fyne.Draggable.
func (vc *ViewerCanvas) DragEnd() {}

// DoubleTapped implements fyne.DoubleTappable. fyne only reports double
// taps for the primary button.
func (vc *ViewerCanvas) DoubleTapped(ev *fyne.PointEvent) {
	vc.state.DoubleClick(viewport.ButtonLeft, point(ev.Position))
	vc.raster.Refresh()
}

// Scrolled implements fyne.Scrollable. Scrolling up zooms in or, when the
// wheel scrolls frames, steps back a frame.
func (vc *ViewerCanvas) Scrolled(ev *fyne.ScrollEvent) {
	steps := float64(ev.Scrolled.DY) / wheelNotch
	if vc.state.Wheel(steps, point(ev.Position)) {
		vc.raster.Refresh()
	}
}
