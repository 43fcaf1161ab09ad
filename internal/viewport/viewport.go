// Package viewport implements the interactive view engine: the image to
// viewport transform, the zoom history and the gesture controllers that
// edit it.
//
// A Viewport is driven by a single event goroutine and is not safe for
// concurrent use.
package viewport

import (
	"log/slog"
	"math"

	"stackview/internal/logging"
	"stackview/pkg/geometry"
)

// clickSlopPixels is how far a non-zoom button may travel between press
// and release and still count as a click.
const clickSlopPixels = 3

// ClickKind distinguishes the pointer notifications sent to click listeners.
type ClickKind int

const (
	ClickPress ClickKind = iota
	ClickRelease
	Click
	DoubleClick
)

func (k ClickKind) String() string {
	switch k {
	case ClickPress:
		return "press"
	case ClickRelease:
		return "release"
	case Click:
		return "click"
	case DoubleClick:
		return "double-click"
	default:
		return "unknown"
	}
}

// ClickEvent carries a pointer notification in image coordinates.
type ClickEvent struct {
	Kind   ClickKind
	Button Button
	Image  geometry.Point2D
}

// HoverEvent reports the pointer position. Inside is false once the pointer
// leaves the viewport or no longer lies over the image.
type HoverEvent struct {
	View   geometry.Point2D
	Image  geometry.Point2D
	Inside bool
}

// Frame is everything the host needs to paint one viewport refresh.
type Frame struct {
	Transform Transform
	Scene     geometry.Rect
	// Band is the viewport-space rubber band of a region drag in progress.
	Band    geometry.Rect
	HasBand bool
	Zoom    float64
	Depth   int
}

// Viewport owns the zoom history and routes gestures to the controllers.
type Viewport struct {
	opts   Options
	logger *slog.Logger

	width, height float64
	stack         *ZoomStack

	region RegionZoomController
	wheel  WheelZoomController
	pan    PanController

	pressed map[Button]geometry.Point2D

	capture func(geometry.Rect)

	clickListeners []func(ClickEvent)
	viewListeners  []func(geometry.Rect)
	hoverListeners []func(HoverEvent)
}

// New creates a Viewport with no image. The logger may be nil.
func New(opts Options, logger *slog.Logger) (*Viewport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrDiscard(logger)
	v := &Viewport{
		logger:  logger,
		stack:   NewZoomStack(geometry.Rect{}, opts.MinZoomSidePixels),
		pressed: make(map[Button]geometry.Point2D),
	}
	v.applyOptions(opts)
	return v, nil
}

func (v *Viewport) applyOptions(opts Options) {
	v.opts = opts
	v.region.MinAreaPixels = opts.MinZoomAreaPixels
	v.wheel.Factor = opts.wheelFactor()
	v.wheel.Coalesce = opts.CoalesceWheel
	v.stack.SetMinSide(opts.MinZoomSidePixels)
}

// Options returns the active options.
func (v *Viewport) Options() Options { return v.opts }

// SetOptions replaces the options. Gestures in progress are cancelled; the
// zoom history is kept.
func (v *Viewport) SetOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	v.cancelGestures()
	v.applyOptions(opts)
	v.notifyView()
	return nil
}

// OnClick registers a listener for pointer notifications.
func (v *Viewport) OnClick(fn func(ClickEvent)) {
	v.clickListeners = append(v.clickListeners, fn)
}

// SetRegionCapture makes region drags hand their image rectangle to fn
// instead of zooming. A nil fn restores region zoom.
func (v *Viewport) SetRegionCapture(fn func(geometry.Rect)) {
	v.region.Cancel()
	v.capture = fn
	v.region.Capture = fn != nil
}

// OnViewChanged registers a listener called with the new scene rectangle
// whenever it changes.
func (v *Viewport) OnViewChanged(fn func(geometry.Rect)) {
	v.viewListeners = append(v.viewListeners, fn)
}

// OnHover registers a listener for pointer movement.
func (v *Viewport) OnHover(fn func(HoverEvent)) {
	v.hoverListeners = append(v.hoverListeners, fn)
}

// SetImageSize installs a new image of the given pixel size and resets the
// view to show all of it.
func (v *Viewport) SetImageSize(width, height int) {
	v.cancelGestures()
	v.stack.Reset(geometry.NewRect(0, 0, float64(width), float64(height)))
	v.logger.Debug("image replaced", "width", width, "height", height)
	v.notifyView()
}

// Resize records the new viewport size in pixels.
func (v *Viewport) Resize(width, height float64) {
	v.width, v.height = width, height
}

// Size returns the viewport size.
func (v *Viewport) Size() (float64, float64) { return v.width, v.height }

// ImageBounds returns the full image rectangle.
func (v *Viewport) ImageBounds() geometry.Rect { return v.stack.Full() }

// SceneRect returns the visible image rectangle.
func (v *Viewport) SceneRect() geometry.Rect { return v.stack.Current() }

// Stack exposes the zoom history.
func (v *Viewport) Stack() *ZoomStack { return v.stack }

// Transform builds the mapping for the current state.
func (v *Viewport) Transform() (Transform, error) {
	return NewTransform(v.stack.Current(), v.width, v.height, v.opts.Aspect, v.opts.FlipHorizontal, v.opts.FlipVertical)
}

// Paint returns what to draw. On error the host should keep showing the
// previous frame.
func (v *Viewport) Paint() (Frame, error) {
	t, err := v.Transform()
	if err != nil {
		return Frame{}, err
	}
	f := Frame{
		Transform: t,
		Scene:     t.Scene(),
		Zoom:      t.ZoomLevel(v.stack.Full()),
		Depth:     v.stack.Depth(),
	}
	if band, ok := v.region.Band(t); ok {
		f.Band = t.ViewportRect(band)
		f.HasBand = true
	}
	return f, nil
}

// Press handles a button press at viewport position p.
func (v *Viewport) Press(b Button, p geometry.Point2D) {
	t, err := v.Transform()
	if err != nil || b == ButtonNone {
		return
	}
	v.wheel.EndBurst()
	v.pressed[b] = p
	v.emitClick(ClickPress, b, t.ToImage(p))

	switch b {
	case v.opts.RegionZoomButton:
		v.region.Press(p, t)
	case v.opts.PanButton:
		v.pan.Press(p)
	}
}

// Move handles pointer motion to viewport position p.
func (v *Viewport) Move(p geometry.Point2D) {
	t, err := v.Transform()
	if err != nil {
		return
	}
	v.region.Move(p)
	if v.pan.Move(p, t, v.stack) {
		v.notifyView()
		if t, err = v.Transform(); err != nil {
			return
		}
	}
	v.emitHover(p, t)
}

// Leave reports that the pointer left the viewport.
func (v *Viewport) Leave() {
	for _, fn := range v.hoverListeners {
		fn(HoverEvent{Inside: false})
	}
}

// Release handles a button release at viewport position p.
func (v *Viewport) Release(b Button, p geometry.Point2D) {
	t, err := v.Transform()
	if err != nil || b == ButtonNone {
		return
	}
	start, held := v.pressed[b]
	delete(v.pressed, b)
	img := t.ToImage(p)

	switch b {
	case v.opts.RegionZoomButton:
		res := v.region.Release(p, t, v.stack)
		v.emitClick(ClickRelease, b, img)
		if res.Zoomed {
			v.logger.Debug("region zoom", "rect", res.Rect, "depth", v.stack.Depth())
			v.notifyView()
		}
		if res.Captured && v.capture != nil {
			v.capture(res.Rect)
		}
		if res.Click {
			v.emitClick(Click, b, res.Point)
		}
		return
	case v.opts.PanButton:
		v.pan.Release()
	}

	v.emitClick(ClickRelease, b, img)
	if !held || start.Distance(p) > clickSlopPixels {
		return
	}
	if b == v.opts.ZoomOutButton {
		v.ZoomOut()
	}
	v.emitClick(Click, b, img)
}

// DoubleClick handles a double click. On the region zoom button it resets
// the view to the full image.
func (v *Viewport) DoubleClick(b Button, p geometry.Point2D) {
	t, err := v.Transform()
	if err != nil || b == ButtonNone {
		return
	}
	v.wheel.EndBurst()
	if b == v.opts.RegionZoomButton {
		v.region.Cancel()
		v.ResetView()
	}
	v.emitClick(DoubleClick, b, t.ToImage(p))
}

// Wheel applies steps wheel notches at viewport position p. Positive steps
// zoom in. It reports whether the view changed.
func (v *Viewport) Wheel(steps float64, p geometry.Point2D) bool {
	if !v.wheel.Enabled() {
		return false
	}
	t, err := v.Transform()
	if err != nil {
		return false
	}
	if !v.wheel.Tick(steps, p, t, v.stack) {
		return false
	}
	v.notifyView()
	return true
}

// WheelEnabled reports whether wheel ticks zoom.
func (v *Viewport) WheelEnabled() bool { return v.wheel.Enabled() }

// ZoomOut pops one level of zoom history.
func (v *Viewport) ZoomOut() bool {
	v.wheel.EndBurst()
	if _, ok := v.stack.Pop(); !ok {
		return false
	}
	v.notifyView()
	return true
}

// ResetView shows the full image.
func (v *Viewport) ResetView() {
	v.wheel.EndBurst()
	if v.stack.Depth() == 0 {
		return
	}
	v.stack.Clear()
	v.notifyView()
}

// ZoomTo pushes r, clipped to the image, as a new view.
func (v *Viewport) ZoomTo(r geometry.Rect) bool {
	t, err := v.Transform()
	if err != nil {
		return false
	}
	r, ok := r.Intersect(v.stack.Full())
	if !ok || !v.stack.Push(r, t) {
		return false
	}
	v.wheel.EndBurst()
	v.notifyView()
	return true
}

// Dragging reports whether a region drag is in progress.
func (v *Viewport) Dragging() bool { return v.region.State() == RegionDragging }

// Panning reports whether a pan is in progress.
func (v *Viewport) Panning() bool { return v.pan.Panning() }

func (v *Viewport) cancelGestures() {
	v.region.Cancel()
	v.pan.Release()
	v.wheel.EndBurst()
	clear(v.pressed)
}

func (v *Viewport) emitClick(kind ClickKind, b Button, img geometry.Point2D) {
	ev := ClickEvent{Kind: kind, Button: b, Image: img}
	for _, fn := range v.clickListeners {
		fn(ev)
	}
}

func (v *Viewport) emitHover(p geometry.Point2D, t Transform) {
	if len(v.hoverListeners) == 0 {
		return
	}
	img := t.ToImage(p)
	full := v.stack.Full()
	inside := !math.IsNaN(img.X) && img.X >= full.X && img.X < full.MaxX() && img.Y >= full.Y && img.Y < full.MaxY()
	ev := HoverEvent{View: p, Image: img, Inside: inside}
	for _, fn := range v.hoverListeners {
		fn(ev)
	}
}

func (v *Viewport) notifyView() {
	r := v.stack.Current()
	for _, fn := range v.viewListeners {
		fn(r)
	}
}
