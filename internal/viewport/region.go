package viewport

import (
	"math"

	"stackview/pkg/geometry"
)

// RegionState is the state of a RegionZoomController.
type RegionState int

const (
	RegionIdle RegionState = iota
	RegionDragging
)

func (s RegionState) String() string {
	switch s {
	case RegionIdle:
		return "idle"
	case RegionDragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// RegionResult describes what a release did.
type RegionResult struct {
	// Zoomed is true when a new rectangle was pushed.
	Zoomed bool
	Rect   geometry.Rect

	// Captured is true when the band was handed back instead of zooming.
	Captured bool

	// Click is true when the gesture was too small to count as a drag.
	// Point is the release position in image coordinates.
	Click bool
	Point geometry.Point2D
}

// RegionZoomController turns a drag into a zoom-stack push.
type RegionZoomController struct {
	// MinAreaPixels is the viewport area a drag must exceed to zoom.
	MinAreaPixels float64
	// Capture returns the clipped band from Release without pushing it.
	Capture bool

	state       RegionState
	anchorView  geometry.Point2D
	anchorImage geometry.Point2D
	lastView    geometry.Point2D
}

// State returns the current state.
func (c *RegionZoomController) State() RegionState { return c.state }

// Press starts a drag at viewport position p.
func (c *RegionZoomController) Press(p geometry.Point2D, t Transform) {
	c.state = RegionDragging
	c.anchorView = p
	c.anchorImage = t.ToImage(p)
	c.lastView = p
}

// Move updates the free corner of the drag.
func (c *RegionZoomController) Move(p geometry.Point2D) {
	if c.state != RegionDragging {
		return
	}
	c.lastView = p
}

// Band returns the image-space rectangle between the anchor and the last
// pointer position while dragging.
func (c *RegionZoomController) Band(t Transform) (geometry.Rect, bool) {
	if c.state != RegionDragging {
		return geometry.Rect{}, false
	}
	return geometry.RectFromPoints(c.anchorImage, t.ToImage(c.lastView)), true
}

// Release ends the drag at viewport position p. A drag whose viewport area
// exceeds MinAreaPixels is clipped to the current view and pushed; anything
// smaller is reported as a click.
func (c *RegionZoomController) Release(p geometry.Point2D, t Transform, stack *ZoomStack) RegionResult {
	if c.state != RegionDragging {
		return RegionResult{}
	}
	c.state = RegionIdle

	area := math.Abs(p.X-c.anchorView.X) * math.Abs(p.Y-c.anchorView.Y)
	if area <= c.MinAreaPixels {
		return RegionResult{Click: true, Point: t.ToImage(p)}
	}

	band := geometry.RectFromPoints(c.anchorImage, t.ToImage(p))
	current := stack.Current()
	r, ok := band.Intersect(current)
	if !ok {
		return RegionResult{}
	}
	if r, ok = r.Intersect(stack.Full()); !ok {
		return RegionResult{}
	}
	if c.Capture {
		return RegionResult{Captured: true, Rect: r}
	}
	if sameRect(r, current) {
		return RegionResult{}
	}
	if !stack.Push(r, t) {
		return RegionResult{}
	}
	return RegionResult{Zoomed: true, Rect: r}
}

// Cancel abandons a drag without zooming.
func (c *RegionZoomController) Cancel() {
	c.state = RegionIdle
}
