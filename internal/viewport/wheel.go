package viewport

import (
	"math"

	"stackview/pkg/geometry"
)

// WheelZoomController zooms around the cursor one wheel tick at a time.
//
// Zooming in pushes a new entry per tick. Zooming out discards history
// entries that are no larger than the new rectangle, so popping always
// returns to a wider view; reaching the full image clears the stack.
// With Coalesce set, consecutive zoom-in ticks replace the entry pushed by
// the first tick of the burst until EndBurst is called.
type WheelZoomController struct {
	Factor   float64
	Coalesce bool

	burstDepth int // depth of the entry owned by the current burst, 0 if none
}

// Enabled reports whether the factor allows zooming at all.
func (c *WheelZoomController) Enabled() bool {
	return c.Factor > 1
}

// EndBurst marks the end of a run of wheel ticks.
func (c *WheelZoomController) EndBurst() {
	c.burstDepth = 0
}

// Tick applies steps wheel notches at viewport position cursor. Positive
// steps zoom in. It reports whether the scene rectangle changed.
func (c *WheelZoomController) Tick(steps float64, cursor geometry.Point2D, t Transform, stack *ZoomStack) bool {
	if !c.Enabled() || steps == 0 || math.IsNaN(steps) {
		return false
	}

	cur := stack.Current()
	full := stack.Full()
	k := math.Pow(c.Factor, steps)

	anchor := t.ToImage(cursor)
	fx := (anchor.X - cur.X) / cur.Width
	fy := (anchor.Y - cur.Y) / cur.Height
	w := cur.Width / k
	h := cur.Height / k
	next := geometry.Rect{X: anchor.X - fx*w, Y: anchor.Y - fy*h, Width: w, Height: h}

	if steps > 0 {
		return c.zoomIn(next, cur, full, t, stack)
	}
	return c.zoomOut(next, full, t, stack)
}

func (c *WheelZoomController) zoomIn(next, cur, full geometry.Rect, t Transform, stack *ZoomStack) bool {
	r, ok := next.Intersect(cur)
	if !ok {
		return false
	}
	if r, ok = r.Intersect(full); !ok {
		return false
	}

	if c.Coalesce && c.burstDepth > 0 && c.burstDepth == stack.Depth() {
		if !fitsMinSide(r, t, stack) {
			return false
		}
		stack.ReplaceTop(r)
		return true
	}
	if !stack.Push(r, t) {
		return false
	}
	c.burstDepth = stack.Depth()
	return true
}

func (c *WheelZoomController) zoomOut(next, full geometry.Rect, t Transform, stack *ZoomStack) bool {
	r, ok := next.Intersect(full)
	if !ok {
		return false
	}

	before := stack.Current()
	depth := stack.Depth()
	for stack.Depth() > 0 && r.Area() >= stack.Current().Area()*(1-rectEpsilon) {
		stack.Pop()
	}
	if c.burstDepth > stack.Depth() {
		c.burstDepth = 0
	}

	if stack.Depth() == 0 && r.Area() >= full.Area()*(1-rectEpsilon) {
		return depth > 0
	}
	if stack.Push(r, t) {
		if c.Coalesce {
			c.burstDepth = stack.Depth()
		}
		return true
	}
	return !sameRect(before, stack.Current())
}

func fitsMinSide(r geometry.Rect, t Transform, stack *ZoomStack) bool {
	sx, sy := t.Scale()
	return r.Width*sx >= stack.minSide && r.Height*sy >= stack.minSide
}
