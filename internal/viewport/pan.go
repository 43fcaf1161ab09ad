package viewport

import (
	"math"

	"stackview/pkg/geometry"
)

// PanController translates the visible rectangle while its button is held.
type PanController struct {
	panning bool
	last    geometry.Point2D
}

// Panning reports whether a pan gesture is active.
func (c *PanController) Panning() bool { return c.panning }

// Press starts panning at viewport position p.
func (c *PanController) Press(p geometry.Point2D) {
	c.panning = true
	c.last = p
}

// Move drags the view so the image follows the pointer. The top of stack
// is replaced in place; an empty stack gains its first explicit entry.
// It reports whether the scene rectangle changed.
func (c *PanController) Move(p geometry.Point2D, t Transform, stack *ZoomStack) bool {
	if !c.panning {
		return false
	}
	delta := t.ToImage(c.last).Sub(t.ToImage(p))
	c.last = p
	if delta.X == 0 && delta.Y == 0 {
		return false
	}

	cur := stack.Current()
	next := clampPan(cur.Translate(delta), stack.Full())
	if sameRect(next, cur) {
		return false
	}
	stack.ReplaceTop(next)
	return true
}

// Release ends the pan gesture.
func (c *PanController) Release() {
	c.panning = false
}

// clampPan keeps at least one image pixel (or the whole rectangle, if
// narrower) inside bounds on each axis.
func clampPan(r, bounds geometry.Rect) geometry.Rect {
	r.X = clampAxis(r.X, r.Width, bounds.X, bounds.Width)
	r.Y = clampAxis(r.Y, r.Height, bounds.Y, bounds.Height)
	return r
}

func clampAxis(pos, size, lo, extent float64) float64 {
	overlap := math.Min(1, math.Min(extent, size))
	minPos := lo - size + overlap
	maxPos := lo + extent - overlap
	return math.Max(minPos, math.Min(maxPos, pos))
}
