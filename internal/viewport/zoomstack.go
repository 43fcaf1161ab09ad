package viewport

import (
	"math"

	"stackview/pkg/geometry"
)

const rectEpsilon = 1e-9

// ZoomStack is the history of scene rectangles. The full image rectangle
// is the implicit base and is never stored.
type ZoomStack struct {
	full    geometry.Rect
	entries []geometry.Rect
	minSide float64
}

// NewZoomStack creates an empty stack over the full image rectangle.
// Rectangles narrower than minSidePixels in viewport space are refused.
func NewZoomStack(full geometry.Rect, minSidePixels float64) *ZoomStack {
	return &ZoomStack{full: full, minSide: minSidePixels}
}

// Full returns the implicit base rectangle.
func (z *ZoomStack) Full() geometry.Rect { return z.full }

// Depth returns the number of explicit entries.
func (z *ZoomStack) Depth() int { return len(z.entries) }

// Current returns the top entry, or the full image when the stack is empty.
func (z *ZoomStack) Current() geometry.Rect {
	if len(z.entries) == 0 {
		return z.full
	}
	return z.entries[len(z.entries)-1]
}

// Entries returns a copy of the stored history, oldest first.
func (z *ZoomStack) Entries() []geometry.Rect {
	out := make([]geometry.Rect, len(z.entries))
	copy(out, z.entries)
	return out
}

// Push adds r on top of the history. It reports false and leaves the stack
// unchanged when r is empty or either side would be shorter than the
// minimum side length once displayed through t.
func (z *ZoomStack) Push(r geometry.Rect, t Transform) bool {
	if r.Empty() {
		return false
	}
	sx, sy := t.Scale()
	if r.Width*sx < z.minSide || r.Height*sy < z.minSide {
		return false
	}
	z.entries = append(z.entries, r)
	return true
}

// Pop removes and returns the top entry. ok is false if the stack was empty.
func (z *ZoomStack) Pop() (r geometry.Rect, ok bool) {
	if len(z.entries) == 0 {
		return geometry.Rect{}, false
	}
	r = z.entries[len(z.entries)-1]
	z.entries = z.entries[:len(z.entries)-1]
	return r, true
}

// Clear drops every entry so the full image is shown.
func (z *ZoomStack) Clear() {
	z.entries = z.entries[:0]
}

// ReplaceTop overwrites the top entry, or makes r the first explicit entry
// when the stack is empty. The depth does not change otherwise.
func (z *ZoomStack) ReplaceTop(r geometry.Rect) {
	if len(z.entries) == 0 {
		z.entries = append(z.entries, r)
		return
	}
	z.entries[len(z.entries)-1] = r
}

// Reset clears the history and installs a new full image rectangle.
func (z *ZoomStack) Reset(full geometry.Rect) {
	z.full = full
	z.entries = nil
}

// SetMinSide changes the minimum displayed side length for future pushes.
func (z *ZoomStack) SetMinSide(px float64) { z.minSide = px }

func sameRect(a, b geometry.Rect) bool {
	tol := rectEpsilon * math.Max(1, math.Max(math.Abs(a.Width), math.Abs(a.Height)))
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Width-b.Width) <= tol && math.Abs(a.Height-b.Height) <= tol
}
