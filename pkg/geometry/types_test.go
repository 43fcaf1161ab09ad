package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectFromPointsNormalises(t *testing.T) {
	r := RectFromPoints(Point2D{X: 30, Y: 5}, Point2D{X: 10, Y: 25})
	assert.Equal(t, Rect{X: 10, Y: 5, Width: 20, Height: 20}, r)
}

func TestRectIntersect(t *testing.T) {
	a := NewRect(0, 0, 100, 80)

	got, ok := a.Intersect(NewRect(50, -10, 100, 40))
	require.True(t, ok)
	assert.Equal(t, NewRect(50, 0, 50, 30), got)

	_, ok = a.Intersect(NewRect(100, 0, 10, 10))
	assert.False(t, ok, "touching edges share no area")

	_, ok = a.Intersect(NewRect(-50, -50, 10, 10))
	assert.False(t, ok)
}

func TestRectContains(t *testing.T) {
	u := NewRect(0, 0, 15, 25)
	assert.True(t, u.ContainsRect(NewRect(1, 1, 2, 2)))
	assert.False(t, u.ContainsRect(NewRect(14, 24, 2, 2)))
	assert.True(t, u.Contains(u.Center()))
}

func TestBoundingBoxAndTranslate(t *testing.T) {
	pts := []Point2D{{X: 3, Y: 4}, {X: -1, Y: 9}, {X: 5, Y: 2}}
	assert.Equal(t, NewRect(-1, 2, 6, 7), BoundingBox(pts))

	moved := TranslatePoints(pts, Point2D{X: 1, Y: -2})
	assert.Equal(t, Point2D{X: 4, Y: 2}, moved[0])
	assert.Equal(t, Point2D{X: 3, Y: 4}, pts[0], "input must not be mutated")
}

func TestPointInPolygon(t *testing.T) {
	// L-shaped polygon
	poly := []Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 10}, {X: 0, Y: 10}}

	assert.True(t, PointInPolygon(Point2D{X: 2, Y: 8}, poly))
	assert.True(t, PointInPolygon(Point2D{X: 8, Y: 2}, poly))
	assert.False(t, PointInPolygon(Point2D{X: 8, Y: 8}, poly))
	assert.False(t, PointInPolygon(Point2D{X: 1, Y: 1}, poly[:2]))
}
