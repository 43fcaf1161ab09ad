package roi

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackview/internal/viewport"
	"stackview/pkg/geometry"
)

func TestSelectPrefersNewest(t *testing.T) {
	m := NewManager(nil)
	older, err := m.Create(RectShape(geometry.NewRect(0, 0, 100, 100)))
	require.NoError(t, err)
	newer, err := m.Create(RectShape(geometry.NewRect(50, 50, 100, 100)))
	require.NoError(t, err)

	id, ok := m.Select(geometry.Point2D{X: 75, Y: 75})
	require.True(t, ok)
	assert.Equal(t, newer, id)

	id, ok = m.Select(geometry.Point2D{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, older, id)

	rois := m.List()
	require.Len(t, rois, 2)
	assert.True(t, rois[0].Selected)
	assert.False(t, rois[1].Selected)

	_, ok = m.Select(geometry.Point2D{X: 500, Y: 500})
	assert.False(t, ok)
	_, ok = m.Selected()
	assert.False(t, ok)
}

func TestPolygonHitTest(t *testing.T) {
	m := NewManager(nil)
	tri, err := m.Create(PolygonShape([]geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 100}}))
	require.NoError(t, err)

	id, ok := m.HitTest(geometry.Point2D{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, tri, id)

	// Inside the bounding box but outside the triangle.
	_, ok = m.HitTest(geometry.Point2D{X: 90, Y: 90})
	assert.False(t, ok)
}

func TestMoveAndDelete(t *testing.T) {
	m := NewManager(nil)
	id, err := m.Create(RectShape(geometry.NewRect(0, 0, 10, 10)))
	require.NoError(t, err)

	require.NoError(t, m.Move(id, geometry.Point2D{X: 5, Y: -2}))
	r, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, geometry.NewRect(5, -2, 10, 10), r.Bounds())

	// Returned values are copies.
	r.Vertices[0] = geometry.Point2D{X: 999, Y: 999}
	again, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, geometry.Point2D{X: 5, Y: -2}, again.Vertices[0])

	require.NoError(t, m.Delete(id))
	assert.ErrorIs(t, m.Delete(id), ErrNotFound)
	assert.ErrorIs(t, m.Move(id, geometry.Point2D{}), ErrNotFound)
	assert.ErrorIs(t, m.Move(uuid.New(), geometry.Point2D{}), ErrNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestCreateRejectsDegenerateShapes(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Create(RectShape(geometry.NewRect(1, 1, 0, 5)))
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = m.Create(PolygonShape([]geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}}))
	assert.ErrorIs(t, err, ErrInvalidShape)
	assert.Equal(t, 0, m.Len())
}

func TestOverlaysFollowTransform(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Create(RectShape(geometry.NewRect(200, 200, 400, 300)))
	require.NoError(t, err)

	tr, err := viewport.NewTransform(geometry.NewRect(0, 0, 1000, 800), 500, 400, viewport.AspectKeepFit, false, false)
	require.NoError(t, err)
	ov := m.Overlays(tr)
	require.Len(t, ov, 1)
	assert.Equal(t, geometry.Point2D{X: 100, Y: 100}, ov[0].Points[0])
	assert.Equal(t, geometry.Point2D{X: 300, Y: 250}, ov[0].Points[2])

	// Zooming changes presentation, not the stored vertices.
	tr, err = viewport.NewTransform(geometry.NewRect(200, 200, 400, 300), 500, 400, viewport.AspectKeepFit, false, false)
	require.NoError(t, err)
	ov = m.Overlays(tr)
	assert.Equal(t, geometry.Point2D{X: 0, Y: 12.5}, ov[0].Points[0])
	assert.Equal(t, geometry.NewRect(200, 200, 400, 300), m.List()[0].Bounds())

	m.Clear()
	assert.Empty(t, m.Overlays(tr))
}
