package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackview/pkg/geometry"
)

func fitTransform(t *testing.T, scene geometry.Rect, w, h float64) Transform {
	t.Helper()
	tr, err := NewTransform(scene, w, h, AspectKeepFit, false, false)
	require.NoError(t, err)
	return tr
}

func TestZoomStackPushPop(t *testing.T) {
	full := geometry.NewRect(0, 0, 1000, 800)
	z := NewZoomStack(full, 1)
	tr := fitTransform(t, full, 500, 400)

	assert.Equal(t, full, z.Current())
	r := geometry.NewRect(200, 200, 400, 300)
	require.True(t, z.Push(r, tr))
	assert.Equal(t, r, z.Current())
	assert.Equal(t, 1, z.Depth())

	popped, ok := z.Pop()
	require.True(t, ok)
	assert.Equal(t, r, popped)
	assert.Equal(t, full, z.Current())

	_, ok = z.Pop()
	assert.False(t, ok)
}

func TestZoomStackRejectsTinyRects(t *testing.T) {
	full := geometry.NewRect(0, 0, 1000, 800)
	z := NewZoomStack(full, 4)
	tr := fitTransform(t, full, 500, 400) // 0.5 px per image pixel

	assert.False(t, z.Push(geometry.NewRect(10, 10, 6, 100), tr), "3 px wide on screen")
	assert.False(t, z.Push(geometry.NewRect(10, 10, 0, 0), tr))
	assert.Equal(t, full, z.Current())
	assert.True(t, z.Push(geometry.NewRect(10, 10, 8, 8), tr))
}

func TestZoomStackClearAndReset(t *testing.T) {
	full := geometry.NewRect(0, 0, 100, 100)
	z := NewZoomStack(full, 1)
	tr := fitTransform(t, full, 100, 100)
	z.Push(geometry.NewRect(0, 0, 50, 50), tr)
	z.Push(geometry.NewRect(0, 0, 20, 20), tr)

	z.Clear()
	assert.Equal(t, 0, z.Depth())
	assert.Equal(t, full, z.Current())

	z.ReplaceTop(geometry.NewRect(5, 5, 100, 100))
	assert.Equal(t, 1, z.Depth(), "replacing on an empty stack creates the first entry")

	next := geometry.NewRect(0, 0, 30, 40)
	z.Reset(next)
	assert.Equal(t, 0, z.Depth())
	assert.Equal(t, next, z.Current())
	assert.Empty(t, z.Entries())
}
