package viewport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"

	"stackview/pkg/geometry"
)

const eps = 1e-9

func closePoint(a, b geometry.Point2D) bool {
	return scalar.EqualWithinAbs(a.X, b.X, eps) && scalar.EqualWithinAbs(a.Y, b.Y, eps)
}

func TestTransformRoundTrip(t *testing.T) {
	scenes := []geometry.Rect{
		geometry.NewRect(0, 0, 1000, 800),
		geometry.NewRect(123.5, 40, 17, 333),
	}
	sizes := [][2]float64{{500, 400}, {1, 1}, {1920, 300}, {37, 1080}}
	points := []geometry.Point2D{{X: 0, Y: 0}, {X: 512.25, Y: -7}, {X: 1e4, Y: 3.5}}

	for _, mode := range []AspectMode{AspectIgnore, AspectKeepFit, AspectKeepFill} {
		for _, flip := range [][2]bool{{false, false}, {true, false}, {false, true}, {true, true}} {
			for _, scene := range scenes {
				for _, sz := range sizes {
					name := fmt.Sprintf("%s/flip%v/%v/%v", mode, flip, scene, sz)
					t.Run(name, func(t *testing.T) {
						tr, err := NewTransform(scene, sz[0], sz[1], mode, flip[0], flip[1])
						require.NoError(t, err)
						for _, p := range points {
							back := tr.ToImage(tr.ToViewport(p))
							assert.True(t, closePoint(p, back), "%v -> %v", p, back)

							m := tr.Matrix().Apply(p)
							assert.True(t, closePoint(m, tr.ToViewport(p)), "matrix disagrees at %v", p)
						}
					})
				}
			}
		}
	}
}

func TestTransformKeepFitLetterbox(t *testing.T) {
	full := geometry.NewRect(0, 0, 1000, 800)

	tr, err := NewTransform(full, 500, 400, AspectKeepFit, false, false)
	require.NoError(t, err)
	sx, sy := tr.Scale()
	assert.Equal(t, 0.5, sx)
	assert.Equal(t, 0.5, sy)
	assert.InDelta(t, 1.0, tr.ZoomLevel(full), eps)

	// A taller viewport letterboxes vertically.
	tr, err = NewTransform(full, 500, 600, AspectKeepFit, false, false)
	require.NoError(t, err)
	ox, oy := tr.Offset()
	assert.Equal(t, 0.0, ox)
	assert.Equal(t, 100.0, oy)
	assert.Equal(t, geometry.Point2D{X: 250, Y: 300}, tr.ToViewport(full.Center()))
}

func TestTransformKeepFillOverflows(t *testing.T) {
	full := geometry.NewRect(0, 0, 1000, 800)
	tr, err := NewTransform(full, 500, 600, AspectKeepFill, false, false)
	require.NoError(t, err)

	sx, _ := tr.Scale()
	assert.Equal(t, 0.75, sx)
	ox, oy := tr.Offset()
	assert.Equal(t, -125.0, ox)
	assert.Equal(t, 0.0, oy)
	assert.True(t, tr.Visible().Width < full.Width)
}

func TestTransformIgnoreStretches(t *testing.T) {
	tr, err := NewTransform(geometry.NewRect(0, 0, 100, 50), 200, 200, AspectIgnore, false, false)
	require.NoError(t, err)
	sx, sy := tr.Scale()
	assert.Equal(t, 2.0, sx)
	assert.Equal(t, 4.0, sy)
	assert.Equal(t, geometry.Point2D{X: 200, Y: 200}, tr.ToViewport(geometry.Point2D{X: 100, Y: 50}))
}

func TestTransformFlip(t *testing.T) {
	tr, err := NewTransform(geometry.NewRect(0, 0, 100, 100), 100, 100, AspectKeepFit, true, false)
	require.NoError(t, err)
	assert.Equal(t, geometry.Point2D{X: 90, Y: 10}, tr.ToViewport(geometry.Point2D{X: 10, Y: 10}))
	assert.Equal(t, [6]float64{-1, 0, 100, 0, 1, 0}, [6]float64(tr.Aff3()))
}

func TestTransformZoomLevel(t *testing.T) {
	full := geometry.NewRect(0, 0, 1000, 800)
	tr, err := NewTransform(geometry.NewRect(200, 200, 250, 200), 500, 400, AspectKeepFit, false, false)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, tr.ZoomLevel(full), eps)
}

func TestTransformInvalidViewport(t *testing.T) {
	full := geometry.NewRect(0, 0, 10, 10)
	for _, sz := range [][2]float64{{0, 10}, {10, 0}, {-1, 5}} {
		_, err := NewTransform(full, sz[0], sz[1], AspectKeepFit, false, false)
		assert.True(t, errors.Is(err, ErrInvalidViewport), "size %v", sz)
	}
	_, err := NewTransform(geometry.Rect{}, 10, 10, AspectKeepFit, false, false)
	assert.ErrorIs(t, err, ErrInvalidViewport)
}

func TestAspectModeText(t *testing.T) {
	for _, m := range []AspectMode{AspectIgnore, AspectKeepFit, AspectKeepFill} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var back AspectMode
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}
	var m AspectMode
	assert.Error(t, m.UnmarshalText([]byte("stretch")))

	b, err := ParseButton(" Middle ")
	require.NoError(t, err)
	assert.Equal(t, ButtonMiddle, b)
	b, err = ParseButton("")
	require.NoError(t, err)
	assert.Equal(t, ButtonNone, b)
	_, err = ParseButton("back")
	assert.Error(t, err)
}
