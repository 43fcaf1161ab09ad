package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackview/internal/roi"
	"stackview/pkg/geometry"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cells"+Extension)

	f := New()
	f.SetImage(path, filepath.Join(dir, "data", "cells.tif"))
	f.Frame, f.Channel = 3, 1
	f.Zoom = []geometry.Rect{geometry.NewRect(0, 0, 10, 10), geometry.NewRect(2, 2, 4, 4)}
	f.SetRegions([]roi.ROI{
		{ID: uuid.New(), Kind: roi.KindRect, Vertices: geometry.NewRect(1, 1, 2, 2).Corners()},
		{ID: uuid.New(), Kind: roi.KindPolygon, Vertices: []geometry.Point2D{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 2, Y: 3}}},
	})
	require.NoError(t, f.Save(path))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "cells.tif"), g.ImagePath)
	assert.Equal(t, filepath.Join(dir, "data", "cells.tif"), g.GetImagePath(path))
	assert.Equal(t, 3, g.Frame)
	assert.Equal(t, 1, g.Channel)
	assert.Equal(t, f.Zoom, g.Zoom)

	shapes, err := g.Shapes()
	require.NoError(t, err)
	require.Len(t, shapes, 2)
	assert.Equal(t, roi.RectShape(geometry.NewRect(1, 1, 2, 2)), shapes[0])
	assert.Equal(t, roi.KindPolygon, shapes[1].Kind)
	assert.Len(t, shapes[1].Vertices, 3)
}

func TestGetImagePathAbsolute(t *testing.T) {
	f := New()
	f.ImagePath = "/abs/stack.tif"
	assert.Equal(t, "/abs/stack.tif", f.GetImagePath("/elsewhere/s"+Extension))
	f.ImagePath = ""
	assert.Equal(t, "", f.GetImagePath("/elsewhere/s"+Extension))
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing"+Extension))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage"+Extension)
	require.NoError(t, os.WriteFile(garbage, []byte("{"), 0o644))
	_, err = Load(garbage)
	assert.Error(t, err)

	future := filepath.Join(dir, "future"+Extension)
	require.NoError(t, os.WriteFile(future, []byte(`{"version": 99}`), 0o644))
	_, err = Load(future)
	assert.ErrorContains(t, err, "unsupported version")
}

func TestShapesUnknownKind(t *testing.T) {
	f := New()
	f.Regions = []Region{{Kind: "ellipse"}}
	_, err := f.Shapes()
	assert.Error(t, err)
}
