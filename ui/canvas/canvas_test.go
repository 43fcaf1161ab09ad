package canvas

import (
	"image"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackview/internal/app"
	"stackview/internal/roi"
	"stackview/internal/stack"
	"stackview/internal/viewport"
	"stackview/pkg/colorutil"
	"stackview/pkg/geometry"
)

func TestDrawLineAndDashedRect(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 10, 10))
	drawLine(out, 0, 0, 9, 9, colorutil.White, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, colorutil.White, out.RGBAAt(i, i))
	}

	out = image.NewRGBA(image.Rect(0, 0, 10, 10))
	drawDashedRect(out, geometry.NewRect(0, 0, 8, 8), colorutil.Yellow)
	assert.Equal(t, colorutil.Yellow, out.RGBAAt(0, 0))
	assert.Equal(t, colorutil.Yellow, out.RGBAAt(1, 0))
	assert.NotEqual(t, colorutil.Yellow, out.RGBAAt(2, 0))
	assert.NotEqual(t, colorutil.Yellow, out.RGBAAt(4, 4), "interior untouched")
}

func TestFillPolygonCoversInterior(t *testing.T) {
	out := image.NewRGBA(image.Rect(0, 0, 10, 10))
	square := geometry.NewRect(2, 2, 4, 4).Corners()
	fillPolygon(out, square, colorutil.White, 1)

	assert.Equal(t, colorutil.White, out.RGBAAt(2, 2))
	assert.Equal(t, colorutil.White, out.RGBAAt(5, 5))
	assert.NotEqual(t, colorutil.White, out.RGBAAt(6, 6))
	assert.NotEqual(t, colorutil.White, out.RGBAAt(1, 3))
}

func TestButtonMapping(t *testing.T) {
	assert.Equal(t, viewport.ButtonLeft, buttonFor(desktop.MouseButtonPrimary))
	assert.Equal(t, viewport.ButtonRight, buttonFor(desktop.MouseButtonSecondary))
	assert.Equal(t, viewport.ButtonMiddle, buttonFor(desktop.MouseButtonTertiary))
}

func newCanvas(t *testing.T) (*ViewerCanvas, *app.State) {
	t.Helper()
	test.NewApp()
	s, err := app.NewState(nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	data := make([]uint8, 4*4)
	for i := range data {
		data[i] = 200
	}
	v, err := stack.NewVolume8(stack.Shape{Rows: 4, Cols: 4, Frames: 1, Channels: 1}, data)
	require.NoError(t, err)
	require.NoError(t, s.SetVolume(v))

	vc := NewViewerCanvas(s, nil)
	vc.Resize(fyne.NewSize(80, 80))
	return vc, s
}

func TestDrawComposesRasterAndOverlays(t *testing.T) {
	vc, s := newCanvas(t)

	out := vc.draw(80, 80).(*image.RGBA)
	assert.Equal(t, uint8(200), out.RGBAAt(70, 70).R)

	_, err := s.ROIs().Create(roi.RectShape(geometry.NewRect(0, 0, 2, 2)))
	require.NoError(t, err)
	out = vc.draw(80, 80).(*image.RGBA)
	assert.Equal(t, colorutil.ToRGBA(app.ROIColor), out.RGBAAt(0, 0))
	assert.Equal(t, uint8(200), out.RGBAAt(70, 70).R)
}

func TestGesturesReachState(t *testing.T) {
	vc, s := newCanvas(t)
	var status string
	vc.OnStatus(func(text string) { status = text })

	vc.MouseMoved(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(30, 50)}})
	assert.Equal(t, "4x4; x=1, y=2, value=200", status)

	press := &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(0, 0)}, Button: desktop.MouseButtonPrimary}
	release := &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 60)}, Button: desktop.MouseButtonPrimary}
	vc.MouseDown(press)
	vc.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 60)}})
	vc.MouseUp(release)

	f, err := s.Paint()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Depth)
	assert.Equal(t, geometry.NewRect(0, 0, 3, 3), f.Scene)

	vc.DoubleTapped(&fyne.PointEvent{Position: fyne.NewPos(40, 40)})
	f, err = s.Paint()
	require.NoError(t, err)
	assert.Equal(t, 0, f.Depth)
}
