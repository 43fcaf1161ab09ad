package image

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/math/f64"
)

func TestExtractChannel(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	require.Equal(t, 3, Channels(src.ColorModel()))

	for c, want := range []uint8{200, 100, 50} {
		out, err := ExtractChannel(src, c)
		require.NoError(t, err)
		g, ok := out.(*image.Gray)
		require.True(t, ok)
		assert.Equal(t, want, g.GrayAt(0, 0).Y, "channel %d", c)
	}

	_, err := ExtractChannel(src, 3)
	assert.Error(t, err)

	gray := image.NewGray16(image.Rect(0, 0, 1, 1))
	out, err := ExtractChannel(gray, 0)
	require.NoError(t, err)
	assert.Same(t, gray, out)
}

func TestValuesAndFormat(t *testing.T) {
	g := image.NewGray16(image.Rect(0, 0, 2, 2))
	g.SetGray16(1, 1, color.Gray16{Y: 4242})
	vals, ok := Values(g, 1, 1)
	require.True(t, ok)
	assert.Equal(t, "4242", FormatValues(vals))

	_, ok = Values(g, 2, 0)
	assert.False(t, ok)

	assert.Equal(t, "(1, 2, 3)", FormatValues([]uint32{1, 2, 3}))
}

func TestDisplayStretchesSixteenBit(t *testing.T) {
	g := image.NewGray16(image.Rect(0, 0, 3, 1))
	g.SetGray16(0, 0, color.Gray16{Y: 1000})
	g.SetGray16(1, 0, color.Gray16{Y: 1500})
	g.SetGray16(2, 0, color.Gray16{Y: 2000})

	d, ok := Display(g).(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, []uint8{0, 127, 255}, d.Pix)
}

func TestCompositeRender(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	c := NewComposite(8, 4)
	// Scale by 2 and shift right by 2.
	out := c.Render(src, f64.Aff3{2, 0, 2, 0, 2, 0})

	assert.Equal(t, color.RGBA{40, 40, 40, 255}, out.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(3, 3))
	assert.Equal(t, color.RGBA{40, 40, 40, 255}, out.RGBAAt(7, 0))
}
