package image

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func grayPage(w, h int, seed uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = seed + uint8(i)
	}
	return img
}

func writeStack(t *testing.T, pages ...image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stack.tif")
	require.NoError(t, WritePages(path, pages))
	return path
}

func TestTIFFPagesDecodeSinglePage(t *testing.T) {
	// Odd widths force padding between pages.
	path := writeStack(t, grayPage(5, 3, 0), grayPage(5, 3, 100), grayPage(5, 3, 200))

	p, err := OpenTIFF(path)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, 3, p.PageCount())

	for i, seed := range []uint8{0, 100, 200} {
		img, err := p.DecodePage(context.Background(), i)
		require.NoError(t, err)
		g, ok := img.(*image.Gray)
		require.True(t, ok, "page %d decoded as %T", i, img)
		assert.Equal(t, grayPage(5, 3, seed).Pix, g.Pix, "page %d", i)
	}

	cfg, err := p.Config(2)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Width)
	assert.Equal(t, 3, cfg.Height)
	assert.Equal(t, color.GrayModel, cfg.ColorModel)
}

func TestTIFFPagesSixteenBit(t *testing.T) {
	page := image.NewGray16(image.Rect(0, 0, 4, 2))
	for i := 0; i < 8; i++ {
		page.SetGray16(i%4, i/4, color.Gray16{Y: uint16(i * 4000)})
	}
	path := writeStack(t, page, page)

	p, err := OpenTIFF(path)
	require.NoError(t, err)
	defer p.Close()

	img, err := p.DecodePage(context.Background(), 1)
	require.NoError(t, err)
	g, ok := img.(*image.Gray16)
	require.True(t, ok)
	assert.Equal(t, uint16(28000), g.Gray16At(3, 1).Y)
}

func TestTIFFPagesErrors(t *testing.T) {
	path := writeStack(t, grayPage(2, 2, 0))
	p, err := OpenTIFF(path)
	require.NoError(t, err)

	_, err = p.DecodePage(context.Background(), 1)
	assert.Error(t, err)
	_, err = p.DecodePage(context.Background(), -1)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.DecodePage(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	junk := filepath.Join(t.TempDir(), "junk.tif")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not a tiff"), 0o644))
	_, err = OpenTIFF(junk)
	assert.ErrorIs(t, err, ErrNotTIFF)

	_, err = OpenTIFF(filepath.Join(t.TempDir(), "missing.tif"))
	assert.Error(t, err)
}

func TestTIFFPagesReadsForeignSinglePage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	path := filepath.Join(t.TempDir(), "rgb.tiff")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, src, &tiff.Options{Compression: tiff.Deflate}))
	require.NoError(t, f.Close())

	p, err := OpenTIFF(path)
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, 1, p.PageCount())

	img, err := p.DecodePage(context.Background(), 0)
	require.NoError(t, err)
	vals, ok := Values(img, 1, 1)
	require.True(t, ok)
	assert.Equal(t, []uint32{10, 20, 30}, vals)

	still, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tiff", still.Format)
	assert.Equal(t, 3, still.Width())
}
