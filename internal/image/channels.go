package image

import (
	"fmt"
	"image"
	"image/color"
)

// Channels returns how many separable channels an image with the given
// color model has: 1 for grayscale, 3 (red, green, blue) otherwise. Alpha
// is never treated as a channel.
func Channels(model color.Model) int {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return 1
	default:
		return 3
	}
}

// Is16Bit reports whether the color model carries 16-bit samples.
func Is16Bit(model color.Model) bool {
	switch model {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return true
	}
	return false
}

// ExtractChannel returns channel c of img as a single-channel raster.
// Grayscale images are returned unchanged for channel 0.
func ExtractChannel(img image.Image, c int) (image.Image, error) {
	model := img.ColorModel()
	n := Channels(model)
	if c < 0 || c >= n {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", c, n)
	}
	if n == 1 {
		return img, nil
	}

	b := img.Bounds()
	if Is16Bit(model) {
		out := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.SetGray16(x-b.Min.X, y-b.Min.Y, color.Gray16{Y: uint16(sample(img.At(x, y), c))})
			}
		}
		return out, nil
	}

	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(sample(img.At(x, y), c) >> 8)})
		}
	}
	return out, nil
}

// sample returns the 16-bit, non-premultiplied value of channel c.
func sample(col color.Color, c int) uint32 {
	n := color.NRGBA64Model.Convert(col).(color.NRGBA64)
	switch c {
	case 0:
		return uint32(n.R)
	case 1:
		return uint32(n.G)
	default:
		return uint32(n.B)
	}
}

// Values returns the native sample values at (x, y): one value for
// grayscale, three for color. ok is false outside the image.
func Values(img image.Image, x, y int) (vals []uint32, ok bool) {
	col, ok := PixelAt(img, x, y)
	if !ok {
		return nil, false
	}
	switch v := col.(type) {
	case color.Gray:
		return []uint32{uint32(v.Y)}, true
	case color.Gray16:
		return []uint32{uint32(v.Y)}, true
	}

	shift := 8
	if Is16Bit(img.ColorModel()) {
		shift = 0
	}
	return []uint32{sample(col, 0) >> shift, sample(col, 1) >> shift, sample(col, 2) >> shift}, true
}

// FormatValues renders sample values for a status line.
func FormatValues(vals []uint32) string {
	switch len(vals) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%d", vals[0])
	default:
		return fmt.Sprintf("(%d, %d, %d)", vals[0], vals[1], vals[2])
	}
}

// Display converts a raster into something with a sensible 8-bit
// rendering. 16-bit grayscale is stretched between its minimum and maximum;
// everything else is returned as is.
func Display(img image.Image) image.Image {
	g, ok := img.(*image.Gray16)
	if !ok {
		return img
	}
	b := g.Bounds()
	lo, hi := uint16(0xffff), uint16(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := g.Gray16At(x, y).Y
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}

	out := image.NewGray(b)
	span := uint32(hi) - uint32(lo)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8
			if span > 0 {
				v = uint8((uint32(g.Gray16At(x, y).Y-lo) * 255) / span)
			}
			out.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return out
}
