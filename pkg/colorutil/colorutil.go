// Package colorutil provides the colours and blending used by overlays.
package colorutil

import (
	"image/color"
	"math"
)

// Common overlay colors.
var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Cyan   = color.RGBA{R: 0, G: 200, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 213, B: 0, A: 255}
)

// ToRGBA converts c to an opaque-alpha-preserving 8-bit RGBA.
func ToRGBA(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

// Blend paints src over dst at the given opacity, clamped to [0, 1]. The
// result is opaque.
func Blend(dst, src color.RGBA, opacity float64) color.RGBA {
	a := math.Max(0, math.Min(1, opacity))
	mix := func(d, s uint8) uint8 {
		return uint8(math.Round(float64(s)*a + float64(d)*(1-a)))
	}
	return color.RGBA{R: mix(dst.R, src.R), G: mix(dst.G, src.G), B: mix(dst.B, src.B), A: 255}
}
