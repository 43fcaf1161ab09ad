// Package canvas provides drawing primitives for the image canvas.
package canvas

import (
	"image"
	"image/color"
	"math"
	"sort"
	"strconv"

	"stackview/pkg/colorutil"
	"stackview/pkg/geometry"
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// drawNumber draws n centred on (cx, cy) using the 3x5 digit font scaled by
// scale, on a black backing box so it reads over any image.
func drawNumber(output *image.RGBA, n, cx, cy, scale int, col color.RGBA) {
	text := strconv.Itoa(n)
	charW, charH, gap := 3*scale, 5*scale, scale
	width := len(text)*(charW+gap) - gap
	x0, y0 := cx-width/2, cy-charH/2

	fillRect(output, image.Rect(x0-scale, y0-scale, x0+width+scale, y0+charH+scale), colorutil.Black)
	for i, ch := range text {
		pattern := digitPatterns[ch-'0']
		ox := x0 + i*(charW+gap)
		for row := 0; row < 5; row++ {
			for bit := 0; bit < 3; bit++ {
				if pattern[row]&(1<<(2-bit)) == 0 {
					continue
				}
				fillRect(output, image.Rect(ox+bit*scale, y0+row*scale, ox+(bit+1)*scale, y0+(row+1)*scale), col)
			}
		}
	}
}

func fillRect(output *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(output.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			output.SetRGBA(x, y, col)
		}
	}
}

// drawLine draws a line between two points using Bresenham's algorithm.
func drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := output.Bounds()

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy

	for {
		for t := -thickness / 2; t <= thickness/2; t++ {
			for s := -thickness / 2; s <= thickness/2; s++ {
				px, py := x1+s, y1+t
				if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
					output.SetRGBA(px, py, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawDashedRect outlines r with a 2-on 2-off dash, as used for the
// rubber band.
func drawDashedRect(output *image.RGBA, r geometry.Rect, col color.RGBA) {
	x1, y1 := int(math.Round(r.X)), int(math.Round(r.Y))
	x2, y2 := int(math.Round(r.MaxX())), int(math.Round(r.MaxY()))
	bounds := output.Bounds()
	set := func(x, y int) {
		if (x+y)%4 < 2 && image.Pt(x, y).In(bounds) {
			output.SetRGBA(x, y, col)
		}
	}

	for x := x1; x <= x2; x++ {
		set(x, y1)
		set(x, y2)
	}
	for y := y1; y <= y2; y++ {
		set(x1, y)
		set(x2, y)
	}
}

// drawPolygon outlines a closed polygon given in output pixel coordinates,
// optionally tinting its interior at fillOpacity.
func drawPolygon(output *image.RGBA, pts []geometry.Point2D, col color.RGBA, thickness int, fillOpacity float64) {
	if len(pts) < 2 {
		return
	}
	if fillOpacity > 0 && len(pts) >= 3 {
		fillPolygon(output, pts, col, fillOpacity)
	}
	n := len(pts)
	for i := 0; i < n; i++ {
		p1, p2 := pts[i], pts[(i+1)%n]
		drawLine(output, int(math.Round(p1.X)), int(math.Round(p1.Y)), int(math.Round(p2.X)), int(math.Round(p2.Y)), col, thickness)
	}
}

// fillPolygon blends col into every pixel whose centre lies inside the
// polygon, using an even-odd scanline fill.
func fillPolygon(output *image.RGBA, pts []geometry.Point2D, col color.RGBA, opacity float64) {
	bounds := output.Bounds()
	bb := geometry.BoundingBox(pts)
	y0 := max(int(math.Floor(bb.Y)), bounds.Min.Y)
	y1 := min(int(math.Ceil(bb.MaxY())), bounds.Max.Y)

	var xs []float64
	n := len(pts)
	for y := y0; y < y1; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for i := 0; i < n; i++ {
			p1, p2 := pts[i], pts[(i+1)%n]
			if (p1.Y <= cy && p2.Y > cy) || (p2.Y <= cy && p1.Y > cy) {
				t := (cy - p1.Y) / (p2.Y - p1.Y)
				xs = append(xs, p1.X+t*(p2.X-p1.X))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			xa := max(int(math.Ceil(xs[i]-0.5)), bounds.Min.X)
			xb := min(int(math.Floor(xs[i+1]-0.5)), bounds.Max.X-1)
			for x := xa; x <= xb; x++ {
				output.SetRGBA(x, y, colorutil.Blend(output.RGBAAt(x, y), col, opacity))
			}
		}
	}
}
