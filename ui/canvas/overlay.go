package canvas

import (
	"image"
	"image/color"

	"stackview/internal/app"
	"stackview/internal/roi"
	"stackview/pkg/colorutil"
	"stackview/pkg/geometry"
)

// overlayStyle is how one ROI outline is painted.
type overlayStyle struct {
	Color       color.RGBA
	Thickness   int
	FillOpacity float64
}

func styleFor(o roi.Overlay) overlayStyle {
	if o.Selected {
		return overlayStyle{Color: colorutil.ToRGBA(app.SelectedROIColor), Thickness: 3, FillOpacity: 0.2}
	}
	return overlayStyle{Color: colorutil.ToRGBA(app.ROIColor), Thickness: 1}
}

func scalePoints(pts []geometry.Point2D, s float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		out[i] = p.Scale(s)
	}
	return out
}

// drawOverlays paints ROI outlines, numbered in creation order. Overlay
// points are in viewport units; scale converts them to output pixels.
func drawOverlays(output *image.RGBA, overlays []roi.Overlay, scale float64) {
	labelScale := max(1, int(scale*2))
	for i, o := range overlays {
		st := styleFor(o)
		pts := scalePoints(o.Points, scale)
		drawPolygon(output, pts, st.Color, st.Thickness, st.FillOpacity)
		c := geometry.Centroid(pts)
		drawNumber(output, i+1, int(c.X), int(c.Y), labelScale, st.Color)
	}
}

// drawBand paints the rubber band of a region drag.
func drawBand(output *image.RGBA, band geometry.Rect, scale float64) {
	r := geometry.NewRect(band.X*scale, band.Y*scale, band.Width*scale, band.Height*scale)
	drawDashedRect(output, r, colorutil.ToRGBA(app.BandColor))
}
