package viewport

import "fmt"

// Options configures a Viewport.
type Options struct {
	Aspect AspectMode

	RegionZoomButton Button
	ZoomOutButton    Button
	PanButton        Button

	// WheelZoomFactor is the size ratio applied per wheel notch. It must be
	// greater than one unless DisableWheelZoom is set.
	WheelZoomFactor  float64
	DisableWheelZoom bool
	CoalesceWheel    bool

	// MinZoomAreaPixels is the viewport area a region drag must exceed;
	// smaller drags are clicks.
	MinZoomAreaPixels float64
	// MinZoomSidePixels is the shortest displayed side a zoom rectangle may have.
	MinZoomSidePixels float64

	FlipHorizontal bool
	FlipVertical   bool
}

// DefaultOptions mirrors the usual desktop bindings: left drag zooms, right
// click zooms out, middle drag pans.
func DefaultOptions() Options {
	return Options{
		Aspect:            AspectKeepFit,
		RegionZoomButton:  ButtonLeft,
		ZoomOutButton:     ButtonRight,
		PanButton:         ButtonMiddle,
		WheelZoomFactor:   1.25,
		MinZoomAreaPixels: 16,
		MinZoomSidePixels: 1,
	}
}

// Validate rejects option sets that would produce nonsensical behaviour.
func (o Options) Validate() error {
	if _, ok := aspectNames[o.Aspect]; !ok {
		return fmt.Errorf("%w: aspect mode %d", ErrInvalidOptions, int(o.Aspect))
	}

	bound := map[Button]string{}
	for _, b := range []struct {
		name   string
		button Button
	}{
		{"region zoom", o.RegionZoomButton},
		{"zoom out", o.ZoomOutButton},
		{"pan", o.PanButton},
	} {
		if _, ok := buttonNames[b.button]; !ok {
			return fmt.Errorf("%w: %s button %d", ErrInvalidOptions, b.name, int(b.button))
		}
		if b.button == ButtonNone {
			continue
		}
		if other, dup := bound[b.button]; dup {
			return fmt.Errorf("%w: %s and %s both use the %s button", ErrInvalidOptions, other, b.name, b.button)
		}
		bound[b.button] = b.name
	}

	if !o.DisableWheelZoom && !(o.WheelZoomFactor > 1) {
		return fmt.Errorf("%w: wheel zoom factor %g must be greater than 1", ErrInvalidOptions, o.WheelZoomFactor)
	}
	if o.MinZoomAreaPixels < 0 {
		return fmt.Errorf("%w: negative minimum zoom area %g", ErrInvalidOptions, o.MinZoomAreaPixels)
	}
	if !(o.MinZoomSidePixels > 0) {
		return fmt.Errorf("%w: minimum zoom side %g must be positive", ErrInvalidOptions, o.MinZoomSidePixels)
	}
	return nil
}

func (o Options) wheelFactor() float64 {
	if o.DisableWheelZoom {
		return 0
	}
	return o.WheelZoomFactor
}
