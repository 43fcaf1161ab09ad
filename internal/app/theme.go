package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// ViewerTheme darkens the default theme so images read against a neutral
// surround, and colours selections like the ROI overlays.
type ViewerTheme struct{}

var _ fyne.Theme = (*ViewerTheme)(nil)

// Overlay colours shared by the canvas.
var (
	ROIColor         = color.NRGBA{R: 0x00, G: 0xC8, B: 0xFF, A: 0xFF}
	SelectedROIColor = color.NRGBA{R: 0xFF, G: 0xD5, B: 0x00, A: 0xFF}
	BandColor        = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xC0}
)

func (t *ViewerTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{R: 0x28, G: 0x28, B: 0x28, A: 0xFF}
	case theme.ColorNamePrimary:
		return ROIColor
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0xFF, G: 0xD5, B: 0x00, A: 0x80}
	default:
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *ViewerTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *ViewerTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *ViewerTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 12 // status line stays on one row
	case theme.SizeNamePadding:
		return 3
	default:
		return theme.DefaultTheme().Size(name)
	}
}
