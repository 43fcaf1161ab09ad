// Package image wraps the image codecs: whole-file loading of still images,
// page-at-a-time access to multi-page TIFF stacks, and channel helpers.
package image

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"stackview/pkg/geometry"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Still is a single decoded image file.
type Still struct {
	Path   string      // Original file path
	Image  image.Image // Decoded pixels
	Format string      // Codec name reported by image.Decode
	DPI    float64     // Resolution from TIFF metadata, 0 if unknown
}

// Load decodes the whole file at path. For TIFF files only the first page
// is read; use OpenTIFF for stacks.
func Load(path string) (*Still, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	s := &Still{Path: path, Image: img, Format: format}
	if IsTIFF(path) {
		if dpi, err := fileDPI(file); err == nil {
			s.DPI = dpi
		}
	}
	return s, nil
}

// Width returns the image width in pixels.
func (s *Still) Width() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (s *Still) Height() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (s *Still) Size() geometry.Size {
	return geometry.Size{
		Width:  float64(s.Width()),
		Height: float64(s.Height()),
	}
}

// PixelAt returns the color at the specified pixel coordinates.
func PixelAt(img image.Image, x, y int) (color.Color, bool) {
	if img == nil {
		return color.Black, false
	}
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return color.Black, false
	}
	return img.At(x, y), true
}

// DPI returns the resolution recorded in the first page, if any.
func (p *TIFFPages) DPI() (float64, error) {
	return tiffDPI(p.file, p.byteOrder, p.offsets[0])
}

func fileDPI(file *os.File) (float64, error) {
	header := make([]byte, tiffHeaderLen)
	if _, err := file.ReadAt(header, 0); err != nil {
		return 0, err
	}
	order, err := tiffByteOrder(header)
	if err != nil {
		return 0, err
	}
	return tiffDPI(file, order, order.Uint32(header[4:8]))
}

// tiffDPI reads the resolution tags of the IFD at ifdOffset.
func tiffDPI(r io.ReaderAt, byteOrder binary.ByteOrder, ifdOffset uint32) (float64, error) {
	// Read number of directory entries
	count := make([]byte, 2)
	if _, err := r.ReadAt(count, int64(ifdOffset)); err != nil {
		return 0, err
	}
	numEntries := int(byteOrder.Uint16(count))

	entries := make([]byte, numEntries*ifdEntryLen)
	if _, err := r.ReadAt(entries, int64(ifdOffset)+2); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var resUnit uint16 = 2 // Default to inches

	for i := 0; i < numEntries; i++ {
		entry := entries[i*ifdEntryLen : (i+1)*ifdEntryLen]
		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		valueOffset := byteOrder.Uint32(entry[8:12])

		switch tag {
		case 282: // XResolution
			if fieldType == 5 { // RATIONAL
				xRes = readTIFFRational(r, int64(valueOffset), byteOrder)
			}
		case 283: // YResolution
			if fieldType == 5 {
				yRes = readTIFFRational(r, int64(valueOffset), byteOrder)
			}
		case 296: // ResolutionUnit
			if fieldType == 3 { // SHORT
				resUnit = byteOrder.Uint16(entry[8:10])
			}
		}
	}

	if xRes == 0 && yRes == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}

	// Convert from centimeters to inches if needed
	if resUnit == 3 {
		dpi *= 2.54
	}
	return dpi, nil
}

// readTIFFRational reads a RATIONAL value (two uint32s).
func readTIFFRational(r io.ReaderAt, offset int64, byteOrder binary.ByteOrder) float64 {
	buf := make([]byte, 8)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0
	}
	num := byteOrder.Uint32(buf[0:4])
	denom := byteOrder.Uint32(buf[4:8])
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg", ".gif", ".bmp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// IsTIFF reports whether path has a TIFF extension.
func IsTIFF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}
