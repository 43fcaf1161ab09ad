package image

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
)

// TIFF tags written by EncodePages.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279

	typeShort = 3
	typeLong  = 4
)

// EncodePages writes grayscale pages as one uncompressed little-endian
// multi-page TIFF. Every page must be *image.Gray or *image.Gray16.
func EncodePages(w io.Writer, pages []image.Image) error {
	if len(pages) == 0 {
		return fmt.Errorf("no pages to encode")
	}
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	header := []byte{'I', 'I', 42, 0, 0, 0, 0, 0}
	offset := uint32(tiffHeaderLen)

	type plan struct {
		data []byte
		ifd  uint32
	}
	plans := make([]plan, len(pages))
	for i, page := range pages {
		data, err := grayBytes(page)
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		plans[i].data = data
		offset += uint32(len(data))
		offset += offset & 1 // IFDs start on a word boundary
		plans[i].ifd = offset
		offset += 2 + 9*ifdEntryLen + 4
	}
	le.PutUint32(header[4:8], plans[0].ifd)
	if _, err := bw.Write(header); err != nil {
		return err
	}

	pos := uint32(tiffHeaderLen)
	for i, page := range pages {
		p := plans[i]
		dataOffset := pos
		if _, err := bw.Write(p.data); err != nil {
			return err
		}
		pos += uint32(len(p.data))
		if pos&1 == 1 {
			if err := bw.WriteByte(0); err != nil {
				return err
			}
			pos++
		}

		b := page.Bounds()
		bits := uint32(8)
		if _, ok := page.(*image.Gray16); ok {
			bits = 16
		}
		var next uint32
		if i+1 < len(plans) {
			next = plans[i+1].ifd
		}
		entries := [][3]uint32{
			{tagImageWidth, typeLong, uint32(b.Dx())},
			{tagImageLength, typeLong, uint32(b.Dy())},
			{tagBitsPerSample, typeShort, bits},
			{tagCompression, typeShort, 1},
			{tagPhotometric, typeShort, 1}, // BlackIsZero
			{tagStripOffsets, typeLong, dataOffset},
			{tagSamplesPerPixel, typeShort, 1},
			{tagRowsPerStrip, typeLong, uint32(b.Dy())},
			{tagStripByteCounts, typeLong, uint32(len(p.data))},
		}
		if err := writeIFD(bw, le, entries, next); err != nil {
			return err
		}
		pos += 2 + uint32(len(entries))*ifdEntryLen + 4
	}
	return bw.Flush()
}

// WritePages encodes pages to a new file at path.
func WritePages(path string, pages []image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodePages(f, pages); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeIFD(w io.Writer, order binary.ByteOrder, entries [][3]uint32, next uint32) error {
	buf := make([]byte, 2+len(entries)*ifdEntryLen+4)
	order.PutUint16(buf, uint16(len(entries)))
	for i, e := range entries {
		p := buf[2+i*ifdEntryLen:]
		order.PutUint16(p[0:2], uint16(e[0]))
		order.PutUint16(p[2:4], uint16(e[1]))
		order.PutUint32(p[4:8], 1)
		if e[1] == typeShort {
			order.PutUint16(p[8:10], uint16(e[2]))
		} else {
			order.PutUint32(p[8:12], e[2])
		}
	}
	order.PutUint32(buf[len(buf)-4:], next)
	_, err := w.Write(buf)
	return err
}

func grayBytes(img image.Image) ([]byte, error) {
	b := img.Bounds()
	switch m := img.(type) {
	case *image.Gray:
		out := make([]byte, 0, b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := m.PixOffset(b.Min.X, y)
			out = append(out, m.Pix[i:i+b.Dx()]...)
		}
		return out, nil
	case *image.Gray16:
		out := make([]byte, 0, 2*b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := m.Gray16At(x, y).Y
				out = binary.LittleEndian.AppendUint16(out, v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported page type %T", img)
	}
}
