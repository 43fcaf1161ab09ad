package image

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"golang.org/x/image/tiff"
)

const (
	tiffHeaderLen = 8
	ifdEntryLen   = 12
	maxTIFFPages  = 1 << 20
)

// ErrNotTIFF is returned when a file does not start with a classic TIFF header.
var ErrNotTIFF = errors.New("not a valid TIFF file")

// TIFFPages gives random access to the pages of a multi-page TIFF. Only
// the IFD chain is read on open; pixel data is read one page at a time.
// Concurrent DecodePage calls are safe.
type TIFFPages struct {
	path      string
	file      *os.File
	byteOrder binary.ByteOrder
	header    [tiffHeaderLen]byte
	offsets   []uint32

	closeOnce sync.Once
	closeErr  error
}

// OpenTIFF opens path and indexes its pages.
func OpenTIFF(path string) (*TIFFPages, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	p, err := newTIFFPages(path, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return p, nil
}

func newTIFFPages(path string, file *os.File) (*TIFFPages, error) {
	p := &TIFFPages{path: path, file: file}
	if _, err := file.ReadAt(p.header[:], 0); err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	order, err := tiffByteOrder(p.header[:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.byteOrder = order

	offsets, err := walkIFDs(file, order, order.Uint32(p.header[4:8]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%s: no image directories", path)
	}
	p.offsets = offsets
	return p, nil
}

func tiffByteOrder(header []byte) (binary.ByteOrder, error) {
	var order binary.ByteOrder
	if header[0] == 'I' && header[1] == 'I' {
		order = binary.LittleEndian
	} else if header[0] == 'M' && header[1] == 'M' {
		order = binary.BigEndian
	} else {
		return nil, ErrNotTIFF
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrNotTIFF, order.Uint16(header[2:4]))
	}
	return order, nil
}

// walkIFDs follows the next-IFD links starting at first.
func walkIFDs(r io.ReaderAt, order binary.ByteOrder, first uint32) ([]uint32, error) {
	var offsets []uint32
	seen := make(map[uint32]bool)
	buf := make([]byte, 4)

	for off := first; off != 0; {
		if seen[off] {
			return nil, fmt.Errorf("IFD chain loops at offset %d", off)
		}
		if len(offsets) >= maxTIFFPages {
			return nil, fmt.Errorf("more than %d pages", maxTIFFPages)
		}
		seen[off] = true
		offsets = append(offsets, off)

		// Read number of directory entries
		if _, err := r.ReadAt(buf[:2], int64(off)); err != nil {
			return nil, fmt.Errorf("read IFD %d: %w", len(offsets)-1, err)
		}
		n := int64(order.Uint16(buf[:2]))

		next := int64(off) + 2 + n*ifdEntryLen
		if _, err := r.ReadAt(buf, next); err != nil {
			return nil, fmt.Errorf("read IFD %d link: %w", len(offsets)-1, err)
		}
		off = order.Uint32(buf)
	}
	return offsets, nil
}

// Path returns the file path.
func (p *TIFFPages) Path() string { return p.path }

// PageCount returns the number of pages.
func (p *TIFFPages) PageCount() int { return len(p.offsets) }

// Config returns the dimensions and color model of a page without
// decoding its pixels.
func (p *TIFFPages) Config(page int) (image.Config, error) {
	r, err := p.pageReader(context.Background(), page)
	if err != nil {
		return image.Config{}, err
	}
	cfg, err := tiff.DecodeConfig(r)
	if err != nil {
		return image.Config{}, fmt.Errorf("page %d: %w", page, err)
	}
	return cfg, nil
}

// DecodePage decodes exactly one page. Cancelling ctx aborts the read.
func (p *TIFFPages) DecodePage(ctx context.Context, page int) (image.Image, error) {
	r, err := p.pageReader(ctx, page)
	if err != nil {
		return nil, err
	}
	img, err := tiff.Decode(r)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return img, nil
}

// Close closes the underlying file. It is safe to call more than once.
func (p *TIFFPages) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.file.Close()
	})
	return p.closeErr
}

func (p *TIFFPages) pageReader(ctx context.Context, page int) (*pageReader, error) {
	if page < 0 || page >= len(p.offsets) {
		return nil, fmt.Errorf("page %d out of range [0, %d)", page, len(p.offsets))
	}
	r := &pageReader{ctx: ctx, file: p.file, header: p.header}
	p.byteOrder.PutUint32(r.header[4:8], p.offsets[page])
	return r, nil
}

// pageReader presents the file as if its first IFD were the selected page.
// tiff.Decode uses the io.ReaderAt side directly, so nothing is buffered.
type pageReader struct {
	ctx    context.Context
	file   io.ReaderAt
	header [tiffHeaderLen]byte
	pos    int64
}

func (r *pageReader) ReadAt(b []byte, off int64) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := r.file.ReadAt(b, off)
	if off < tiffHeaderLen {
		copy(b, r.header[off:])
	}
	return n, err
}

func (r *pageReader) Read(b []byte) (int, error) {
	n, err := r.ReadAt(b, r.pos)
	r.pos += int64(n)
	return n, err
}
