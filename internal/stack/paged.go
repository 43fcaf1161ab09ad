package stack

import (
	"context"
	"fmt"
	"image"

	svimage "stackview/internal/image"
)

// PageDecoder reads single pages from a multi-page file.
// *image.TIFFPages implements it.
type PageDecoder interface {
	PageCount() int
	Config(page int) (image.Config, error)
	DecodePage(ctx context.Context, page int) (image.Image, error)
	Close() error
}

// PagedSource exposes a PageDecoder as a stack: one page per frame, and
// optionally one channel per color component.
type PagedSource struct {
	pages    PageDecoder
	shape    Shape
	separate bool
}

// NewPagedSource reads the first page's header to establish the shape.
func NewPagedSource(pages PageDecoder, separate bool) (*PagedSource, error) {
	n := pages.PageCount()
	if n <= 0 {
		return nil, fmt.Errorf("source has no pages")
	}
	cfg, err := pages.Config(0)
	if err != nil {
		return nil, fmt.Errorf("read first page: %w", err)
	}
	channels := 1
	if separate {
		channels = svimage.Channels(cfg.ColorModel)
	}
	return &PagedSource{
		pages:    pages,
		separate: separate,
		shape:    Shape{Rows: cfg.Height, Cols: cfg.Width, Frames: n, Channels: channels},
	}, nil
}

// Shape returns the stack shape.
func (p *PagedSource) Shape() Shape { return p.shape }

// Decode reads page k.Frame and extracts channel k.Channel.
func (p *PagedSource) Decode(ctx context.Context, k Key) (image.Image, error) {
	if !p.shape.Contains(k) {
		return nil, fmt.Errorf("%w: %v in %v", ErrOutOfRange, k, p.shape)
	}
	img, err := p.pages.DecodePage(ctx, k.Frame)
	if err != nil {
		return nil, err
	}
	if got := img.Bounds().Size(); got.X != p.shape.Cols || got.Y != p.shape.Rows {
		return nil, fmt.Errorf("page is %dx%d, stack is %dx%d", got.X, got.Y, p.shape.Cols, p.shape.Rows)
	}
	if p.shape.Channels == 1 {
		return img, nil
	}
	return svimage.ExtractChannel(img, k.Channel)
}

// Close closes the page decoder.
func (p *PagedSource) Close() error { return p.pages.Close() }
