// Command stackinfo reports the shape of an image stack, scrubs it through a
// bounded frame cache and optionally renders a view of one plane.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"

	"stackview/internal/app"
	"stackview/internal/config"
	svimage "stackview/internal/image"
	"stackview/internal/logging"
	"stackview/internal/stack"
	"stackview/internal/version"
	"stackview/internal/viewport"
	"stackview/pkg/geometry"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "stackinfo: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	path      string
	cache     int
	frame     int
	channel   int
	separate  bool
	scrub     bool
	viewSize  string
	aspect    string
	zoom      string
	flipH     bool
	flipV     bool
	out       string
	thumb     string
	thumbSize int
	logLevel  string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("stackinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.IntVar(&o.cache, "cache", stack.DefaultCacheBound, "Resident frame bound")
	fs.IntVar(&o.frame, "frame", 0, "Frame to render")
	fs.IntVar(&o.channel, "channel", 0, "Channel to render")
	fs.BoolVar(&o.separate, "separate", true, "Expose colour channels separately")
	fs.BoolVar(&o.scrub, "scrub", true, "Decode every frame once through the cache")
	fs.StringVar(&o.viewSize, "view", "512x512", "Viewport size WxH")
	fs.StringVar(&o.aspect, "aspect", "keep-fit", "Aspect mode: ignore, keep-fit or keep-fill")
	fs.StringVar(&o.zoom, "zoom", "", "Scene rectangle x,y,w,h in image pixels")
	fs.BoolVar(&o.flipH, "flip-h", false, "Mirror the view horizontally")
	fs.BoolVar(&o.flipV, "flip-v", false, "Mirror the view vertically")
	fs.StringVar(&o.out, "out", "", "Write the rendered view to this PNG")
	fs.StringVar(&o.thumb, "thumb", "", "Write a thumbnail of the plane to this file")
	fs.IntVar(&o.thumbSize, "thumb-size", 256, "Thumbnail bounding box in pixels")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: stackinfo [flags] <image>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *showVersion {
		fmt.Fprintln(stderr, version.String("stackinfo"))
		return nil, flag.ErrHelp
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one image path")
	}
	o.path = fs.Arg(0)
	return o, nil
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	logger, err := logging.NewWriter(os.Stderr, o.logLevel, "text")
	if err != nil {
		return err
	}
	return inspect(context.Background(), o, stdout, logger)
}

func inspect(ctx context.Context, o *options, w io.Writer, logger *slog.Logger) error {
	info, err := os.Stat(o.path)
	if err != nil {
		return err
	}
	src, err := app.OpenSource(o.path, o.separate)
	if err != nil {
		return err
	}
	fs, err := stack.New(src, stack.Options{CacheBound: o.cache, Logger: logger})
	if err != nil {
		src.Close()
		return err
	}
	defer fs.Close()

	shape := fs.Shape()
	fmt.Fprintf(w, "File:     %s (%s)\n", o.path, humanize.Bytes(uint64(info.Size())))
	fmt.Fprintf(w, "Shape:    %s\n", shape)
	fmt.Fprintf(w, "Paged:    %v\n", fs.Paged())
	if svimage.IsTIFF(o.path) {
		if dpi, err := tiffDPI(o.path); err == nil && dpi > 0 {
			fmt.Fprintf(w, "DPI:      %.0f\n", dpi)
		}
	}

	if o.scrub && fs.Paged() {
		if err := scrub(ctx, fs, o.channel, w); err != nil {
			return err
		}
	}

	if o.out == "" && o.thumb == "" {
		return nil
	}
	plane, err := fs.Raster(ctx, o.frame, o.channel)
	if err != nil {
		return err
	}
	if o.out != "" {
		if err := renderView(o, plane, logger); err != nil {
			return err
		}
		fmt.Fprintf(w, "View:     %s\n", o.out)
	}
	if o.thumb != "" {
		thumb := imaging.Thumbnail(svimage.Display(plane), o.thumbSize, o.thumbSize, imaging.Lanczos)
		if err := imaging.Save(thumb, o.thumb); err != nil {
			return fmt.Errorf("thumbnail: %w", err)
		}
		fmt.Fprintf(w, "Thumb:    %s (%dx%d)\n", o.thumb, thumb.Bounds().Dx(), thumb.Bounds().Dy())
	}
	return nil
}

func tiffDPI(path string) (float64, error) {
	pages, err := svimage.OpenTIFF(path)
	if err != nil {
		return 0, err
	}
	defer pages.Close()
	return pages.DPI()
}

// scrub decodes every frame of one channel in order and reports how much
// of the stack stays resident.
func scrub(ctx context.Context, fs *stack.FrameStack, channel int, w io.Writer) error {
	start := time.Now()
	var planeBytes uint64
	for f := 0; f < fs.Shape().Frames; f++ {
		img, err := fs.Raster(ctx, f, channel)
		if err != nil {
			return err
		}
		if f == 0 {
			planeBytes = rasterBytes(img)
		}
	}
	elapsed := time.Since(start)
	total := planeBytes * uint64(fs.Shape().Frames)
	resident := uint64(fs.Resident())
	fmt.Fprintf(w, "Scrubbed: %d frames in %s\n", fs.Shape().Frames, elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Resident: %d planes, %s of %s\n", resident,
		humanize.Bytes(resident*planeBytes), humanize.Bytes(total))
	return nil
}

func rasterBytes(img image.Image) uint64 {
	b := img.Bounds()
	px := uint64(b.Dx() * b.Dy())
	switch img.(type) {
	case *image.Gray:
		return px
	case *image.Gray16:
		return 2 * px
	case *image.RGBA, *image.NRGBA:
		return 4 * px
	case *image.RGBA64, *image.NRGBA64:
		return 8 * px
	default:
		return 4 * px
	}
}

// renderView paints plane the way the viewer would at the requested
// viewport size and zoom and writes it as PNG.
func renderView(o *options, plane image.Image, logger *slog.Logger) error {
	width, height, err := parseSize(o.viewSize)
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if err := cfg.AspectRatioMode.UnmarshalText([]byte(o.aspect)); err != nil {
		return err
	}
	cfg.FlipHorizontal = o.flipH
	cfg.FlipVertical = o.flipV
	if err := cfg.Validate(); err != nil {
		return err
	}

	v, err := viewport.New(cfg.Viewport(), logger)
	if err != nil {
		return err
	}
	b := plane.Bounds()
	v.SetImageSize(b.Dx(), b.Dy())
	v.Resize(float64(width), float64(height))
	if o.zoom != "" {
		r, err := parseRect(o.zoom)
		if err != nil {
			return err
		}
		if !v.ZoomTo(r) {
			return fmt.Errorf("zoom rectangle %s is empty or outside the image", o.zoom)
		}
	}
	frame, err := v.Paint()
	if err != nil {
		return err
	}

	out := svimage.NewComposite(width, height).Render(plane, frame.Transform.Aff3())
	f, err := os.Create(o.out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q: want WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", s)
	}
	return w, h, nil
}

func parseRect(s string) (geometry.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("rect %q: want x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("rect %q: %w", s, err)
		}
		v[i] = f
	}
	return geometry.NewRect(v[0], v[1], v[2], v[3]), nil
}
