// Package app ties the viewport engine, the frame stack and the ROI manager
// together and publishes what happens to them as events.
package app

import (
	"errors"
	"fmt"
	goimage "image"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"stackview/internal/config"
	"stackview/internal/image"
	"stackview/internal/logging"
	"stackview/internal/roi"
	"stackview/internal/stack"
	"stackview/internal/viewport"
	"stackview/pkg/geometry"
)

// EventType identifies different application events.
type EventType int

const (
	// EventClick carries a viewport.ClickEvent.
	EventClick EventType = iota
	// EventFrameChanged carries the new stack.Key.
	EventFrameChanged
	// EventFrameReady carries a FrameReady once the current plane is decoded.
	EventFrameReady
	// EventDecodeError carries the *stack.DecodeError of a failed request.
	EventDecodeError
	// EventViewChanged carries the new scene geometry.Rect.
	EventViewChanged
	// EventSourceReplaced carries the stack.Shape of the new source.
	EventSourceReplaced
	// EventHover carries a viewport.HoverEvent.
	EventHover
	// EventConfigApplied carries the *config.Config now in effect.
	EventConfigApplied
	// EventROIsChanged fires after a region is created, moved, selected or
	// deleted. It carries no data.
	EventROIsChanged
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// FrameReady is the payload of EventFrameReady.
type FrameReady struct {
	Key   stack.Key
	Image goimage.Image
}

// roiDrag tracks a region being moved with the region button.
type roiDrag struct {
	id   uuid.UUID
	last geometry.Point2D
}

type queuedEvent struct {
	event EventType
	data  interface{}
}

// State holds the open stack, the view and the regions of interest.
//
// Viewport access is serialized internally, so gestures may arrive from the
// UI goroutine while config reloads and frame decodes arrive from others.
type State struct {
	logger *slog.Logger

	// PreserveROIs keeps regions of interest across source replacement.
	PreserveROIs bool

	mu        sync.RWMutex
	cfg       *config.Config
	path      string
	frames    *stack.FrameStack
	raster    goimage.Image
	rasterKey stack.Key
	listeners map[EventType][]EventListener

	viewMu  sync.Mutex
	view    *viewport.Viewport
	hover   viewport.HoverEvent
	queued  []queuedEvent
	drawROI bool
	drag    *roiDrag

	rois *roi.Manager
}

// NewState creates the application state. A nil cfg means defaults.
func NewState(cfg *config.Config, logger *slog.Logger) (*State, error) {
	logger = logging.OrDiscard(logger)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	view, err := viewport.New(cfg.Viewport(), logger)
	if err != nil {
		return nil, err
	}

	s := &State{
		logger:    logger,
		cfg:       cfg,
		view:      view,
		rois:      roi.NewManager(logger),
		listeners: make(map[EventType][]EventListener),
	}
	// These fire while viewMu is held; withView emits them after unlocking.
	view.OnClick(func(e viewport.ClickEvent) {
		s.queued = append(s.queued, queuedEvent{EventClick, e})
		if e.Kind == viewport.Click && e.Button == s.view.Options().RegionZoomButton {
			s.rois.Select(e.Image)
			s.queued = append(s.queued, queuedEvent{EventROIsChanged, nil})
		}
	})
	view.OnViewChanged(func(r geometry.Rect) {
		s.queued = append(s.queued, queuedEvent{EventViewChanged, r})
	})
	view.OnHover(func(e viewport.HoverEvent) {
		s.hover = e
		s.queued = append(s.queued, queuedEvent{EventHover, e})
	})
	return s, nil
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

func (s *State) withView(fn func(v *viewport.Viewport)) {
	s.viewMu.Lock()
	fn(s.view)
	queued := s.queued
	s.queued = nil
	s.viewMu.Unlock()

	for _, e := range queued {
		s.Emit(e.event, e.data)
	}
}

// Config returns the configuration in effect.
func (s *State) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplyConfig validates cfg and pushes it into the viewport and the frame
// cache. The state is unchanged on error. A change of separate_channels is
// only noted; the open file keeps its layout until it is reopened.
func (s *State) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var err error
	s.withView(func(v *viewport.Viewport) {
		err = v.SetOptions(cfg.Viewport())
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	frames, path := s.frames, s.path
	s.mu.Unlock()

	if frames != nil {
		if err := frames.SetCacheBound(cfg.CacheFrameBound); err != nil {
			return err
		}
	}
	s.logger.Info("configuration applied", "aspect", cfg.AspectRatioMode.String(), "cache_bound", cfg.CacheFrameBound)
	if path != "" && prev.SeparateChannels != cfg.SeparateChannels {
		s.logger.Info("separate_channels takes effect when a file is next opened",
			"path", path, "separate_channels", cfg.SeparateChannels)
	}
	s.Emit(EventConfigApplied, cfg)
	return nil
}

// Path returns the file the current stack was opened from, if any.
func (s *State) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Frames returns the current frame stack, or nil when nothing is open.
func (s *State) Frames() *stack.FrameStack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// ROIs returns the region of interest manager.
func (s *State) ROIs() *roi.Manager { return s.rois }

// SetDrawROI switches region drags between zooming and drawing rectangular
// regions of interest.
func (s *State) SetDrawROI(on bool) {
	s.withView(func(v *viewport.Viewport) {
		s.drawROI = on
		s.drag = nil
		if !on {
			v.SetRegionCapture(nil)
			return
		}
		v.SetRegionCapture(func(r geometry.Rect) {
			id, err := s.rois.Create(roi.RectShape(r))
			if err != nil {
				s.logger.Warn("region not created", "rect", r, "error", err)
				return
			}
			s.logger.Debug("region drawn", "id", id, "rect", r)
			s.queued = append(s.queued, queuedEvent{EventROIsChanged, nil})
		})
	})
}

// DrawingROI reports whether region drags draw regions of interest.
func (s *State) DrawingROI() bool {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.drawROI
}

// DeleteSelectedROI removes the selected region of interest.
func (s *State) DeleteSelectedROI() error {
	id, ok := s.rois.Selected()
	if !ok {
		return ErrNoSelection
	}
	if err := s.rois.Delete(id); err != nil {
		return err
	}
	s.logger.Debug("region deleted", "id", id)
	s.Emit(EventROIsChanged, nil)
	return nil
}

// Raster returns the most recently delivered plane and its key. ok is
// false until the current plane has been decoded.
func (s *State) Raster() (img goimage.Image, k stack.Key, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.raster == nil {
		return nil, stack.Key{}, false
	}
	return s.raster, s.rasterKey, true
}

// OpenFile opens an image or TIFF stack from disk.
func (s *State) OpenFile(path string) error {
	src, err := OpenSource(path, s.Config().SeparateChannels)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := s.SetStack(src); err != nil {
		return err
	}
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	s.logger.Info("source opened", "path", path, "shape", src.Shape().String())
	return nil
}

// OpenSource opens path as a stack source: TIFF files page by page, other
// supported formats as a single in-memory frame.
func OpenSource(path string, separate bool) (stack.Source, error) {
	if image.IsTIFF(path) {
		pages, err := image.OpenTIFF(path)
		if err != nil {
			return nil, err
		}
		src, err := stack.NewPagedSource(pages, separate)
		if err != nil {
			pages.Close()
			return nil, err
		}
		return src, nil
	}
	if !image.IsSupportedFormat(path) {
		return nil, fmt.Errorf("unsupported format (want one of %s)", strings.Join(image.SupportedFormats(), ", "))
	}
	still, err := image.Load(path)
	if err != nil {
		return nil, err
	}
	return stack.VolumeFromImages([]goimage.Image{still.Image}, separate)
}

// SetVolume replaces the source with an in-memory volume.
func (s *State) SetVolume(v *stack.Volume) error {
	return s.SetStack(v)
}

// SetStack replaces the source. The previous stack is closed, the view is
// reset to the new image and, unless PreserveROIs is set, the regions of
// interest are cleared. State owns src from here on, even on error.
func (s *State) SetStack(src stack.Source) error {
	cfg := s.Config()
	fs, err := stack.New(src, stack.Options{CacheBound: cfg.CacheFrameBound, Logger: s.logger})
	if err != nil {
		src.Close()
		return err
	}
	fs.OnFrameChanged(func(k stack.Key) {
		if s.Frames() != fs {
			return
		}
		s.Emit(EventFrameChanged, k)
		s.request(fs, k)
	})
	fs.OnReady(func(k stack.Key, img goimage.Image) {
		s.deliver(fs, k, img)
	})
	fs.OnError(func(err error) {
		if s.Frames() == fs {
			s.Emit(EventDecodeError, err)
		}
	})

	s.mu.Lock()
	old := s.frames
	s.frames = fs
	s.raster = nil
	s.path = ""
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn("closing previous source", "error", err)
		}
	}

	shape := fs.Shape()
	s.withView(func(v *viewport.Viewport) {
		v.SetImageSize(shape.Cols, shape.Rows)
	})
	if !s.PreserveROIs {
		s.rois.Clear()
	}
	s.Emit(EventSourceReplaced, shape)
	s.request(fs, fs.Current())
	return nil
}

func (s *State) request(fs *stack.FrameStack, k stack.Key) {
	res, err := fs.Request(k)
	if err != nil {
		if !errors.Is(err, stack.ErrClosed) {
			s.logger.Warn("frame request failed", "key", k.String(), "error", err)
		}
		return
	}
	if res.Status == stack.Ready {
		s.deliver(fs, res.Key, res.Image)
	}
}

// deliver records img if it is still the current plane of the current stack.
func (s *State) deliver(fs *stack.FrameStack, k stack.Key, img goimage.Image) {
	s.mu.Lock()
	if s.frames != fs || fs.Current() != k {
		s.mu.Unlock()
		return
	}
	s.raster = img
	s.rasterKey = k
	s.mu.Unlock()
	s.Emit(EventFrameReady, FrameReady{Key: k, Image: img})
}

// SetFrame selects frame i of the open stack.
func (s *State) SetFrame(i int) error {
	fs := s.Frames()
	if fs == nil {
		return fmt.Errorf("%w: no stack open", stack.ErrOutOfRange)
	}
	return fs.SetFrame(i)
}

// SetChannel selects channel i of the open stack.
func (s *State) SetChannel(i int) error {
	fs := s.Frames()
	if fs == nil {
		return fmt.Errorf("%w: no stack open", stack.ErrOutOfRange)
	}
	return fs.SetChannel(i)
}

// StepFrame moves delta frames, stopping at either end. It reports whether
// the frame changed.
func (s *State) StepFrame(delta int) bool {
	fs := s.Frames()
	if fs == nil {
		return false
	}
	cur := fs.Current().Frame
	next := min(max(cur+delta, 0), fs.Shape().Frames-1)
	if next == cur {
		return false
	}
	return fs.SetFrame(next) == nil
}

// Press forwards a button press in viewport coordinates. In region drawing
// mode a region-button press on an existing region selects it and starts
// moving it instead.
func (s *State) Press(b viewport.Button, p geometry.Point2D) {
	s.withView(func(v *viewport.Viewport) {
		if s.drawROI && b == v.Options().RegionZoomButton {
			if t, err := v.Transform(); err == nil {
				img := t.ToImage(p)
				if id, ok := s.rois.Select(img); ok {
					s.drag = &roiDrag{id: id, last: img}
					s.queued = append(s.queued, queuedEvent{EventROIsChanged, nil})
					return
				}
			}
		}
		v.Press(b, p)
	})
}

// Move forwards pointer motion, dragging the region being moved if any.
func (s *State) Move(p geometry.Point2D) {
	s.withView(func(v *viewport.Viewport) {
		if s.drag != nil {
			if t, err := v.Transform(); err == nil {
				img := t.ToImage(p)
				if err := s.rois.Move(s.drag.id, img.Sub(s.drag.last)); err != nil {
					s.drag = nil
				} else {
					s.drag.last = img
					s.queued = append(s.queued, queuedEvent{EventROIsChanged, nil})
				}
			}
		}
		v.Move(p)
	})
}

// Leave reports that the pointer left the viewport.
func (s *State) Leave() {
	s.withView(func(v *viewport.Viewport) { v.Leave() })
}

// Release forwards a button release.
func (s *State) Release(b viewport.Button, p geometry.Point2D) {
	s.withView(func(v *viewport.Viewport) {
		if s.drag != nil && b == v.Options().RegionZoomButton {
			s.drag = nil
			return
		}
		v.Release(b, p)
	})
}

// DoubleClick forwards a double click.
func (s *State) DoubleClick(b viewport.Button, p geometry.Point2D) {
	s.withView(func(v *viewport.Viewport) { v.DoubleClick(b, p) })
}

// Wheel routes wheel notches. With wheel_scrolls_frame set and more than
// one frame open, a negative delta steps to the next frame and a positive
// one to the previous frame; otherwise the notches zoom. It reports whether
// anything changed.
func (s *State) Wheel(steps float64, p geometry.Point2D) bool {
	if steps == 0 {
		return false
	}
	if fs := s.Frames(); fs != nil && s.Config().WheelScrollsFrame && fs.Shape().Frames > 1 {
		if steps < 0 {
			return s.StepFrame(1)
		}
		return s.StepFrame(-1)
	}
	var changed bool
	s.withView(func(v *viewport.Viewport) { changed = v.Wheel(steps, p) })
	return changed
}

// Resize sets the viewport size in pixels.
func (s *State) Resize(width, height float64) {
	s.withView(func(v *viewport.Viewport) { v.Resize(width, height) })
}

// ZoomOut steps back one level of zoom history.
func (s *State) ZoomOut() bool {
	var changed bool
	s.withView(func(v *viewport.Viewport) { changed = v.ZoomOut() })
	return changed
}

// ResetView shows the whole image.
func (s *State) ResetView() {
	s.withView(func(v *viewport.Viewport) { v.ResetView() })
}

// ZoomTo pushes r onto the zoom history.
func (s *State) ZoomTo(r geometry.Rect) bool {
	var changed bool
	s.withView(func(v *viewport.Viewport) { changed = v.ZoomTo(r) })
	return changed
}

// Paint returns what the host needs to draw the viewport.
func (s *State) Paint() (viewport.Frame, error) {
	var (
		f   viewport.Frame
		err error
	)
	s.withView(func(v *viewport.Viewport) { f, err = v.Paint() })
	return f, err
}

// Overlays returns the regions of interest in viewport coordinates.
func (s *State) Overlays() []roi.Overlay {
	var (
		t   viewport.Transform
		err error
	)
	s.withView(func(v *viewport.Viewport) { t, err = v.Transform() })
	if err != nil {
		return nil
	}
	return s.rois.Overlays(t)
}

// Hover returns the last pointer position reported by the viewport.
func (s *State) Hover() viewport.HoverEvent {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.hover
}

// StatusText describes the current position in the stack and the pixel
// under the pointer, e.g. "3/9; 1/2; 640x480; x=10, y=20, value=117".
// Frame and channel indices are shown as index/last index and only when
// there is more than one.
func (s *State) StatusText() string {
	s.mu.RLock()
	fs, raster, rk := s.frames, s.raster, s.rasterKey
	s.mu.RUnlock()
	if fs == nil {
		return ""
	}

	shape := fs.Shape()
	cur := fs.Current()
	var parts []string
	if shape.Frames > 1 {
		parts = append(parts, fmt.Sprintf("%d/%d", cur.Frame, shape.Frames-1))
	}
	if shape.Channels > 1 {
		parts = append(parts, fmt.Sprintf("%d/%d", cur.Channel, shape.Channels-1))
	}
	parts = append(parts, fmt.Sprintf("%dx%d", shape.Cols, shape.Rows))

	hover := s.Hover()
	if hover.Inside {
		x, y := int(math.Floor(hover.Image.X)), int(math.Floor(hover.Image.Y))
		if x >= 0 && x < shape.Cols && y >= 0 && y < shape.Rows {
			pos := fmt.Sprintf("x=%d, y=%d", x, y)
			if raster != nil && rk == cur {
				if vals, ok := image.Values(raster, x, y); ok {
					pos += ", value=" + image.FormatValues(vals)
				}
			}
			parts = append(parts, pos)
		}
	}
	return strings.Join(parts, "; ")
}

// Close releases the open stack.
func (s *State) Close() error {
	s.mu.Lock()
	fs := s.frames
	s.frames = nil
	s.raster = nil
	s.mu.Unlock()
	if fs == nil {
		return nil
	}
	return fs.Close()
}
