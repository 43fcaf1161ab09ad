package stack

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"stackview/internal/logging"
)

// DefaultCacheBound is the resident plane limit when none is configured.
const DefaultCacheBound = 8

// Status is the outcome of an asynchronous request.
type Status int

const (
	// Ready means the raster was available immediately.
	Ready Status = iota
	// Pending means a decode was scheduled; OnReady or OnError will fire
	// unless a newer request supersedes it.
	Pending
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "pending"
}

// Result is returned by Request.
type Result struct {
	Status Status
	Key    Key
	Image  image.Image
}

// Options configures a FrameStack.
type Options struct {
	// CacheBound is the maximum number of decoded planes kept resident.
	CacheBound int
	Logger     *slog.Logger
}

type request struct {
	key Key
	seq uint64
}

// FrameStack tracks the current frame and channel of a Source and serves
// rasters for it. For decoding sources it owns a bounded cache and a single
// background worker with latest-wins semantics: only the most recent
// Request is guaranteed to be delivered.
type FrameStack struct {
	src     Source
	viewer  Viewer
	decoder Decoder
	shape   Shape
	logger  *slog.Logger

	mu      sync.Mutex
	current Key
	onFrame []func(Key)
	onReady []func(Key, image.Image)
	onError []func(error)

	cache *frameCache
	group singleflight.Group

	seq     atomic.Uint64
	pending atomic.Pointer[request]
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// life is held for reading by every decode and for writing by Close,
	// so the source is closed only after in-flight decodes return.
	life      sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New wraps src. The FrameStack takes ownership and closes src in Close.
func New(src Source, opts Options) (*FrameStack, error) {
	logger := logging.OrDiscard(opts.Logger)
	s := &FrameStack{
		src:    src,
		shape:  src.Shape(),
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
	if s.shape.Frames <= 0 || s.shape.Channels <= 0 {
		return nil, fmt.Errorf("empty stack %v", s.shape)
	}

	switch v := src.(type) {
	case Viewer:
		s.viewer = v
	case Decoder:
		s.decoder = v
		bound := opts.CacheBound
		if bound == 0 {
			bound = DefaultCacheBound
		}
		if bound < 1 {
			return nil, fmt.Errorf("cache bound %d must be positive", bound)
		}
		cache, err := newFrameCache(bound, logger)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	default:
		return nil, fmt.Errorf("source %T implements neither View nor Decode", src)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	if s.decoder != nil {
		s.wg.Add(1)
		go s.worker()
	}
	return s, nil
}

// Shape returns the stack shape.
func (s *FrameStack) Shape() Shape { return s.shape }

// Paged reports whether rasters are decoded on demand.
func (s *FrameStack) Paged() bool { return s.decoder != nil }

// Current returns the current frame and channel.
func (s *FrameStack) Current() Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetFrame makes i the current frame. No decoding happens here.
func (s *FrameStack) SetFrame(i int) error {
	if i < 0 || i >= s.shape.Frames {
		return fmt.Errorf("%w: frame %d not in [0, %d)", ErrOutOfRange, i, s.shape.Frames)
	}
	s.setCurrent(func(k *Key) { k.Frame = i })
	return nil
}

// SetChannel makes i the current channel. No decoding happens here.
func (s *FrameStack) SetChannel(i int) error {
	if i < 0 || i >= s.shape.Channels {
		return fmt.Errorf("%w: channel %d not in [0, %d)", ErrOutOfRange, i, s.shape.Channels)
	}
	s.setCurrent(func(k *Key) { k.Channel = i })
	return nil
}

func (s *FrameStack) setCurrent(edit func(*Key)) {
	s.mu.Lock()
	prev := s.current
	edit(&s.current)
	next := s.current
	listeners := append([]func(Key){}, s.onFrame...)
	s.mu.Unlock()

	if next == prev {
		return
	}
	for _, fn := range listeners {
		fn(next)
	}
}

// OnFrameChanged registers a listener for index changes.
func (s *FrameStack) OnFrameChanged(fn func(Key)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = append(s.onFrame, fn)
}

// OnReady registers a listener for completed asynchronous requests. It is
// called from the worker goroutine.
func (s *FrameStack) OnReady(fn func(Key, image.Image)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReady = append(s.onReady, fn)
}

// OnError registers a listener for failed asynchronous requests. The error
// is a *DecodeError. It is called from the worker goroutine.
func (s *FrameStack) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = append(s.onError, fn)
}

// Raster returns plane (frame, channel), decoding it if necessary. On a
// decode failure the cache is left unchanged and a *DecodeError returned.
func (s *FrameStack) Raster(ctx context.Context, frame, channel int) (image.Image, error) {
	k := Key{Frame: frame, Channel: channel}
	if !s.shape.Contains(k) {
		return nil, fmt.Errorf("%w: %v in %v", ErrOutOfRange, k, s.shape)
	}
	if s.viewer != nil {
		return s.viewer.View(k)
	}
	return s.load(ctx, k)
}

// Request returns plane k at once if it needs no decoding. Otherwise it
// schedules a decode and returns Pending; any earlier request that has not
// been delivered yet is superseded.
func (s *FrameStack) Request(k Key) (Result, error) {
	if !s.shape.Contains(k) {
		return Result{}, fmt.Errorf("%w: %v in %v", ErrOutOfRange, k, s.shape)
	}
	if s.isClosed() {
		return Result{}, ErrClosed
	}
	if s.viewer != nil {
		img, err := s.viewer.View(k)
		if err != nil {
			return Result{}, err
		}
		return Result{Status: Ready, Key: k, Image: img}, nil
	}

	seq := s.seq.Add(1)
	if img, ok := s.cache.get(k); ok {
		s.dropPendingBefore(seq)
		return Result{Status: Ready, Key: k, Image: img}, nil
	}
	s.pending.Store(&request{key: k, seq: seq})
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return Result{Status: Pending, Key: k}, nil
}

// dropPendingBefore clears a pending request older than seq. A newer one
// stored concurrently is left for the worker.
func (s *FrameStack) dropPendingBefore(seq uint64) {
	for {
		p := s.pending.Load()
		if p == nil || p.seq > seq || s.pending.CompareAndSwap(p, nil) {
			return
		}
	}
}

// RequestCurrent requests the current plane.
func (s *FrameStack) RequestCurrent() (Result, error) {
	return s.Request(s.Current())
}

// Resident returns the number of cached planes.
func (s *FrameStack) Resident() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.len()
}

// CacheKeys returns the cached planes from least to most recently used.
func (s *FrameStack) CacheKeys() []Key {
	if s.cache == nil {
		return nil
	}
	return s.cache.keys()
}

// Cached reports whether k is resident without changing its recency.
func (s *FrameStack) Cached(k Key) bool {
	return s.cache != nil && s.cache.contains(k)
}

// SetCacheBound changes the resident limit, evicting as needed.
func (s *FrameStack) SetCacheBound(n int) error {
	if s.cache == nil {
		return nil
	}
	if n < 1 {
		return fmt.Errorf("cache bound %d must be positive", n)
	}
	if evicted := s.cache.resize(n); evicted > 0 {
		s.logger.Debug("cache shrunk", "bound", n, "evicted", evicted)
	}
	return nil
}

// Close cancels outstanding decodes, waits for them, and closes the source
// exactly once.
func (s *FrameStack) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()

		s.life.Lock()
		s.closed = true
		s.life.Unlock()

		if s.cache != nil {
			s.cache.purge()
		}
		s.closeErr = s.src.Close()
		s.logger.Info("frame stack closed", "shape", s.shape.String())
	})
	return s.closeErr
}

func (s *FrameStack) isClosed() bool {
	s.life.RLock()
	defer s.life.RUnlock()
	return s.closed
}

// load serves k from the cache or decodes it. Concurrent loads of the same
// key share one decode, which runs under the stack's own context so a
// caller giving up does not fail the others; ctx only bounds the wait.
func (s *FrameStack) load(ctx context.Context, k Key) (image.Image, error) {
	if img, ok := s.cache.get(k); ok {
		return img, nil
	}
	if s.isClosed() {
		return nil, ErrClosed
	}

	ch := s.group.DoChan(k.String(), func() (any, error) {
		s.life.RLock()
		defer s.life.RUnlock()
		if s.closed {
			return nil, ErrClosed
		}
		if img, ok := s.cache.get(k); ok {
			return img, nil
		}
		img, err := s.decoder.Decode(s.ctx, k)
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &DecodeError{Frame: k.Frame, Channel: k.Channel, Err: err}
		}
		s.cache.add(k, img)
		return img, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *FrameStack) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for req := s.pending.Swap(nil); req != nil; req = s.pending.Swap(nil) {
			s.serve(req)
			if s.ctx.Err() != nil {
				return
			}
		}
	}
}

func (s *FrameStack) serve(req *request) {
	img, err := s.load(s.ctx, req.key)
	latest := req.seq == s.seq.Load()

	s.mu.Lock()
	onReady := append([]func(Key, image.Image){}, s.onReady...)
	onError := append([]func(error){}, s.onError...)
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
			return
		}
		s.logger.Warn("decode failed", "frame", req.key.Frame, "channel", req.key.Channel, "error", err)
		if !latest {
			return
		}
		for _, fn := range onError {
			fn(err)
		}
		return
	}
	if !latest {
		s.logger.Debug("stale frame dropped", "frame", req.key.Frame, "channel", req.key.Channel)
		return
	}
	for _, fn := range onReady {
		fn(req.key, img)
	}
}
