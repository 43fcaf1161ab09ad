package stack

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svimage "stackview/internal/image"
)

// fakePages is an in-memory PageDecoder that counts decodes and can be
// told to fail or block on specific pages.
type fakePages struct {
	mu      sync.Mutex
	n       int
	decodes map[int]int
	fail    map[int]error
	block   map[int]chan struct{}
	started chan int
	closes  int
}

func newFakePages(n int) *fakePages {
	return &fakePages{
		n:       n,
		decodes: make(map[int]int),
		fail:    make(map[int]error),
		block:   make(map[int]chan struct{}),
		started: make(chan int, 64),
	}
}

func (f *fakePages) PageCount() int { return f.n }

func (f *fakePages) Config(int) (image.Config, error) {
	return image.Config{Width: 4, Height: 3, ColorModel: color.GrayModel}, nil
}

func (f *fakePages) DecodePage(ctx context.Context, page int) (image.Image, error) {
	f.mu.Lock()
	f.decodes[page]++
	fail := f.fail[page]
	block := f.block[page]
	f.mu.Unlock()

	f.started <- page
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	img.Pix[0] = uint8(page)
	return img, nil
}

func (f *fakePages) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakePages) decodeCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decodes[page]
}

func (f *fakePages) setFail(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[page] = err
}

func (f *fakePages) setBlock(page int, ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block[page] = ch
}

func newPagedStack(t *testing.T, pages *fakePages, bound int) *FrameStack {
	t.Helper()
	src, err := NewPagedSource(pages, false)
	require.NoError(t, err)
	s, err := New(src, Options{CacheBound: bound})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func frameOf(t *testing.T, img image.Image) int {
	t.Helper()
	g, ok := img.(*image.Gray)
	require.True(t, ok)
	return int(g.Pix[0])
}

func TestFrameStackEvictsLeastRecentlyUsed(t *testing.T) {
	pages := newFakePages(200)
	s := newPagedStack(t, pages, 3)
	ctx := context.Background()

	for _, f := range []int{10, 20, 30} {
		img, err := s.Raster(ctx, f, 0)
		require.NoError(t, err)
		assert.Equal(t, f, frameOf(t, img))
	}
	_, err := s.Raster(ctx, 50, 0)
	require.NoError(t, err)

	assert.Equal(t, []Key{{Frame: 20}, {Frame: 30}, {Frame: 50}}, s.CacheKeys())
	assert.False(t, s.Cached(Key{Frame: 10}))

	// A hit needs no decode and refreshes recency.
	_, err = s.Raster(ctx, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, pages.decodeCount(20))
	assert.Equal(t, []Key{{Frame: 30}, {Frame: 50}, {Frame: 20}}, s.CacheKeys())
}

func TestFrameStackResidentNeverExceedsBound(t *testing.T) {
	pages := newFakePages(40)
	s := newPagedStack(t, pages, 5)
	for f := 0; f < 40; f++ {
		_, err := s.Raster(context.Background(), f, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, s.Resident(), 5)
	}
	assert.Equal(t, 5, s.Resident())

	require.NoError(t, s.SetCacheBound(2))
	assert.Equal(t, 2, s.Resident())
	assert.Error(t, s.SetCacheBound(0))
}

func TestFrameStackIndexChanges(t *testing.T) {
	pages := newFakePages(3)
	s := newPagedStack(t, pages, 2)

	var changes []Key
	s.OnFrameChanged(func(k Key) { changes = append(changes, k) })

	require.NoError(t, s.SetFrame(2))
	require.NoError(t, s.SetFrame(2))
	assert.ErrorIs(t, s.SetFrame(3), ErrOutOfRange)
	assert.ErrorIs(t, s.SetFrame(-1), ErrOutOfRange)
	assert.ErrorIs(t, s.SetChannel(1), ErrOutOfRange)

	assert.Equal(t, Key{Frame: 2}, s.Current())
	assert.Equal(t, []Key{{Frame: 2}}, changes)
	assert.Equal(t, 0, s.Resident(), "changing index must not decode")

	_, err := s.Raster(context.Background(), 3, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestFrameStackDecodeErrorLeavesCache(t *testing.T) {
	pages := newFakePages(5)
	s := newPagedStack(t, pages, 3)
	ctx := context.Background()

	_, err := s.Raster(ctx, 0, 0)
	require.NoError(t, err)

	boom := errors.New("corrupt strip")
	pages.setFail(1, boom)
	_, err = s.Raster(ctx, 1, 0)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Frame)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Key{{Frame: 0}}, s.CacheKeys())

	// No retry happens on its own; asking again decodes again.
	pages.setFail(1, nil)
	_, err = s.Raster(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, pages.decodeCount(1))
}

func TestFrameStackSharesConcurrentDecodes(t *testing.T) {
	pages := newFakePages(2)
	release := make(chan struct{})
	pages.setBlock(1, release)
	s := newPagedStack(t, pages, 2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Raster(context.Background(), 1, 0)
			assert.NoError(t, err)
		}()
	}
	<-pages.started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, pages.decodeCount(1))
}

func TestFrameStackRequestLatestWins(t *testing.T) {
	pages := newFakePages(10)
	release := make(chan struct{})
	pages.setBlock(1, release)
	s := newPagedStack(t, pages, 4)

	ready := make(chan Key, 10)
	s.OnReady(func(k Key, img image.Image) {
		assert.Equal(t, k.Frame, frameOf(t, img))
		ready <- k
	})

	res, err := s.Request(Key{Frame: 1})
	require.NoError(t, err)
	assert.Equal(t, Pending, res.Status)
	require.Equal(t, 1, <-pages.started)

	// Scrub past two more frames while frame 1 is still decoding.
	_, err = s.Request(Key{Frame: 2})
	require.NoError(t, err)
	_, err = s.Request(Key{Frame: 3})
	require.NoError(t, err)
	close(release)

	select {
	case k := <-ready:
		assert.Equal(t, Key{Frame: 3}, k)
	case <-time.After(5 * time.Second):
		t.Fatal("latest request never delivered")
	}
	select {
	case k := <-ready:
		t.Fatalf("unexpected delivery of %v", k)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, pages.decodeCount(2), "intermediate frame should be skipped")
	assert.True(t, s.Cached(Key{Frame: 1}), "stale result is still cached")

	res, err = s.Request(Key{Frame: 1})
	require.NoError(t, err)
	assert.Equal(t, Ready, res.Status)
	assert.Equal(t, 1, frameOf(t, res.Image))
}

func TestFrameStackCancelledRasterDoesNotFailSharedRequest(t *testing.T) {
	pages := newFakePages(4)
	release := make(chan struct{})
	pages.setBlock(1, release)
	s := newPagedStack(t, pages, 4)

	ready := make(chan Key, 4)
	s.OnReady(func(k Key, _ image.Image) { ready <- k })

	ctx, cancel := context.WithCancel(context.Background())
	rasterErr := make(chan error, 1)
	go func() {
		_, err := s.Raster(ctx, 1, 0)
		rasterErr <- err
	}()
	require.Equal(t, 1, <-pages.started)

	res, err := s.Request(Key{Frame: 1})
	require.NoError(t, err)
	assert.Equal(t, Pending, res.Status)

	cancel()
	select {
	case err := <-rasterErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Raster did not return after its context was cancelled")
	}
	close(release)

	select {
	case k := <-ready:
		assert.Equal(t, Key{Frame: 1}, k)
	case <-time.After(5 * time.Second):
		t.Fatal("request for frame 1 never delivered")
	}
	assert.Equal(t, 1, pages.decodeCount(1))
	assert.True(t, s.Cached(Key{Frame: 1}))
}

func TestFrameStackCacheHitSupersedesPending(t *testing.T) {
	pages := newFakePages(8)
	s := newPagedStack(t, pages, 4)
	_, err := s.Raster(context.Background(), 5, 0)
	require.NoError(t, err)
	<-pages.started

	release := make(chan struct{})
	pages.setBlock(1, release)
	_, err = s.Request(Key{Frame: 1})
	require.NoError(t, err)
	require.Equal(t, 1, <-pages.started)

	_, err = s.Request(Key{Frame: 2})
	require.NoError(t, err)
	res, err := s.Request(Key{Frame: 5})
	require.NoError(t, err)
	assert.Equal(t, Ready, res.Status)
	close(release)

	require.Eventually(t, func() bool { return s.Cached(Key{Frame: 1}) }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, pages.decodeCount(2), "request superseded by a cache hit must not decode")
}

func TestFrameStackRequestReportsDecodeError(t *testing.T) {
	pages := newFakePages(3)
	pages.setFail(2, errors.New("bad page"))
	s := newPagedStack(t, pages, 2)

	errs := make(chan error, 1)
	s.OnError(func(err error) { errs <- err })

	_, err := s.Request(Key{Frame: 2})
	require.NoError(t, err)
	select {
	case err := <-errs:
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 2, de.Frame)
	case <-time.After(5 * time.Second):
		t.Fatal("decode error never reported")
	}
	assert.Equal(t, 0, s.Resident())
}

func TestFrameStackCloseCancelsAndClosesOnce(t *testing.T) {
	pages := newFakePages(3)
	pages.setBlock(0, make(chan struct{})) // never released
	src, err := NewPagedSource(pages, false)
	require.NoError(t, err)
	s, err := New(src, Options{CacheBound: 2})
	require.NoError(t, err)

	_, err = s.Request(Key{Frame: 0})
	require.NoError(t, err)
	<-pages.started

	done := make(chan error, 1)
	go func() { done <- s.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not cancel the in-flight decode")
	}
	require.NoError(t, s.Close())
	assert.Equal(t, 1, pages.closes)

	_, err = s.Request(Key{Frame: 1})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Raster(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestVolumeViewsDoNotCopy(t *testing.T) {
	shape := Shape{Rows: 2, Cols: 3, Frames: 4, Channels: 2}
	data := make([]uint8, 2*3*4*2)
	for i := range data {
		data[i] = uint8(i)
	}
	v, err := NewVolume8(shape, data)
	require.NoError(t, err)
	s, err := New(v, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, s.Paged())

	img, err := s.Raster(context.Background(), 2, 1)
	require.NoError(t, err)
	g := img.(*image.Gray)
	// ((2*2)+1)*6 = 30
	assert.Equal(t, uint8(30), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(35), g.GrayAt(2, 1).Y)

	data[30] = 99
	assert.Equal(t, uint8(99), g.GrayAt(0, 0).Y)

	res, err := s.Request(Key{Frame: 3, Channel: 0})
	require.NoError(t, err)
	assert.Equal(t, Ready, res.Status)
	assert.Equal(t, 0, s.Resident())

	_, err = NewVolume8(shape, data[:10])
	assert.Error(t, err)
}

func TestVolume16(t *testing.T) {
	shape := Shape{Rows: 1, Cols: 2, Frames: 2, Channels: 1}
	v, err := NewVolume16(shape, []uint16{1, 2, 300, 65535})
	require.NoError(t, err)

	img, err := v.View(Key{Frame: 1})
	require.NoError(t, err)
	g := img.(*image.Gray16)
	assert.Equal(t, uint16(300), g.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), g.Gray16At(1, 0).Y)

	_, err = v.View(Key{Frame: 2})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestVolumeFromImagesSeparatesChannels(t *testing.T) {
	rgb := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgb.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	v, err := VolumeFromImages([]image.Image{rgb}, true)
	require.NoError(t, err)
	assert.Equal(t, Shape{Rows: 2, Cols: 2, Frames: 1, Channels: 3}, v.Shape())
	blue, err := v.View(Key{Channel: 2})
	require.NoError(t, err)
	assert.Equal(t, uint8(3), blue.(*image.Gray).GrayAt(0, 0).Y)

	v, err = VolumeFromImages([]image.Image{rgb}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Shape().Channels)
}

func TestPagedSourceOverTIFF(t *testing.T) {
	var pages []image.Image
	for f := 0; f < 6; f++ {
		g := image.NewGray(image.Rect(0, 0, 8, 5))
		g.Pix[0] = uint8(f)
		pages = append(pages, g)
	}
	path := filepath.Join(t.TempDir(), "stack.tif")
	require.NoError(t, svimage.WritePages(path, pages))

	tp, err := svimage.OpenTIFF(path)
	require.NoError(t, err)
	src, err := NewPagedSource(tp, true)
	require.NoError(t, err)
	assert.Equal(t, Shape{Rows: 5, Cols: 8, Frames: 6, Channels: 1}, src.Shape())

	s, err := New(src, Options{CacheBound: 2})
	require.NoError(t, err)
	defer s.Close()

	for f := 5; f >= 0; f-- {
		img, err := s.Raster(context.Background(), f, 0)
		require.NoError(t, err)
		assert.Equal(t, f, frameOf(t, img))
	}
	assert.Equal(t, 2, s.Resident())
}
