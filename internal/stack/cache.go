package stack

import (
	"image"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// frameCache is a bounded LRU of decoded planes. Every mutation holds mu,
// so an insert and the eviction it triggers happen as one step.
type frameCache struct {
	mu     sync.Mutex
	lru    *lru.Cache[Key, image.Image]
	logger *slog.Logger
}

func newFrameCache(size int, logger *slog.Logger) (*frameCache, error) {
	c := &frameCache{logger: logger}
	l, err := lru.NewWithEvict[Key, image.Image](size, func(k Key, _ image.Image) {
		c.logger.Debug("frame evicted", "frame", k.Frame, "channel", k.Channel)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// get returns a cached plane and marks it most recently used.
func (c *frameCache) get(k Key) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(k)
}

// contains checks residency without touching recency.
func (c *frameCache) contains(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(k)
}

func (c *frameCache) add(k Key, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(k, img)
	c.logger.Debug("frame cached", "frame", k.Frame, "channel", k.Channel, "resident", c.lru.Len())
}

// keys returns resident keys from least to most recently used.
func (c *frameCache) keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

func (c *frameCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *frameCache) resize(size int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Resize(size)
}

func (c *frameCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
