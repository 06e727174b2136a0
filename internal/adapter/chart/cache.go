package chart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// PNGRenderer draws a chart as a PNG image.
type PNGRenderer interface {
	Render(ctx context.Context, c *dashboard.Chart, w io.Writer) error
}

// CachedRenderer wraps a PNGRenderer with an in-memory LRU cache keyed by
// snapshot version, chart and region. A new snapshot version always misses,
// and concurrent misses for the same key share one render.
type CachedRenderer struct {
	inner   PNGRenderer
	cache   *lruCache
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedRenderer creates a cache decorator around a renderer.
func NewCachedRenderer(inner PNGRenderer, maxEntries int, metrics *observability.Metrics) *CachedRenderer {
	return &CachedRenderer{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedRenderer) Render(ctx context.Context, ch *dashboard.Chart, w io.Writer) error {
	key := cacheKey(ch)
	if img, ok := c.cache.get(key); ok {
		c.metrics.ChartCache.WithLabelValues("hit").Inc()
		_, err := w.Write(img)
		return err
	}
	c.metrics.ChartCache.WithLabelValues("miss").Inc()

	// The render is shared by every caller waiting on key, so it must not
	// inherit the first caller's cancellation.
	renderCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (any, error) {
		var buf bytes.Buffer
		if err := c.inner.Render(renderCtx, ch, &buf); err != nil {
			return nil, err
		}
		img := buf.Bytes()
		c.cache.put(key, img)
		return img, nil
	})
	if err != nil {
		return err
	}
	_, err = w.Write(v.([]byte))
	return err
}

// Len returns the number of cached images.
func (c *CachedRenderer) Len() int {
	return c.cache.len()
}

func cacheKey(ch *dashboard.Chart) string {
	return fmt.Sprintf("%d|%s|%s", ch.Version, ch.ID, ch.Region)
}

// lruCache is a simple thread-safe LRU cache of encoded images.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []byte
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
