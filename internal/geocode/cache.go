package geocode

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Failures are
// never cached.
type CachedGeocoder struct {
	inner Geocoder

	mu         sync.Mutex
	maxEntries int
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value Address
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner Geocoder, maxEntries int) *CachedGeocoder {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &CachedGeocoder{
		inner:      inner,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	if addr, ok := c.get(key); ok {
		return addr, nil
	}
	addr, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return addr, err
	}
	c.put(key, addr)
	return addr, nil
}

func (c *CachedGeocoder) get(key string) (Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Address{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *CachedGeocoder) put(key string, value Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
