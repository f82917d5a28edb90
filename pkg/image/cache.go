package image

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
)

// CacheKey uniquely identifies a rendered image output by its protocol,
// target dimensions, and content hash.
type CacheKey struct {
	Protocol  string
	Width     int
	Height    int
	ImageHash [32]byte
}

// String returns a human-readable key for debugging.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%dx%d:%x", k.Protocol, k.Width, k.Height, k.ImageHash[:8])
}

// CacheStats reports hit/miss counts for observability.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	SizeBytes int64
}

type cacheEntry struct {
	key       CacheKey
	rendered  string
	sizeBytes int64
}

// Cache is a thread-safe LRU cache of rendered terminal strings, bounded by
// the total size of the strings it holds.
type Cache struct {
	mu        sync.Mutex
	items     map[CacheKey]*list.Element
	order     *list.List // front = most recent
	maxBytes  int64
	usedBytes int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewCache creates an LRU cache holding at most maxKB kilobytes of
// rendered output. If maxKB is <= 0, 4 MB is used.
func NewCache(maxKB int) *Cache {
	if maxKB <= 0 {
		maxKB = 4096
	}
	return &Cache{
		items:    make(map[CacheKey]*list.Element),
		order:    list.New(),
		maxBytes: int64(maxKB) * 1024,
	}
}

// Get returns the cached string for key and marks it most recently used.
func (c *Cache) Get(key CacheKey) (string, bool) {
	c.mu.Lock()
	elem, ok := c.items[key]
	var rendered string
	if ok {
		c.order.MoveToFront(elem)
		rendered = elem.Value.(*cacheEntry).rendered
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return rendered, true
}

// Put stores rendered under key, evicting least recently used entries
// until the cache fits its budget. An entry larger than the whole budget
// is not stored.
func (c *Cache) Put(key CacheKey, rendered string) {
	size := int64(len(rendered))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		old := elem.Value.(*cacheEntry)
		c.usedBytes += size - old.sizeBytes
		old.rendered = rendered
		old.sizeBytes = size
		c.order.MoveToFront(elem)
	} else {
		c.items[key] = c.order.PushFront(&cacheEntry{key: key, rendered: rendered, sizeBytes: size})
		c.usedBytes += size
	}

	for c.usedBytes > c.maxBytes && c.order.Len() > 1 {
		back := c.order.Back()
		entry := c.order.Remove(back).(*cacheEntry)
		delete(c.items, entry.key)
		c.usedBytes -= entry.sizeBytes
		c.evictions.Add(1)
	}
}

// Invalidate clears all cache entries.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[CacheKey]*list.Element)
	c.order.Init()
	c.usedBytes = 0
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.order.Len(),
		SizeBytes: c.usedBytes,
	}
}
