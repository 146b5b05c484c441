// Package cache provides an in-memory LRU cache with TTL for read-heavy
// project and audit endpoints. Every committed mutation clears it.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// LRUCache is a thread-safe in-memory cache with TTL and max-size eviction.
// Get promotes an entry; when full, the least recently used entry is evicted.
// Expired entries are lazily evicted on Get.
type LRUCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	// gen counts InvalidateAll calls.
	gen uint64
}

// NewLRUCache creates a new LRU cache with the given maximum size and TTL.
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LRUCache{
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a cached value by key. Returns (nil, false) if the key is
// missing or expired.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores a value, replacing any existing entry for key.
func (c *LRUCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// Generation returns a counter that changes on every InvalidateAll.
func (c *LRUCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfGeneration stores value only if no InvalidateAll happened since gen
// was read. A body rendered before a commit must not outlive the commit's
// invalidation.
func (c *LRUCache) SetIfGeneration(key string, value []byte, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.set(key, value)
	return true
}

// must be called with c.mu held
func (c *LRUCache) set(key string, value []byte) {
	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	c.items[key] = c.order.PushFront(&entry{key: key, value: value, expiresAt: expires})
}

// Invalidate removes a specific key from the cache.
func (c *LRUCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// InvalidateAll removes all entries from the cache.
func (c *LRUCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
	c.gen++
}

// Size returns the number of entries currently held, including expired
// entries not yet evicted.
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// must be called with c.mu held
func (c *LRUCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
