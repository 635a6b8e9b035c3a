// ABOUTME: Thread-safe TTL cache for column-description lookups
// ABOUTME: Size-limited with insertion-order eviction and periodic cleanup

package metadata

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores a cached description set with its timestamp and list element.
type cacheEntry struct {
	descriptions map[string]string
	timestamp    time.Time
	element      *list.Element
}

// Cache holds recently fetched description sets keyed by datasource-id set.
// Catalog descriptions change rarely, so a short TTL removes the per-call
// metadata round-trip without risking stale results for long. Uses a
// doubly-linked list to maintain insertion order for O(1) eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewCache creates a cache with the specified TTL and maximum size.
// A background goroutine periodically removes expired entries.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the cached descriptions for key if present and not expired.
func (c *Cache) Get(key string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.timestamp) >= c.ttl {
		return nil, false
	}
	return entry.descriptions, true
}

// Put stores descriptions under key. If the cache is at capacity, the
// oldest entry is evicted to make room.
func (c *Cache) Put(key string, descriptions map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	// Refresh in place when the key already exists.
	if entry, exists := c.entries[key]; exists {
		entry.descriptions = descriptions
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry{
		descriptions: descriptions,
		timestamp:    now,
		element:      elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
