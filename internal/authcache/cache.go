// ABOUTME: Thread-safe TTL cache mapping partition ids to passphrases.
// ABOUTME: Used by the request authorizer to avoid a store read per request.

package authcache

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the passphrase, timestamp and list element for a cached id.
type cacheEntry struct {
	passphrase string
	timestamp  time.Time
	element    *list.Element
}

// Cache provides a thread-safe, TTL-based, size-limited cache of
// partition id to passphrase. Entries are invalidated explicitly on every
// record write, so the authorizer never acts on a stale passphrase longer
// than the write path allows. A nil *Cache is valid and caches nothing.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   *list.List // List of ids in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a new passphrase cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
// Returns nil when ttl is zero or negative, disabling caching.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		return nil
	}
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

// Get returns the cached passphrase for the given id, if present and fresh.
func (c *Cache) Get(id string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok || time.Since(entry.timestamp) >= c.ttl {
		return "", false
	}
	return entry.passphrase, true
}

// Set records the passphrase for an id. If the cache is at capacity,
// the oldest entry is evicted to make room.
func (c *Cache) Set(id, passphrase string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	// If the id already exists, refresh it and move to back
	if entry, exists := c.entries[id]; exists {
		entry.passphrase = passphrase
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(id)
	c.entries[id] = &cacheEntry{
		passphrase: passphrase,
		timestamp:  now,
		element:    elem,
	}
}

// Invalidate drops the cached entry for an id. Called on every record write.
func (c *Cache) Invalidate(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return
	}
	c.order.Remove(entry.element)
	delete(c.entries, id)
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held. O(1) operation using linked list.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, id)
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
	for id, entry := range c.entries {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.entries, id)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
