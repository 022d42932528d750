package cache

import (
	"context"
	"sync"
	"time"

	"copilot-gateway/internal/core"
)

// LRUCache is a thread-safe LRU cache with per-entry expiration.
type LRUCache struct {
	capacity int
	items    map[string]*entry
	mu       sync.Mutex
	head     *entry
	tail     *entry
	now      func() time.Time
	cancel   context.CancelFunc
}

type entry struct {
	value     any
	expiresAt time.Time
	key       string
	prev      *entry
	next      *entry
}

// NewCache creates an LRU cache holding at most capacity entries and starts
// its background sweeper. A non-positive capacity uses the default.
func NewCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = core.CacheDefaultCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &LRUCache{
		capacity: capacity,
		items:    make(map[string]*entry),
		head:     &entry{},
		tail:     &entry{},
		now:      time.Now,
		cancel:   cancel,
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	go c.sweep(ctx, core.CacheCleanupInterval)
	return c
}

func (c *LRUCache) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates the sweeper goroutine.
func (c *LRUCache) Stop() {
	c.cancel()
}

// Set stores a value for ttl.
func (c *LRUCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.unlink(e)
		c.pushFront(e)
		return
	}

	e := &entry{value: value, expiresAt: expiresAt, key: key}
	c.pushFront(e)
	c.items[key] = e

	if len(c.items) > c.capacity {
		oldest := c.tail.prev
		c.unlink(oldest)
		delete(c.items, oldest.key)
	}
}

// Get returns a live value and marks it most recently used.
func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.unlink(e)
		delete(c.items, key)
		return nil, false
	}

	c.unlink(e)
	c.pushFront(e)
	return e.value, true
}

// Delete drops a key.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.unlink(e)
		delete(c.items, key)
	}
}

// Len reports the number of stored entries, expired ones included until swept.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache) pushFront(e *entry) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRUCache) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *LRUCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.items {
		if !now.Before(e.expiresAt) {
			c.unlink(e)
			delete(c.items, key)
		}
	}
}
