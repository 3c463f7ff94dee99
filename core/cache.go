package core

import (
	"errors"
	"sync"
	"time"
)

var ErrKeyExists = errors.New("key already exists")

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *cacheEntry[T]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Cache is a key-value store with per-entry expiry. Expired entries are
// evicted lazily on access and swept periodically, since abandoned entries
// are never re-accessed and must not accumulate.
//
// Cache is safe for concurrent use. Callers that need multi-step
// read-modify-write atomicity (attempt counting, compare-then-consume)
// serialize those steps with their own lock; single calls are atomic.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]cacheEntry[T]

	done     chan struct{}
	stopOnce sync.Once
}

// NewCache creates a cache and, if sweepInterval > 0, starts a background
// sweeper goroutine. Call Close to stop it.
func NewCache[T any](sweepInterval time.Duration) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]cacheEntry[T]),
		done:    make(chan struct{}),
	}

	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}

	return c
}

// Set inserts or overwrites the entry for key.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Add inserts the entry for key, refusing to overwrite an unexpired one.
func (c *Cache[T]) Add(key string, value T, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok && !existing.expired(time.Now()) {
		return ErrKeyExists
	}

	c.entries[key] = cacheEntry[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get returns the entry for key if present and unexpired. An expired entry
// is evicted first. The read is non-consuming.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if entry.expired(time.Now()) {
		delete(c.entries, key)
		var zero T
		return zero, false
	}

	return entry.value, true
}

// Pop returns and removes the entry for key. At most one concurrent caller
// observes a given entry.
func (c *Cache[T]) Pop(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	delete(c.entries, key)

	if entry.expired(time.Now()) {
		var zero T
		return zero, false
	}

	return entry.value, true
}

// Remove unconditionally deletes the entry for key.
func (c *Cache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len reports the number of stored entries, expired ones included until the
// next sweep.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Sweep removes all expired entries and reports how many were removed.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Close stops the background sweeper. The cache remains usable.
func (c *Cache[T]) Close() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *Cache[T]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}
