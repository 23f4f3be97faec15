// Package cache provides an in-memory last-known-good store used for
// graceful degradation. Fresh successes are written here so that a later
// total pipeline failure can serve a stale-but-real answer instead of an
// error. Entries expire by TTL and are purged lazily on read; capacity is
// bounded with least-recently-used eviction.
package cache

import (
	"container/list"
	"sync"
	"time"

	"reliacall/pkg/clock"
)

// Config holds configuration for a DegradationCache.
type Config struct {
	// MaxEntries bounds the number of cached values. Default: 1024.
	MaxEntries int

	// Clock provides time for expiry decisions. Default: SystemClock.
	Clock clock.Clock
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{MaxEntries: 1024}
}

// DegradationCache is a thread-safe TTL cache of last-known-good results.
type DegradationCache struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // front = most recently used
}

type entry struct {
	value     any
	expiresAt time.Time
	elem      *list.Element // value is the key string
}

// New creates a cache with the given configuration, applying defaults for
// zero values.
func New(cfg Config) *DegradationCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.Clock == nil {
		cfg.Clock = &clock.SystemClock{}
	}
	return &DegradationCache{
		cfg:     cfg,
		entries: make(map[string]*entry),
		order:   list.New(),
	}
}

// Set stores value under key with the given TTL, overwriting any previous
// entry. A non-positive TTL stores nothing.
func (c *DegradationCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = c.cfg.Clock.Now().Add(ttl)
		c.order.MoveToFront(e.elem)
		return
	}

	if len(c.entries) >= c.cfg.MaxEntries {
		c.evictLRU()
	}

	c.entries[key] = &entry{
		value:     value,
		expiresAt: c.cfg.Clock.Now().Add(ttl),
		elem:      c.order.PushFront(key),
	}
}

// Get returns the value for key if present and not expired.
// Expired entries are treated as absent and removed.
func (c *DegradationCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if !c.cfg.Clock.Now().Before(e.expiresAt) {
		c.order.Remove(e.elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(e.elem)
	return e.value, true
}

// Len returns the number of entries currently stored, including entries
// that have expired but not yet been purged.
func (c *DegradationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLRU drops the least recently used entry.
// Must be called with the lock held.
func (c *DegradationCache) evictLRU() {
	back := c.order.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	c.order.Remove(back)
	delete(c.entries, key)
}
