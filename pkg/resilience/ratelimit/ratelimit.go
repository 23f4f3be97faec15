// Package ratelimit provides per-key token-bucket admission control.
//
// Each key (tenant, downstream target, API key) gets its own bucket,
// created lazily with a full burst allowance. The registry is bounded:
// when the key limit is reached the least recently used buckets are
// evicted, so unboundedly many idle keys cannot grow memory forever.
package ratelimit

import (
	"container/list"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"reliacall/pkg/clock"
)

// ErrRateLimited indicates a request was rejected by the token bucket for
// its key.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config holds configuration for a per-key limiter.
type Config struct {
	// RatePerSecond is the sustained refill rate of each bucket.
	RatePerSecond float64

	// Capacity is the burst size of each bucket. New keys start with a
	// full bucket of Capacity tokens.
	Capacity int

	// MaxKeys bounds the number of tracked buckets. Least recently used
	// buckets are evicted beyond this. Default: 10000.
	MaxKeys int

	// Clock provides time for refill calculations. Default: SystemClock.
	Clock clock.Clock
}

// DefaultConfig returns a default limiter configuration.
func DefaultConfig() Config {
	return Config{
		RatePerSecond: 10,
		Capacity:      20,
		MaxKeys:       10000,
	}
}

// Limiter is a thread-safe registry of per-key token buckets.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*entry
	order   *list.List // front = most recently used
}

type entry struct {
	lim  *rate.Limiter
	elem *list.Element // value is the key string
}

// New creates a limiter with the given configuration, applying defaults
// for zero values.
func New(cfg Config) *Limiter {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultConfig().RatePerSecond
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultConfig().MaxKeys
	}
	if cfg.Clock == nil {
		cfg.Clock = &clock.SystemClock{}
	}

	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*entry),
		order:   list.New(),
	}
}

// Allow reports whether one token is available for key, consuming it if so.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN reports whether cost tokens are available for key, consuming them
// if so. Refill and check happen atomically under the registry lock.
func (l *Limiter) AllowN(key string, cost int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.cfg.MaxKeys {
			l.evictLRU()
		}
		e = &entry{
			lim:  rate.NewLimiter(rate.Limit(l.cfg.RatePerSecond), l.cfg.Capacity),
			elem: l.order.PushFront(key),
		}
		l.buckets[key] = e
	} else {
		l.order.MoveToFront(e.elem)
	}

	return e.lim.AllowN(l.cfg.Clock.Now(), cost)
}

// KeyCount returns the number of buckets currently tracked.
func (l *Limiter) KeyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictLRU drops the least recently used buckets. It removes 10% of the
// key budget at a time to avoid evicting on every new key at capacity.
// Must be called with the registry lock held.
func (l *Limiter) evictLRU() {
	evictCount := l.cfg.MaxKeys / 10
	if evictCount < 1 {
		evictCount = 1
	}

	for i := 0; i < evictCount; i++ {
		back := l.order.Back()
		if back == nil {
			return
		}
		key := back.Value.(string)
		l.order.Remove(back)
		delete(l.buckets, key)
	}
}
