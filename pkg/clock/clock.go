// Package clock provides an abstraction for time operations to enable testing.
//
// All time-dependent components in this module (rate limiting, caching,
// load shedding) accept a Clock so that tests can control time instead of
// sleeping.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
//
// Production implementations should return time.Now().
// Test implementations can return fixed or controlled times.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// FakeClock is a Clock implementation with a manually controlled time.
//
// It is intended for tests that need deterministic timing behavior,
// such as token bucket refill or cache expiry assertions.
// All methods are safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake clock's current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the fake clock to the given time.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
