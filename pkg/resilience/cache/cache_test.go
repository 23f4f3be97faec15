package cache

import (
	"fmt"
	"testing"
	"time"

	"reliacall/pkg/clock"
)

func newTestCache(maxEntries int) (*DegradationCache, *clock.FakeClock) {
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := New(Config{MaxEntries: maxEntries, Clock: fake})
	return c, fake
}

func TestCache_SetAndGet(t *testing.T) {
	c, _ := newTestCache(10)

	c.Set("k", "value", time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "value" {
		t.Errorf("expected %q, got %v", "value", got)
	}
}

func TestCache_MissingKey(t *testing.T) {
	c, _ := newTestCache(10)

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_ExpiredEntryIsAbsentAndPurged(t *testing.T) {
	c, fake := newTestCache(10)

	c.Set("k", "value", time.Minute)
	fake.Advance(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to be treated as absent")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry purged on read, got %d entries", c.Len())
	}
}

func TestCache_ExpiryIsExact(t *testing.T) {
	c, fake := newTestCache(10)

	c.Set("k", "value", time.Minute)

	fake.Advance(time.Minute - time.Nanosecond)
	if _, ok := c.Get("k"); !ok {
		t.Error("expected hit just before expiry")
	}

	fake.Advance(time.Nanosecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss at the expiry instant")
	}
}

func TestCache_OverwriteResetsTTL(t *testing.T) {
	c, fake := newTestCache(10)

	c.Set("k", "old", time.Minute)
	fake.Advance(30 * time.Second)
	c.Set("k", "new", time.Minute)
	fake.Advance(45 * time.Second)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after TTL reset")
	}
	if got != "new" {
		t.Errorf("expected overwritten value, got %v", got)
	}
}

func TestCache_NonPositiveTTLStoresNothing(t *testing.T) {
	c, _ := newTestCache(10)

	c.Set("k", "value", 0)

	if _, ok := c.Get("k"); ok {
		t.Error("expected nothing stored with zero TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(3)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Minute)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	c.Set("d", 4, time.Minute)

	if c.Len() != 3 {
		t.Errorf("expected capacity bound of 3, got %d", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted as least recently used")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %q to survive eviction", key)
		}
	}
}

func TestCache_CapacityBoundUnderChurn(t *testing.T) {
	c, _ := newTestCache(8)

	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i, time.Minute)
	}

	if c.Len() != 8 {
		t.Errorf("expected 8 entries, got %d", c.Len())
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	c := New(Config{})

	if c.cfg.MaxEntries != 1024 {
		t.Errorf("expected default max entries 1024, got %d", c.cfg.MaxEntries)
	}
	if c.cfg.Clock == nil {
		t.Error("expected default clock")
	}
}
