// Package bulkhead provides bounded concurrency isolation per logical
// resource pool. Acquisition is non-blocking: when a pool is saturated the
// caller is rejected immediately instead of queuing, which favors fast
// failure over unbounded latency.
package bulkhead

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrBulkheadFull indicates the pool has no free slots.
var ErrBulkheadFull = errors.New("bulkhead at capacity")

// Bulkhead guards a named pool with a fixed number of concurrency slots.
type Bulkhead struct {
	name     string
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
}

// New creates a bulkhead for the named pool with the given capacity.
// A non-positive capacity defaults to 1.
func New(name string, capacity int) *Bulkhead {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bulkhead{
		name:     name,
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire takes a slot without blocking.
//
// The returned Slot must be released on every exit path; Release is
// idempotent so it is safe to defer it immediately after a successful
// Acquire.
func (b *Bulkhead) Acquire() (*Slot, error) {
	if !b.sem.TryAcquire(1) {
		return nil, fmt.Errorf("%s: %w", b.name, ErrBulkheadFull)
	}
	b.inUse.Add(1)
	return &Slot{owner: b}, nil
}

// Name returns the pool name.
func (b *Bulkhead) Name() string {
	return b.name
}

// Capacity returns the fixed slot count of the pool.
func (b *Bulkhead) Capacity() int {
	return int(b.capacity)
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int {
	return int(b.inUse.Load())
}

// Slot is a scoped acquisition of one bulkhead slot.
type Slot struct {
	owner *Bulkhead
	once  sync.Once
}

// Release returns the slot to the pool. Calling Release more than once has
// no effect, so every exit path can release unconditionally.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.owner.inUse.Add(-1)
		s.owner.sem.Release(1)
	})
}
