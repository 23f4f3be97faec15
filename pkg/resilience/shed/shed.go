// Package shed rejects excess load before any expensive work starts.
// A LoadShedder tracks in-flight requests with an atomic counter and
// fails fast once the configured ceiling is reached.
package shed

import (
	"errors"
	"sync/atomic"
)

// ErrShed indicates a request was rejected because too many requests are
// already in flight.
var ErrShed = errors.New("load shed: too many requests in flight")

// Priority classifies inbound traffic for capacity reservation.
type Priority int

const (
	// PriorityNormal is subject to the reserved-capacity cutoff.
	PriorityNormal Priority = iota

	// PriorityHigh may use the full in-flight ceiling, including any
	// capacity reserved away from normal traffic.
	PriorityHigh
)

// LoadShedder bounds the number of concurrently admitted requests.
//
// TryEnter and Exit must be paired on every code path: a successful
// TryEnter without a matching Exit permanently consumes capacity.
type LoadShedder struct {
	maxInflight int64
	reserved    int64
	inflight    atomic.Int64
}

// New creates a shedder with the given in-flight ceiling.
//
// reservedForHigh holds back that many slots for PriorityHigh traffic;
// zero disables the reservation so priority has no effect on admission.
// A non-positive maxInflight defaults to 1.
func New(maxInflight, reservedForHigh int) *LoadShedder {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	if reservedForHigh < 0 {
		reservedForHigh = 0
	}
	if int64(reservedForHigh) >= int64(maxInflight) {
		reservedForHigh = maxInflight - 1
	}
	return &LoadShedder{
		maxInflight: int64(maxInflight),
		reserved:    int64(reservedForHigh),
	}
}

// TryEnter admits the request if capacity remains for its priority.
// It never blocks; false means the caller must shed the request.
func (s *LoadShedder) TryEnter(p Priority) bool {
	limit := s.maxInflight
	if p != PriorityHigh {
		limit -= s.reserved
	}
	for {
		cur := s.inflight.Load()
		if cur >= limit {
			return false
		}
		if s.inflight.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Exit releases one admitted request. Callers must invoke it exactly once
// per successful TryEnter, including on failure paths.
func (s *LoadShedder) Exit() {
	s.inflight.Add(-1)
}

// Inflight returns the number of currently admitted requests.
func (s *LoadShedder) Inflight() int {
	return int(s.inflight.Load())
}

// MaxInflight returns the configured ceiling.
func (s *LoadShedder) MaxInflight() int {
	return int(s.maxInflight)
}
