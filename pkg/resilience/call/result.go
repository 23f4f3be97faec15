package call

import (
	"context"

	"reliacall/pkg/resilience/retry"
	"reliacall/pkg/resilience/shed"
)

// Operation is the unreliable remote call being protected. It must honor
// ctx cancellation; the orchestrator derives per-attempt deadlines from it.
type Operation[T any] func(ctx context.Context) (T, error)

// Request describes one invocation of a protected operation.
type Request[T any] struct {
	// Key is the rate-limit key, typically a tenant or API-key identity.
	// Empty falls back to "default", sharing one bucket across callers.
	Key string

	// CacheKey identifies the operation for last-known-good caching.
	// Empty disables both the cache write on success and the cache
	// fallback on failure.
	CacheKey string

	// Priority controls load-shedding admission when the caller has
	// reserved capacity for high-priority traffic.
	Priority shed.Priority

	// Fallback, when set, supplies a degraded-default value served if the
	// pipeline fails and no usable cache entry exists.
	Fallback func() T

	// Op is the operation to protect.
	Op Operation[T]
}

// Mode tags how the returned value was produced.
type Mode string

const (
	// ModeFresh is a live success from the underlying operation.
	ModeFresh Mode = "fresh"

	// ModeDegradedCache is a last-known-good value served from cache
	// after the pipeline failed.
	ModeDegradedCache Mode = "degraded_cache"

	// ModeDegradedFallback is the caller-supplied default served when the
	// pipeline failed and the cache had nothing usable.
	ModeDegradedFallback Mode = "degraded_fallback"
)

// Result is the tagged outcome of one orchestrated call.
//
// When Err is nil, Value holds a fresh or explicitly degraded answer and
// Mode says which. When Err is non-nil, Value is the zero value and Mode
// is meaningless; Err is always a structured, classifiable error rather
// than a panic across the boundary.
type Result[T any] struct {
	// CallID uniquely identifies this call in logs and traces.
	CallID string

	// Mode tags the provenance of Value.
	Mode Mode

	// Value is the answer, fresh or degraded.
	Value T

	// Attempts is the trace of underlying invocations, empty when the
	// call was rejected before any attempt ran.
	Attempts []retry.Attempt

	// Err is the terminal failure, nil on any served value.
	Err error
}

// Degraded reports whether the value was served from cache or fallback
// rather than a live success.
func (r *Result[T]) Degraded() bool {
	return r.Mode == ModeDegradedCache || r.Mode == ModeDegradedFallback
}
