package call

import "time"

// Metrics receives observability events from the orchestrator.
//
// Implementations must be safe for concurrent use. The orchestrator calls
// these methods on the hot path, so implementations should be cheap.
type Metrics interface {
	// RecordCall records one completed call by outcome mode.
	// Mode is "fresh", "degraded_cache", "degraded_fallback" or "error".
	RecordCall(mode string)

	// RecordRejection records a fast-path rejection before any attempt ran.
	// Reason is one of the Reason* constants.
	RecordRejection(reason string)

	// RecordAttempts records how many underlying invocations one call made.
	RecordAttempts(n int)

	// RecordDuration records the end-to-end latency of one call,
	// including backoff waits.
	RecordDuration(d time.Duration)

	// RecordBreakerState records a circuit state transition.
	RecordBreakerState(circuit, state string)

	// SetInflight records the current number of calls inside the shedder.
	SetInflight(n int)

	// RecordCacheLookup records a degradation-cache lookup outcome.
	RecordCacheLookup(hit bool)
}

// NoOpMetrics implements Metrics with no-op methods.
//
// Useful for tests and for hosts that do not scrape Prometheus.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordCall is a no-op implementation.
func (m *NoOpMetrics) RecordCall(mode string) {
	// No-op
}

// RecordRejection is a no-op implementation.
func (m *NoOpMetrics) RecordRejection(reason string) {
	// No-op
}

// RecordAttempts is a no-op implementation.
func (m *NoOpMetrics) RecordAttempts(n int) {
	// No-op
}

// RecordDuration is a no-op implementation.
func (m *NoOpMetrics) RecordDuration(d time.Duration) {
	// No-op
}

// RecordBreakerState is a no-op implementation.
func (m *NoOpMetrics) RecordBreakerState(circuit, state string) {
	// No-op
}

// SetInflight is a no-op implementation.
func (m *NoOpMetrics) SetInflight(n int) {
	// No-op
}

// RecordCacheLookup is a no-op implementation.
func (m *NoOpMetrics) RecordCacheLookup(hit bool) {
	// No-op
}
