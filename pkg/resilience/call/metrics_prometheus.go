package call

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// All metrics use a custom registry for better testability and isolation;
// the registry can be passed to promhttp.HandlerFor() to expose metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// callsTotal tracks completed calls by outcome mode.
	// Labels:
	//   - mode: "fresh", "degraded_cache", "degraded_fallback" or "error"
	callsTotal *prometheus.CounterVec

	// rejectionsTotal tracks fast-path rejections by reason.
	// Labels:
	//   - reason: "shed", "rate_limited", "circuit_open" or "bulkhead_full"
	rejectionsTotal *prometheus.CounterVec

	// attemptsPerCall tracks how many underlying invocations each call made.
	attemptsPerCall prometheus.Histogram

	// callDuration tracks end-to-end call latency including backoff waits.
	//
	// Buckets span fast local rejections through multi-attempt retry
	// sequences capped by the default 8s backoff ceiling.
	callDuration prometheus.Histogram

	// breakerState tracks the circuit breaker state per circuit.
	// Values:
	//   - 0: Closed (normal operation)
	//   - 1: Open (rejecting calls)
	//   - 2: Half-Open (probing recovery)
	breakerState *prometheus.GaugeVec

	// inflight tracks the current number of calls inside the shedder.
	inflight prometheus.Gauge

	// cacheLookupsTotal tracks degradation-cache lookups by result.
	// Labels:
	//   - result: "hit" or "miss"
	cacheLookupsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a
// custom registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reliacall_calls_total",
			Help: "Total completed calls by outcome mode",
		},
		[]string{"mode"},
	)

	rejectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reliacall_rejections_total",
			Help: "Total fast-path rejections by reason",
		},
		[]string{"reason"},
	)

	attemptsPerCall := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reliacall_attempts_per_call",
			Help:    "Underlying invocations per call",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	callDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reliacall_call_duration_seconds",
			Help:    "End-to-end call duration including backoff waits",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reliacall_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit"},
	)

	inflight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reliacall_inflight_calls",
			Help: "Current number of admitted in-flight calls",
		},
	)

	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reliacall_cache_lookups_total",
			Help: "Degradation cache lookups by result",
		},
		[]string{"result"},
	)

	// Register all metrics with the custom registry
	registry.MustRegister(
		callsTotal,
		rejectionsTotal,
		attemptsPerCall,
		callDuration,
		breakerState,
		inflight,
		cacheLookupsTotal,
	)

	return &PrometheusMetrics{
		registry:          registry,
		callsTotal:        callsTotal,
		rejectionsTotal:   rejectionsTotal,
		attemptsPerCall:   attemptsPerCall,
		callDuration:      callDuration,
		breakerState:      breakerState,
		inflight:          inflight,
		cacheLookupsTotal: cacheLookupsTotal,
	}
}

// Registry returns the Prometheus registry containing all call metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCall records one completed call by outcome mode.
func (m *PrometheusMetrics) RecordCall(mode string) {
	m.callsTotal.WithLabelValues(mode).Inc()
}

// RecordRejection records a fast-path rejection by reason.
func (m *PrometheusMetrics) RecordRejection(reason string) {
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordAttempts records how many underlying invocations one call made.
func (m *PrometheusMetrics) RecordAttempts(n int) {
	m.attemptsPerCall.Observe(float64(n))
}

// RecordDuration records the end-to-end latency of one call.
func (m *PrometheusMetrics) RecordDuration(d time.Duration) {
	m.callDuration.Observe(d.Seconds())
}

// RecordBreakerState records the current state of a circuit breaker.
//
// The state string is mapped to a numeric gauge for alerting:
//   - 0 = closed
//   - 1 = open
//   - 2 = half-open
func (m *PrometheusMetrics) RecordBreakerState(circuit, state string) {
	var stateValue float64
	switch state {
	case "closed":
		stateValue = 0
	case "open":
		stateValue = 1
	case "half-open":
		stateValue = 2
	default:
		// Unknown state, default to closed
		stateValue = 0
	}
	m.breakerState.WithLabelValues(circuit).Set(stateValue)
}

// SetInflight records the current number of admitted in-flight calls.
func (m *PrometheusMetrics) SetInflight(n int) {
	m.inflight.Set(float64(n))
}

// RecordCacheLookup records a degradation-cache lookup outcome.
func (m *PrometheusMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}
