package call

import (
	"context"
	"errors"

	"reliacall/pkg/resilience/bulkhead"
	"reliacall/pkg/resilience/circuitbreaker"
	"reliacall/pkg/resilience/ratelimit"
	"reliacall/pkg/resilience/retry"
	"reliacall/pkg/resilience/shed"
	"reliacall/pkg/resilience/timeout"
)

// Rejection reasons as reported by Reason. Hosts typically map these to
// transport codes: shed, rate_limited and circuit_open to 429/503 with a
// Retry-After, bulkhead_full to 503, and the rest to 5xx.
const (
	ReasonShed           = "shed"
	ReasonRateLimited    = "rate_limited"
	ReasonCircuitOpen    = "circuit_open"
	ReasonBulkheadFull   = "bulkhead_full"
	ReasonRetryExhausted = "retry_exhausted"
	ReasonTimeout        = "timeout"
	ReasonCanceled       = "canceled"
	ReasonFatal          = "fatal"
)

// Reason classifies a terminal error from Do into a stable reason label,
// suitable for metrics and for mapping to transport-level status codes.
func Reason(err error) string {
	switch {
	case errors.Is(err, shed.ErrShed):
		return ReasonShed
	case errors.Is(err, ratelimit.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return ReasonCircuitOpen
	case errors.Is(err, bulkhead.ErrBulkheadFull):
		return ReasonBulkheadFull
	case errors.Is(err, retry.ErrRetriesExhausted):
		return ReasonRetryExhausted
	case errors.Is(err, timeout.ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonFatal
	}
}

// Rejected reports whether err is a fast-path rejection, meaning the
// underlying operation was never invoked.
func Rejected(err error) bool {
	switch Reason(err) {
	case ReasonShed, ReasonRateLimited, ReasonCircuitOpen, ReasonBulkheadFull:
		return true
	}
	return false
}
