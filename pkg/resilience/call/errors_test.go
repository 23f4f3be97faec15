package call

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"reliacall/pkg/resilience/bulkhead"
	"reliacall/pkg/resilience/circuitbreaker"
	"reliacall/pkg/resilience/ratelimit"
	"reliacall/pkg/resilience/retry"
	"reliacall/pkg/resilience/shed"
	"reliacall/pkg/resilience/timeout"
)

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"shed", fmt.Errorf("payments: %w", shed.ErrShed), ReasonShed},
		{"rate limited", ratelimit.ErrRateLimited, ReasonRateLimited},
		{"circuit open", fmt.Errorf("payments: %w", circuitbreaker.ErrCircuitOpen), ReasonCircuitOpen},
		{"bulkhead full", bulkhead.ErrBulkheadFull, ReasonBulkheadFull},
		{"exhausted", &retry.ExhaustedError{Attempts: 5, Err: timeout.ErrTimeout}, ReasonRetryExhausted},
		{"timeout", timeout.ErrTimeout, ReasonTimeout},
		{"canceled", context.Canceled, ReasonCanceled},
		{"deadline", context.DeadlineExceeded, ReasonCanceled},
		{"fatal", errors.New("boom"), ReasonFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}

func TestReason_ExhaustedBeforeTimeout(t *testing.T) {
	// An exhausted retry whose last error was a timeout classifies as
	// exhausted, not timeout.
	err := &retry.ExhaustedError{Attempts: 3, Err: timeout.ErrTimeout}
	assert.Equal(t, ReasonRetryExhausted, Reason(err))
	assert.ErrorIs(t, err, timeout.ErrTimeout)
}

func TestRejected(t *testing.T) {
	assert.True(t, Rejected(shed.ErrShed))
	assert.True(t, Rejected(ratelimit.ErrRateLimited))
	assert.True(t, Rejected(circuitbreaker.ErrCircuitOpen))
	assert.True(t, Rejected(bulkhead.ErrBulkheadFull))
	assert.False(t, Rejected(timeout.ErrTimeout))
	assert.False(t, Rejected(&retry.ExhaustedError{Attempts: 5, Err: errors.New("x")}))
	assert.False(t, Rejected(nil))
}
