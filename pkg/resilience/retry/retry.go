// Package retry provides bounded retry with exponential backoff and full
// jitter. It classifies failures as transient or fatal and never invokes an
// operation more than the configured number of attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
	"time"

	"reliacall/pkg/clock"
	"reliacall/pkg/resilience/timeout"
)

// Sleeper suspends the calling goroutine for d, returning early with the
// context error if ctx is canceled. Tests inject a no-op Sleeper to avoid
// real waits.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleeper is the default Sleeper. It waits on a timer and on ctx.
func ContextSleeper(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the maximum number of invocations of the operation,
	// including the first one.
	MaxAttempts int

	// BaseDelay is the backoff ceiling for the first retry. The ceiling
	// doubles on each subsequent attempt.
	BaseDelay time.Duration

	// CapDelay bounds the backoff ceiling regardless of attempt count.
	CapDelay time.Duration

	// PerAttemptTimeout is the hard deadline applied to each individual
	// attempt. Zero disables the per-attempt deadline.
	PerAttemptTimeout time.Duration

	// Classify reports whether an error is worth retrying.
	// Defaults to IsRetryable.
	Classify func(error) bool

	// Sleep suspends between attempts. Defaults to ContextSleeper.
	Sleep Sleeper

	// Clock provides time for attempt timestamps. Defaults to SystemClock.
	Clock clock.Clock
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		BaseDelay:         500 * time.Millisecond,
		CapDelay:          8 * time.Second,
		PerAttemptTimeout: 10 * time.Second,
	}
}

// Outcome classifies how a single attempt ended.
type Outcome string

const (
	// OutcomeSuccess indicates the attempt returned a value.
	OutcomeSuccess Outcome = "success"

	// OutcomeTransient indicates a retryable failure.
	OutcomeTransient Outcome = "transient"

	// OutcomeFatal indicates a non-retryable failure.
	OutcomeFatal Outcome = "fatal"

	// OutcomeTimeout indicates the attempt exceeded its deadline.
	OutcomeTimeout Outcome = "timeout"
)

// Attempt records one invocation of the underlying operation.
// Attempts are immutable once recorded and are returned to the caller as a
// trace; they are not persisted anywhere.
type Attempt struct {
	// Number is the 1-based attempt index.
	Number int

	// StartedAt is when the attempt began.
	StartedAt time.Time

	// Outcome classifies how the attempt ended.
	Outcome Outcome

	// Delay is the backoff slept before the next attempt.
	// Zero on the final attempt.
	Delay time.Duration

	// Err is the failure for non-success outcomes, nil on success.
	Err error
}

// ErrRetriesExhausted is matched by errors returned when every attempt
// failed with a retryable error.
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

// ExhaustedError reports that all attempts were consumed. It carries the
// last underlying error and matches both ErrRetriesExhausted and that
// error via errors.Is.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the last underlying error.
func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// Do executes op with bounded retries and exponential backoff.
//
// Each attempt runs under cfg.PerAttemptTimeout. On a retryable failure the
// backoff before attempt i+1 is sampled uniformly from
// [0, min(CapDelay, BaseDelay*2^(i-1))] (full jitter), which decorrelates
// retry storms across concurrent callers. Fatal errors abort immediately
// without consuming remaining attempts.
//
// The returned trace always contains one Attempt per invocation of op.
// Callers wrapping non-idempotent operations must supply their own
// idempotency keys; Do does not enforce idempotency.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, []Attempt, error) {
	var zero T

	classify := cfg.Classify
	if classify == nil {
		classify = IsRetryable
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = ContextSleeper
	}
	clk := cfg.Clock
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	attempts := make([]Attempt, 0, cfg.MaxAttempts)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		startedAt := clk.Now()

		value, err := timeout.Do(ctx, cfg.PerAttemptTimeout, op)
		if err == nil {
			attempts = append(attempts, Attempt{Number: attempt, StartedAt: startedAt, Outcome: OutcomeSuccess})
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return value, attempts, nil
		}
		lastErr = err

		// Parent cancellation is terminal regardless of classification.
		if ctx.Err() != nil {
			attempts = append(attempts, Attempt{Number: attempt, StartedAt: startedAt, Outcome: OutcomeFatal, Err: err})
			return zero, attempts, fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		outcome := OutcomeTransient
		if errors.Is(err, timeout.ErrTimeout) {
			outcome = OutcomeTimeout
		}

		if !classify(err) {
			attempts = append(attempts, Attempt{Number: attempt, StartedAt: startedAt, Outcome: OutcomeFatal, Err: err})
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return zero, attempts, err
		}

		if attempt == cfg.MaxAttempts {
			attempts = append(attempts, Attempt{Number: attempt, StartedAt: startedAt, Outcome: outcome, Err: err})
			break
		}

		delay := backoffDelay(cfg.BaseDelay, cfg.CapDelay, attempt)
		attempts = append(attempts, Attempt{Number: attempt, StartedAt: startedAt, Outcome: outcome, Delay: delay, Err: err})

		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if err := sleep(ctx, delay); err != nil {
			return zero, attempts, fmt.Errorf("retry aborted: %w", err)
		}
	}

	return zero, attempts, &ExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

// maxDuration is the largest representable backoff ceiling, used when no
// CapDelay bounds the doubling.
const maxDuration = time.Duration(1<<63 - 1)

// backoffDelay samples the full-jitter backoff before attempt+1.
// The exponential ceiling is min(capDelay, base*2^(attempt-1)).
func backoffDelay(base, capDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	ceiling := base
	for i := 1; i < attempt; i++ {
		if capDelay > 0 && ceiling >= capDelay {
			ceiling = capDelay
			break
		}
		doubled := ceiling * 2
		if doubled <= ceiling {
			// Doubling overflowed.
			ceiling = maxDuration
			break
		}
		ceiling = doubled
	}
	if capDelay > 0 && ceiling > capDelay {
		ceiling = capDelay
	}

	// #nosec G404 -- math/rand is acceptable for backoff jitter.
	// Cryptographic randomness is not required here.
	return time.Duration(rand.Float64() * float64(ceiling))
}

// ProviderError represents a provider failure with a status-like code.
type ProviderError struct {
	Status int
	Msg    string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider status %d: %s", e.Status, e.Msg)
}

// IsRetryable determines if an error is worth retrying.
//
// Retryable: attempt timeouts, network timeouts, connection-level syscall
// errors, and provider statuses 5xx, 429, and 408. Context cancellation and
// anything else is fatal.
func IsRetryable(err error) bool {
	return retryableWith(err, defaultRetryableStatuses)
}

// ClassifierFor returns a classification predicate that treats the given
// provider statuses as retryable in addition to transport-level failures
// and 5xx statuses. An empty status list falls back to the default set
// (408 and 429).
func ClassifierFor(statuses []int) func(error) bool {
	if len(statuses) == 0 {
		return IsRetryable
	}
	set := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return func(err error) bool {
		return retryableWith(err, set)
	}
}

var defaultRetryableStatuses = map[int]struct{}{
	408: {},
	429: {},
}

func retryableWith(err error, statuses map[int]struct{}) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Per-attempt timeouts are retryable by definition.
	if errors.Is(err, timeout.ErrTimeout) {
		return true
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		// 5xx server errors are always transient.
		if provErr.Status >= 500 && provErr.Status < 600 {
			return true
		}
		if _, ok := statuses[provErr.Status]; ok {
			return true
		}
	}

	return false
}
