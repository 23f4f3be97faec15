// Package timeout bounds the duration of a single call attempt.
// It enforces a hard deadline on one invocation of an operation; retry
// policy is the caller's concern.
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout indicates that an attempt did not complete within its deadline.
var ErrTimeout = errors.New("attempt timed out")

// Do runs op with a hard deadline of d.
//
// The operation receives a context derived from ctx that is canceled when
// the deadline passes, so well-behaved operations can stop early.
// Cancellation is best-effort: if the operation ignores its context, Do
// still returns ErrTimeout and the goroutine drains into a buffered
// channel, so it never leaks a blocked send.
//
// A non-positive d disables the deadline and runs op directly.
// If the parent context is canceled before the deadline fires, the
// context error is returned instead of ErrTimeout.
func Do[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if d <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	// Buffered so the operation goroutine can always complete its send,
	// even after the caller has stopped waiting.
	done := make(chan outcome, 1)

	go func() {
		v, err := op(attemptCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		// An operation that surfaces the attempt deadline itself is still a
		// timeout from the caller's perspective.
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return out.value, out.err
	case <-attemptCtx.Done():
		// Distinguish parent cancellation from the per-attempt deadline.
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
	}
}
