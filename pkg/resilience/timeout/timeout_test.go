package timeout

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_CompletesWithinDeadline(t *testing.T) {
	got, err := Do(context.Background(), 100*time.Millisecond, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if got != "ok" {
		t.Errorf("expected %q, got %q", "ok", got)
	}
}

func TestDo_PropagatesOperationError(t *testing.T) {
	opErr := errors.New("boom")

	_, err := Do(context.Background(), 100*time.Millisecond, func(ctx context.Context) (int, error) {
		return 0, opErr
	})

	if !errors.Is(err, opErr) {
		t.Errorf("expected operation error, got %v", err)
	}
}

func TestDo_DeadlineExceeded(t *testing.T) {
	started := make(chan struct{})

	got, err := Do(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "late", ctx.Err()
	})

	<-started
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if got != "" {
		t.Errorf("expected zero value on timeout, got %q", got)
	}
}

func TestDo_OperationSeesCanceledContext(t *testing.T) {
	canceled := make(chan struct{})

	_, err := Do(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(canceled)
		return 0, ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	select {
	case <-canceled:
		// Operation observed cancellation.
	case <-time.After(time.Second):
		t.Error("operation never observed context cancellation")
	}
}

func TestDo_ParentCancellationWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("parent cancellation should not be reported as a timeout")
	}
}

func TestDo_ZeroDurationDisablesDeadline(t *testing.T) {
	got, err := Do(context.Background(), 0, func(ctx context.Context) (string, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Error("expected no deadline on context")
		}
		return "direct", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if got != "direct" {
		t.Errorf("expected %q, got %q", "direct", got)
	}
}
