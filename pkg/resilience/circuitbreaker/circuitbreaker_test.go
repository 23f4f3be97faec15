package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestNew(t *testing.T) {
	cb := New(Config{
		Name:             "test-target",
		FailureThreshold: 3,
		ResetTimeout:     20 * time.Second,
	})

	if cb == nil {
		t.Fatal("expected circuit breaker, got nil")
	}
	if cb.Name() != "test-target" {
		t.Errorf("expected name='test-target', got %q", cb.Name())
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected initial state=Closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{
		Name:             "test-target",
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
	})

	testErr := errors.New("downstream failure")
	for i := 0; i < 5; i++ {
		err := cb.Execute(func() error { return testErr })
		if !errors.Is(err, testErr) {
			t.Fatalf("failure %d: expected downstream error, got %v", i+1, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected state=Open after threshold failures, got %v", cb.State())
	}

	// Sixth call fails fast with zero underlying invocations.
	invocations := 0
	err := cb.Execute(func() error {
		invocations++
		return nil
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if invocations != 0 {
		t.Errorf("expected 0 invocations while open, got %d", invocations)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{
		Name:             "test-target",
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	})

	testErr := errors.New("downstream failure")

	// Two failures, then a success, then two more failures: the success
	// resets the consecutive count so the circuit must stay closed.
	_ = cb.Execute(func() error { return testErr })
	_ = cb.Execute(func() error { return testErr })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return testErr })
	_ = cb.Execute(func() error { return testErr })

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenTrialSucceeds(t *testing.T) {
	cb := New(Config{
		Name:             "test-target",
		FailureThreshold: 2,
		ResetTimeout:     30 * time.Millisecond,
	})

	testErr := errors.New("downstream failure")
	_ = cb.Execute(func() error { return testErr })
	_ = cb.Execute(func() error { return testErr })

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected state=Open, got %v", cb.State())
	}

	time.Sleep(50 * time.Millisecond)

	// The next admission check moves the circuit to half-open and admits
	// a single trial; its success closes the circuit.
	err := cb.Execute(func() error { return nil })
	if err != nil {
		t.Errorf("expected trial to be admitted, got %v", err)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed after successful trial, got %v", cb.State())
	}

	// Failure count was reset on close: one new failure must not re-open.
	_ = cb.Execute(func() error { return testErr })
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed after single failure, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenTrialFails(t *testing.T) {
	cb := New(Config{
		Name:             "test-target",
		FailureThreshold: 2,
		ResetTimeout:     30 * time.Millisecond,
	})

	testErr := errors.New("downstream failure")
	_ = cb.Execute(func() error { return testErr })
	_ = cb.Execute(func() error { return testErr })

	time.Sleep(50 * time.Millisecond)

	err := cb.Execute(func() error { return testErr })
	if !errors.Is(err, testErr) {
		t.Errorf("expected trial to run and fail, got %v", err)
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected state=Open after failed trial, got %v", cb.State())
	}

	// Still open: fail fast before the reset timeout elapses again.
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenAdmitsSingleTrial(t *testing.T) {
	cb := New(Config{
		Name:             "test-target",
		FailureThreshold: 1,
		ResetTimeout:     30 * time.Millisecond,
	})

	_ = cb.Execute(func() error { return errors.New("downstream failure") })
	time.Sleep(50 * time.Millisecond)

	// First Allow takes the only half-open slot.
	done, err := cb.Allow()
	if err != nil {
		t.Fatalf("expected trial admission, got %v", err)
	}

	// A concurrent second caller is rejected until the trial resolves.
	if _, err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected second trial to be rejected, got %v", err)
	}

	done(true)
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed after trial success, got %v", cb.State())
	}
}

func TestCircuitBreaker_AppliesDefaults(t *testing.T) {
	cb := New(Config{Name: "defaults"})

	testErr := errors.New("downstream failure")
	for i := 0; i < 4; i++ {
		_ = cb.Execute(func() error { return testErr })
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed before default threshold, got %v", cb.State())
	}

	_ = cb.Execute(func() error { return testErr })
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("expected state=Open at default threshold of 5, got %v", cb.State())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("api")

	if cfg.Name != "api" {
		t.Errorf("expected Name='api', got %q", cfg.Name)
	}
	if cfg.FailureThreshold != 5 {
		t.Errorf("expected FailureThreshold=5, got %d", cfg.FailureThreshold)
	}
	if cfg.ResetTimeout != 30*time.Second {
		t.Errorf("expected ResetTimeout=30s, got %v", cfg.ResetTimeout)
	}
}
