// Package circuitbreaker fails fast when a downstream target is unhealthy.
// It wraps github.com/sony/gobreaker with a consecutive-failure trip policy
// and a two-step admission API, so callers can report the outcome of work
// done outside the breaker's own goroutine.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen indicates the breaker rejected the call before any attempt
// was made. It also covers the half-open state when a trial is already in
// flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the breaker name for logging and metrics.
	// One breaker per logical downstream target; breakers are never shared
	// across unrelated dependencies.
	Name string

	// FailureThreshold is the number of consecutive failures in the closed
	// state required to open the circuit.
	FailureThreshold uint32

	// ResetTimeout is how long the circuit stays open before the next
	// admission check moves it to half-open. The transition is evaluated
	// lazily, not by a background timer.
	ResetTimeout time.Duration

	// OnStateChange, when set, is invoked after every state transition in
	// addition to the built-in logging. Used to feed metrics.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns a default configuration for the named target.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker tracks failures for one downstream target.
//
// In the half-open state exactly one trial call is admitted; concurrent
// callers are rejected with ErrCircuitOpen until the trial resolves.
type CircuitBreaker struct {
	breaker *gobreaker.TwoStepCircuitBreaker
	name    string
}

// New creates a circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name: cfg.Name,
		// Exactly one half-open trial at a time.
		MaxRequests: 1,
		// Interval 0: closed-state counts persist until a success or a
		// state change clears them.
		Interval: 0,
		Timeout:  cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewTwoStepCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Allow admits or rejects a call before it runs.
//
// On admission it returns a done callback that must be invoked exactly once
// with the call's outcome. On rejection it returns ErrCircuitOpen and the
// underlying operation must not be invoked.
func (cb *CircuitBreaker) Allow() (done func(success bool), err error) {
	done, err = cb.breaker.Allow()
	if err != nil {
		// gobreaker distinguishes open from too-many-trials; both mean
		// fail-fast for the caller.
		return nil, fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
	}
	return done, nil
}

// Execute runs fn under breaker admission and reports its outcome.
// If the circuit is open it returns ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	done, err := cb.Allow()
	if err != nil {
		return err
	}
	err = fn()
	done(err == nil)
	return err
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
