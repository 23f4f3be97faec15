// Package call orchestrates protected invocations of unreliable remote
// operations. One Caller guards one downstream target with a fixed pipeline
// of load shedding, per-key rate limiting, circuit breaking, bulkhead
// isolation, and timed retries, degrading to cached or fallback values when
// the target stays unhealthy.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"reliacall/pkg/clock"
	"reliacall/pkg/resilience/bulkhead"
	"reliacall/pkg/resilience/cache"
	"reliacall/pkg/resilience/circuitbreaker"
	"reliacall/pkg/resilience/ratelimit"
	"reliacall/pkg/resilience/retry"
	"reliacall/pkg/resilience/shed"
)

// defaultRateKey shares one bucket across requests that carry no key.
const defaultRateKey = "default"

// Caller guards one downstream target. Construct it once and share it;
// all methods are safe for concurrent use.
type Caller struct {
	cfg      Config
	shedder  *shed.LoadShedder
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.CircuitBreaker
	pool     *bulkhead.Bulkhead
	cache    *cache.DegradationCache
	metrics  Metrics
	tracer   trace.Tracer
	clock    clock.Clock
	retryCfg retry.Config
}

// New creates a Caller from cfg. Invalid fields are reported by
// cfg.Validate; New applies defaults only for the nil Clock, Metrics and
// Sleep fields.
func New(cfg Config) (*Caller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("call config: %w", err)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             cfg.Name,
		FailureThreshold: cfg.BreakerFailureThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.RecordBreakerState(name, to.String())
		},
	})

	return &Caller{
		cfg:     cfg,
		shedder: shed.New(cfg.MaxInflight, cfg.ReservedForHigh),
		limiter: ratelimit.New(ratelimit.Config{
			RatePerSecond: cfg.RatePerSecond,
			Capacity:      cfg.RateCapacity,
			MaxKeys:       cfg.MaxRateKeys,
			Clock:         clk,
		}),
		breaker: breaker,
		pool:    bulkhead.New(cfg.Name, cfg.BulkheadCapacity),
		cache: cache.New(cache.Config{
			MaxEntries: cfg.MaxCacheEntries,
			Clock:      clk,
		}),
		metrics: metrics,
		tracer:  otel.Tracer("reliacall"),
		clock:   clk,
		retryCfg: retry.Config{
			MaxAttempts:       cfg.MaxAttempts,
			BaseDelay:         cfg.BaseDelay,
			CapDelay:          cfg.CapDelay,
			PerAttemptTimeout: cfg.PerAttemptTimeout,
			Classify:          retry.ClassifierFor(cfg.RetryableStatuses),
			Sleep:             cfg.Sleep,
			Clock:             clk,
		},
	}, nil
}

// Name returns the protected target's name.
func (c *Caller) Name() string {
	return c.cfg.Name
}

// BreakerState returns the current circuit state for observability.
func (c *Caller) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Inflight returns the number of currently admitted calls.
func (c *Caller) Inflight() int {
	return c.shedder.Inflight()
}

// Do runs one protected call through c's pipeline.
//
// Admission checks run in a fixed order: load shedding, rate limiting by
// req.Key, circuit state, bulkhead capacity. An admitted call then runs
// req.Op under bounded retries with per-attempt timeouts, and its outcome
// is reported to the circuit breaker exactly once.
//
// On any terminal failure Do tries to degrade: a non-expired cache entry
// under req.CacheKey is served as ModeDegradedCache, otherwise
// req.Fallback (when set) as ModeDegradedFallback. Only when neither
// exists does Do return a non-nil error, classifiable with Reason.
func Do[T any](ctx context.Context, c *Caller, req Request[T]) (Result[T], error) {
	res := Result[T]{CallID: uuid.NewString(), Mode: ModeFresh}
	if req.Op == nil {
		res.Err = errors.New("operation is required")
		return res, res.Err
	}

	ctx, span := c.tracer.Start(ctx, "reliacall.Do", trace.WithAttributes(
		attribute.String("call.id", res.CallID),
		attribute.String("call.target", c.cfg.Name),
		attribute.String("call.key", req.Key),
		attribute.Bool("call.high_priority", req.Priority == shed.PriorityHigh),
	))
	defer span.End()

	start := c.clock.Now()
	defer func() {
		c.metrics.RecordDuration(c.clock.Now().Sub(start))
	}()

	if !c.shedder.TryEnter(req.Priority) {
		return reject(c, span, req, &res, ReasonShed,
			fmt.Errorf("%s: %w", c.cfg.Name, shed.ErrShed))
	}
	defer func() {
		c.shedder.Exit()
		c.metrics.SetInflight(c.shedder.Inflight())
	}()
	c.metrics.SetInflight(c.shedder.Inflight())

	key := req.Key
	if key == "" {
		key = defaultRateKey
	}
	if !c.limiter.Allow(key) {
		return reject(c, span, req, &res, ReasonRateLimited,
			fmt.Errorf("key %q: %w", key, ratelimit.ErrRateLimited))
	}

	// Open-state rejection happens before any slot is taken. State() also
	// performs the lazy open-to-half-open transition once the reset
	// timeout has elapsed.
	if c.breaker.IsOpen() {
		return reject(c, span, req, &res, ReasonCircuitOpen,
			fmt.Errorf("%s: %w", c.cfg.Name, circuitbreaker.ErrCircuitOpen))
	}

	slot, err := c.pool.Acquire()
	if err != nil {
		return reject(c, span, req, &res, ReasonBulkheadFull, err)
	}
	defer slot.Release()

	// Admission is re-checked here so the half-open trial slot is only
	// consumed by a call that is actually about to run.
	done, err := c.breaker.Allow()
	if err != nil {
		return reject(c, span, req, &res, ReasonCircuitOpen, err)
	}

	value, attempts, err := retry.Do(ctx, c.retryCfg, req.Op)

	// The breaker tracks target health. A call aborted purely by the
	// caller's own cancellation says nothing about the target, and the
	// two-step API has no neutral outcome, so it is reported as a success
	// lest mass client cancellations open a healthy circuit. Any observed
	// provider failure on this call still counts against the breaker.
	done(err == nil || (ctx.Err() != nil && !providerFailure(attempts)))

	res.Attempts = attempts
	c.metrics.RecordAttempts(len(attempts))
	span.SetAttributes(attribute.Int("call.attempts", len(attempts)))

	if err == nil {
		if req.CacheKey != "" && c.cfg.CacheTTL > 0 {
			c.cache.Set(req.CacheKey, value, c.cfg.CacheTTL)
		}
		res.Value = value
		c.metrics.RecordCall(string(ModeFresh))
		span.SetAttributes(attribute.String("call.mode", string(ModeFresh)))
		return res, nil
	}

	// Cancellation is terminal: the caller has gone away, so no degraded
	// value is served and the cancellation propagates once the guards
	// above have released.
	if ctx.Err() != nil {
		return fail(c, span, &res, err)
	}

	return degrade(c, span, req, &res, err)
}

// providerFailure reports whether any attempt failed for a reason other
// than the caller's own cancellation.
func providerFailure(attempts []retry.Attempt) bool {
	for _, a := range attempts {
		if a.Err == nil {
			continue
		}
		if errors.Is(a.Err, context.Canceled) || errors.Is(a.Err, context.DeadlineExceeded) {
			continue
		}
		return true
	}
	return false
}

// reject finalizes a fast-path rejection, then falls through to
// degradation so rejected requests can still serve a stale value.
func reject[T any](c *Caller, span trace.Span, req Request[T], res *Result[T], reason string, cause error) (Result[T], error) {
	c.metrics.RecordRejection(reason)
	slog.Warn("call rejected",
		slog.String("call_id", res.CallID),
		slog.String("target", c.cfg.Name),
		slog.String("reason", reason))
	return degrade(c, span, req, res, cause)
}

// degrade serves a cached or fallback value for a failed call, or returns
// the terminal error when neither is available.
func degrade[T any](c *Caller, span trace.Span, req Request[T], res *Result[T], cause error) (Result[T], error) {
	if req.CacheKey != "" {
		v, ok := c.cache.Get(req.CacheKey)
		c.metrics.RecordCacheLookup(ok)
		if ok {
			if value, isT := v.(T); isT {
				res.Mode = ModeDegradedCache
				res.Value = value
				c.metrics.RecordCall(string(ModeDegradedCache))
				span.SetAttributes(attribute.String("call.mode", string(ModeDegradedCache)))
				slog.Warn("serving degraded response",
					slog.String("call_id", res.CallID),
					slog.String("target", c.cfg.Name),
					slog.String("mode", string(ModeDegradedCache)),
					slog.String("reason", Reason(cause)))
				return *res, nil
			}
		}
	}

	if req.Fallback != nil {
		res.Mode = ModeDegradedFallback
		res.Value = req.Fallback()
		c.metrics.RecordCall(string(ModeDegradedFallback))
		span.SetAttributes(attribute.String("call.mode", string(ModeDegradedFallback)))
		slog.Warn("serving degraded response",
			slog.String("call_id", res.CallID),
			slog.String("target", c.cfg.Name),
			slog.String("mode", string(ModeDegradedFallback)),
			slog.String("reason", Reason(cause)))
		return *res, nil
	}

	return fail(c, span, res, cause)
}

// fail finalizes a call with its terminal error.
func fail[T any](c *Caller, span trace.Span, res *Result[T], cause error) (Result[T], error) {
	res.Err = cause
	c.metrics.RecordCall("error")
	span.RecordError(cause)
	span.SetStatus(codes.Error, Reason(cause))
	slog.Error("call failed",
		slog.String("call_id", res.CallID),
		slog.String("target", c.cfg.Name),
		slog.String("reason", Reason(cause)),
		slog.Any("error", cause))
	return *res, cause
}
