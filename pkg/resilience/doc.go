// Package resilience groups the fault tolerance building blocks used to
// protect calls to unreliable remote providers. Each subpackage implements
// one pattern; the call subpackage composes them into a single pipeline.
//
// The package supports:
//   - Circuit breaking with consecutive-failure tripping and half-open trials
//   - Bounded retry with exponential backoff and full jitter
//   - Per-attempt timeouts independent of the caller's deadline
//   - Bulkhead isolation of concurrent in-flight work
//   - Token bucket rate limiting per caller key
//   - Inflight-based load shedding with priority reservation
//   - Serving last-known-good values when a target stays unhealthy
//
// Usage Example:
//
//	caller, err := call.New(call.DefaultConfig("payments"))
//	if err != nil {
//	    return err
//	}
//	res, err := call.Do(ctx, caller, call.Request[Quote]{
//	    Key:      tenantID,
//	    CacheKey: "quote/" + symbol,
//	    Op: func(ctx context.Context) (Quote, error) {
//	        return client.FetchQuote(ctx, symbol)
//	    },
//	})
package resilience
