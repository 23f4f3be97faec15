package call

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"reliacall/pkg/clock"
	"reliacall/pkg/config"
	"reliacall/pkg/resilience/retry"
)

// Config holds every tunable of the orchestrated call pipeline.
//
// The zero value is not usable; start from DefaultConfig, FromEnv or
// LoadConfigFile and override fields as needed.
type Config struct {
	// Name identifies the protected target in logs, metrics and traces.
	Name string

	// MaxAttempts is the total number of underlying invocations per call,
	// including the first.
	MaxAttempts int

	// BaseDelay is the backoff delay ceiling before the first retry.
	BaseDelay time.Duration

	// CapDelay bounds the exponential backoff growth.
	CapDelay time.Duration

	// PerAttemptTimeout bounds each underlying invocation. Zero disables
	// the per-attempt deadline.
	PerAttemptTimeout time.Duration

	// RetryableStatuses replaces the default retryable provider status
	// set (408, 429). 5xx statuses are always retryable. Nil keeps the
	// defaults.
	RetryableStatuses []int

	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the circuit.
	BreakerFailureThreshold uint32

	// BreakerResetTimeout is how long the circuit stays open before a
	// half-open trial is admitted.
	BreakerResetTimeout time.Duration

	// BulkheadCapacity is the maximum number of concurrent underlying
	// invocations.
	BulkheadCapacity int

	// RatePerSecond is the steady refill rate of each rate-limit bucket.
	RatePerSecond float64

	// RateCapacity is the burst size of each rate-limit bucket.
	RateCapacity int

	// MaxRateKeys bounds the number of tracked rate-limit keys.
	MaxRateKeys int

	// MaxInflight is the load-shedding ceiling on concurrently admitted
	// calls.
	MaxInflight int

	// ReservedForHigh is the portion of MaxInflight reserved for
	// high-priority requests.
	ReservedForHigh int

	// CacheTTL is how long a successful value stays servable as a
	// degraded response. Zero disables cache writes.
	CacheTTL time.Duration

	// MaxCacheEntries bounds the degradation cache size.
	MaxCacheEntries int

	// Clock supplies time for rate limiting and caching. Nil uses the
	// system clock.
	Clock clock.Clock

	// Metrics receives observability events. Nil uses NoOpMetrics.
	Metrics Metrics

	// Sleep waits between retry attempts. Nil uses a context-aware
	// real-time sleeper. Tests inject a recording sleeper here.
	Sleep retry.Sleeper
}

// DefaultConfig returns the production defaults for a target with the
// given name.
func DefaultConfig(name string) Config {
	return Config{
		Name:                    name,
		MaxAttempts:             5,
		BaseDelay:               500 * time.Millisecond,
		CapDelay:                8 * time.Second,
		PerAttemptTimeout:       10 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerResetTimeout:     30 * time.Second,
		BulkheadCapacity:        10,
		RatePerSecond:           10,
		RateCapacity:            20,
		MaxRateKeys:             10000,
		MaxInflight:             100,
		ReservedForHigh:         0,
		CacheTTL:                5 * time.Minute,
		MaxCacheEntries:         1024,
	}
}

// FromEnv builds a Config from RELIACALL_* environment variables,
// falling back to DefaultConfig for anything unset.
//
// Environment variables:
//   - RELIACALL_NAME: target name (default "upstream")
//   - RELIACALL_MAX_ATTEMPTS: total attempts per call (default 5)
//   - RELIACALL_BASE_DELAY: first backoff ceiling (default 500ms)
//   - RELIACALL_CAP_DELAY: backoff growth cap (default 8s)
//   - RELIACALL_PER_ATTEMPT_TIMEOUT: per-invocation deadline (default 10s)
//   - RELIACALL_RETRYABLE_STATUSES: comma-separated status codes (default 408,429)
//   - RELIACALL_BREAKER_FAILURE_THRESHOLD: consecutive failures to open (default 5)
//   - RELIACALL_BREAKER_RESET_TIMEOUT: open-state hold time (default 30s)
//   - RELIACALL_BULKHEAD_CAPACITY: concurrent invocation limit (default 10)
//   - RELIACALL_RATE_PER_SECOND: bucket refill rate (default 10)
//   - RELIACALL_RATE_CAPACITY: bucket burst size (default 20)
//   - RELIACALL_MAX_RATE_KEYS: tracked key bound (default 10000)
//   - RELIACALL_MAX_INFLIGHT: load-shedding ceiling (default 100)
//   - RELIACALL_RESERVED_FOR_HIGH: high-priority reservation (default 0)
//   - RELIACALL_CACHE_TTL: degraded-value lifetime (default 5m)
//   - RELIACALL_MAX_CACHE_ENTRIES: cache size bound (default 1024)
func FromEnv() Config {
	def := DefaultConfig(config.GetEnvString("RELIACALL_NAME", "upstream"))
	def.MaxAttempts = config.GetEnvInt("RELIACALL_MAX_ATTEMPTS", def.MaxAttempts)
	def.BaseDelay = config.GetEnvDuration("RELIACALL_BASE_DELAY", def.BaseDelay)
	def.CapDelay = config.GetEnvDuration("RELIACALL_CAP_DELAY", def.CapDelay)
	def.PerAttemptTimeout = config.GetEnvDuration("RELIACALL_PER_ATTEMPT_TIMEOUT", def.PerAttemptTimeout)
	def.RetryableStatuses = config.GetEnvIntList("RELIACALL_RETRYABLE_STATUSES", nil)
	def.BreakerFailureThreshold = uint32(config.GetEnvInt("RELIACALL_BREAKER_FAILURE_THRESHOLD", int(def.BreakerFailureThreshold))) // #nosec G115 -- range checked by Validate
	def.BreakerResetTimeout = config.GetEnvDuration("RELIACALL_BREAKER_RESET_TIMEOUT", def.BreakerResetTimeout)
	def.BulkheadCapacity = config.GetEnvInt("RELIACALL_BULKHEAD_CAPACITY", def.BulkheadCapacity)
	def.RatePerSecond = config.GetEnvFloat64("RELIACALL_RATE_PER_SECOND", def.RatePerSecond)
	def.RateCapacity = config.GetEnvInt("RELIACALL_RATE_CAPACITY", def.RateCapacity)
	def.MaxRateKeys = config.GetEnvInt("RELIACALL_MAX_RATE_KEYS", def.MaxRateKeys)
	def.MaxInflight = config.GetEnvInt("RELIACALL_MAX_INFLIGHT", def.MaxInflight)
	def.ReservedForHigh = config.GetEnvInt("RELIACALL_RESERVED_FOR_HIGH", def.ReservedForHigh)
	def.CacheTTL = config.GetEnvDuration("RELIACALL_CACHE_TTL", def.CacheTTL)
	def.MaxCacheEntries = config.GetEnvInt("RELIACALL_MAX_CACHE_ENTRIES", def.MaxCacheEntries)
	return def
}

// fileConfig is the YAML shape of a reliability config file. Durations
// are strings parseable by time.ParseDuration.
type fileConfig struct {
	Reliability struct {
		Name              string `yaml:"name"`
		MaxAttempts       int    `yaml:"max_attempts"`
		BaseDelay         string `yaml:"base_delay"`
		CapDelay          string `yaml:"cap_delay"`
		PerAttemptTimeout string `yaml:"per_attempt_timeout"`
		RetryableStatuses []int  `yaml:"retryable_statuses"`
		Breaker           struct {
			FailureThreshold uint32 `yaml:"failure_threshold"`
			ResetTimeout     string `yaml:"reset_timeout"`
		} `yaml:"breaker"`
		BulkheadCapacity int `yaml:"bulkhead_capacity"`
		RateLimit        struct {
			PerSecond float64 `yaml:"per_second"`
			Capacity  int     `yaml:"capacity"`
			MaxKeys   int     `yaml:"max_keys"`
		} `yaml:"rate_limit"`
		Shedding struct {
			MaxInflight     int `yaml:"max_inflight"`
			ReservedForHigh int `yaml:"reserved_for_high"`
		} `yaml:"shedding"`
		Cache struct {
			TTL        string `yaml:"ttl"`
			MaxEntries int    `yaml:"max_entries"`
		} `yaml:"cache"`
	} `yaml:"reliability"`
}

// LoadConfigFile loads a Config from a YAML file, overlaying the file's
// values on DefaultConfig. Unset fields keep their defaults.
// The path parameter is expected to come from a trusted source
// (command-line argument or hardcoded default).
func LoadConfigFile(path string) (Config, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	r := fc.Reliability
	cfg := DefaultConfig(r.Name)
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if err := overlayDuration(&cfg.BaseDelay, r.BaseDelay, "base_delay"); err != nil {
		return Config{}, err
	}
	if err := overlayDuration(&cfg.CapDelay, r.CapDelay, "cap_delay"); err != nil {
		return Config{}, err
	}
	if err := overlayDuration(&cfg.PerAttemptTimeout, r.PerAttemptTimeout, "per_attempt_timeout"); err != nil {
		return Config{}, err
	}
	if len(r.RetryableStatuses) > 0 {
		cfg.RetryableStatuses = r.RetryableStatuses
	}
	if r.Breaker.FailureThreshold > 0 {
		cfg.BreakerFailureThreshold = r.Breaker.FailureThreshold
	}
	if err := overlayDuration(&cfg.BreakerResetTimeout, r.Breaker.ResetTimeout, "breaker.reset_timeout"); err != nil {
		return Config{}, err
	}
	if r.BulkheadCapacity > 0 {
		cfg.BulkheadCapacity = r.BulkheadCapacity
	}
	if r.RateLimit.PerSecond > 0 {
		cfg.RatePerSecond = r.RateLimit.PerSecond
	}
	if r.RateLimit.Capacity > 0 {
		cfg.RateCapacity = r.RateLimit.Capacity
	}
	if r.RateLimit.MaxKeys > 0 {
		cfg.MaxRateKeys = r.RateLimit.MaxKeys
	}
	if r.Shedding.MaxInflight > 0 {
		cfg.MaxInflight = r.Shedding.MaxInflight
	}
	if r.Shedding.ReservedForHigh > 0 {
		cfg.ReservedForHigh = r.Shedding.ReservedForHigh
	}
	if err := overlayDuration(&cfg.CacheTTL, r.Cache.TTL, "cache.ttl"); err != nil {
		return Config{}, err
	}
	if r.Cache.MaxEntries > 0 {
		cfg.MaxCacheEntries = r.Cache.MaxEntries
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func overlayDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	*dst = d
	return nil
}

// Validate reports the first invalid field, or nil.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if err := config.ValidatePositiveDuration(c.BaseDelay); err != nil {
		return fmt.Errorf("invalid base delay: %w", err)
	}
	if err := config.ValidateDurationRange(c.CapDelay, c.BaseDelay, 10*time.Minute); err != nil {
		return fmt.Errorf("invalid cap delay: %w", err)
	}
	if err := config.ValidateNonNegativeDuration(c.PerAttemptTimeout); err != nil {
		return fmt.Errorf("invalid per-attempt timeout: %w", err)
	}
	if c.BreakerFailureThreshold < 1 {
		return fmt.Errorf("breaker failure threshold must be at least 1")
	}
	if err := config.ValidatePositiveDuration(c.BreakerResetTimeout); err != nil {
		return fmt.Errorf("invalid breaker reset timeout: %w", err)
	}
	if c.BulkheadCapacity < 1 {
		return fmt.Errorf("bulkhead capacity must be at least 1, got %d", c.BulkheadCapacity)
	}
	if c.RatePerSecond <= 0 {
		return fmt.Errorf("rate per second must be positive, got %v", c.RatePerSecond)
	}
	if c.RateCapacity < 1 {
		return fmt.Errorf("rate capacity must be at least 1, got %d", c.RateCapacity)
	}
	if c.MaxInflight < 1 {
		return fmt.Errorf("max inflight must be at least 1, got %d", c.MaxInflight)
	}
	if c.ReservedForHigh < 0 || c.ReservedForHigh >= c.MaxInflight {
		return fmt.Errorf("reserved for high must be in [0, max inflight), got %d", c.ReservedForHigh)
	}
	if err := config.ValidateNonNegativeDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("invalid cache TTL: %w", err)
	}
	return nil
}
