package config

import (
	"fmt"
	"time"
)

// ValidatePositiveDuration validates that a duration is positive (greater than zero).
//
// This is commonly used for timeout, delay, and TTL validation where a
// non-zero, positive value is required.
//
// Example:
//
//	if err := ValidatePositiveDuration(baseDelay); err != nil {
//	    return fmt.Errorf("invalid base delay: %w", err)
//	}
func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}

// ValidateDurationRange validates that a duration is within a specified range.
//
// The duration must be >= min and <= max (inclusive).
//
// Example:
//
//	// Validate the backoff cap is between the base delay and 10 minutes
//	if err := ValidateDurationRange(capDelay, baseDelay, 10*time.Minute); err != nil {
//	    return fmt.Errorf("invalid backoff cap: %w", err)
//	}
func ValidateDurationRange(d, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}

	if d < min {
		return fmt.Errorf("duration %v is below minimum %v", d, min)
	}

	if d > max {
		return fmt.Errorf("duration %v exceeds maximum %v", d, max)
	}

	return nil
}

// ValidateNonNegativeDuration validates that a duration is non-negative (>= 0).
//
// This is useful for optional timeouts or delays where zero disables the
// feature but negative values are not acceptable.
//
// Example:
//
//	if err := ValidateNonNegativeDuration(perAttemptTimeout); err != nil {
//	    return fmt.Errorf("invalid per-attempt timeout: %w", err)
//	}
func ValidateNonNegativeDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("duration must be non-negative, got %v", d)
	}
	return nil
}
