package domain

import (
	"fmt"
	"math"
	"time"
)

// RetryPolicy is an immutable retry configuration. MaxRetries counts retries
// after the first attempt, so a policy allows MaxRetries+1 invocations total.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryPolicy provides sensible defaults for ordinary conditions.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// AggressiveRetryPolicy retries more, with shorter waits. Suited to
// interactive fetches on a healthy link.
func AggressiveRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        5,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 1.5,
		Jitter:            true,
	}
}

// ConservativeRetryPolicy retries little, with long waits. Suited to
// background work on a degraded link.
func ConservativeRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         2 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 3.0,
		Jitter:            false,
	}
}

// PolicyPreset returns the named preset ("default", "aggressive",
// "conservative").
func PolicyPreset(name string) (RetryPolicy, error) {
	switch name {
	case "", "default":
		return DefaultRetryPolicy(), nil
	case "aggressive":
		return AggressiveRetryPolicy(), nil
	case "conservative":
		return ConservativeRetryPolicy(), nil
	default:
		return RetryPolicy{}, fmt.Errorf("unknown retry preset %q", name)
	}
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be > 0, got %v", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay %v must be >= base delay %v", p.MaxDelay, p.BaseDelay)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1, got %v", p.BackoffMultiplier)
	}
	return nil
}

// Backoff computes the deterministic delay before the retry following the
// given zero-based attempt: min(base * multiplier^attempt, max). Jitter is
// applied separately by the executor.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}
