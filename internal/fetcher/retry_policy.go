package fetcher

import (
	"math"
	"time"
)

// Retry defaults: ten attempts, 0.3s doubling backoff.
const (
	DefaultMaxAttempts = 10
	DefaultBaseDelay   = 300 * time.Millisecond
)

// RetryPolicy bounds attempts and computes exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps a single wait; zero means uncapped.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the standard policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// ShouldRetry reports whether another attempt may follow attempt (1-based).
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.attempts()
}

// Backoff returns the wait before the n-th retry (1-based): base * 2^(n-1).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(retry-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}
