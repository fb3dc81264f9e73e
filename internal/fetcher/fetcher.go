// Package fetcher issues HTTP GETs with bounded retries and exponential
// backoff. Transports implement Doer; see the colly and resty subpackages.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultUserAgent is a browser-like identification string.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Response is the raw result of a GET.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Doer performs exactly one GET attempt. Connection failures are returned as
// errors; any HTTP status, including 4xx/5xx, is returned as a Response.
type Doer interface {
	Do(ctx context.Context, url string) (Response, error)
}

// Getter is what extractors depend on.
type Getter interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// Limiter paces requests; Wait blocks until url may be fetched.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep SleepFunc) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithLimiter paces every attempt, retries included.
func WithLimiter(l Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// Fetcher wraps a Doer with the retry policy.
type Fetcher struct {
	doer    Doer
	policy  RetryPolicy
	sleep   SleepFunc
	limiter Limiter
	logger  *zap.Logger
}

// New builds a Fetcher.
func New(doer Doer, policy RetryPolicy, logger *zap.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		doer:   doer,
		policy: policy,
		sleep:  sleepContext,
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs url, retrying transient failures. Every returned error is a
// *TerminalError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Response, error) {
	var lastErr error
	attempt := 1
	for ; ; attempt++ {
		resp, err := f.attempt(ctx, url)
		if err == nil {
			requestsTotal.WithLabelValues("ok").Inc()
			f.logger.Debug("fetched page",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			return resp, nil
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			requestsTotal.WithLabelValues("terminal").Inc()
			return Response{}, &TerminalError{URL: url, Attempts: attempt, Err: err}
		}
		requestsTotal.WithLabelValues("transient").Inc()
		lastErr = err

		if !f.policy.ShouldRetry(attempt) {
			break
		}
		wait := f.policy.Backoff(attempt)
		retriesTotal.Inc()
		f.logger.Warn("transient fetch failure, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
		if err := f.sleep(ctx, wait); err != nil {
			return Response{}, &TerminalError{URL: url, Attempts: attempt, Err: err}
		}
	}
	return Response{}, &TerminalError{URL: url, Attempts: attempt, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("fetch canceled: %w", err)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return Response{}, err
		}
	}
	resp, err := f.doer.Do(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, fmt.Errorf("fetch canceled: %w", ctxErr)
		}
		return Response{}, &TransientError{URL: url, Err: err}
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case retryableStatus(resp.StatusCode):
		return Response{}, &TransientError{URL: url, Err: &StatusError{URL: url, StatusCode: resp.StatusCode}}
	default:
		return Response{}, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
