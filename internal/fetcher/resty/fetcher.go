// Package restyfetcher implements fetcher.Doer using go-resty.
package restyfetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/fetcher"
)

// Config controls the resty client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Doer performs single GET attempts with a resty client. Resty's own retry
// support stays disabled; fetcher.Fetcher owns the retry policy.
type Doer struct {
	client *resty.Client
}

// New builds a Doer.
func New(cfg Config) *Doer {
	client := resty.New()
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = fetcher.DefaultUserAgent
	}
	client.SetHeader("User-Agent", userAgent)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	return &Doer{client: client}
}

// Do executes a single HTTP GET.
func (d *Doer) Do(ctx context.Context, url string) (fetcher.Response, error) {
	res, err := d.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return fetcher.Response{}, fmt.Errorf("resty get %s: %w", url, err)
	}
	finalURL := url
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}
	return fetcher.Response{
		URL:        finalURL,
		StatusCode: res.StatusCode(),
		Headers:    res.Header().Clone(),
		Body:       res.Body(),
		Duration:   res.Time(),
	}, nil
}
