package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound marks a 404 response. It is never retried.
var ErrNotFound = errors.New("page not found")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// TransientError is a failure worth retrying: a connection error or a
// 500/502/504 response.
type TransientError struct {
	URL string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure fetching %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// TerminalError ends a fetch: a non-retryable response or retry exhaustion.
type TerminalError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// retryableStatus lists the server errors that are retried.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
