package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts single HTTP attempts by outcome (ok, transient, terminal).
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pollc_fetch_requests_total",
		Help: "The total number of HTTP attempts made by the fetcher, by outcome.",
	}, []string{"outcome"})
	// retriesTotal counts backoff waits.
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pollc_fetch_retries_total",
		Help: "The total number of retries scheduled after transient failures.",
	})
)
