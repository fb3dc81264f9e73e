// Package metrics exposes the Prometheus collectors for scrapes and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scrape outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeNotFound   = "not_found"
	OutcomeStructural = "structural"
	OutcomeFailed     = "failed"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	scrapesTotal               *prometheus.CounterVec
	scrapeDurationSeconds      *prometheus.HistogramVec
	ballotsScraped             *prometheus.GaugeVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollc_http_requests_total",
				Help: "Total number of API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pollc_http_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"method", "route"},
		)

		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pollc_scrapes_total",
				Help: "Total number of poll week scrapes, labeled by poll and outcome.",
			},
			[]string{"poll", "outcome"},
		)

		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pollc_scrape_duration_seconds",
				Help:    "Histogram of full scrape durations, labeled by poll.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"poll"},
		)

		ballotsScraped = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pollc_ballots_scraped",
				Help: "Number of voter ballots in the most recent successful scrape, labeled by poll.",
			},
			[]string{"poll"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveScrape records one finished scrape. voters is only used on success.
func ObserveScrape(pollType, outcome string, voters int, duration time.Duration) {
	Init()
	scrapesTotal.WithLabelValues(pollType, outcome).Inc()
	scrapeDurationSeconds.WithLabelValues(pollType).Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		ballotsScraped.WithLabelValues(pollType).Set(float64(voters))
	}
}
