// Package metrics exposes Prometheus collectors for the downloader.
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

var (
	downloaderEditionsTotal          *prometheus.CounterVec
	downloaderBytesTotal             prometheus.Counter
	downloaderRetriesTotal           prometheus.Counter
	downloaderActiveWorkers          prometheus.Gauge
	downloaderRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal                *prometheus.CounterVec
	httpRequestDurationSeconds       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		downloaderEditionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "downloader_editions_total",
				Help: "Total number of editions processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		downloaderBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "downloader_bytes_total",
				Help: "Total number of PDF bytes written to disk.",
			},
		)

		downloaderRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "downloader_retries_total",
				Help: "Total number of transient failures that were retried.",
			},
		)

		downloaderActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "downloader_active_workers",
				Help: "Number of workers currently fetching an edition.",
			},
		)

		downloaderRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "downloader_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEdition increments the per-outcome counter and the bytes total.
func ObserveEdition(outcome string, bytesWritten int64) {
	downloaderEditionsTotal.WithLabelValues(outcome).Inc()
	if bytesWritten > 0 {
		downloaderBytesTotal.Add(float64(bytesWritten))
	}
}

// ObserveRetry counts one retried transient failure.
func ObserveRetry() {
	downloaderRetriesTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	downloaderActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	downloaderActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	downloaderRateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
