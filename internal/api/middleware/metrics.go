package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	requestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// PanicsRecoveredTotal counts panics caught by the recovery middleware
	PanicsRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealhub_panics_recovered_total",
			Help: "Total number of recovered panics",
		},
	)

	// RateLimitedTotal counts requests rejected by the submit rate limiter
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealhub_rate_limited_total",
			Help: "Total number of rate-limited requests",
		},
	)
)

// Metrics returns a middleware that collects Prometheus metrics
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		status := strconv.Itoa(wrapped.statusCode)

		// Use chi route pattern to avoid cardinality explosion from
		// dynamic path segments
		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		endpoint = strings.TrimRight(endpoint, "/")
		if endpoint == "" {
			endpoint = "/"
		}

		requestDuration.WithLabelValues(r.Method, endpoint, status).Observe(duration.Seconds())
		requestCount.WithLabelValues(r.Method, endpoint, status).Inc()
	})
}
