package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmitClaimDuration tracks the latency of claim admission
	SubmitClaimDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "claim_submit_duration_seconds",
			Help: "Duration of claim submission requests in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
				10.0,  // 10s
			},
		},
		[]string{"outcome"}, // created, already_claimed, capacity_exhausted, rejected
	)

	// ClaimsAdmittedTotal counts admission attempts by outcome
	ClaimsAdmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_admitted_total",
			Help: "Total claim admission attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ReviewsTotal counts review decisions
	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_reviews_total",
			Help: "Total review decisions by result",
		},
		[]string{"decision", "result"},
	)

	// ClaimsExpiredTotal counts claims moved to expired by the sweep
	ClaimsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claims_expired_total",
			Help: "Total pending claims expired by the background sweep",
		},
	)
)

// RecordSubmitClaim records one admission attempt and its duration
func RecordSubmitClaim(outcome string, duration float64) {
	SubmitClaimDuration.WithLabelValues(outcome).Observe(duration)
	ClaimsAdmittedTotal.WithLabelValues(outcome).Inc()
}
