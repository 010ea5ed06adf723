package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	RetrievalQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contextd",
			Name:      "retrieval_queries_total",
			Help:      "Total retrieval queries by semantic stage and status",
		},
		[]string{"stage", "status"},
	)

	RetrievalCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "contextd",
			Name:      "retrieval_semantic_candidates",
			Help:      "Candidates entering semantic scoring per query",
			Buckets:   []float64{1, 2, 5, 10, 15, 20, 25, 30},
		},
	)

	RetrievalSelectedTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "contextd",
			Name:      "retrieval_selected_tokens",
			Help:      "Cumulative tokens in the packed selection",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 12),
		},
	)

	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contextd",
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limiter admissions and denials",
		},
		[]string{"decision"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalQueriesTotal)
	prometheus.MustRegister(RetrievalCandidates)
	prometheus.MustRegister(RetrievalSelectedTokens)
	prometheus.MustRegister(RateLimitDecisionsTotal)
	retrievalMetricsRegistered = true
}
