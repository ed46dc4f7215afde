// Package metrics holds the Prometheus collectors for embedding, retrieval,
// model-backend, and seed-loading instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EmbeddingRequestsTotal counts embedding API calls by outcome.
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamlens",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	// EmbeddingRequestDuration tracks embedding API latency.
	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scamlens",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	// EmbeddingCacheTotal counts embedding cache hits and misses.
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamlens",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	// RetrievalHits tracks how many examples pass the similarity threshold
	// per query.
	RetrievalHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scamlens",
			Name:      "retrieval_hits",
			Help:      "Number of examples returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	// BackendAttemptsTotal counts model backend attempts by outcome.
	BackendAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamlens",
			Name:      "backend_attempts_total",
			Help:      "Total number of model backend attempts",
		},
		[]string{"backend", "outcome"}, // "ok" / "timeout" / "error" / "malformed"
	)

	// BackendAttemptDuration tracks per-attempt model backend latency.
	BackendAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scamlens",
			Name:      "backend_attempt_duration_seconds",
			Help:      "Model backend attempt duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)

	// ClassifyRejectedTotal counts requests rejected by the concurrency limit.
	ClassifyRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scamlens",
			Name:      "classify_rejected_total",
			Help:      "Classify requests rejected due to backpressure",
		},
	)

	// SeedRecordsTotal counts seed loader record outcomes.
	SeedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scamlens",
			Name:      "seed_records_total",
			Help:      "Seed loader record outcomes",
		},
		[]string{"outcome"}, // "loaded" / "present" / "failed"
	)
)

var registered bool

// Register registers all collectors. Must be called once from main (no
// init()).
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(RetrievalHits)
	prometheus.MustRegister(BackendAttemptsTotal)
	prometheus.MustRegister(BackendAttemptDuration)
	prometheus.MustRegister(ClassifyRejectedTotal)
	prometheus.MustRegister(SeedRecordsTotal)
	registered = true
}
