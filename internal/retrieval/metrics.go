package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	embedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truthcheck",
			Name:      "embed_calls_total",
			Help:      "Total embedding API calls",
		},
		[]string{"provider", "model", "status"},
	)

	embedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "truthcheck",
			Name:      "embed_duration_seconds",
			Help:      "Duration of embedding API calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	embedInputsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truthcheck",
			Name:      "embed_inputs_total",
			Help:      "Total individual texts submitted for embedding",
		},
		[]string{"provider", "model"},
	)

	chunksFilteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truthcheck",
			Name:      "chunks_filtered_total",
			Help:      "Total chunks filtered while embedding evidence documents",
		},
		[]string{"reason"},
	)

	retrievalQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truthcheck",
			Name:      "retrieval_queries_total",
			Help:      "Total corpus retrieval queries by mode and outcome",
		},
		[]string{"mode", "status"},
	)
)
