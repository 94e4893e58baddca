package websearch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks per-provider call outcomes and latency for C2 (C8's
// per-provider success ratios read from these).
type Metrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

func newMetrics() *Metrics {
	return &Metrics{
		callsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "truthcheck",
			Subsystem: "websearch",
			Name:      "provider_calls_total",
			Help:      "External search provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		callDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "truthcheck",
			Subsystem: "websearch",
			Name:      "provider_call_duration_seconds",
			Help:      "External search provider call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}
