// Package observability implements C8: per-stage latency and
// provider-success-ratio counters, plus a bounded ring of recent
// pipeline traces (§5's "ring buffer of 200 recent events, 500 latency
// samples per stage"). Grounded on the teacher's
// internal/knowledge/metrics.go / internal/chat/metrics.go for the
// prometheus counter/histogram shape, and etalazz-vsa's
// internal/ratelimiter/persistence/redis.go for using
// github.com/redis/go-redis/v9 against a capped, TTL'd key — adapted
// from that file's idempotent-commit Lua script (a different concern)
// to a plain LPUSH/LTRIM capped list, which is the idiomatic go-redis
// way to keep a bounded ring.
package observability

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const (
	maxRecentTraces  = 200
	maxLatencySample = 500
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "truthcheck",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)

	stageCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truthcheck",
			Name:      "stage_calls_total",
			Help:      "Total pipeline stage executions by outcome",
		},
		[]string{"stage", "status"},
	)

	providerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "truthcheck",
			Name:      "provider_calls_total",
			Help:      "Total upstream provider calls observed by the pipeline, by outcome",
		},
		[]string{"provider", "status"},
	)
)

// Trace is one bounded recent-event record.
type Trace struct {
	TraceID  string    `json:"trace_id"`
	Stage    string    `json:"stage"`
	Status   string    `json:"status"`
	Duration float64   `json:"duration_seconds"`
	At       time.Time `json:"at"`
}

// Recorder accumulates in-process metrics and, if configured, mirrors
// the recent-trace ring into Redis so multiple pipeline instances share
// one view. The in-process ring is always populated even with a nil
// Redis client.
type Recorder struct {
	mu      sync.Mutex
	recent  []Trace
	latency map[string][]float64

	redisClient *redis.Client
	redisKey    string
	redisTTL    time.Duration
}

// NewRecorder builds a Recorder. redisClient may be nil, in which case
// the recent-trace ring is process-local only.
func NewRecorder(redisClient *redis.Client) *Recorder {
	return &Recorder{
		latency:     make(map[string][]float64),
		redisClient: redisClient,
		redisKey:    "truthcheck:recent_traces",
		redisTTL:    24 * time.Hour,
	}
}

// RecordStage records one stage execution's outcome and latency.
func (r *Recorder) RecordStage(ctx context.Context, traceID, stage, status string, duration time.Duration) {
	stageDuration.WithLabelValues(stage, status).Observe(duration.Seconds())
	stageCallsTotal.WithLabelValues(stage, status).Inc()

	trace := Trace{TraceID: traceID, Stage: stage, Status: status, Duration: duration.Seconds(), At: time.Now()}

	r.mu.Lock()
	r.recent = append(r.recent, trace)
	if len(r.recent) > maxRecentTraces {
		r.recent = r.recent[len(r.recent)-maxRecentTraces:]
	}
	samples := append(r.latency[stage], duration.Seconds())
	if len(samples) > maxLatencySample {
		samples = samples[len(samples)-maxLatencySample:]
	}
	r.latency[stage] = samples
	r.mu.Unlock()

	if r.redisClient != nil {
		r.mirrorToRedis(ctx, trace)
	}
}

// RecordProviderCall records one upstream provider call's outcome,
// independent of which stage issued it.
func (r *Recorder) RecordProviderCall(provider, status string) {
	providerCallsTotal.WithLabelValues(provider, status).Inc()
}

func (r *Recorder) mirrorToRedis(ctx context.Context, trace Trace) {
	payload, err := json.Marshal(trace)
	if err != nil {
		return
	}
	pipe := r.redisClient.TxPipeline()
	pipe.LPush(ctx, r.redisKey, payload)
	pipe.LTrim(ctx, r.redisKey, 0, maxRecentTraces-1)
	pipe.Expire(ctx, r.redisKey, r.redisTTL)
	_, _ = pipe.Exec(ctx)
}

// RecentTraces returns the process-local recent-trace ring, newest last.
func (r *Recorder) RecentTraces() []Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Trace, len(r.recent))
	copy(out, r.recent)
	return out
}

// StageLatencySamples returns the bounded recent latency samples
// recorded for a stage, used by admin/debug surfaces rather than the
// hot path.
func (r *Recorder) StageLatencySamples(stage string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	samples := r.latency[stage]
	out := make([]float64, len(samples))
	copy(out, samples)
	return out
}
