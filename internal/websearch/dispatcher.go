package websearch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/sync/errgroup"

	"frameworks/truthcheck/internal/config"
	"frameworks/truthcheck/internal/logging"
	"frameworks/truthcheck/internal/pipelinestate"
)

// gatedProvider pairs a provider with its own concurrency gate, retry
// policy, and circuit breaker, per §4.2's "one client per provider".
type gatedProvider struct {
	provider Provider
	sem      chan struct{}
	executor failsafe.Executor[[]Result]
}

// Dispatcher fans a claim's non-wiki query variants out to every
// configured provider in parallel and merges the results by URL.
type Dispatcher struct {
	providers []*gatedProvider
	timeout   time.Duration
	logger    logging.Logger
	metrics   *Metrics
}

// NewDispatcher builds a Dispatcher from environment-configured
// providers, each wrapped in its own gate/retry/breaker per §4.2.
func NewDispatcher(cfg config.Config, logger logging.Logger) (*Dispatcher, error) {
	providers, err := NewProviders(cfg)
	if err != nil {
		return nil, fmt.Errorf("build search providers: %w", err)
	}
	if len(providers) == 0 {
		logger.Warn("no external search providers configured; S3 web fan-out will return no results")
	}

	d := &Dispatcher{
		timeout: cfg.ExternalAPITimeout,
		logger:  logger,
		metrics: newMetrics(),
	}
	for i, p := range providers {
		gate := concurrencyFor(cfg, i)
		if gate <= 0 {
			gate = 3
		}
		retry := retrypolicy.NewBuilder[[]Result]().
			WithBackoff(cfg.ExternalBackoffBase, 5*time.Second).
			WithMaxRetries(cfg.ExternalRetryAttempts).
			WithJitterFactor(0.1).
			HandleIf(func(_ []Result, err error) bool { return isRetryableProviderError(err) }).
			Build()
		breaker := circuitbreaker.NewBuilder[[]Result]().
			WithFailureThresholdRatio(5, 10).
			WithDelay(15 * time.Second).
			WithSuccessThreshold(1).
			HandleIf(func(_ []Result, err error) bool { return isRetryableProviderError(err) }).
			OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
				logger.WithFields(logging.Fields{
					"provider":   p.Name(),
					"from_state": event.OldState.String(),
					"to_state":   event.NewState.String(),
				}).Warn("search provider circuit breaker state change")
			}).
			Build()

		d.providers = append(d.providers, &gatedProvider{
			provider: p,
			sem:      make(chan struct{}, gate),
			executor: failsafe.With(retry, breaker),
		})
	}
	return d, nil
}

// providerNames lists the configured providers, used by diagnostics.
func (d *Dispatcher) providerNames() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.provider.Name())
	}
	return names
}

// Dispatch implements S3's run_web_async: every non-wiki query variant
// is sent to every configured provider concurrently (respecting each
// provider's gate); an all-settled join means one provider's failure
// never aborts the others. Results are merged by URL, first occurrence
// wins on metadata.
func (d *Dispatcher) Dispatch(ctx context.Context, queries []pipelinestate.QueryVariant) ([]pipelinestate.EvidenceCandidate, Stats) {
	stats := Stats{ProviderResultCounts: map[string]int{}}
	if len(d.providers) == 0 || len(queries) == 0 {
		return nil, stats
	}

	var mu sync.Mutex
	ordered := make([]Result, 0, len(queries)*len(d.providers))

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		if q.Type == "wiki" {
			continue
		}
		query := q
		for _, gp := range d.providers {
			gp := gp
			g.Go(func() error {
				select {
				case gp.sem <- struct{}{}:
					defer func() { <-gp.sem }()
				case <-gctx.Done():
					return nil
				}

				callCtx, cancel := context.WithTimeout(gctx, d.timeout)
				defer cancel()

				start := time.Now()
				results, err := gp.executor.WithContext(callCtx).Get(func() ([]Result, error) {
					return gp.provider.Search(callCtx, query.Text, SearchOptions{Limit: 10})
				})
				d.metrics.callDuration.WithLabelValues(gp.provider.Name()).Observe(time.Since(start).Seconds())

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					d.metrics.callsTotal.WithLabelValues(gp.provider.Name(), "error").Inc()
					stats.ProviderErrors = append(stats.ProviderErrors, fmt.Sprintf("%s: %v", gp.provider.Name(), err))
					d.logger.WithFields(logging.Fields{"provider": gp.provider.Name(), "query": query.Text}).
						WithError(err).Warn("search provider call failed")
					return nil
				}
				d.metrics.callsTotal.WithLabelValues(gp.provider.Name(), "success").Inc()
				stats.ProviderResultCounts[gp.provider.Name()] += len(results)
				for _, r := range results {
					ordered = append(ordered, r)
				}
				return nil
			})
		}
	}
	_ = g.Wait() // per-call errors are recorded in stats, never aborts siblings

	return mergeByURL(ordered), stats
}

// Stats records S3's provider fan-out diagnostics.
type Stats struct {
	ProviderResultCounts map[string]int
	ProviderErrors       []string
}

// mergeByURL deduplicates results by URL; first occurrence wins on
// metadata per §4.2's ordering rule (credibility/html scores are
// recomputed once in the S3 merge step downstream, not here).
func mergeByURL(results []Result) []pipelinestate.EvidenceCandidate {
	seen := make(map[string]bool, len(results))
	merged := make([]pipelinestate.EvidenceCandidate, 0, len(results))
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		merged = append(merged, pipelinestate.EvidenceCandidate{
			SourceType: pipelinestate.SourceWebURL,
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Snippet,
			Metadata: pipelinestate.EvidenceMetadata{
				PublishedAt: r.PublishedAt,
			},
		})
	}
	return merged
}
