package websearch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"frameworks/truthcheck/internal/logging"
	"frameworks/truthcheck/internal/pipelinestate"
)

// noopExecutor runs the wrapped call directly, with no retry or
// circuit breaker, so dispatcher tests exercise only the fan-out and
// merge logic.
func noopExecutor() failsafe.Executor[[]Result] {
	return failsafe.With[[]Result]()
}

type fakeProvider struct {
	name    string
	results []Result
	err     error
	calls   int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newTestDispatcher(providers ...Provider) *Dispatcher {
	d := &Dispatcher{
		timeout: 2 * time.Second,
		logger:  logging.NewLogger(),
		metrics: newMetrics(),
	}
	for i, p := range providers {
		d.providers = append(d.providers, &gatedProvider{
			provider: p,
			sem:      make(chan struct{}, 3),
			executor: noopExecutor(),
		})
		_ = i
	}
	return d
}

func TestDispatchMergesAcrossProvidersByURL(t *testing.T) {
	p1 := &fakeProvider{name: "brave", results: []Result{
		{Title: "A", URL: "https://x.example/1", Snippet: "from brave", Provider: "brave"},
	}}
	p2 := &fakeProvider{name: "tavily", results: []Result{
		{Title: "A dup", URL: "https://x.example/1", Snippet: "from tavily", Provider: "tavily"},
		{Title: "B", URL: "https://x.example/2", Snippet: "unique", Provider: "tavily"},
	}}
	d := newTestDispatcher(p1, p2)

	queries := []pipelinestate.QueryVariant{
		{Type: "news", Text: "claim query"},
		{Type: "wiki", Text: "skip me"},
	}
	candidates, stats := d.Dispatch(context.Background(), queries)

	if len(candidates) != 2 {
		t.Fatalf("expected 2 merged candidates, got %d: %+v", len(candidates), candidates)
	}
	if stats.ProviderResultCounts["brave"] != 1 || stats.ProviderResultCounts["tavily"] != 2 {
		t.Fatalf("unexpected provider stats: %+v", stats.ProviderResultCounts)
	}
	// wiki query should never reach a provider
	if p1.calls != 1 || p2.calls != 1 {
		t.Fatalf("expected exactly 1 call per provider (wiki skipped), got p1=%d p2=%d", p1.calls, p2.calls)
	}
}

func TestDispatchOneProviderFailureDoesNotAbortOthers(t *testing.T) {
	failing := &fakeProvider{name: "broken", err: fmt.Errorf("boom")}
	working := &fakeProvider{name: "ok", results: []Result{{Title: "A", URL: "https://y.example/1"}}}
	d := newTestDispatcher(failing, working)

	candidates, stats := d.Dispatch(context.Background(), []pipelinestate.QueryVariant{{Type: "web", Text: "q"}})
	if len(candidates) != 1 {
		t.Fatalf("expected surviving provider's result, got %d", len(candidates))
	}
	if len(stats.ProviderErrors) != 1 {
		t.Fatalf("expected 1 recorded provider error, got %d", len(stats.ProviderErrors))
	}
}

func TestDispatchEmptyQueriesReturnsNoCalls(t *testing.T) {
	p := &fakeProvider{name: "brave"}
	d := newTestDispatcher(p)
	candidates, _ := d.Dispatch(context.Background(), nil)
	if candidates != nil {
		t.Fatalf("expected nil candidates for no queries, got %+v", candidates)
	}
	if p.calls != 0 {
		t.Fatalf("expected no provider calls, got %d", p.calls)
	}
}
