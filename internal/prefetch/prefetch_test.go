package prefetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPrefetchArticleFallsBackToOGTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<!doctype html><html><head>
			<meta property="og:title" content="Fallback Title">
		</head><body><p>Article body text long enough to extract as content for the reader.</p></body></html>`))
	}))
	defer server.Close()

	p := newWithClients(NewFetcher(nil, withSkipURLValidation()), NewTranscriptFetcher(nil))
	result, err := p.Prefetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	if result.SourceType != SourceArticle {
		t.Fatalf("expected source_type article, got %v", result.SourceType)
	}
	if result.Title != "Fallback Title" {
		t.Fatalf("expected og:title fallback, got %q", result.Title)
	}
}

func TestFetchWithSignalsReturnsNeutralOnFetchFailure(t *testing.T) {
	p := New()
	_, sig, err := p.FetchWithSignals(context.Background(), "http://127.0.0.1:9/unreachable")
	if err == nil {
		t.Fatal("expected fetch error for unreachable target")
	}
	if sig.FetchOK {
		t.Fatal("expected fetch_ok=false on failure")
	}
	if sig.Score != 0.5 {
		t.Fatalf("expected neutral score 0.5, got %v", sig.Score)
	}
}
