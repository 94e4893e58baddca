package prefetch

import "testing"

func TestExtractHTMLSignalsBylineAndDate(t *testing.T) {
	page := []byte(`<!DOCTYPE html><html><head>
		<meta name="author" content="Jane Reporter">
		<meta property="article:published_time" content="2026-01-01T00:00:00Z">
	</head><body><p>A detailed article body.</p></body></html>`)
	sig := ExtractHTMLSignals(page, "Ordinary headline", "A detailed article body.")
	if !sig.BylinePresent {
		t.Fatal("expected byline to be detected from meta author")
	}
	if !sig.DatePresent {
		t.Fatal("expected date to be detected from published_time meta")
	}
	if !sig.FetchOK {
		t.Fatal("expected fetch_ok=true on a parseable page")
	}
}

func TestExtractHTMLSignalsMalformedHTMLReturnsNeutral(t *testing.T) {
	sig := ExtractHTMLSignals(nil, "", "")
	if sig.FetchOK {
		t.Fatal("expected fetch_ok=false for empty/malformed input")
	}
	if sig.Score != 0.5 {
		t.Fatalf("expected neutral score 0.5, got %v", sig.Score)
	}
}

func TestExtractHTMLSignalsClickbaitPattern(t *testing.T) {
	page := []byte(`<html><body><p>short body</p></body></html>`)
	sig := ExtractHTMLSignals(page, "SHOCKING: You Won't Believe This", "short body")
	if !sig.ClickbaitPattern {
		t.Fatal("expected sensational title with thin body to flag clickbait_pattern")
	}
	if sig.Score >= 0.5 {
		t.Fatalf("expected clickbait penalty to pull score below neutral, got %v", sig.Score)
	}
}

func TestExtractHTMLSignalsReferenceLinkQuality(t *testing.T) {
	page := []byte(`<html><body>
		<a href="https://reuters.com/article">source</a>
		<a href="https://example-blogspot.net/post">blog</a>
	</body></html>`)
	sig := ExtractHTMLSignals(page, "", "")
	if sig.ReferenceLinkCount != 2 {
		t.Fatalf("expected 2 reference links, got %d", sig.ReferenceLinkCount)
	}
	if sig.ReferenceLinkQuality <= 0 || sig.ReferenceLinkQuality >= 1 {
		t.Fatalf("expected partial reference quality, got %v", sig.ReferenceLinkQuality)
	}
}

func TestAnonymousSourceRatio(t *testing.T) {
	ratio := anonymousSourceRatio(`a person with knowledge said "something" and another said "else"`)
	if ratio <= 0 || ratio > 1 {
		t.Fatalf("expected ratio in (0,1], got %v", ratio)
	}
	if anonymousSourceRatio("") != 0 {
		t.Fatal("expected 0 ratio for empty text")
	}
}
