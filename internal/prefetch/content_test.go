package prefetch

import (
	"strings"
	"testing"
)

func TestExtractContentReadabilityFallback(t *testing.T) {
	html := `<!doctype html><html><head><title>Short Page</title></head>
	<body><p>Just a few words here.</p></body></html>`
	title, content := extractContent([]byte(html), "https://example.com/short")
	if title == "" {
		t.Fatal("expected a title")
	}
	if content == "" {
		t.Fatal("expected content from DOM walker fallback")
	}
}

func TestExtractContentRichPage(t *testing.T) {
	html := `<!doctype html><html><head><title>Documentation Guide</title></head>
	<body>
		<article>
			<h1>Getting Started</h1>
			<p>This comprehensive guide walks you through the complete setup process
			for configuring a claim verification pipeline from scratch. You will learn
			about retrieval, scoring, aggregation, and judgement across all nine
			stages of the system.</p>
			<h2>Prerequisites</h2>
			<p>Before you begin, ensure you have a working understanding of
			evidence scoring, source trust tiers, and the HTML credibility
			signal formula used to weight each candidate document.</p>
		</article>
	</body></html>`
	title, content := extractContent([]byte(html), "https://example.com/guide")
	if title == "" {
		t.Fatal("expected title")
	}
	wordCount := len(strings.Fields(content))
	if wordCount < 50 {
		t.Fatalf("expected rich content (≥50 words), got %d words", wordCount)
	}
}

func TestExtractPlainContentMarkdownTitle(t *testing.T) {
	data := "# My Guide\n\nThis is the content of the guide with enough words."
	title, content := extractPlainContent([]byte(data))
	if title != "My Guide" {
		t.Fatalf("expected title 'My Guide', got %q", title)
	}
	if content == "" {
		t.Fatal("expected content")
	}
}

func TestExtractPlainContentNoTitle(t *testing.T) {
	data := "Just plain text without any heading markers."
	title, content := extractPlainContent([]byte(data))
	if title != "" {
		t.Fatalf("expected empty title, got %q", title)
	}
	if content == "" {
		t.Fatal("expected content")
	}
}

func TestExtractOGTitle(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Og Title Here"></head><body></body></html>`
	if got := extractOGTitle([]byte(html)); got != "Og Title Here" {
		t.Fatalf("expected 'Og Title Here', got %q", got)
	}
}
