// Package websearch implements C2, the external search client layer
// (SPEC_FULL.md §4.2): one client per provider, each behind a bounded
// concurrency gate, a retry policy, and a circuit breaker, fanned out
// in parallel by S3's run_web_async and merged by URL.
//
// Grounded on the teacher's pkg/search (Provider interface, Brave/
// Tavily/SearXNG clients, env-driven provider construction) and
// pkg/clients/failsafe.go for the failsafe-go retry/circuit-breaker
// wrapping.
package websearch

import (
	"context"
	"html"
	"regexp"
	"strings"
)

// Provider is implemented by each concrete search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error)
}

// Result is a single normalized search hit, per §4.2's
// {title, url, snippet, published_at?, provider} contract.
type Result struct {
	Title       string
	URL         string
	Snippet     string
	PublishedAt string
	Provider    string
}

// SearchOptions controls search behavior across providers.
type SearchOptions struct {
	Limit       int
	SearchDepth string
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes tags and unescapes entities in title/snippet text,
// per §4.2's normalization rule.
func stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}
