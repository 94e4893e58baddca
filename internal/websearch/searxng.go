package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SearxngProvider implements the SearXNG API.
type SearxngProvider struct {
	apiURL string
	client *http.Client
}

// NewSearxngProvider creates a SearXNG provider.
func NewSearxngProvider(apiURL string) (*SearxngProvider, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, fmt.Errorf("searxng api url is required")
	}
	return &SearxngProvider{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (p *SearxngProvider) Name() string { return "searxng" }

type searxngResponse struct {
	Results []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Content     string `json:"content"`
		PublishedAt string `json:"publishedDate"`
	} `json:"results"`
}

// Search executes a query against a SearXNG instance.
func (p *SearxngProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	endpoint, err := url.Parse(p.apiURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse searxng url: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("format", "json")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create searxng request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, connError("searxng", err)
	}
	defer resp.Body.Close()

	if err := statusError("searxng", resp); err != nil {
		return nil, err
	}

	var decoded searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode searxng response: %w", err)
	}

	limit := len(decoded.Results)
	if opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}
	results := make([]Result, 0, limit)
	for _, item := range decoded.Results[:limit] {
		results = append(results, Result{
			Title:       stripHTML(item.Title),
			URL:         item.URL,
			Snippet:     stripHTML(item.Content),
			PublishedAt: item.PublishedAt,
			Provider:    p.Name(),
		})
	}
	return results, nil
}
