package prefetch

import (
	"context"
	"fmt"
)

// SourceType mirrors the §4.3 response contract's source_type enum.
type SourceType string

const (
	SourceArticle SourceType = "article"
	SourceYouTube SourceType = "youtube"
)

// Result is the §4.3 prefetcher contract: {text, title, source_type, url}.
type Result struct {
	Text       string
	Title      string
	SourceType SourceType
	URL        string
}

// Prefetcher ties the fetcher, transcript client, and HTML signal
// extractor together behind the single §4.3 entry point used by S1
// when the claim's input_type is a URL.
type Prefetcher struct {
	fetcher    *Fetcher
	transcript *TranscriptFetcher
}

// New builds a Prefetcher with its own SSRF-safe HTTP clients.
func New() *Prefetcher {
	return &Prefetcher{
		fetcher:    NewFetcher(nil),
		transcript: NewTranscriptFetcher(nil),
	}
}

// newWithClients wires an explicit fetcher/transcript pair; used by
// tests to point at an httptest server without the SSRF guard.
func newWithClients(fetcher *Fetcher, transcript *TranscriptFetcher) *Prefetcher {
	return &Prefetcher{fetcher: fetcher, transcript: transcript}
}

// Prefetch resolves a claim's input URL to {text, title, source_type,
// url}. Video URLs prefer a transcript and fall back to title-only
// extraction on failure; everything else is treated as an article.
func (p *Prefetcher) Prefetch(ctx context.Context, rawURL string) (Result, error) {
	if videoID := ExtractVideoID(rawURL); videoID != "" {
		if text, err := p.transcript.FetchTranscript(ctx, videoID); err == nil && text != "" {
			title := ""
			if fr, fetchErr := p.fetcher.Fetch(ctx, rawURL); fetchErr == nil {
				title = fr.Title
			}
			return Result{Text: text, Title: title, SourceType: SourceYouTube, URL: rawURL}, nil
		}
		fr, err := p.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			return Result{}, fmt.Errorf("prefetch video page %s: %w", rawURL, err)
		}
		return Result{Text: "", Title: fr.Title, SourceType: SourceYouTube, URL: rawURL}, nil
	}

	fr, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("prefetch article %s: %w", rawURL, err)
	}
	title := fr.Title
	if title == "" {
		title = extractOGTitle(fr.RawHTML)
	}
	return Result{Text: fr.Content, Title: title, SourceType: SourceArticle, URL: rawURL}, nil
}

// FetchWithSignals fetches a candidate URL and computes its §4.7 HTML
// credibility signals in one round trip, used by S3's merge step.
func (p *Prefetcher) FetchWithSignals(ctx context.Context, rawURL string) (FetchResult, HTMLSignals, error) {
	fr, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return FetchResult{}, HTMLSignals{Score: 0.5, FetchOK: false}, err
	}
	return fr, ExtractHTMLSignals(fr.RawHTML, fr.Title, fr.Content), nil
}
