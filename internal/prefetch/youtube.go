package prefetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// videoIDPattern matches YouTube's 11-character opaque video ID,
// either bare or embedded in a watch/share/embed URL.
var videoIDPattern = regexp.MustCompile(`(?:youtu\.be/|youtube\.com/(?:watch\?v=|embed/|shorts/)|^)([A-Za-z0-9_-]{11})(?:[?&].*)?$`)

// ExtractVideoID returns the 11-character video ID from a YouTube URL,
// or "" if the input does not look like one (§4.3 "recognized video
// URL" check).
func ExtractVideoID(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if u, err := url.Parse(trimmed); err == nil {
		host := strings.ToLower(u.Host)
		if strings.Contains(host, "youtube.com") {
			if v := u.Query().Get("v"); v != "" {
				if m := videoIDPattern.FindStringSubmatch(v); m != nil {
					return m[1]
				}
			}
		}
	}
	if m := videoIDPattern.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return ""
}

type timedTextTranscript struct {
	XMLName xml.Name        `xml:"transcript"`
	Entries []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Start string `xml:"start,attr"`
	Text  string `xml:",chardata"`
}

// TranscriptFetcher fetches YouTube caption tracks via the public
// timedtext endpoint. No pack example wires a YouTube transcript
// client, so this is a small stdlib-only adapter (net/http +
// encoding/xml) rather than a hand-rolled stub for a third-party SDK
// that doesn't exist in the corpus.
type TranscriptFetcher struct {
	client *http.Client
}

// NewTranscriptFetcher builds a fetcher using an SSRF-safe transport,
// since the video ID (and therefore the fetch target) is user-supplied.
func NewTranscriptFetcher(client *http.Client) *TranscriptFetcher {
	if client == nil {
		client = &http.Client{Transport: NewSSRFSafeTransport()}
	}
	return &TranscriptFetcher{client: client}
}

// languagePreference is the §4.3 "prefer Korean then English" order.
var languagePreference = []string{"ko", "en"}

// FetchTranscript joins a video's caption lines with single spaces,
// trying each preferred language in turn.
func (t *TranscriptFetcher) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	var lastErr error
	for _, lang := range languagePreference {
		text, err := t.fetchLanguage(ctx, videoID, lang)
		if err == nil && text != "" {
			return text, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("no transcript available for %s: %w", videoID, lastErr)
	}
	return "", fmt.Errorf("no transcript available for %s", videoID)
}

func (t *TranscriptFetcher) fetchLanguage(ctx context.Context, videoID, lang string) (string, error) {
	endpoint := fmt.Sprintf("https://www.youtube.com/api/timedtext?lang=%s&v=%s", url.QueryEscape(lang), url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript endpoint returned status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read transcript body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}

	var doc timedTextTranscript
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decode transcript xml: %w", err)
	}
	lines := make([]string, 0, len(doc.Entries))
	for _, line := range doc.Entries {
		text := strings.TrimSpace(unescapeTranscriptLine(line.Text))
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, " "), nil
}

func unescapeTranscriptLine(text string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&#39;", "'",
		"&quot;", "\"",
		"&lt;", "<",
		"&gt;", ">",
	)
	return replacer.Replace(text)
}
