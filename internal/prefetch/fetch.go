// Package prefetch implements C3, the URL/media prefetcher
// (SPEC_FULL.md §4.3): given a claim's input URL, it returns
// {text, title, source_type, url}, and backs the HTML credibility
// signal extraction used by S3's evidence merge (§4.7).
//
// Grounded on the teacher's internal/knowledge/crawler.go fetch path
// (SSRF-safe dialer, conditional GET, exponential-backoff retry,
// content hashing) and crawler_readability.go (go-readability +
// html-to-markdown extraction), trimmed from full-site crawling down
// to a single on-demand fetch per claim.
package prefetch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	maxPageBytes      = 10 << 20 // 10 MB
	maxErrorBodyBytes = 1 << 20  // 1 MB
	maxRetries        = 3
	defaultUserAgent  = "TruthcheckBot/1.0"
)

// FetchResult is a single successfully fetched page.
type FetchResult struct {
	Title       string
	Content     string
	ContentHash string
	ETag        string
	LastMod     string
	RawHTML     []byte
}

// privateCIDRs blocks crawling into link-local/private network space —
// user-supplied URLs make this an even sharper edge than an admin-run
// crawler, since any caller can submit a claim URL.
var privateCIDRs []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10",
		"169.254.0.0/16",
		"fc00::/7",
	} {
		_, parsed, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad CIDR %q: %v", cidr, err))
		}
		privateCIDRs = append(privateCIDRs, parsed)
	}
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, cidr := range privateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// validateFetchURL is a fast-path check; the authoritative guard is the
// SSRF-safe dialer from NewSSRFSafeTransport.
func validateFetchURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q (only http/https allowed)", parsed.Scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing hostname in url")
	}
	ips, err := net.LookupHost(host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed for %s: %w", host, err)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip != nil && isPrivateIP(ip) {
			return nil, fmt.Errorf("url resolves to private/reserved address %s", ipStr)
		}
	}
	return parsed, nil
}

// NewSSRFSafeTransport returns an http.Transport whose DialContext
// re-validates the resolved IP before connecting, closing the DNS
// rebinding window between validateFetchURL and the actual dial.
func NewSSRFSafeTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("ssrf dialer: invalid address %q: %w", addr, err)
			}
			ips, err := net.DefaultResolver.LookupHost(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("ssrf dialer: dns lookup %s: %w", host, err)
			}
			for _, ipStr := range ips {
				ip := net.ParseIP(ipStr)
				if ip != nil && isPrivateIP(ip) {
					return nil, fmt.Errorf("ssrf dialer: %s resolves to private address %s", host, ipStr)
				}
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		},
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// Fetcher performs single-URL fetches with retry. It records the
// response's ETag and Last-Modified but sends no conditional request
// headers.
type Fetcher struct {
	client            *http.Client
	userAgent         string
	skipURLValidation bool // for tests that use httptest (localhost)
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent overrides the default request User-Agent.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) { f.userAgent = ua }
}

// withSkipURLValidation disables the SSRF target check; only for tests
// that exercise an httptest server on loopback.
func withSkipURLValidation() FetcherOption {
	return func(f *Fetcher) { f.skipURLValidation = true }
}

// NewFetcher builds a Fetcher with an SSRF-safe transport by default.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second, Transport: NewSSRFSafeTransport()}
	}
	f := &Fetcher{client: client, userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves a single URL's page content (HTML or plain text),
// validating it is not an SSRF target and extracting readable text.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (FetchResult, error) {
	if !f.skipURLValidation {
		if _, err := validateFetchURL(pageURL); err != nil {
			return FetchResult{}, fmt.Errorf("reject fetch target: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return FetchResult{}, fmt.Errorf("fetch page %s: unexpected status %s: %s", pageURL, resp.Status, strings.TrimSpace(string(body)))
	}

	ct := resp.Header.Get("Content-Type")
	isHTML := ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
	isPlain := strings.Contains(ct, "text/plain") || strings.Contains(ct, "text/markdown") || strings.Contains(ct, "text/x-markdown")
	if !isHTML && !isPlain {
		return FetchResult{}, fmt.Errorf("unsupported content type %q for %s", ct, pageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return FetchResult{}, fmt.Errorf("read page %s: %w", pageURL, err)
	}

	var title, content string
	if isPlain {
		title, content = extractPlainContent(data)
	} else {
		title, content = extractContent(data, pageURL)
	}

	return FetchResult{
		Title:       title,
		Content:     content,
		ContentHash: contentHash(content),
		ETag:        resp.Header.Get("ETag"),
		LastMod:     resp.Header.Get("Last-Modified"),
		RawHTML:     data,
	}, nil
}

func contentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// doWithRetry executes an HTTP request with exponential backoff on
// transient errors and 429/5xx responses, honoring Retry-After.
func (f *Fetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			if resp != nil {
				if ra := resp.Header.Get("Retry-After"); ra != "" {
					if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 && secs <= 120 {
						backoff = time.Duration(secs) * time.Second
					}
				}
				resp.Body.Close()
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		resp, err = f.client.Do(req)
		if err != nil {
			if !isRetryableError(err) {
				return nil, err
			}
			continue
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
