package websearch

import (
	"fmt"
	"net/http"
	"strings"
)

// statusErr carries the HTTP status of a failed provider call so the
// dispatcher's retry policy can classify it without re-parsing text.
type statusErr struct {
	provider string
	status   int
	body     string
}

func (e *statusErr) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.provider, e.status, e.body)
}

func statusError(provider string, resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	return &statusErr{provider: provider, status: resp.StatusCode}
}

// connErr marks a transport-level failure (DNS, dial, TLS, timeout) as
// distinct from a decode/parse error, so the retry predicate below can
// treat it as a connection error per §4.2.
type connErr struct {
	provider string
	cause    error
}

func (e *connErr) Error() string { return fmt.Sprintf("%s request failed: %v", e.provider, e.cause) }
func (e *connErr) Unwrap() error { return e.cause }

func connError(provider string, cause error) error {
	return &connErr{provider: provider, cause: cause}
}

// isRetryableProviderError implements §4.2's retry predicate: HTTP 429,
// 5xx, connection errors, or a provider-specific "rate limit" message
// in the error text.
func isRetryableProviderError(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*statusErr); ok {
		return se.status == http.StatusTooManyRequests || se.status >= http.StatusInternalServerError
	}
	if _, ok := err.(*connErr); ok {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}
