package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// JSONParseError is returned by CallJSON when both the lenient parse
// and the one-shot repair call fail to produce valid JSON.
type JSONParseError struct {
	RawOutput string
	Cause     error
}

func (e *JSONParseError) Error() string {
	return fmt.Sprintf("json-mode parse failed: %v", e.Cause)
}

func (e *JSONParseError) Unwrap() error { return e.Cause }

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// lenientJSON strips Markdown code fences and surrounding whitespace
// before attempting to unmarshal, per §4.4's "strip code fences, trim
// whitespace" rule.
func lenientJSON(raw string, out interface{}) error {
	candidate := strings.TrimSpace(raw)
	if m := codeFencePattern.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	return json.Unmarshal([]byte(candidate), out)
}

// CallJSON calls the model expecting a JSON object matching out's
// schema. On a lenient-parse failure it issues one repair call that
// includes the raw output and the parse error as a hint; if that also
// fails to parse, it returns a *JSONParseError.
func (c *Client) CallJSON(ctx context.Context, system, user string, maxTokens int, temperature float64, out interface{}) (string, error) {
	raw, err := c.Call(ctx, system, user, maxTokens, temperature)
	if err != nil {
		return "", err
	}
	if parseErr := lenientJSON(raw, out); parseErr == nil {
		return raw, nil
	} else {
		repairUser := fmt.Sprintf(
			"Your previous response was not valid JSON and could not be parsed.\n\nYour output:\n%s\n\nParser error: %s\n\nRespond again with ONLY the corrected JSON object, no commentary or code fences.",
			raw, parseErr.Error(),
		)
		repaired, callErr := c.Call(ctx, system, repairUser, maxTokens, temperature)
		if callErr != nil {
			return "", &JSONParseError{RawOutput: raw, Cause: callErr}
		}
		if repairErr := lenientJSON(repaired, out); repairErr != nil {
			return "", &JSONParseError{RawOutput: repaired, Cause: repairErr}
		}
		return repaired, nil
	}
}
