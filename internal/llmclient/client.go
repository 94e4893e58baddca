package llmclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// paramProvider is implemented by providers that accept per-call
// temperature/max_tokens overrides (all of ours do); Client falls back
// to the provider's configured defaults if a provider doesn't.
type paramProvider interface {
	completeWithParams(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Stream, error)
}

// Client is one of §4.4's three logical LLM clients: a synchronous
// call(system, user, max_tokens, temperature) -> raw_text contract
// over a streaming Provider, with an automatic fallback transport.
type Client struct {
	name     string
	primary  Provider
	fallback Provider
}

// NewClient builds a logical client. fallback may be nil.
func NewClient(name string, primary, fallback Provider) *Client {
	return &Client{name: name, primary: primary, fallback: fallback}
}

// Call sends one (system, user) turn and returns the fully drained
// completion text. On a primary-endpoint connection failure it retries
// once against the fallback transport; the textual contract returned
// to the caller is identical either way.
func (c *Client) Call(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	messages := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	text, err := c.drain(ctx, c.primary, messages, maxTokens, temperature)
	if err == nil {
		return text, nil
	}
	if c.fallback == nil || !isConnectionFailure(err) {
		return "", fmt.Errorf("%s: primary call failed: %w", c.name, err)
	}

	text, fbErr := c.drain(ctx, c.fallback, messages, maxTokens, temperature)
	if fbErr != nil {
		return "", fmt.Errorf("%s: primary failed (%v) and fallback failed: %w", c.name, err, fbErr)
	}
	return text, nil
}

func (c *Client) drain(ctx context.Context, provider Provider, messages []Message, maxTokens int, temperature float64) (string, error) {
	var stream Stream
	var err error
	if pp, ok := provider.(paramProvider); ok {
		stream, err = pp.completeWithParams(ctx, messages, temperature, maxTokens)
	} else {
		stream, err = provider.Complete(ctx, messages, nil)
	}
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(chunk.Content)
	}
	return sb.String(), nil
}
