package llmclient

import (
	"context"
	"strings"
)

// OllamaProvider reuses the OpenAI-compatible wire format Ollama
// exposes at /v1.
type OllamaProvider struct {
	openai *OpenAIProvider
}

// NewOllamaProvider builds a provider pointed at a local or remote
// Ollama server.
func NewOllamaProvider(cfg Config) *OllamaProvider {
	cfgCopy := cfg
	if strings.TrimSpace(cfgCopy.APIURL) == "" {
		cfgCopy.APIURL = "http://localhost:11434/v1"
	}
	return &OllamaProvider{
		openai: NewOpenAIProvider(cfgCopy),
	}
}

func (p *OllamaProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error) {
	return p.openai.Complete(ctx, messages, tools)
}

func (p *OllamaProvider) completeWithParams(ctx context.Context, messages []Message, temperature float64, maxTokens int) (Stream, error) {
	return p.openai.completeWithParams(ctx, messages, temperature, maxTokens)
}
