package llmclient

import (
	"fmt"

	"frameworks/truthcheck/internal/config"
)

// Clients bundles the three logical LLM clients named in §4.4.
// Evaluator is shared by both the support and skeptic roles — the
// prompt, not the client, is what differs between them.
type Clients struct {
	Querygen  *Client
	Evaluator *Client
	Judge     *Client
}

// NewClients wires the querygen/evaluator/judge logical clients from
// service configuration. Each gets the same primary/fallback provider
// pair unless the judge has its own JUDGE_LLM_* override.
func NewClients(cfg config.Config) (*Clients, error) {
	primary, err := NewProvider(Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		APIURL:    cfg.LLMAPIURL,
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, fmt.Errorf("build primary llm provider: %w", err)
	}

	var fallback Provider
	if cfg.LLMFallback != "" {
		fb, err := NewProvider(Config{
			Provider:  "anthropic",
			Model:     cfg.LLMModel,
			APIKey:    cfg.LLMAPIKey,
			APIURL:    cfg.LLMFallback,
			MaxTokens: 2048,
		})
		if err != nil {
			return nil, fmt.Errorf("build fallback llm provider: %w", err)
		}
		fallback = fb
	}

	judgePrimary := primary
	judgeOverride := cfg.JudgeAPIURL != "" && cfg.JudgeAPIURL != cfg.LLMAPIURL
	judgeOverride = judgeOverride || (cfg.JudgeModel != "" && cfg.JudgeModel != cfg.LLMModel)
	judgeOverride = judgeOverride || (cfg.JudgeAPIKey != "" && cfg.JudgeAPIKey != cfg.LLMAPIKey)
	if judgeOverride {
		jp, err := NewProvider(Config{
			Provider:  cfg.LLMProvider,
			Model:     cfg.JudgeModel,
			APIKey:    cfg.JudgeAPIKey,
			APIURL:    cfg.JudgeAPIURL,
			MaxTokens: 2048,
		})
		if err != nil {
			return nil, fmt.Errorf("build judge llm provider: %w", err)
		}
		judgePrimary = jp
	}

	return &Clients{
		Querygen:  NewClient("querygen", primary, fallback),
		Evaluator: NewClient("evaluator", primary, fallback),
		Judge:     NewClient("judge", judgePrimary, fallback),
	}, nil
}
