package websearch

import (
	"frameworks/truthcheck/internal/config"
)

// NewProviders builds every provider for which credentials are present
// in cfg. Unlike the teacher's single-provider NewProvider factory,
// S3's run_web_async fans queries out to *all* configured providers in
// parallel per §4.2, so this wires in as many as are configured rather
// than picking one.
func NewProviders(cfg config.Config) ([]Provider, error) {
	var providers []Provider

	if cfg.BraveAPIKey != "" {
		p, err := NewBraveProvider(cfg.BraveAPIKey, cfg.BraveAPIURL)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.TavilyAPIKey != "" {
		p, err := NewTavilyProvider(cfg.TavilyAPIKey, cfg.TavilyAPIURL)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.SearxngAPIURL != "" {
		p, err := NewSearxngProvider(cfg.SearxngAPIURL)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	// Legacy single-provider knobs (SEARCH_PROVIDER/SEARCH_API_KEY) are
	// honored too, so a deployment configured the old way still gets a
	// provider even if none of the named env vars above are set.
	if len(providers) == 0 && cfg.SearchAPIKey != "" {
		switch cfg.SearchProvider {
		case "tavily":
			p, err := NewTavilyProvider(cfg.SearchAPIKey, cfg.SearchAPIURL)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		case "searxng":
			p, err := NewSearxngProvider(cfg.SearchAPIURL)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		default:
			p, err := NewBraveProvider(cfg.SearchAPIKey, cfg.SearchAPIURL)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
	}

	return providers, nil
}

// concurrencyFor maps a provider's position in the configured list to
// its gate size: the first two providers get the NAVER_/DDG_ named
// caps (inherited env var names), any further provider uses a default
// gate of 3 per §4.2.
func concurrencyFor(cfg config.Config, index int) int {
	switch index {
	case 0:
		return cfg.NaverMaxConcurrency
	case 1:
		return cfg.DDGMaxConcurrency
	default:
		return 3
	}
}
