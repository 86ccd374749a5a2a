package reasoning

import (
	"context"
	"fmt"

	"plannerd/internal/config"
)

// NewClient builds the provider client named by the configuration.
// "gemini" uses the official SDK; "openai" (and any OpenAI-compatible
// endpoint via base_url) uses the HTTP client.
func NewClient(ctx context.Context, cfg config.ReasoningConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("reasoning API key is required (set PLANNERD_API_KEY)")
	}

	switch cfg.Provider {
	case "gemini", "google":
		return NewGenAIClient(ctx, GenAIConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	case "", "openai":
		hc := DefaultHTTPConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			hc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			hc.Model = cfg.Model
		}
		if cfg.Timeouts.RateLimitDelay > 0 {
			hc.RateGap = cfg.Timeouts.RateLimitDelay
		}
		return NewHTTPClient(hc), nil
	default:
		return nil, fmt.Errorf("unknown reasoning provider %q", cfg.Provider)
	}
}
