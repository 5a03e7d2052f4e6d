package planner

import (
	"context"
	"fmt"

	"tailor/internal/config"
)

// Provider identifies a planner LLM backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// NewClientFromConfig resolves the configured provider and builds its
// client. When no provider is set, keys are tried in priority order:
// anthropic first, then gemini.
func NewClientFromConfig(ctx context.Context, cfg *config.PlannerConfig) (LLMClient, error) {
	provider := Provider(cfg.Provider)
	if provider == "" {
		switch {
		case cfg.AnthropicAPIKey != "":
			provider = ProviderAnthropic
		case cfg.GeminiAPIKey != "":
			provider = ProviderGemini
		default:
			return nil, fmt.Errorf("no planner API key configured")
		}
	}

	switch provider {
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider selected but no API key configured")
		}
		ac := DefaultAnthropicConfig(cfg.AnthropicAPIKey)
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			ac.BaseURL = cfg.BaseURL
		}
		ac.MaxTokens = cfg.MaxTokens
		ac.Timeout = cfg.Timeout()
		return NewAnthropicClientWithConfig(ac), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider selected but no API key configured")
		}
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.Model, cfg.MaxTokens)

	default:
		return nil, fmt.Errorf("unknown planner provider %q", provider)
	}
}
