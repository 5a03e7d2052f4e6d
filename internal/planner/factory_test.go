package planner

import "tailor/internal/config"

// cfgWith builds a minimal planner config for factory tests.
func cfgWith(provider, anthropicKey, geminiKey string) *config.PlannerConfig {
	cfg := &config.PlannerConfig{
		Provider:        provider,
		AnthropicAPIKey: anthropicKey,
		GeminiAPIKey:    geminiKey,
		TimeoutSeconds:  5,
	}
	return cfg
}
