package config

import "time"

// PlannerConfig configures the reasoning model that proposes edits.
//
// Supported providers:
//   - anthropic: claude-sonnet-4-20250514 (default), claude-opus-4-20250514
//   - gemini:    gemini-2.5-pro, gemini-2.5-flash
type PlannerConfig struct {
	// Provider selection (anthropic, gemini). Empty means auto-detect
	// from whichever API key is configured, anthropic first.
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// API keys per provider.
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty" yaml:"anthropic_api_key,omitempty"`
	GeminiAPIKey    string `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty"`

	// Optional model override.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// BaseURL override for the anthropic provider (proxies, test servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// TimeoutSeconds bounds a single plan call. Default 60.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`

	// MaxTokens for the completion. Default 2000.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

func (c *PlannerConfig) applyDefaults() {
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
}

// Timeout returns the planner call timeout as a duration.
func (c *PlannerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ApplierConfig configures the fast-apply model that merges a change
// plan into a source file (OpenAI-compatible chat API).
type ApplierConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`

	// TimeoutSeconds bounds a single apply call. Default 60.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

func (c *ApplierConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.morphllm.com/v1"
	}
	if c.Model == "" {
		c.Model = "morph-v3-large"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
}

// Timeout returns the applier call timeout as a duration.
func (c *ApplierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
