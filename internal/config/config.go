// Package config loads tailor configuration from .tailor/config.json
// (or a YAML file), with environment-variable overrides for secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// UserConfig holds ALL tailor configuration. This is the single source
// of truth: the CLI, the engine, and the deployment workflow all read
// from here.
type UserConfig struct {
	// =========================================================================
	// AI BACKEND CONFIGURATION
	// =========================================================================

	// Planner is the reasoning model that proposes edits.
	Planner *PlannerConfig `json:"planner,omitempty" yaml:"planner,omitempty"`

	// Applier is the fast-apply model that merges edits into source files.
	Applier *ApplierConfig `json:"applier,omitempty" yaml:"applier,omitempty"`

	// =========================================================================
	// TARGET TREE
	// =========================================================================

	// Workspace settings: where the frontend lives and what may be touched.
	Workspace *WorkspaceConfig `json:"workspace,omitempty" yaml:"workspace,omitempty"`

	// =========================================================================
	// EXTERNAL SERVICES
	// =========================================================================

	// Behavior analytics source (PostHog-compatible).
	Behavior *BehaviorConfig `json:"behavior,omitempty" yaml:"behavior,omitempty"`

	// Deployment provider settings.
	Deploy *DeployConfig `json:"deploy,omitempty" yaml:"deploy,omitempty"`

	// Registry persistence settings.
	Registry *RegistryConfig `json:"registry,omitempty" yaml:"registry,omitempty"`

	// =========================================================================
	// ENGINE TUNING
	// =========================================================================

	Engine *EngineConfig `json:"engine,omitempty" yaml:"engine,omitempty"`

	// =========================================================================
	// LOGGING
	// =========================================================================

	Logging *LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// DefaultUserConfigPath returns the default path to .tailor/config.json
// relative to the current working directory.
func DefaultUserConfigPath() string {
	return filepath.Join(".tailor", "config.json")
}

// Load reads a config file, applies environment overrides, and fills in
// defaults. A missing file is not an error: env vars alone can carry a
// working configuration.
func Load(path string) (*UserConfig, error) {
	if path == "" {
		path = DefaultUserConfigPath()
	}

	cfg := &UserConfig{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if isYAML(path) {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	case os.IsNotExist(err):
		// Fall through to env + defaults.
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyEnvOverrides lets environment variables win over file values for
// secrets and endpoints. Priority: env > file.
func (c *UserConfig) applyEnvOverrides() {
	if c.Planner == nil {
		c.Planner = &PlannerConfig{}
	}
	if c.Applier == nil {
		c.Applier = &ApplierConfig{}
	}
	if c.Behavior == nil {
		c.Behavior = &BehaviorConfig{}
	}
	if c.Deploy == nil {
		c.Deploy = &DeployConfig{}
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Planner.AnthropicAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Planner.GeminiAPIKey = v
	}
	if v := os.Getenv("TAILOR_PLANNER_PROVIDER"); v != "" {
		c.Planner.Provider = v
	}
	if v := os.Getenv("TAILOR_PLANNER_MODEL"); v != "" {
		c.Planner.Model = v
	}
	if v := os.Getenv("MORPH_API_KEY"); v != "" {
		c.Applier.APIKey = v
	}
	if v := os.Getenv("TAILOR_APPLIER_BASE_URL"); v != "" {
		c.Applier.BaseURL = v
	}
	if v := os.Getenv("POSTHOG_API_KEY"); v != "" {
		c.Behavior.APIKey = v
	}
	if v := os.Getenv("POSTHOG_API_BASE"); v != "" {
		c.Behavior.BaseURL = v
	}
	if v := os.Getenv("POSTHOG_PROJECT_ID"); v != "" {
		c.Behavior.ProjectID = v
	}
	if v := os.Getenv("FREESTYLE_API_KEY"); v != "" {
		c.Deploy.APIKey = v
	}
	if v := os.Getenv("FREESTYLE_API_BASE"); v != "" {
		c.Deploy.BaseURL = v
	}
}

// applyDefaults fills zero values with working defaults.
func (c *UserConfig) applyDefaults() {
	if c.Planner == nil {
		c.Planner = &PlannerConfig{}
	}
	c.Planner.applyDefaults()

	if c.Applier == nil {
		c.Applier = &ApplierConfig{}
	}
	c.Applier.applyDefaults()

	if c.Workspace == nil {
		c.Workspace = &WorkspaceConfig{}
	}
	c.Workspace.applyDefaults()

	if c.Behavior == nil {
		c.Behavior = &BehaviorConfig{}
	}
	c.Behavior.applyDefaults()

	if c.Deploy == nil {
		c.Deploy = &DeployConfig{}
	}
	c.Deploy.applyDefaults()

	if c.Registry == nil {
		c.Registry = &RegistryConfig{}
	}
	c.Registry.applyDefaults()

	if c.Engine == nil {
		c.Engine = &EngineConfig{}
	}
	c.Engine.applyDefaults()

	if c.Logging == nil {
		c.Logging = &LoggingConfig{Level: "info"}
	}
}
