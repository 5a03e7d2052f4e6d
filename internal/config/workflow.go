package config

import "time"

// WorkspaceConfig describes the frontend tree the engine mutates.
type WorkspaceConfig struct {
	// FrontendRoot is the repo root that git commands run in.
	FrontendRoot string `json:"frontend_root,omitempty" yaml:"frontend_root,omitempty"`

	// AppDir is the templated-pages directory relative to FrontendRoot.
	AppDir string `json:"app_dir,omitempty" yaml:"app_dir,omitempty"`

	// ComponentsDir is the read-only component library relative to
	// FrontendRoot, included in prompts as do-not-touch reference.
	ComponentsDir string `json:"components_dir,omitempty" yaml:"components_dir,omitempty"`

	// EntryPage is the page file swapped for the placeholder view,
	// relative to AppDir.
	EntryPage string `json:"entry_page,omitempty" yaml:"entry_page,omitempty"`

	// ProtectedFiles are exact lowercase filenames the engine never edits.
	ProtectedFiles []string `json:"protected_files,omitempty" yaml:"protected_files,omitempty"`
}

func (c *WorkspaceConfig) applyDefaults() {
	if c.FrontendRoot == "" {
		c.FrontendRoot = "frontend"
	}
	if c.AppDir == "" {
		c.AppDir = "src/app"
	}
	if c.ComponentsDir == "" {
		c.ComponentsDir = "src/components"
	}
	if c.EntryPage == "" {
		c.EntryPage = "page.tsx"
	}
	if len(c.ProtectedFiles) == 0 {
		c.ProtectedFiles = []string{"layout.tsx", "clientbody.tsx"}
	}
}

// BehaviorConfig configures the analytics source.
type BehaviorConfig struct {
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`

	// SampleFile, when set, is read instead of querying the API. Used
	// for demo runs and offline development.
	SampleFile string `json:"sample_file,omitempty" yaml:"sample_file,omitempty"`

	// TimeoutSeconds bounds one analytics query. Default 30.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

func (c *BehaviorConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://us.posthog.com"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
}

// Timeout returns the analytics query timeout as a duration.
func (c *BehaviorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DeployConfig configures the deployment and routing provider.
type DeployConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Domain is the apex under which per-user subdomains are created.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`

	// RoutingTTLSeconds is the cache TTL on routing rules. Default 3600.
	RoutingTTLSeconds int `json:"routing_ttl_seconds,omitempty" yaml:"routing_ttl_seconds,omitempty"`

	// TimeoutSeconds bounds one provider call. Default 60.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

func (c *DeployConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.freestyle.sh"
	}
	if c.Domain == "" {
		c.Domain = "freestyle.sh"
	}
	if c.RoutingTTLSeconds == 0 {
		c.RoutingTTLSeconds = 3600
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
}

// RoutingTTL returns the routing cache TTL as a duration.
func (c *DeployConfig) RoutingTTL() time.Duration {
	return time.Duration(c.RoutingTTLSeconds) * time.Second
}

// Timeout returns the provider call timeout as a duration.
func (c *DeployConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RegistryConfig selects the deployment-registry backend.
type RegistryConfig struct {
	// Backend: "memory" (default) or "sqlite".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// Path to the SQLite database when Backend is "sqlite".
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (c *RegistryConfig) applyDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Path == "" {
		c.Path = ".tailor/registry.db"
	}
}

// EngineConfig tunes the orchestrator.
type EngineConfig struct {
	// MaxConcurrent bounds the per-file planner/applier fan-out.
	// 1 disables parallelism. Default 4.
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`

	// GitTimeoutSeconds bounds each git subprocess call. Default 30.
	GitTimeoutSeconds int `json:"git_timeout_seconds,omitempty" yaml:"git_timeout_seconds,omitempty"`
}

func (c *EngineConfig) applyDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 4
	}
	if c.GitTimeoutSeconds == 0 {
		c.GitTimeoutSeconds = 30
	}
}

// GitTimeout returns the git subprocess timeout as a duration.
func (c *EngineConfig) GitTimeout() time.Duration {
	return time.Duration(c.GitTimeoutSeconds) * time.Second
}
