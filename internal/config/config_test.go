package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	assert.Equal(t, "morph-v3-large", cfg.Applier.Model)
	assert.Equal(t, "https://api.morphllm.com/v1", cfg.Applier.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Planner.Timeout())
	assert.Equal(t, "src/app", cfg.Workspace.AppDir)
	assert.Equal(t, "page.tsx", cfg.Workspace.EntryPage)
	assert.Equal(t, []string{"layout.tsx", "clientbody.tsx"}, cfg.Workspace.ProtectedFiles)
	assert.Equal(t, "memory", cfg.Registry.Backend)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrent)
	assert.Equal(t, time.Hour, cfg.Deploy.RoutingTTL())
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"planner": {"provider": "anthropic", "model": "claude-opus-4-20250514", "timeout_seconds": 45},
		"workspace": {"frontend_root": "web", "app_dir": "app"},
		"registry": {"backend": "sqlite", "path": "/tmp/reg.db"},
		"engine": {"max_concurrent": 1}
	}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Planner.Provider)
	assert.Equal(t, "claude-opus-4-20250514", cfg.Planner.Model)
	assert.Equal(t, 45*time.Second, cfg.Planner.Timeout())
	assert.Equal(t, "web", cfg.Workspace.FrontendRoot)
	assert.Equal(t, "app", cfg.Workspace.AppDir)
	// Unset fields still default
	assert.Equal(t, "src/components", cfg.Workspace.ComponentsDir)
	assert.Equal(t, "sqlite", cfg.Registry.Backend)
	assert.Equal(t, 1, cfg.Engine.MaxConcurrent)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
planner:
  provider: gemini
  gemini_api_key: test-key
applier:
  model: morph-v3-fast
deploy:
  routing_ttl_seconds: 600
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Planner.Provider)
	assert.Equal(t, "test-key", cfg.Planner.GeminiAPIKey)
	assert.Equal(t, "morph-v3-fast", cfg.Applier.Model)
	assert.Equal(t, 10*time.Minute, cfg.Deploy.RoutingTTL())
}

func TestEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"planner": {"anthropic_api_key": "from-file"},
		"applier": {"api_key": "from-file"}
	}`), 0644))

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("MORPH_API_KEY", "morph-env")
	t.Setenv("POSTHOG_API_BASE", "https://eu.posthog.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Planner.AnthropicAPIKey)
	assert.Equal(t, "morph-env", cfg.Applier.APIKey)
	assert.Equal(t, "https://eu.posthog.com", cfg.Behavior.BaseURL)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
