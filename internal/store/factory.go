package store

import (
	"fmt"

	"tailor/internal/config"
	"tailor/internal/types"
)

// NewFromConfig builds the registry backend named in cfg.
func NewFromConfig(cfg config.RegistryConfig) (types.DeploymentRegistry, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
	}
}
