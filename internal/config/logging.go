package config

// LoggingConfig controls the categorized file logger. Mirrored by
// internal/logging, which reads it straight from the config file to
// avoid an import cycle.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode" yaml:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty" yaml:"categories,omitempty"`
	Level      string          `json:"level,omitempty" yaml:"level,omitempty"`
	JSONFormat bool            `json:"json_format,omitempty" yaml:"json_format,omitempty"`
}
