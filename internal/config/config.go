// Package config provides configuration types and defaults for actaflow.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ServerConfig holds connection settings for the generation backend.
type ServerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"` // non-streaming calls only
}

// TracingConfig selects the OpenTelemetry exporter.
type TracingConfig struct {
	// Exporter is one of "none", "stdout", "otlp".
	Exporter string `mapstructure:"exporter"`
	// Endpoint is the OTLP gRPC target, e.g. "localhost:4317".
	Endpoint string `mapstructure:"endpoint"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	ShowProgressBar bool   `mapstructure:"show_progress_bar"`
	ThemeMode       string `mapstructure:"theme_mode"` // "light", "dark", "" for terminal detection
}

// Config holds all configuration options for actaflow.
type Config struct {
	HomeDir string        `mapstructure:"home_dir"`
	Debug   bool          `mapstructure:"debug"`
	Server  ServerConfig  `mapstructure:"server"`
	Tracing TracingConfig `mapstructure:"tracing"`
	UI      UIConfig      `mapstructure:"ui"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		HomeDir: DefaultHomeDir(),
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Tracing: TracingConfig{
			Exporter: "none",
			Endpoint: "localhost:4317",
		},
		UI: UIConfig{
			ShowProgressBar: true,
		},
	}
}

// DefaultHomeDir returns ~/.actaflow, falling back to the working
// directory when the home directory cannot be resolved.
func DefaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".actaflow"
	}
	return filepath.Join(home, ".actaflow")
}

// DraftDBPath returns the path of the draft snapshot database.
func (c Config) DraftDBPath() string {
	return filepath.Join(c.HomeDir, "actaflow.db")
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be one of none, stdout, otlp; got %q", c.Tracing.Exporter)
	}
	switch c.UI.ThemeMode {
	case "", "light", "dark":
	default:
		return fmt.Errorf("ui.theme_mode must be light, dark or empty; got %q", c.UI.ThemeMode)
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Actaflow Configuration

# Backend connection
server:
  base_url: http://localhost:8000
  # api_key: your-key-here
  timeout: 30s   # non-streaming calls; streams have no timeout

# Verbose logging to ~/.actaflow/logs/actaflow.log
debug: false

# OpenTelemetry tracing
tracing:
  exporter: none   # none | stdout | otlp
  endpoint: localhost:4317

# UI settings
ui:
  show_progress_bar: true
  # theme_mode: dark   # light | dark | empty for terminal detection
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
