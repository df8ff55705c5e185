package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.True(t, cfg.UI.ShowProgressBar)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Server.BaseURL = "" }},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }},
		{"bad theme mode", func(c *Config) { c.UI.ThemeMode = "solarized" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDraftDBPath(t *testing.T) {
	cfg := Defaults()
	cfg.HomeDir = "/tmp/acta-home"
	assert.Equal(t, filepath.Join("/tmp/acta-home", "actaflow.db"), cfg.DraftDBPath())
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url")
	assert.Contains(t, string(data), "tracing")
}
