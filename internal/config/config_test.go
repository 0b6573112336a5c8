// ABOUTME: Tests for configuration loading
// ABOUTME: Verifies YAML parsing, defaults, and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const validConfig = `
server:
  port: 9000
upstream:
  endpoint: wss://models.example.com/v1/live
  api_key: secret-key
  model: voice-1
auth:
  secret: jwt-secret
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port: expected 9000, got %d", cfg.Server.Port)
	}
	if cfg.Upstream.Model != "voice-1" {
		t.Errorf("model: expected voice-1, got %q", cfg.Upstream.Model)
	}
	// Defaults fill in anything the file omits
	if cfg.Upstream.InputSampleRate != 16000 {
		t.Errorf("expected default input sample rate, got %d", cfg.Upstream.InputSampleRate)
	}
	if cfg.Credits.TurnCost != 1 {
		t.Errorf("expected default turn cost, got %d", cfg.Credits.TurnCost)
	}
	if cfg.Artifacts.Dir == "" {
		t.Error("expected default artifacts dir")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [not a map")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing upstream endpoint", func(c *Config) { c.Upstream.Endpoint = "" }},
		{"missing auth secret", func(c *Config) { c.Auth.Secret = "" }},
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"bad sample rate", func(c *Config) { c.Upstream.InputSampleRate = 0 }},
		{"credits enabled without endpoint", func(c *Config) {
			c.Credits.Enabled = true
			c.Credits.Endpoint = ""
		}},
		{"negative turn cost", func(c *Config) { c.Credits.TurnCost = -5 }},
		{"missing artifacts dir", func(c *Config) { c.Artifacts.Dir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Upstream.Endpoint = "wss://example.com"
			cfg.Auth.Secret = "s"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
