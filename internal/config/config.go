// ABOUTME: Relay server configuration
// ABOUTME: YAML config file loading, defaults, and validation
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Auth      AuthConfig      `yaml:"auth"`
	Credits   CreditsConfig   `yaml:"credits"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains WebSocket server configuration
type ServerConfig struct {
	Port        int    `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
	MetricsPort int    `yaml:"metrics_port"`
	EnableMDNS  bool   `yaml:"enable_mdns"`
	Name        string `yaml:"name"`
}

// UpstreamConfig describes the model endpoint
type UpstreamConfig struct {
	Endpoint        string `yaml:"endpoint"`
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	InputSampleRate int    `yaml:"input_sample_rate"`
}

// AuthConfig contains credential verification configuration
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// CreditsConfig describes the billing service collaborator
type CreditsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	TurnCost int64  `yaml:"turn_cost"`
}

// ArtifactsConfig controls turn artifact persistence
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	File string `yaml:"file"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8930,
			BindAddress: "0.0.0.0",
			MetricsPort: 9090,
			EnableMDNS:  true,
		},
		Upstream: UpstreamConfig{
			InputSampleRate: 16000,
		},
		Credits: CreditsConfig{
			TurnCost: 1,
		},
		Artifacts: ArtifactsConfig{
			Dir: "artifacts",
		},
		Logging: LoggingConfig{
			File: "voicebridge-server.log",
		},
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be in [0, 65535], got %d", c.Server.MetricsPort)
	}
	if c.Upstream.Endpoint == "" {
		return fmt.Errorf("upstream endpoint is required")
	}
	if c.Upstream.InputSampleRate <= 0 {
		return fmt.Errorf("upstream input sample rate must be positive, got %d", c.Upstream.InputSampleRate)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	if c.Credits.Enabled && c.Credits.Endpoint == "" {
		return fmt.Errorf("credits endpoint is required when credits are enabled")
	}
	if c.Credits.TurnCost < 0 {
		return fmt.Errorf("credits turn cost must be non-negative, got %d", c.Credits.TurnCost)
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts directory is required")
	}
	return nil
}
