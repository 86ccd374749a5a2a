// Package config holds all plannerd configuration: reasoning provider
// settings, review/session knobs, logging, and the HTTP server.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all plannerd configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// DataDir is where logs and the sqlite database live.
	DataDir string `yaml:"data_dir"`

	Reasoning ReasoningConfig `yaml:"reasoning"`
	Review    ReviewConfig    `yaml:"review"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
}

// LoggingConfig configures the category logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"` // debug/info/warn/error
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr                   string `yaml:"addr"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Name:      "plannerd",
		Version:   "0.3.0",
		DataDir:   ".plannerd",
		Reasoning: DefaultReasoningConfig(),
		Review:    DefaultReviewConfig(),
		Logging:   LoggingConfig{Level: "info"},
		Server: ServerConfig{
			Addr:                   ":8787",
			ShutdownTimeoutSeconds: 10,
		},
	}
}

// Load reads configuration from path, layering it over defaults and
// then applying environment overrides. A missing file is not an
// error; defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the configuration to path.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLANNERD_API_KEY"); v != "" {
		cfg.Reasoning.APIKey = v
	}
	if v := os.Getenv("PLANNERD_MODEL"); v != "" {
		cfg.Reasoning.Model = v
	}
	if v := os.Getenv("PLANNERD_PROVIDER"); v != "" {
		cfg.Reasoning.Provider = v
	}
	if v := os.Getenv("PLANNERD_BASE_URL"); v != "" {
		cfg.Reasoning.BaseURL = v
	}
	if v := os.Getenv("PLANNERD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PLANNERD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}
