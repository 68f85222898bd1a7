// Package config handles configuration loading and validation for margin.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Database DatabaseConfig `yaml:"database"`
	Prompts  PromptsConfig  `yaml:"prompts"`
	DataDir  string         `yaml:"-"` // set by caller, not from config file
}

// BackendConfig holds the optimizer backend connection settings. URL may be
// empty, in which case margin runs fully offline and annotations stay local.
type BackendConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Sync           *bool  `yaml:"sync"` // nil means enabled when url is set
}

// SyncEnabled reports whether annotations should be pushed to the backend.
func (b BackendConfig) SyncEnabled() bool {
	if b.URL == "" {
		return false
	}
	if b.Sync == nil {
		return true
	}
	return *b.Sync
}

// DatabaseConfig holds SQLite connection pool settings.
type DatabaseConfig struct {
	MaxOpenConns  int `yaml:"max_open_conns"`
	MaxIdleConns  int `yaml:"max_idle_conns"`
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

// PromptsConfig controls prompt file discovery for the session picker.
type PromptsConfig struct {
	// Include is a list of glob patterns matched against the working
	// directory. Empty means the built-in defaults.
	Include []string `yaml:"include"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			TimeoutSeconds: 30,
		},
		Database: DatabaseConfig{
			MaxOpenConns:  1,
			MaxIdleConns:  1,
			BusyTimeoutMS: 5000,
		},
		Prompts: PromptsConfig{
			Include: []string{"**/*.txt", "**/*.md"},
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = defaults.Backend.TimeoutSeconds
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = defaults.Database.BusyTimeoutMS
	}
	if len(c.Prompts.Include) == 0 {
		c.Prompts.Include = defaults.Prompts.Include
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Backend.TimeoutSeconds < 1 {
		return fmt.Errorf("backend.timeout_seconds must be at least 1")
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}

	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("database.busy_timeout_ms cannot be negative")
	}

	return nil
}

// DatabaseFile returns the path to the SQLite database file.
func (c *Config) DatabaseFile() string {
	return filepath.Join(c.DataDir, "margin.db")
}
