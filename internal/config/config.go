// Package config handles the configuration management for autolock.
// It provides functionality to load, save, and validate the configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/autolock-cli/autolock/internal/lock"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputAuto  = "auto"
)

// Config represents the autolock configuration
type Config struct {
	RuntimeDir   string   `yaml:"runtime_dir"`
	LockMode     string   `yaml:"lock_mode"`
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
	OutputFormat string   `yaml:"output_format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RuntimeDir:   DefaultRuntimeDir(),
		LockMode:     lock.DefaultMode.String(),
		Include:      []string{},
		Exclude:      []string{},
		OutputFormat: OutputAuto,
	}
}

// DefaultRuntimeDir prefers $XDG_RUNTIME_DIR and falls back to the temp dir
func DefaultRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "autolock")
	}
	return filepath.Join(os.TempDir(), "autolock")
}

// DefaultPath returns $HOME/.config/autolock/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "autolock", "config.yaml"), nil
}

// Mode parses the configured lock mode
func (c *Config) Mode() (lock.Mode, error) {
	return lock.ParseMode(c.LockMode)
}

// Validate checks the lock mode and output format
func (c *Config) Validate() error {
	if _, err := c.Mode(); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "", OutputTable, OutputJSON, OutputAuto:
	default:
		return fmt.Errorf("unsupported output format %q", c.OutputFormat)
	}
	if c.RuntimeDir == "" {
		return fmt.Errorf("runtime_dir must not be empty")
	}
	return nil
}

// LoadConfig loads configuration from file or returns default
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Create default config file
		if err := SaveConfig(cfg, configPath); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", cleanPath, err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, configPath string) error {
	cleanPath := filepath.Clean(configPath)

	// Create directory if it doesn't exist
	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
