package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "physbox")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "physbox")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "physbox")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "physbox")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ErrInvalid is returned by Validate for settings the simulation cannot run with.
var ErrInvalid = errors.New("invalid config")

// Validate checks values that would stall or destabilize the simulation.
func (c *Config) Validate() error {
	if c.Simulation.TimeStep <= 0 || c.Simulation.TimeStep > 0.1 {
		return fmt.Errorf("%w: simulation.time_step must be in (0, 0.1], got %v", ErrInvalid, c.Simulation.TimeStep)
	}
	if c.Simulation.Iterations <= 0 {
		return fmt.Errorf("%w: simulation.iterations must be positive, got %d", ErrInvalid, c.Simulation.Iterations)
	}
	if c.Lighting.Ambient < 0 || c.Lighting.Ambient > 1 {
		return fmt.Errorf("%w: lighting.ambient must be in [0, 1], got %v", ErrInvalid, c.Lighting.Ambient)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	return nil
}
