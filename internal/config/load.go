package config

import (
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
	cfg.normalize()

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
		return filepath.Join(home, "Library", "Application Support", "Vibble")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Vibble")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "vibble")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "vibble")
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

// normalize repairs values that would break the pipeline.
func (c *Config) normalize() {
	if c.World.RemoveThreshold < c.World.LockThreshold {
		c.World.RemoveThreshold = c.World.LockThreshold
	}
	if c.World.TrailAttempts <= 0 {
		c.World.TrailAttempts = 1000
	}
	if c.World.IsolatedPassLimit <= 0 {
		c.World.IsolatedPassLimit = 200
	}
	if c.Rebuild.Python == "" {
		c.Rebuild.Python = "python"
	}
	if c.Camera.ZoomHigh < c.Camera.ZoomLow {
		c.Camera.ZoomLow, c.Camera.ZoomHigh = c.Camera.ZoomHigh, c.Camera.ZoomLow
	}
}
