// Package config loads host configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config holds all filter host configuration
type Config struct {
	// PluginDirs are the directories scanned for filter modules.
	PluginDirs []string

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string

	// MetricsEnabled toggles Prometheus metric reporting.
	MetricsEnabled bool

	// WatchEnabled toggles runtime watching of plugin directories.
	WatchEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		PluginDirs:     splitPathList(getEnv("TENSORPLUG_PLUGIN_DIRS", strings.Join(DefaultPluginDirs(), string(os.PathListSeparator)))),
		LogLevel:       getEnv("TENSORPLUG_LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("TENSORPLUG_METRICS_ENABLED", true),
		WatchEnabled:   getEnvBool("TENSORPLUG_WATCH_ENABLED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if len(c.PluginDirs) == 0 {
		return fmt.Errorf("at least one plugin directory is required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

// DefaultPluginDirs returns the default module search directories
func DefaultPluginDirs() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}

	return []string{
		filepath.Join(homeDir, ".tensorplug", "plugins"),
		"/etc/tensorplug/plugins",
		"./plugins", // Current directory
	}
}

func splitPathList(value string) []string {
	var dirs []string
	for _, dir := range strings.Split(value, string(os.PathListSeparator)) {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// getEnv returns an environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
