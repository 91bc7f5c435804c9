package app

import (
	"devctl/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug switches logging to debug level regardless of the configured level.
	Debug bool

	// ConfigPath is an explicit config file; empty uses the default location.
	ConfigPath string

	// DevctlConfig is filled in by NewApplication.
	DevctlConfig *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
