package config

import (
	"path/filepath"
	"runtime"
	"time"
)

const (
	defaultNetworkName         = "devservices"
	defaultHealthcheckTimeout  = 45 * time.Second
	defaultHealthcheckInterval = 5 * time.Second
	defaultLogLevel            = "warn"
	defaultUpdateRepository    = "devctl/devctl"
)

// GetDefaultConfig returns the configuration used when no file or environment
// override is present. homeDir anchors all user-specific paths.
func GetDefaultConfig(homeDir string) Config {
	concurrency := runtime.NumCPU()
	if concurrency < 4 {
		concurrency = 4
	}
	return Config{
		Coderoot:            filepath.Join(homeDir, "code"),
		CacheDir:            filepath.Join(homeDir, ".cache", "devctl"),
		LocalDir:            filepath.Join(homeDir, ".local", "share", "devctl"),
		NetworkName:         defaultNetworkName,
		Concurrency:         concurrency,
		HealthcheckTimeout:  defaultHealthcheckTimeout,
		HealthcheckInterval: defaultHealthcheckInterval,
		LogLevel:            defaultLogLevel,
		UpdateRepository:    defaultUpdateRepository,
	}
}
