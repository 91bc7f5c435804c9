package config

import (
	"path/filepath"
	"time"
)

const (
	// DependencyConfigVersion keys the on-disk layout of fetched dependencies.
	// Bumping it makes every installation re-clone into a fresh directory.
	DependencyConfigVersion = "v1"

	// DependenciesCacheDirEnvKey is exported to docker compose so compose files can
	// include files from other repositories' checkouts.
	DependenciesCacheDirEnvKey = "DEVCTL_DEPENDENCIES_CACHE_DIR"

	// MinimumDockerComposeVersion is the oldest compose release devctl drives.
	MinimumDockerComposeVersion = "2.21.0"
)

// Config is the top-level configuration structure for devctl.
type Config struct {
	Coderoot            string        `mapstructure:"coderoot" yaml:"coderoot"`
	CacheDir            string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	LocalDir            string        `mapstructure:"local_dir" yaml:"local_dir"`
	NetworkName         string        `mapstructure:"network_name" yaml:"network_name"`
	Concurrency         int           `mapstructure:"concurrency" yaml:"concurrency"`
	HealthcheckTimeout  time.Duration `mapstructure:"healthcheck_timeout" yaml:"healthcheck_timeout"`
	HealthcheckInterval time.Duration `mapstructure:"healthcheck_interval" yaml:"healthcheck_interval"`
	LogLevel            string        `mapstructure:"log_level" yaml:"log_level"`
	// UpdateRepository is the GitHub "owner/repo" slug used by self-update.
	UpdateRepository string `mapstructure:"update_repository" yaml:"update_repository"`
}

// DependenciesCacheDir is the root of all fetched remote dependencies.
func (c Config) DependenciesCacheDir() string {
	return filepath.Join(c.CacheDir, "dependencies")
}

// VersionedDependenciesDir is where clones for the current dependency config version live.
func (c Config) VersionedDependenciesDir() string {
	return filepath.Join(c.DependenciesCacheDir(), DependencyConfigVersion)
}

// StateDBPath is the embedded database holding service state.
func (c Config) StateDBPath() string {
	return filepath.Join(c.LocalDir, "state.db")
}

// SupervisorDir holds generated supervisord configs, sockets and pid files.
func (c Config) SupervisorDir() string {
	return filepath.Join(c.LocalDir, "supervisor")
}
