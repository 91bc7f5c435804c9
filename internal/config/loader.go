package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"devctl/pkg/logging"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

const (
	userConfigDir  = ".config/devctl"
	configFileName = "config.yaml"
	envPrefix      = "DEVCTL"
)

// ErrInvalidConfig is returned when a loaded value fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig layers defaults, the config file and DEVCTL_* environment variables.
// An empty path selects ~/.config/devctl/config.yaml; a missing default file is not an error,
// a missing explicit file is.
func LoadConfig(path string) (Config, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("failed to determine home directory: %w", err)
	}

	defaults := GetDefaultConfig(homeDir)
	v := viper.New()
	setDefaults(v, defaults)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, userConfigDir, configFileName)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotFound(err) {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		logging.Debug("Config", "No config file at %s, using defaults", path)
	} else {
		logging.Debug("Config", "Loaded config file %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Coderoot = expandHome(cfg.Coderoot, homeDir)
	cfg.CacheDir = expandHome(cfg.CacheDir, homeDir)
	cfg.LocalDir = expandHome(cfg.LocalDir, homeDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted meaningfully.
func (c Config) Validate() error {
	switch {
	case c.Coderoot == "":
		return fmt.Errorf("%w: coderoot must not be empty", ErrInvalidConfig)
	case c.CacheDir == "":
		return fmt.Errorf("%w: cache_dir must not be empty", ErrInvalidConfig)
	case c.LocalDir == "":
		return fmt.Errorf("%w: local_dir must not be empty", ErrInvalidConfig)
	case c.NetworkName == "":
		return fmt.Errorf("%w: network_name must not be empty", ErrInvalidConfig)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	case c.HealthcheckTimeout <= 0:
		return fmt.Errorf("%w: healthcheck_timeout must be positive", ErrInvalidConfig)
	case c.HealthcheckInterval <= 0:
		return fmt.Errorf("%w: healthcheck_interval must be positive", ErrInvalidConfig)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("coderoot", d.Coderoot)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("local_dir", d.LocalDir)
	v.SetDefault("network_name", d.NetworkName)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("healthcheck_timeout", d.HealthcheckTimeout)
	v.SetDefault("healthcheck_interval", d.HealthcheckInterval)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("update_repository", d.UpdateRepository)
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func expandHome(p, homeDir string) string {
	if p == "~" {
		return homeDir
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir, p[2:])
	}
	return p
}
