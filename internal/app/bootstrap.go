package app

import (
	"fmt"
	"os"

	"devctl/internal/config"
	"devctl/internal/console"
	"devctl/internal/utils"
	"devctl/pkg/logging"
)

// Application is the main application structure that bootstraps devctl
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initializes logging and wires the services.
func NewApplication(cfg *Config) (*Application, error) {
	// Logging goes to stderr so it never interleaves with command output.
	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	devctlCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load devctl configuration")
		return nil, fmt.Errorf("failed to load devctl configuration: %w", err)
	}
	cfg.DevctlConfig = &devctlCfg

	level := logging.ParseLevel(devctlCfg.LogLevel)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)
	logging.Debug("Bootstrap", "Coderoot %s, cache %s, state %s",
		devctlCfg.Coderoot, devctlCfg.CacheDir, devctlCfg.StateDBPath())

	services, err := InitializeServices(devctlCfg, console.Stdout(), utils.NewExecRunner())
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the wired services.
func (a *Application) Services() *Services {
	return a.services
}

// Config returns the resolved application configuration.
func (a *Application) Config() *Config {
	return a.config
}

// Close releases resources held by the application.
func (a *Application) Close() error {
	return a.services.Close()
}
