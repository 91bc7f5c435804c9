package app

import (
	"fmt"

	"devctl/internal/compose"
	"devctl/internal/config"
	"devctl/internal/console"
	"devctl/internal/dependency"
	"devctl/internal/descriptor"
	"devctl/internal/docker"
	"devctl/internal/orchestrator"
	"devctl/internal/state"
	"devctl/internal/supervisor"
	"devctl/internal/utils"
	"devctl/internal/workerpool"
)

// Services holds everything a command needs, built once per process.
type Services struct {
	Orchestrator *orchestrator.Orchestrator
	Store        *state.Store
	Installer    *dependency.Installer
	Console      *console.Console
}

// InitializeServices opens the state store and wires the orchestrator.
func InitializeServices(cfg config.Config, out *console.Console, runner utils.CommandRunner) (*Services, error) {
	store, err := state.Open(cfg.StateDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	pool := workerpool.New(cfg.Concurrency)
	installer := dependency.NewInstaller(cfg.DependenciesCacheDir(), runner, pool)
	supervisorDir := cfg.SupervisorDir()

	orch := orchestrator.New(orchestrator.Config{
		NetworkName:           cfg.NetworkName,
		MinimumComposeVersion: config.MinimumDockerComposeVersion,
	}, orchestrator.Deps{
		Finder:    descriptor.NewFinder(cfg.Coderoot),
		Store:     store,
		Installer: installer,
		Compose:   compose.NewRunner(runner, pool, cfg.VersionedDependenciesDir()),
		Docker:    docker.NewClient(runner, pool, out, cfg.HealthcheckInterval, cfg.HealthcheckTimeout),
		Programs: func(svc descriptor.Service) supervisor.ProgramManager {
			return supervisor.NewManager(runner, supervisorDir, svc)
		},
		Console: out,
	})

	return &Services{
		Orchestrator: orch,
		Store:        store,
		Installer:    installer,
		Console:      out,
	}, nil
}

// Close releases the state store.
func (s *Services) Close() error {
	return s.Store.Close()
}
