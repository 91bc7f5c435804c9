package orchestrator

import (
	"context"
	"fmt"

	"devctl/internal/compose"
	"devctl/internal/dependency"
	"devctl/internal/descriptor"
	"devctl/internal/state"
	"devctl/pkg/logging"
)

// UpOptions control a bring-up.
type UpOptions struct {
	// Mode defaults to descriptor.DefaultMode.
	Mode string
	// ExcludeLocal skips starting remote dependencies that run in the local runtime.
	ExcludeLocal bool
}

// Up brings the named service up in opts.Mode together with everything the
// mode requires. An empty name selects the service in the current directory.
func (o *Orchestrator) Up(ctx context.Context, name string, opts UpOptions) error {
	svc, err := o.finder.Find(ctx, name)
	if err != nil {
		return err
	}
	return o.upService(ctx, svc, opts)
}

func (o *Orchestrator) upService(ctx context.Context, svc descriptor.Service, opts UpOptions) error {
	mode := opts.Mode
	if mode == "" {
		mode = descriptor.DefaultMode
	}
	modes := []string{mode}
	if _, err := svc.Config.ModeDependencies(modes); err != nil {
		return err
	}

	if err := o.preflight(ctx); err != nil {
		return err
	}

	o.console.Warning(fmt.Sprintf("Starting '%s' in mode: '%s'", svc.Name, mode))
	err := o.console.Status(fmt.Sprintf("Starting %s", svc.Name), func() error {
		return o.up(ctx, svc, modes, opts.ExcludeLocal)
	})
	if err != nil {
		logging.Error("Orchestrator", err, "Failed to start %s", svc.Name)
		return fmt.Errorf("failed to start %s: %w", svc.Name, err)
	}
	o.console.Success(fmt.Sprintf("%s started", svc.Name))
	return nil
}

// preflight checks that docker is usable before any state is written.
func (o *Orchestrator) preflight(ctx context.Context) error {
	if err := o.docker.CheckDaemonRunning(ctx); err != nil {
		return err
	}
	return o.docker.CheckComposeVersion(ctx, o.cfg.MinimumComposeVersion)
}

func (o *Orchestrator) up(ctx context.Context, svc descriptor.Service, modes []string, excludeLocal bool) error {
	o.console.Info("Retrieving dependencies")
	remotes, err := o.installer.InstallAndVerify(ctx, svc.Config, modes)
	if err != nil {
		return err
	}

	// Durable intent: recorded before any container is touched.
	for _, mode := range modes {
		if err := o.store.UpdateServiceEntry(ctx, svc.Name, mode, state.StartingServices); err != nil {
			return err
		}
	}

	if err := o.docker.CreateNetwork(ctx, o.cfg.NetworkName); err != nil {
		return err
	}

	g, err := o.graphFor(ctx, svc, modes)
	if err != nil {
		return err
	}
	order, err := g.StartOrder()
	if err != nil {
		return err
	}

	containerized, err := o.startLocalDependencies(ctx, remotes, excludeLocal)
	if err != nil {
		return err
	}

	modeDeps, err := svc.Config.ModeDependencies(modes)
	if err != nil {
		return err
	}
	cmds, err := compose.BuildCommands(ctx, svc, modeDeps, sortByStartOrder(containerized, order), compose.VerbUp, compose.UpOptions)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		for _, s := range c.Services {
			o.console.Info(fmt.Sprintf("Starting %s", s))
		}
	}
	if err := o.compose.RunAll(ctx, cmds); err != nil {
		return err
	}

	containers, err := o.compose.AllContainerNames(ctx, cmds)
	if err != nil {
		return err
	}
	o.console.Info("Waiting for containers to be healthy")
	if err := o.docker.WaitForAllHealthy(ctx, containers); err != nil {
		return err
	}

	if programs := supervisorPrograms(svc.Config, modeDeps); len(programs) > 0 {
		pm := o.programs(svc)
		for _, p := range programs {
			o.console.Info(fmt.Sprintf("Starting %s", p))
			if err := pm.StartProcess(ctx, p); err != nil {
				return err
			}
		}
	}

	for _, mode := range modes {
		if err := o.store.UpdateServiceEntry(ctx, svc.Name, mode, state.StartedServices); err != nil {
			return err
		}
	}
	return o.store.RemoveServiceEntry(ctx, svc.Name, state.StartingServices)
}

// startLocalDependencies returns the remotes that run containerized. Remotes
// in the local runtime are left out; unless excludeLocal is set, those not
// already active are brought up from their own checkout in the default mode.
func (o *Orchestrator) startLocalDependencies(ctx context.Context, remotes dependency.InstalledSet, excludeLocal bool) ([]dependency.InstalledRemoteDependency, error) {
	var containerized []dependency.InstalledRemoteDependency
	for _, dep := range remotes.Slice() {
		local, err := o.isLocal(ctx, dep.ServiceName)
		if err != nil {
			return nil, err
		}
		if !local {
			containerized = append(containerized, dep)
			continue
		}
		if excludeLocal {
			logging.Info("Orchestrator", "Skipping %s, it runs locally", dep.ServiceName)
			continue
		}
		active, err := o.isActive(ctx, dep.ServiceName)
		if err != nil {
			return nil, err
		}
		if active {
			continue
		}
		localSvc, err := o.finder.Find(ctx, dep.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("%s is set to the local runtime but could not be found: %w", dep.ServiceName, err)
		}
		o.console.Info(fmt.Sprintf("Starting %s from %s", dep.ServiceName, localSvc.RepoPath))
		if err := o.up(ctx, localSvc, []string{descriptor.DefaultMode}, excludeLocal); err != nil {
			return nil, fmt.Errorf("failed to start local dependency %s: %w", dep.ServiceName, err)
		}
	}
	return containerized, nil
}
