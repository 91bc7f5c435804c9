package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"devctl/internal/descriptor"
	"devctl/internal/docker"
	"devctl/pkg/logging"
)

// Sync fetches the remote dependencies of the service's modes. Every
// dependency is attempted; failures are reported and returned together.
func (o *Orchestrator) Sync(ctx context.Context, name string, modes []string) error {
	svc, err := o.finder.Find(ctx, name)
	if err != nil {
		return err
	}
	if len(modes) == 0 {
		modes = []string{descriptor.DefaultMode}
	}
	deps, err := svc.Config.SelectDependencies(modes)
	if err != nil {
		return err
	}

	var errs []error
	err = o.console.Status(fmt.Sprintf("Syncing dependencies of %s", svc.Name), func() error {
		installed, failures := o.installer.InstallDependencies(ctx, deps)
		for _, name := range installed.ServiceNames() {
			o.console.Success(fmt.Sprintf("%s is up to date", name))
		}
		for _, f := range failures {
			o.console.Failure(f.Error())
		}
		errs = failures
		return nil
	})
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to sync %d dependencies of %s: %w", len(errs), svc.Name, errors.Join(errs...))
	}
	o.console.Success(fmt.Sprintf("%s dependencies synced", svc.Name))
	return nil
}

// Purge removes every container and volume on the shared network, the network
// itself, the dependency cache and the state database. Docker cleanup is
// skipped with a warning when the daemon is not running.
func (o *Orchestrator) Purge(ctx context.Context) error {
	if err := o.purgeDocker(ctx); err != nil {
		return err
	}

	cache := o.installer.CacheRoot()
	if err := os.RemoveAll(cache); err != nil {
		return fmt.Errorf("failed to purge dependency cache %s: %w", cache, err)
	}
	logging.Info("Orchestrator", "Removed dependency cache %s", cache)

	if err := o.store.ClearState(ctx); err != nil {
		return err
	}
	if err := o.store.Destroy(); err != nil {
		return err
	}
	o.console.Success("The local devctl cache and state have been purged")
	return nil
}

func (o *Orchestrator) purgeDocker(ctx context.Context) error {
	if err := o.docker.CheckDaemonRunning(ctx); err != nil {
		if errors.Is(err, docker.ErrDaemonNotRunning) {
			o.console.Warning(err.Error())
			return nil
		}
		return err
	}

	containers, err := o.docker.ContainersOnNetwork(ctx, o.cfg.NetworkName)
	if err != nil {
		return err
	}
	volumes, err := o.docker.VolumesForContainers(ctx, containers)
	if err != nil {
		return err
	}

	err = o.console.Status("Stopping all devctl containers", func() error {
		return o.docker.StopContainers(ctx, containers, true)
	})
	if err != nil {
		return err
	}
	if len(containers) > 0 {
		o.console.Success("All devctl containers have been stopped")
	}

	if len(volumes) == 0 {
		o.console.Info("No devctl volumes found to remove")
	} else if err := o.docker.RemoveResources(ctx, "volume", volumes); err != nil {
		// Keep going: the network and cache can still be cleaned up.
		o.console.Failure(fmt.Sprintf("Failed to remove volumes: %v", err))
	} else {
		o.console.Success("All devctl volumes removed")
	}

	exists, err := o.docker.NetworkExists(ctx, o.cfg.NetworkName)
	if err != nil {
		return err
	}
	if exists {
		if err := o.docker.RemoveResources(ctx, "network", []string{o.cfg.NetworkName}); err != nil {
			return err
		}
		o.console.Success(fmt.Sprintf("Network %s removed", o.cfg.NetworkName))
	}
	return nil
}
