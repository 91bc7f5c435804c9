package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"devctl/internal/docker"
	"devctl/pkg/logging"
)

// Reset removes the containers of the compose service name together with
// the volumes they use. Active services that depend on it are brought down
// first.
func (o *Orchestrator) Reset(ctx context.Context, name string) error {
	if err := o.docker.CheckDaemonRunning(ctx); err != nil {
		if errors.Is(err, docker.ErrDaemonNotRunning) {
			o.console.Warning(err.Error())
			return nil
		}
		return err
	}

	containers, err := o.docker.ContainersForComposeService(ctx, o.cfg.NetworkName, name)
	if err != nil {
		return fmt.Errorf("failed to get matching containers: %w", err)
	}
	if len(containers) == 0 {
		return fmt.Errorf("no containers found for %s", name)
	}
	volumes, err := o.docker.VolumesForContainers(ctx, containers)
	if err != nil {
		return fmt.Errorf("failed to get matching volumes: %w", err)
	}
	if len(volumes) == 0 {
		return fmt.Errorf("no volumes found for %s", name)
	}

	if err := o.downUsersOf(ctx, name); err != nil {
		return err
	}

	// Bringing services down may already have removed some containers.
	containers, err = o.docker.ContainersForComposeService(ctx, o.cfg.NetworkName, name)
	if err != nil {
		return fmt.Errorf("failed to get matching containers: %w", err)
	}

	o.console.Warning(fmt.Sprintf("Resetting docker volumes for %s", name))
	err = o.console.Status(fmt.Sprintf("Resetting %s", name), func() error {
		if err := o.docker.StopContainers(ctx, containers, true); err != nil {
			return fmt.Errorf("failed to stop and remove %s: %w", strings.Join(containers, ", "), err)
		}
		if err := o.docker.RemoveResources(ctx, "volume", volumes); err != nil {
			return fmt.Errorf("failed to remove volumes %s: %w", strings.Join(volumes, ", "), err)
		}
		return nil
	})
	if err != nil {
		o.console.Failure(err.Error())
		return err
	}
	o.console.Success(fmt.Sprintf("Docker volumes have been reset for %s", name))
	return nil
}

// downUsersOf brings down every active service whose dependency graph
// contains name. Services still needed by another pending one go last.
func (o *Orchestrator) downUsersOf(ctx context.Context, name string) error {
	active, err := o.otherActiveServices(ctx, "")
	if err != nil {
		return err
	}
	users, err := o.dependents(ctx, name, active)
	if err != nil {
		return err
	}

	pending := make([]string, 0, len(users))
	for _, a := range active {
		if _, ok := users[a.Service.Name]; ok {
			pending = append(pending, a.Service.Name)
		}
	}
	for len(pending) > 0 {
		var deferred []string
		var lastErr error
		for _, svc := range pending {
			o.console.Warning(fmt.Sprintf("Bringing down %s in order to safely reset %s", svc, name))
			err := o.Down(ctx, svc)
			var depErr *ServiceDependedOnError
			switch {
			case err == nil:
			case errors.As(err, &depErr) && slices.Contains(pending, depErr.Dependent):
				logging.Debug("Orchestrator", "Deferring %s until %s is down", svc, depErr.Dependent)
				deferred = append(deferred, svc)
				lastErr = err
			default:
				return err
			}
		}
		if len(deferred) == len(pending) {
			return lastErr
		}
		pending = deferred
	}
	return nil
}
