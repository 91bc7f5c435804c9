package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"devctl/internal/dependency"
	"devctl/internal/descriptor"
	"devctl/internal/state"
	"devctl/pkg/logging"
)

// Toggle switches the runtime of the named service. An empty runtime flips the
// current one. The service itself must not be active.
func (o *Orchestrator) Toggle(ctx context.Context, name, runtime string) error {
	svc, err := o.finder.Find(ctx, name)
	if err != nil {
		return err
	}

	current, err := o.store.GetServiceRuntime(ctx, svc.Name)
	if err != nil {
		return err
	}
	desired := opposite(current)
	if runtime != "" {
		if desired, err = state.ParseRuntime(runtime); err != nil {
			return err
		}
	}
	if current == desired {
		o.console.Warning(fmt.Sprintf("%s is already running in %s runtime", svc.Name, desired))
		return nil
	}

	active, err := o.isActive(ctx, svc.Name)
	if err != nil {
		return err
	}
	if active {
		return &ServiceActiveError{Service: svc.Name}
	}

	others, err := o.otherActiveServices(ctx, svc.Name)
	if err != nil {
		return err
	}
	dependents, err := o.dependents(ctx, svc.Name, others)
	if err != nil {
		return err
	}

	if desired == state.RuntimeLocal {
		if err := o.leaveContainers(ctx, svc, others, dependents); err != nil {
			return err
		}
	}

	// The runtime is flipped before dependents restart so they pick it up.
	if err := o.store.UpdateServiceRuntime(ctx, svc.Name, desired); err != nil {
		return err
	}
	logging.Info("Orchestrator", "%s runtime set to %s", svc.Name, desired)

	if err := o.restartDependents(ctx, svc.Name, desired, dependents); err != nil {
		return err
	}
	o.console.Success(fmt.Sprintf("%s is now running in %s runtime", svc.Name, desired))
	return nil
}

func opposite(rt state.ServiceRuntime) state.ServiceRuntime {
	if rt == state.RuntimeContainerized {
		return state.RuntimeLocal
	}
	return state.RuntimeContainerized
}

// leaveContainers stops the containerized copy of svc that dependents brought
// up as a remote dependency, so that the local copy does not run twice.
func (o *Orchestrator) leaveContainers(ctx context.Context, svc descriptor.Service, others []activeService, dependents map[string][]string) error {
	if len(dependents) == 0 {
		return nil
	}

	modes := map[string]struct{}{}
	for _, a := range others {
		depModes, ok := dependents[a.Service.Name]
		if !ok {
			continue
		}
		g, err := o.graphFor(ctx, a.Service, depModes)
		if err != nil {
			return err
		}
		node, _ := g.Get(dependency.NodeID(svc.Name))
		if node.Remote == nil {
			return &CannotToggleNonRemoteServiceError{Service: svc.Name}
		}
		mode := node.Remote.Mode
		if mode == "" {
			mode = descriptor.DefaultMode
		}
		modes[mode] = struct{}{}
	}

	var remoteModes []string
	for m := range modes {
		remoteModes = append(remoteModes, m)
	}
	sort.Strings(remoteModes)

	return o.console.Status(fmt.Sprintf("Stopping containerized %s", svc.Name), func() error {
		return o.bringDown(ctx, svc, remoteModes, others)
	})
}

// restartDependents re-runs up for every (dependent, mode) pair, one at a
// time, so that each re-attaches to svc in its new runtime.
func (o *Orchestrator) restartDependents(ctx context.Context, service string, runtime state.ServiceRuntime, dependents map[string][]string) error {
	if len(dependents) == 0 {
		return nil
	}
	names := make([]string, 0, len(dependents))
	for n := range dependents {
		names = append(names, n)
	}
	sort.Strings(names)

	o.console.Warning(fmt.Sprintf("Restarting dependent services to ensure %s is running in a %s runtime", service, runtime))
	for _, dependent := range names {
		for _, mode := range dependents[dependent] {
			o.console.Info(fmt.Sprintf("Restarting %s in mode %s", dependent, mode))
			// Local dependencies come up on their own when svc switched to local.
			opts := UpOptions{Mode: mode, ExcludeLocal: runtime == state.RuntimeContainerized}
			if err := o.Up(ctx, dependent, opts); err != nil {
				rerr := &RestartDependentError{Service: service, Dependent: dependent, Mode: mode, Err: err}
				o.console.Failure(rerr.Error())
				return rerr
			}
		}
	}
	o.console.Success("Successfully restarted dependent services")
	return nil
}
