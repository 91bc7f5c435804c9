package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"devctl/internal/compose"
	"devctl/internal/descriptor"
	"devctl/internal/state"
	"devctl/pkg/logging"
)

// Down brings the named service down with the remote dependencies no other
// active service needs. It refuses while another active service depends on it.
func (o *Orchestrator) Down(ctx context.Context, name string) error {
	svc, err := o.finder.Find(ctx, name)
	if err != nil {
		return err
	}

	modes, err := o.activeModes(ctx, svc.Name)
	if err != nil {
		return err
	}
	if len(modes) == 0 {
		o.console.Warning(fmt.Sprintf("%s is not running", svc.Name))
		return nil
	}

	others, err := o.otherActiveServices(ctx, svc.Name)
	if err != nil {
		return err
	}
	dependents, err := o.dependents(ctx, svc.Name, others)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		names := make([]string, 0, len(dependents))
		for n := range dependents {
			names = append(names, n)
		}
		sort.Strings(names)
		return &ServiceDependedOnError{Service: svc.Name, Dependent: names[0]}
	}

	if declared := declaredModes(svc, modes); len(declared) > 0 {
		err = o.console.Status(fmt.Sprintf("Stopping %s", svc.Name), func() error {
			return o.bringDown(ctx, svc, declared, others)
		})
		if err != nil {
			logging.Error("Orchestrator", err, "Failed to stop %s", svc.Name)
			return fmt.Errorf("failed to stop %s: %w", svc.Name, err)
		}
	} else {
		o.console.Warning(fmt.Sprintf("None of the recorded modes of %s (%s) are defined anymore, clearing its state", svc.Name, strings.Join(modes, ", ")))
	}

	for _, table := range state.Tables {
		if err := o.store.RemoveServiceEntry(ctx, svc.Name, table); err != nil {
			return err
		}
	}
	o.console.Success(fmt.Sprintf("%s stopped", svc.Name))
	return nil
}

// bringDown stops svc's programs and containers for modes, along with its
// remote dependencies that none of others need. State is left untouched.
func (o *Orchestrator) bringDown(ctx context.Context, svc descriptor.Service, modes []string, others []activeService) error {
	remotes, err := o.installer.InstallAndVerify(ctx, svc.Config, modes)
	if err != nil {
		return err
	}
	nonShared, err := o.nonSharedRemotes(ctx, svc, remotes, others)
	if err != nil {
		return err
	}

	modeDeps, err := svc.Config.ModeDependencies(modes)
	if err != nil {
		return err
	}

	if programs := supervisorPrograms(svc.Config, modeDeps); len(programs) > 0 {
		pm := o.programs(svc)
		for _, p := range programs {
			o.console.Info(fmt.Sprintf("Stopping %s", p))
			if err := pm.StopProcess(ctx, p); err != nil {
				return err
			}
		}
		if err := pm.StopDaemon(ctx); err != nil {
			return err
		}
	}

	cmds, err := compose.BuildCommands(ctx, svc, modeDeps, nonShared.Slice(), compose.VerbDown, nil)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		for _, s := range c.Services {
			o.console.Info(fmt.Sprintf("Stopping %s", s))
		}
	}
	return o.compose.RunAll(ctx, cmds)
}
