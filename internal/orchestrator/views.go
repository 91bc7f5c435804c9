package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"devctl/internal/compose"
	"devctl/internal/dependency"
	"devctl/internal/descriptor"
	"devctl/internal/state"
)

// Status prints the containers of every repository the service's active modes use.
func (o *Orchestrator) Status(ctx context.Context, name string) error {
	svc, err := o.finder.Find(ctx, name)
	if err != nil {
		return err
	}
	modes, err := o.activeModes(ctx, svc.Name)
	if err != nil {
		return err
	}
	modes = declaredModes(svc, modes)
	if len(modes) == 0 {
		o.console.Warning(fmt.Sprintf("%s is not running", svc.Name))
		return nil
	}

	deps, err := svc.Config.SelectDependencies(modes)
	if err != nil {
		return err
	}
	remotes, err := o.installer.InstalledRemoteDependencies(ctx, deps)
	if err != nil {
		return err
	}
	modeDeps, err := svc.Config.ModeDependencies(modes)
	if err != nil {
		return err
	}
	cmds, err := compose.BuildCommands(ctx, svc, modeDeps, remotes.Slice(), "ps", nil)
	if err != nil {
		return err
	}

	runtime, err := o.store.GetServiceRuntime(ctx, svc.Name)
	if err != nil {
		return err
	}
	o.console.Info(fmt.Sprintf("%s (modes: %s, runtime: %s)", svc.Name, strings.Join(modes, ", "), runtime))

	var rows [][]string
	for _, c := range cmds {
		statuses, err := o.compose.Status(ctx, c)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			health := s.Health
			if health == "" {
				health = "N/A"
			}
			rows = append(rows, []string{c.ProjectName, s.Service, s.Name, s.State, health, s.Ports})
		}
	}
	if len(rows) == 0 {
		o.console.Info("No containers found")
		return nil
	}
	o.console.Table([]string{"PROJECT", "SERVICE", "CONTAINER", "STATE", "HEALTH", "PORTS"}, rows)
	return nil
}

// ListServices prints the services under the coderoot. Without all, only
// active services are shown.
func (o *Orchestrator) ListServices(ctx context.Context, all bool) error {
	services, err := o.finder.LocalServices(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		o.console.Warning("No services found")
		return nil
	}

	var rows [][]string
	hidden := 0
	for _, svc := range services {
		starting, err := o.store.GetActiveModesForService(ctx, svc.Name, state.StartingServices)
		if err != nil {
			return err
		}
		started, err := o.store.GetActiveModesForService(ctx, svc.Name, state.StartedServices)
		if err != nil {
			return err
		}
		status := "stopped"
		switch {
		case len(started) > 0:
			status = "running"
		case len(starting) > 0:
			status = "starting"
		}
		if !all && status == "stopped" {
			hidden++
			continue
		}
		runtime, err := o.store.GetServiceRuntime(ctx, svc.Name)
		if err != nil {
			return err
		}
		modes, err := o.activeModes(ctx, svc.Name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{svc.Name, status, strings.Join(modes, ", "), string(runtime), svc.RepoPath})
	}

	if all {
		o.console.Info("Services installed locally:")
	} else {
		o.console.Info("Running services:")
	}
	if len(rows) > 0 {
		o.console.Table([]string{"NAME", "STATUS", "MODES", "RUNTIME", "LOCATION"}, rows)
	}
	if hidden > 0 {
		o.console.Info(fmt.Sprintf("%d stopped service(s) not shown. Use --all to see them.", hidden))
	}
	return nil
}

// ListDependencies prints everything the service needs in modes, in start order.
func (o *Orchestrator) ListDependencies(ctx context.Context, name string, modes []string) error {
	svc, err := o.finder.Find(ctx, name)
	if err != nil {
		return err
	}
	if len(modes) == 0 {
		modes = []string{descriptor.DefaultMode}
	}
	if _, err := svc.Config.ModeDependencies(modes); err != nil {
		return err
	}
	if _, err := o.installer.InstallAndVerify(ctx, svc.Config, modes); err != nil {
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

	var rows [][]string
	for _, id := range order {
		if id == dependency.NodeID(svc.Name) {
			continue
		}
		node, _ := g.Get(id)
		var required []string
		for _, from := range g.Dependents(id) {
			required = append(required, string(from))
		}
		rows = append(rows, []string{string(id), string(node.Kind), node.FriendlyName, strings.Join(required, ", ")})
	}
	if len(rows) == 0 {
		o.console.Info(fmt.Sprintf("%s has no dependencies in mode %s", svc.Name, strings.Join(modes, ", ")))
		return nil
	}
	o.console.Info(fmt.Sprintf("Dependencies of %s (start order):", svc.Name))
	o.console.Table([]string{"NAME", "TYPE", "DESCRIPTION", "REQUIRED BY"}, rows)
	return nil
}
