package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"devctl/internal/compose"
	"devctl/internal/state"
)

// Logs prints the recent container logs of every repository the service's
// started modes use.
func (o *Orchestrator) Logs(ctx context.Context, name string) error {
	svc, err := o.finder.Find(ctx, name)
	if err != nil {
		return err
	}
	started, err := o.store.GetActiveModesForService(ctx, svc.Name, state.StartedServices)
	if err != nil {
		return err
	}
	modes := declaredModes(svc, started)
	if len(modes) == 0 {
		o.console.Warning(fmt.Sprintf("%s is not running", svc.Name))
		return nil
	}

	remotes, err := o.installer.InstallAndVerify(ctx, svc.Config, modes)
	if err != nil {
		return err
	}
	modeDeps, err := svc.Config.ModeDependencies(modes)
	if err != nil {
		return err
	}
	cmds, err := compose.BuildCommands(ctx, svc, modeDeps, remotes.Slice(), compose.VerbLogs, compose.LogsOptions)
	if err != nil {
		return err
	}

	outputs, err := o.compose.Output(ctx, cmds)
	if err != nil {
		o.console.Failure(fmt.Sprintf("Failed to get logs for %s", svc.Name))
		return fmt.Errorf("failed to get logs for %s: %w", svc.Name, err)
	}
	for _, out := range outputs {
		if out = strings.TrimRight(out, "\n"); out != "" {
			o.console.Info(out)
		}
	}
	return nil
}
