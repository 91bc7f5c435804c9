// Package compose builds and runs the docker compose invocations for a
// service and its remote dependencies, one invocation per repository.
package compose

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"devctl/internal/dependency"
	"devctl/internal/descriptor"
)

// Verbs used by the orchestrator.
const (
	VerbUp   = "up"
	VerbDown = "down"
	VerbLogs = "logs"
)

// MaxLogLines is how many lines of each container's log are shown.
const MaxLogLines = 100

// UpOptions start containers detached, always pulling images.
var UpOptions = []string{"-d", "--pull", "always"}

// LogsOptions limit logs to the last MaxLogLines lines per container.
var LogsOptions = []string{"-n", strconv.Itoa(MaxLogLines)}

// Command is one docker compose invocation against one repository.
type Command struct {
	ProjectName string
	ConfigPath  string
	// RepoPath is the repository the compose file belongs to.
	RepoPath string
	Verb     string
	Options  []string
	Services []string
}

// Args returns the argv after "docker".
func (c Command) Args() []string {
	args := []string{"compose", "-p", c.ProjectName, "-f", c.ConfigPath, c.Verb}
	args = append(args, c.Options...)
	return append(args, c.Services...)
}

func (c Command) String() string {
	return "docker " + strings.Join(c.Args(), " ")
}

// BuildCommands returns one command per repository that has compose services to
// act on: the remote dependencies in the given order, then the root service.
// Each remote contributes the compose services of its own mode, the root the
// compose services among modeDeps. Repositories with nothing selected are skipped.
func BuildCommands(ctx context.Context, root descriptor.Service, modeDeps []string, remotes []dependency.InstalledRemoteDependency, verb string, options []string) ([]Command, error) {
	var cmds []Command
	for _, dep := range remotes {
		cfg, err := descriptor.LoadServiceConfig(ctx, dep.RepoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config of %s: %w", dep.ServiceName, err)
		}
		services := composeServices(cfg, cfg.Modes[dep.Mode])
		if len(services) == 0 {
			continue
		}
		cmds = append(cmds, Command{
			ProjectName: cfg.ServiceName,
			ConfigPath:  descriptor.ConfigPath(dep.RepoPath),
			RepoPath:    dep.RepoPath,
			Verb:        verb,
			Options:     append([]string(nil), options...),
			Services:    services,
		})
	}

	if services := composeServices(root.Config, modeDeps); len(services) > 0 {
		cmds = append(cmds, Command{
			ProjectName: root.Name,
			ConfigPath:  descriptor.ConfigPath(root.RepoPath),
			RepoPath:    root.RepoPath,
			Verb:        verb,
			Options:     append([]string(nil), options...),
			Services:    services,
		})
	}
	return cmds, nil
}

// composeServices returns the sorted compose-typed dependencies among names.
func composeServices(cfg *descriptor.ServiceConfig, names []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if _, ok := cfg.Dependencies[n].(descriptor.ComposeDependency); ok && cfg.IsComposeService(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
