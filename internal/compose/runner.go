package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"devctl/internal/config"
	"devctl/internal/utils"
	"devctl/internal/workerpool"
	"devctl/pkg/logging"
)

// ComposeError carries a failed compose invocation verbatim.
type ComposeError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ComposeError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("docker compose command '%s' failed with exit code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("docker compose command '%s' failed with exit code %d: %s", e.Command, e.ExitCode, stderr)
}

// ContainerStatus is one row of `docker compose ps --format json`.
type ContainerStatus struct {
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Health  string `json:"Health"`
	Status  string `json:"Status"`
	Ports   string `json:"Ports"`
}

// Runner executes compose commands.
type Runner struct {
	runner utils.CommandRunner
	pool   *workerpool.Pool
	// dependenciesDir is the versioned dependency cache exported to compose files.
	dependenciesDir string
}

// NewRunner returns a Runner. dependenciesDir is <cache>/dependencies/<version>.
func NewRunner(runner utils.CommandRunner, pool *workerpool.Pool, dependenciesDir string) *Runner {
	if pool == nil {
		pool = workerpool.New(0)
	}
	return &Runner{runner: runner, pool: pool, dependenciesDir: dependenciesDir}
}

// Env returns the process environment for a compose invocation in repoPath.
func (r *Runner) Env(repoPath string) []string {
	rel, err := filepath.Rel(repoPath, r.dependenciesDir)
	if err != nil {
		rel = r.dependenciesDir
	}
	return append(os.Environ(), config.DependenciesCacheDirEnvKey+"="+rel)
}

// Run executes cmd.
func (r *Runner) Run(ctx context.Context, cmd Command) (utils.Result, error) {
	return r.exec(ctx, cmd.RepoPath, cmd.Args())
}

// RunAll executes every command concurrently and joins them all. The first
// failure is returned once every command has finished.
func (r *Runner) RunAll(ctx context.Context, cmds []Command) error {
	_, err := workerpool.ForkJoin(ctx, r.pool, cmds, func(ctx context.Context, c Command) (utils.Result, error) {
		logging.Info("Compose", "Running %s", c.String())
		return r.Run(ctx, c)
	})
	return err
}

// Output runs every command concurrently and returns their stdout in the
// order of cmds.
func (r *Runner) Output(ctx context.Context, cmds []Command) ([]string, error) {
	results, err := workerpool.ForkJoin(ctx, r.pool, cmds, r.Run)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(results))
	for i, res := range results {
		out[i] = res.Stdout
	}
	return out, nil
}

// ContainerNames returns the names of the containers of cmd's project and services.
func (r *Runner) ContainerNames(ctx context.Context, cmd Command) ([]string, error) {
	args := []string{"compose", "-p", cmd.ProjectName, "-f", cmd.ConfigPath, "ps", "-a", "--format", "{{.Name}}"}
	args = append(args, cmd.Services...)
	res, err := r.exec(ctx, cmd.RepoPath, args)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, l := range strings.Split(res.Stdout, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			names = append(names, l)
		}
	}
	return names, nil
}

// AllContainerNames collects container names for every command concurrently.
func (r *Runner) AllContainerNames(ctx context.Context, cmds []Command) ([]string, error) {
	results, err := workerpool.ForkJoin(ctx, r.pool, cmds, r.ContainerNames)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, n := range results {
		names = append(names, n...)
	}
	return names, nil
}

// Status returns the containers of cmd's project and services.
func (r *Runner) Status(ctx context.Context, cmd Command) ([]ContainerStatus, error) {
	args := []string{"compose", "-p", cmd.ProjectName, "-f", cmd.ConfigPath, "ps", "-a", "--format", "json"}
	args = append(args, cmd.Services...)
	res, err := r.exec(ctx, cmd.RepoPath, args)
	if err != nil {
		return nil, err
	}
	statuses, err := parseStatus(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status of %s: %w", cmd.ProjectName, err)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses, nil
}

// parseStatus accepts both the JSON array of older compose releases and the
// one-object-per-line output of newer ones.
func parseStatus(out string) ([]ContainerStatus, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	if strings.HasPrefix(out, "[") {
		var statuses []ContainerStatus
		if err := json.Unmarshal([]byte(out), &statuses); err != nil {
			return nil, err
		}
		return statuses, nil
	}
	var statuses []ContainerStatus
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var s ContainerStatus
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func (r *Runner) exec(ctx context.Context, repoPath string, args []string) (utils.Result, error) {
	res, err := r.runner.Run(ctx, utils.Command{Name: "docker", Args: args, Env: r.Env(repoPath)})
	if err != nil {
		var exitErr *utils.ExitError
		if errors.As(err, &exitErr) {
			return res, &ComposeError{
				Command:  exitErr.Command,
				ExitCode: exitErr.ExitCode,
				Stdout:   exitErr.Stdout,
				Stderr:   exitErr.Stderr,
			}
		}
		return res, err
	}
	return res, nil
}
