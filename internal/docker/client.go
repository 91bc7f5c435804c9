// Package docker wraps the docker CLI operations devctl needs outside of
// docker compose: daemon checks, the shared network, health polling and purge.
package docker

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"devctl/internal/utils"
	"devctl/internal/workerpool"
	"devctl/pkg/logging"
)

const healthFormat = "{{if .State.Health}}{{.State.Health.Status}}{{else}}unknown{{end}}"

// Notifier receives operator-facing warnings.
type Notifier interface {
	Warning(msg string)
}

// Client runs docker commands through a CommandRunner.
type Client struct {
	runner   utils.CommandRunner
	pool     *workerpool.Pool
	notifier Notifier

	// HealthcheckInterval and HealthcheckTimeout bound WaitForHealthy.
	HealthcheckInterval time.Duration
	HealthcheckTimeout  time.Duration
}

// NewClient returns a Client. notifier may be nil.
func NewClient(runner utils.CommandRunner, pool *workerpool.Pool, notifier Notifier, interval, timeout time.Duration) *Client {
	if pool == nil {
		pool = workerpool.New(0)
	}
	return &Client{
		runner:              runner,
		pool:                pool,
		notifier:            notifier,
		HealthcheckInterval: interval,
		HealthcheckTimeout:  timeout,
	}
}

func (c *Client) docker(ctx context.Context, args ...string) (utils.Result, error) {
	res, err := c.runner.Run(ctx, utils.Command{Name: "docker", Args: args})
	if err != nil {
		var exitErr *utils.ExitError
		if errors.As(err, &exitErr) {
			return res, &DockerError{
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

// CheckDaemonRunning fails with ErrDaemonNotRunning when `docker info` fails.
func (c *Client) CheckDaemonRunning(ctx context.Context) error {
	if _, err := c.docker(ctx, "info"); err != nil {
		return fmt.Errorf("%w: %w", ErrDaemonNotRunning, err)
	}
	return nil
}

var composeVersionPattern = regexp.MustCompile(`^v?(\d+\.\d+\.\d+)`)

// CheckComposeVersion fails unless docker compose is at least minimum.
func (c *Client) CheckComposeVersion(ctx context.Context, minimum string) error {
	required := semver.MustParse(minimum)
	res, err := c.docker(ctx, "compose", "version", "--short")
	if err != nil {
		return &ComposeVersionError{Required: minimum}
	}
	m := composeVersionPattern.FindStringSubmatch(strings.TrimSpace(res.Stdout))
	if m == nil {
		return &ComposeVersionError{Required: minimum}
	}
	found, err := semver.NewVersion(m[1])
	if err != nil {
		return &ComposeVersionError{Required: minimum}
	}
	if found.LessThan(required) {
		return &ComposeVersionError{Found: found.String(), Required: minimum}
	}
	logging.Debug("Docker", "docker compose v%s", found)
	return nil
}

// CreateNetwork creates the shared bridge network; an existing one is fine.
func (c *Client) CreateNetwork(ctx context.Context, name string) error {
	_, err := c.docker(ctx, "network", "create", "--driver", "bridge", name)
	if err != nil {
		var dErr *DockerError
		if errors.As(err, &dErr) && strings.Contains(dErr.Stderr, "already exists") {
			logging.Debug("Docker", "Network %s already exists", name)
			return nil
		}
		return err
	}
	logging.Info("Docker", "Created network %s", name)
	return nil
}

// ContainerHealth returns the health status of a container, "unknown" when it
// has no healthcheck.
func (c *Client) ContainerHealth(ctx context.Context, container string) (string, error) {
	res, err := c.docker(ctx, "inspect", "-f", healthFormat, container)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// WaitForHealthy polls container until it is healthy or the timeout elapses.
// Containers without a healthcheck count as healthy.
func (c *Client) WaitForHealthy(ctx context.Context, container string) error {
	deadline := time.Now().Add(c.HealthcheckTimeout)
	for {
		status, err := c.ContainerHealth(ctx, container)
		if err != nil {
			return err
		}
		switch status {
		case "healthy":
			logging.Debug("Docker", "Container %s is healthy", container)
			return nil
		case "unknown":
			c.warn(fmt.Sprintf("WARNING: Container %s does not have a healthcheck", container))
			return nil
		}

		if !time.Now().Add(c.HealthcheckInterval).Before(deadline) {
			return &ContainerHealthcheckFailedError{Container: container, Timeout: c.HealthcheckTimeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.HealthcheckInterval):
		}
	}
}

// WaitForAllHealthy polls every container concurrently and joins them all.
// On timeout the first offending container (in argument order) is reported.
func (c *Client) WaitForAllHealthy(ctx context.Context, containers []string) error {
	if len(containers) == 0 {
		return nil
	}
	outcomes := workerpool.BestEffort(ctx, c.pool, containers, func(ctx context.Context, name string) (struct{}, error) {
		return struct{}{}, c.WaitForHealthy(ctx, name)
	})
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// ContainersOnNetwork returns the IDs of all containers attached to network.
func (c *Client) ContainersOnNetwork(ctx context.Context, network string) ([]string, error) {
	res, err := c.docker(ctx, "ps", "-a", "-q", "--filter", "network="+network)
	if err != nil {
		return nil, err
	}
	return lines(res.Stdout), nil
}

// ContainersForComposeService returns the IDs of the containers on network
// that compose created for service.
func (c *Client) ContainersForComposeService(ctx context.Context, network, service string) ([]string, error) {
	res, err := c.docker(ctx, "ps", "-a", "-q",
		"--filter", "network="+network,
		"--filter", "label=com.docker.compose.service="+service)
	if err != nil {
		return nil, err
	}
	return lines(res.Stdout), nil
}

// NetworkExists reports whether a network called name exists.
func (c *Client) NetworkExists(ctx context.Context, name string) (bool, error) {
	res, err := c.docker(ctx, "network", "ls", "--filter", "name=^"+name+"$", "--format", "{{.Name}}")
	if err != nil {
		return false, err
	}
	for _, l := range lines(res.Stdout) {
		if l == name {
			return true, nil
		}
	}
	return false, nil
}

// VolumesForContainers returns the named volumes mounted by containers.
func (c *Client) VolumesForContainers(ctx context.Context, containers []string) ([]string, error) {
	if len(containers) == 0 {
		return nil, nil
	}
	args := append([]string{"inspect", "--format", "{{ range .Mounts }}{{ .Name }}\n{{ end }}"}, containers...)
	res, err := c.docker(ctx, args...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, v := range lines(res.Stdout) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// StopContainers stops containers and, if remove is set, deletes them.
func (c *Client) StopContainers(ctx context.Context, containers []string, remove bool) error {
	if len(containers) == 0 {
		return nil
	}
	if _, err := c.docker(ctx, append([]string{"stop"}, containers...)...); err != nil {
		return err
	}
	if remove {
		return c.RemoveResources(ctx, "container", containers)
	}
	return nil
}

// RemoveResources runs `docker <kind> rm` for resources (container, volume, network).
func (c *Client) RemoveResources(ctx context.Context, kind string, resources []string) error {
	if len(resources) == 0 {
		return nil
	}
	_, err := c.docker(ctx, append([]string{kind, "rm"}, resources...)...)
	return err
}

func (c *Client) warn(msg string) {
	logging.Warn("Docker", "%s", msg)
	if c.notifier != nil {
		c.notifier.Warning(msg)
	}
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
