package docker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrDaemonNotRunning = errors.New("unable to connect to the docker daemon. Is the docker daemon running?")

// DockerError carries a failed docker invocation verbatim.
type DockerError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *DockerError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("docker command '%s' failed with exit code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("docker command '%s' failed with exit code %d: %s", e.Command, e.ExitCode, stderr)
}

// ContainerHealthcheckFailedError is returned when a container does not
// become healthy within the timeout.
type ContainerHealthcheckFailedError struct {
	Container string
	Timeout   time.Duration
}

func (e *ContainerHealthcheckFailedError) Error() string {
	return fmt.Sprintf("Container %s did not become healthy within %s.", e.Container, e.Timeout)
}

// ComposeVersionError is returned when docker compose is missing or too old.
type ComposeVersionError struct {
	Found    string
	Required string
}

func (e *ComposeVersionError) Error() string {
	if e.Found == "" {
		return fmt.Sprintf("unable to detect docker compose version; v%s or newer is required", e.Required)
	}
	return fmt.Sprintf("docker compose v%s is unsupported; v%s or newer is required", e.Found, e.Required)
}
