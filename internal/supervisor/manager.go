// Package supervisor runs a service's local programs under supervisord.
//
// Each service gets its own daemon, configured from the service's
// devservices/programs.toml and addressed through a per-service unix socket
// under the supervisor directory.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"devctl/internal/descriptor"
	"devctl/internal/utils"
	"devctl/pkg/logging"
)

var (
	ErrSupervisor     = errors.New("supervisor error")
	ErrUnknownProgram = errors.New("program not defined")
)

// ProgramManager starts and stops named local programs.
type ProgramManager interface {
	StartProcess(ctx context.Context, name string) error
	StopProcess(ctx context.Context, name string) error
	// StopDaemon shuts down whatever keeps the programs of the service running.
	StopDaemon(ctx context.Context) error
}

// Manager is the supervisord-backed ProgramManager for one service.
type Manager struct {
	runner   utils.CommandRunner
	dir      string
	service  descriptor.Service
	programs map[string]descriptor.Program

	ReadyTimeout  time.Duration
	ReadyInterval time.Duration
}

var _ ProgramManager = (*Manager)(nil)

// NewManager returns a Manager for svc keeping its files in dir.
func NewManager(runner utils.CommandRunner, dir string, svc descriptor.Service) *Manager {
	programs := map[string]descriptor.Program{}
	if svc.Config != nil {
		programs = svc.Config.Programs
	}
	return &Manager{
		runner:        runner,
		dir:           dir,
		service:       svc,
		programs:      programs,
		ReadyTimeout:  10 * time.Second,
		ReadyInterval: 500 * time.Millisecond,
	}
}

func (m *Manager) ConfigPath() string {
	return filepath.Join(m.dir, m.service.Name+".processes.conf")
}

func (m *Manager) socketPath() string {
	return filepath.Join(m.dir, m.service.Name+".sock")
}

func (m *Manager) pidPath() string {
	return filepath.Join(m.dir, m.service.Name+".pid")
}

// WriteConfig renders the supervisord configuration for the service.
func (m *Manager) WriteConfig() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrSupervisor, m.dir, err)
	}
	if err := os.WriteFile(m.ConfigPath(), []byte(m.render()), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrSupervisor, m.ConfigPath(), err)
	}
	return nil
}

func (m *Manager) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[unix_http_server]\nfile = %s\n\n", m.socketPath())
	fmt.Fprintf(&b, "[supervisord]\npidfile = %s\nlogfile = %s\n\n",
		m.pidPath(), filepath.Join(m.dir, m.service.Name+".log"))
	fmt.Fprintf(&b, "[supervisorctl]\nserverurl = unix://%s\n\n", m.socketPath())
	b.WriteString("[rpcinterface:supervisor]\nsupervisor.rpcinterface_factory = supervisor.rpcinterface:make_main_rpcinterface\n")

	names := make([]string, 0, len(m.programs))
	for name := range m.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := m.programs[name]
		dir := p.Directory
		if dir == "" {
			dir = m.service.RepoPath
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(m.service.RepoPath, dir)
		}
		fmt.Fprintf(&b, "\n[program:%s]\ncommand = %s\ndirectory = %s\nautostart = %t\nautorestart = %t\n",
			name, p.Command, dir, p.Autostart, p.Autorestart)
	}
	return b.String()
}

func (m *Manager) ctl(ctx context.Context, args ...string) (utils.Result, error) {
	return m.runner.Run(ctx, utils.Command{
		Name: "supervisorctl",
		Args: append([]string{"-c", m.ConfigPath()}, args...),
	})
}

func (m *Manager) daemonRunning(ctx context.Context) bool {
	_, err := m.ctl(ctx, "pid")
	return err == nil
}

// StartDaemon writes the configuration and makes sure supervisord is serving
// it, reloading the program list of an already running daemon.
func (m *Manager) StartDaemon(ctx context.Context) error {
	if err := m.WriteConfig(); err != nil {
		return err
	}
	if m.daemonRunning(ctx) {
		if _, err := m.ctl(ctx, "update"); err != nil {
			return fmt.Errorf("%w: reload configuration for %s: %v", ErrSupervisor, m.service.Name, err)
		}
		return m.waitReady(ctx)
	}

	logging.Info("Supervisor", "Starting supervisord for %s", m.service.Name)
	if _, err := m.runner.Run(ctx, utils.Command{
		Name: "supervisord",
		Args: []string{"-c", m.ConfigPath()},
	}); err != nil {
		return fmt.Errorf("%w: start supervisord for %s: %v", ErrSupervisor, m.service.Name, err)
	}
	return m.waitReady(ctx)
}

func (m *Manager) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(m.ReadyTimeout)
	for {
		if m.daemonRunning(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: supervisord for %s did not become ready within %s",
				ErrSupervisor, m.service.Name, m.ReadyTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.ReadyInterval):
		}
	}
}

// StopDaemon shuts supervisord down if it is running.
func (m *Manager) StopDaemon(ctx context.Context) error {
	if _, err := os.Stat(m.ConfigPath()); err != nil || !m.daemonRunning(ctx) {
		return nil
	}
	if _, err := m.ctl(ctx, "shutdown"); err != nil {
		return fmt.Errorf("%w: stop supervisord for %s: %v", ErrSupervisor, m.service.Name, err)
	}
	return nil
}

// IsRunning reports whether the named program is in the RUNNING state.
func (m *Manager) IsRunning(ctx context.Context, name string) bool {
	res, err := m.ctl(ctx, "status", name)
	if err != nil {
		return false
	}
	fields := strings.Fields(res.Stdout)
	return len(fields) >= 2 && fields[0] == name && fields[1] == "RUNNING"
}

// StartProcess starts the named program, launching the daemon first if needed.
func (m *Manager) StartProcess(ctx context.Context, name string) error {
	if _, ok := m.programs[name]; !ok {
		return fmt.Errorf("%w: %s in service %s", ErrUnknownProgram, name, m.service.Name)
	}
	if err := m.StartDaemon(ctx); err != nil {
		return err
	}
	if m.IsRunning(ctx, name) {
		return nil
	}
	logging.Info("Supervisor", "Starting program %s for %s", name, m.service.Name)
	if _, err := m.ctl(ctx, "start", name); err != nil {
		return fmt.Errorf("%w: start program %s: %v", ErrSupervisor, name, err)
	}
	return nil
}

// StopProcess stops the named program; a stopped program or daemon is a no-op.
func (m *Manager) StopProcess(ctx context.Context, name string) error {
	if _, err := os.Stat(m.ConfigPath()); err != nil {
		return nil
	}
	if !m.IsRunning(ctx, name) {
		return nil
	}
	logging.Info("Supervisor", "Stopping program %s for %s", name, m.service.Name)
	if _, err := m.ctl(ctx, "stop", name); err != nil {
		return fmt.Errorf("%w: stop program %s: %v", ErrSupervisor, name, err)
	}
	return nil
}
