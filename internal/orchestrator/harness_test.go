package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"devctl/internal/compose"
	"devctl/internal/config"
	"devctl/internal/dependency"
	"devctl/internal/descriptor"
	"devctl/internal/docker"
	"devctl/internal/state"
	"devctl/internal/supervisor"
	"devctl/internal/testutil"
	"devctl/internal/utils"
	"devctl/internal/workerpool"
)

const exampleService = `
x-service-config:
  version: 0.1
  service_name: example-service
  dependencies:
    redis:
      description: Redis
    clickhouse:
      description: ClickHouse
  modes:
    default: [redis, clickhouse]
services:
  redis:
    image: redis:6.2
  clickhouse:
    image: clickhouse/clickhouse-server:23.8
`

const sentryService = `
x-service-config:
  version: 0.1
  service_name: sentry
  dependencies:
    redis:
      description: Redis
    snuba:
      description: Event storage
      remote:
        repo_name: snuba
        repo_link: file:///upstream/snuba
        branch: main
    worker:
      description: Background worker
  modes:
    default: [snuba, redis]
    workers: [snuba, redis, worker]
services:
  redis:
    image: redis:6.2
`

const sentryPrograms = `
[programs.worker]
command = "python -m sentry run worker"
`

const snubaService = `
x-service-config:
  version: 0.1
  service_name: snuba
  dependencies:
    kafka:
      description: Kafka
    clickhouse:
      description: ClickHouse
  modes:
    default: [kafka, clickhouse]
services:
  kafka:
    image: kafka
  clickhouse:
    image: clickhouse/clickhouse-server:23.8
`

// relayService uses a compose service called snuba of its own.
const relayService = `
x-service-config:
  version: 0.1
  service_name: relay
  dependencies:
    snuba:
      description: Bundled snuba container
  modes:
    default: [snuba]
services:
  snuba:
    image: snuba
`

type recordingConsole struct {
	mu     sync.Mutex
	lines  []string
	tables [][][]string
}

func (c *recordingConsole) add(kind, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, kind+": "+msg)
}

func (c *recordingConsole) Success(msg string) { c.add("success", msg) }
func (c *recordingConsole) Warning(msg string) { c.add("warning", msg) }
func (c *recordingConsole) Failure(msg string) { c.add("failure", msg) }
func (c *recordingConsole) Info(msg string)    { c.add("info", msg) }

func (c *recordingConsole) Status(message string, fn func() error) error {
	c.add("status", message)
	return fn()
}

func (c *recordingConsole) Table(headers []string, rows [][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = append(c.tables, rows)
}

func (c *recordingConsole) Lines(kind string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, l := range c.lines {
		if strings.HasPrefix(l, kind+": ") {
			out = append(out, strings.TrimPrefix(l, kind+": "))
		}
	}
	return out
}

type fakePrograms struct {
	mu            sync.Mutex
	started       []string
	stopped       []string
	daemonStopped int
}

func (f *fakePrograms) StartProcess(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, name)
	return nil
}

func (f *fakePrograms) StopProcess(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakePrograms) StopDaemon(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.daemonStopped++
	return nil
}

// reply overrides the default answer for a command.
type reply struct {
	res utils.Result
	err error
}

type env struct {
	t         *testing.T
	ctx       context.Context
	coderoot  string
	installer *dependency.Installer
	runner    *testutil.FakeRunner
	store     *state.Store
	console   *recordingConsole
	programs  *fakePrograms
	orch      *Orchestrator

	mu sync.Mutex
	// health maps container names to the status docker inspect reports; default healthy.
	health map[string]string
	// override answers a command before the defaults when it returns non-nil.
	override func(cmd utils.Command) *reply
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		t:        t,
		ctx:      context.Background(),
		coderoot: filepath.Join(root, "code"),
		console:  &recordingConsole{},
		programs: &fakePrograms{},
		health:   map[string]string{},
	}
	e.runner = &testutil.FakeRunner{Handler: e.handle}

	store, err := state.Open(filepath.Join(root, "local", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	e.store = store

	pool := workerpool.New(4)
	e.installer = dependency.NewInstaller(filepath.Join(root, "cache", "dependencies"), e.runner, pool)
	client := docker.NewClient(e.runner, pool, e.console, time.Millisecond, 30*time.Millisecond)
	e.orch = New(Config{NetworkName: "devservices", MinimumComposeVersion: config.MinimumDockerComposeVersion}, Deps{
		Finder:    descriptor.NewFinder(e.coderoot),
		Store:     store,
		Installer: e.installer,
		Compose:   compose.NewRunner(e.runner, pool, e.installer.VersionedRoot()),
		Docker:    client,
		Programs:  func(descriptor.Service) supervisor.ProgramManager { return e.programs },
		Console:   e.console,
	})
	return e
}

func (e *env) handle(cmd utils.Command) (utils.Result, error) {
	e.mu.Lock()
	override := e.override
	e.mu.Unlock()
	if override != nil {
		if r := override(cmd); r != nil {
			return r.res, r.err
		}
	}

	if cmd.Name == "git" {
		return utils.Result{Stdout: "0123456789abcdef\n"}, nil
	}
	args := cmd.Args
	switch {
	case testutil.HasArgs(cmd, "compose", "version", "--short"):
		return utils.Result{Stdout: "2.29.1\n"}, nil
	case testutil.HasArgs(cmd, "--format", "{{.Name}}"):
		project := args[2]
		var names []string
		for _, s := range args[indexOf(args, "{{.Name}}")+1:] {
			names = append(names, fmt.Sprintf("%s-%s-1", project, s))
		}
		return utils.Result{Stdout: strings.Join(names, "\n") + "\n"}, nil
	case len(args) > 1 && args[0] == "inspect" && args[1] == "-f":
		container := args[len(args)-1]
		e.mu.Lock()
		status, ok := e.health[container]
		e.mu.Unlock()
		if !ok {
			status = "healthy"
		}
		return utils.Result{Stdout: status + "\n"}, nil
	}
	return utils.Result{}, nil
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}

func (e *env) setOverride(fn func(cmd utils.Command) *reply) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.override = fn
}

func (e *env) setHealth(container, status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health[container] = status
}

// addService writes a repository under the coderoot.
func (e *env) addService(dir, content string) string {
	return testutil.WriteRepo(e.t, e.coderoot, dir, content)
}

// installRemote places a dependency checkout in the cache as the installer would.
func (e *env) installRemote(repoName, content string) string {
	return testutil.WriteRepo(e.t, e.installer.VersionedRoot(), repoName, content)
}

func (e *env) markActive(service, mode string, table state.Table) {
	require.NoError(e.t, e.store.UpdateServiceEntry(e.ctx, service, mode, table))
}

func (e *env) setRuntime(service string, rt state.ServiceRuntime) {
	require.NoError(e.t, e.store.UpdateServiceRuntime(e.ctx, service, rt))
}

func (e *env) entries(table state.Table) []string {
	names, err := e.store.GetServiceEntries(e.ctx, table)
	require.NoError(e.t, err)
	return names
}

func (e *env) runtime(service string) state.ServiceRuntime {
	rt, err := e.store.GetServiceRuntime(e.ctx, service)
	require.NoError(e.t, err)
	return rt
}

// composeCalls returns compose command lines for verb.
func (e *env) composeCalls(verb string) []string {
	return e.runner.Matching("docker compose", " "+verb+" ")
}

func composeLine(project, configFile, verb string, rest ...string) string {
	return strings.Join(append([]string{"docker compose -p", project, "-f", configFile, verb}, rest...), " ")
}

func configOf(repo string) string {
	return descriptor.ConfigPath(repo)
}

// isCompose reports whether cmd is a compose invocation of verb for project.
func isCompose(cmd utils.Command, project, verb string) bool {
	return testutil.HasArgs(cmd, "compose", "-p", project) && len(cmd.Args) > 5 && cmd.Args[5] == verb
}

func composeFailure(cmd utils.Command, stderr string) *reply {
	return &reply{
		res: utils.Result{ExitCode: 1, Stderr: stderr},
		err: &utils.ExitError{Command: cmd.String(), ExitCode: 1, Stderr: stderr},
	}
}
