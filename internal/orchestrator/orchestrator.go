package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"devctl/internal/compose"
	"devctl/internal/config"
	"devctl/internal/dependency"
	"devctl/internal/descriptor"
	"devctl/internal/docker"
	"devctl/internal/state"
	"devctl/internal/supervisor"
	"devctl/pkg/logging"
)

// Console is where operator-facing progress goes.
type Console interface {
	Success(msg string)
	Warning(msg string)
	Failure(msg string)
	Info(msg string)
	Status(message string, fn func() error) error
	Table(headers []string, rows [][]string)
}

// ServiceFinder locates services by name under the coderoot.
type ServiceFinder interface {
	Find(ctx context.Context, name string) (descriptor.Service, error)
	LocalServices(ctx context.Context) ([]descriptor.Service, error)
}

// ProgramManagerFactory returns the program manager for a service's local programs.
type ProgramManagerFactory func(svc descriptor.Service) supervisor.ProgramManager

// Config holds the environment-level settings the orchestrator needs.
type Config struct {
	NetworkName           string
	MinimumComposeVersion string
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Finder    ServiceFinder
	Store     *state.Store
	Installer *dependency.Installer
	Compose   *compose.Runner
	Docker    *docker.Client
	Programs  ProgramManagerFactory
	Console   Console
}

// Orchestrator implements up, down, toggle and the read-only views over them.
type Orchestrator struct {
	cfg       Config
	finder    ServiceFinder
	store     *state.Store
	installer *dependency.Installer
	compose   *compose.Runner
	docker    *docker.Client
	programs  ProgramManagerFactory
	console   Console
}

// New returns an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.NetworkName == "" {
		cfg.NetworkName = "devservices"
	}
	if cfg.MinimumComposeVersion == "" {
		cfg.MinimumComposeVersion = config.MinimumDockerComposeVersion
	}
	return &Orchestrator{
		cfg:       cfg,
		finder:    deps.Finder,
		store:     deps.Store,
		installer: deps.Installer,
		compose:   deps.Compose,
		docker:    deps.Docker,
		programs:  deps.Programs,
		console:   deps.Console,
	}
}

// activeService is a service with at least one starting or started mode.
type activeService struct {
	Service descriptor.Service
	Modes   []string
}

// activeModes returns the starting and started modes of service, starting first.
func (o *Orchestrator) activeModes(ctx context.Context, service string) ([]string, error) {
	var modes []string
	seen := make(map[string]struct{})
	for _, table := range state.Tables {
		got, err := o.store.GetActiveModesForService(ctx, service, table)
		if err != nil {
			return nil, err
		}
		for _, m := range got {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			modes = append(modes, m)
		}
	}
	return modes, nil
}

// activeServiceNames returns every service with a starting or started entry, sorted.
func (o *Orchestrator) activeServiceNames(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, table := range state.Tables {
		got, err := o.store.GetServiceEntries(ctx, table)
		if err != nil {
			return nil, err
		}
		for _, n := range got {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// declaredModes drops recorded modes that the service's descriptor no longer
// defines, so a descriptor edited after up cannot wedge down.
func declaredModes(svc descriptor.Service, modes []string) []string {
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		if !svc.Config.HasMode(m) {
			logging.Warn("Orchestrator", "Ignoring recorded mode %s of %s, it is no longer defined", m, svc.Name)
			continue
		}
		out = append(out, m)
	}
	return out
}

func (o *Orchestrator) isActive(ctx context.Context, service string) (bool, error) {
	modes, err := o.activeModes(ctx, service)
	if err != nil {
		return false, err
	}
	return len(modes) > 0, nil
}

// otherActiveServices loads every active service except exclude. Services
// whose repositories can no longer be found are skipped with a warning.
func (o *Orchestrator) otherActiveServices(ctx context.Context, exclude string) ([]activeService, error) {
	names, err := o.activeServiceNames(ctx)
	if err != nil {
		return nil, err
	}
	var out []activeService
	for _, name := range names {
		if name == exclude {
			continue
		}
		svc, err := o.finder.Find(ctx, name)
		if err != nil {
			logging.Warn("Orchestrator", "Active service %s could not be loaded: %v", name, err)
			continue
		}
		modes, err := o.activeModes(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, activeService{Service: svc, Modes: declaredModes(svc, modes)})
	}
	return out, nil
}

// graphFor builds the dependency graph of svc in modes from installed descriptors.
func (o *Orchestrator) graphFor(ctx context.Context, svc descriptor.Service, modes []string) (*dependency.Graph, error) {
	g, err := dependency.BuildGraph(ctx, svc.Config, modes, o.installer)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph of %s: %w", svc.Name, err)
	}
	return g, nil
}

// dependents returns, per active service other than target, the active modes
// whose dependency graph contains target.
func (o *Orchestrator) dependents(ctx context.Context, target string, others []activeService) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, a := range others {
		for _, mode := range a.Modes {
			g, err := o.graphFor(ctx, a.Service, []string{mode})
			if err != nil {
				return nil, err
			}
			if g.Contains(dependency.NodeID(target)) {
				out[a.Service.Name] = append(out[a.Service.Name], mode)
			}
		}
	}
	return out, nil
}

// nonSharedRemotes drops from remotes everything another active service still
// needs, every remote that is itself an active top-level service, and every
// remote running in the local runtime.
func (o *Orchestrator) nonSharedRemotes(ctx context.Context, svc descriptor.Service, remotes dependency.InstalledSet, others []activeService) (dependency.InstalledSet, error) {
	shared := make(dependency.InstalledSet)
	activeNames := make(map[string]struct{})
	for _, a := range others {
		activeNames[a.Service.Name] = struct{}{}
		deps, err := a.Service.Config.SelectDependencies(a.Modes)
		if err != nil {
			return nil, err
		}
		installed, err := o.installer.InstalledRemoteDependencies(ctx, deps)
		if err != nil {
			return nil, err
		}
		shared.Union(installed)
	}

	out := make(dependency.InstalledSet)
	for dep := range remotes.Difference(shared) {
		if _, ok := activeNames[dep.ServiceName]; ok {
			logging.Debug("Orchestrator", "Leaving %s running, it is an active service", dep.ServiceName)
			continue
		}
		local, err := o.isLocal(ctx, dep.ServiceName)
		if err != nil {
			return nil, err
		}
		if local {
			continue
		}
		out.Add(dep)
	}
	logging.Debug("Orchestrator", "%s: %d of %d remote dependencies are not shared", svc.Name, len(out), len(remotes))
	return out, nil
}

func (o *Orchestrator) isLocal(ctx context.Context, service string) (bool, error) {
	rt, err := o.store.GetServiceRuntime(ctx, service)
	if err != nil {
		return false, err
	}
	return rt == state.RuntimeLocal, nil
}

// supervisorPrograms returns the supervisor-typed dependencies among names.
func supervisorPrograms(cfg *descriptor.ServiceConfig, names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := cfg.Dependencies[n].(descriptor.SupervisorDependency); ok {
			out = append(out, n)
		}
	}
	return out
}

// sortByStartOrder orders remotes so that dependencies come before the
// services needing them; remotes missing from order go last, by name.
func sortByStartOrder(remotes []dependency.InstalledRemoteDependency, order []dependency.NodeID) []dependency.InstalledRemoteDependency {
	index := make(map[string]int, len(order))
	for i, id := range order {
		index[string(id)] = i
	}
	pos := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return len(order)
	}
	out := append([]dependency.InstalledRemoteDependency(nil), remotes...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := pos(out[i].ServiceName), pos(out[j].ServiceName)
		if pi != pj {
			return pi < pj
		}
		return out[i].ServiceName < out[j].ServiceName
	})
	return out
}
