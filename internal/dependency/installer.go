package dependency

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"devctl/internal/config"
	"devctl/internal/descriptor"
	"devctl/internal/utils"
	"devctl/internal/workerpool"
	"devctl/pkg/logging"
)

// SparsePattern limits dependency checkouts to the descriptor directory.
const SparsePattern = descriptor.DevservicesDirName + "/"

// Installer fetches remote dependencies into the dependency cache.
type Installer struct {
	cacheRoot string
	runner    utils.CommandRunner
	pool      *workerpool.Pool
	// fetches de-duplicates concurrent fetches of one directory within this process;
	// the file lock covers other processes.
	fetches singleflight.Group
}

// NewInstaller returns an Installer rooted at cacheRoot (<cache>/dependencies).
func NewInstaller(cacheRoot string, runner utils.CommandRunner, pool *workerpool.Pool) *Installer {
	if pool == nil {
		pool = workerpool.New(0)
	}
	return &Installer{cacheRoot: cacheRoot, runner: runner, pool: pool}
}

// CacheRoot returns the unversioned dependency cache directory.
func (i *Installer) CacheRoot() string {
	return i.cacheRoot
}

// VersionedRoot returns the directory holding clones for the current layout version.
func (i *Installer) VersionedRoot() string {
	return filepath.Join(i.cacheRoot, config.DependencyConfigVersion)
}

// RepoDir returns where the clone of repoName lives.
func (i *Installer) RepoDir(repoName string) string {
	return filepath.Join(i.VersionedRoot(), repoName)
}

func (i *Installer) lockPath(repoName string) string {
	return filepath.Join(i.cacheRoot, repoName+".lock")
}

// InstallDependency clones or updates remote and, recursively, the remote
// dependencies of its mode. It returns remote plus everything installed below it.
func (i *Installer) InstallDependency(ctx context.Context, remote descriptor.RemoteConfig) (InstalledSet, error) {
	return i.install(ctx, remote, nil)
}

func (i *Installer) install(ctx context.Context, remote descriptor.RemoteConfig, path []string) (InstalledSet, error) {
	for _, p := range path {
		if p == remote.RepoName {
			return nil, &DependencyError{
				RepoName: remote.RepoName,
				RepoLink: remote.RepoLink,
				Branch:   remote.Branch,
				Kind:     ErrCyclicDependency,
				Err:      fmt.Errorf("%s -> %s", strings.Join(path, " -> "), remote.RepoName),
			}
		}
	}

	cfg, err := i.fetch(ctx, remote)
	if err != nil {
		return nil, err
	}

	mode := remoteMode(remote)
	if !cfg.HasMode(mode) {
		return nil, &descriptor.ModeDoesNotExistError{
			Service:   cfg.ServiceName,
			Mode:      mode,
			Available: cfg.AvailableModes(),
		}
	}

	installed := NewInstalledSet(InstalledRemoteDependency{
		ServiceName: cfg.ServiceName,
		RepoPath:    i.RepoDir(remote.RepoName),
		Mode:        mode,
	})

	// Nested installs run in the caller's task; the pool is only used at the top level.
	nextPath := append(append([]string(nil), path...), remote.RepoName)
	for _, nested := range cfg.RemoteDependencies(cfg.Modes[mode]) {
		sub, err := i.install(ctx, nested.Remote, nextPath)
		if err != nil {
			return nil, err
		}
		installed.Union(sub)
	}
	return installed, nil
}

// fetch brings the clone of remote up to date under its lock and loads its descriptor.
func (i *Installer) fetch(ctx context.Context, remote descriptor.RemoteConfig) (*descriptor.ServiceConfig, error) {
	dir := i.RepoDir(remote.RepoName)
	v, err, shared := i.fetches.Do(dir, func() (interface{}, error) {
		var cfg *descriptor.ServiceConfig
		err := WithLock(i.lockPath(remote.RepoName), func() error {
			if i.isValidRepo(ctx, dir) && hasConfigFile(dir) {
				if err := i.update(ctx, remote, dir); err != nil {
					return err
				}
			} else if err := i.checkout(ctx, remote, dir); err != nil {
				return err
			}

			if !hasConfigFile(dir) {
				return depError(remote, ErrDependencyNotInstalled, fmt.Errorf("no %s after checkout", descriptor.ConfigPath(dir)))
			}
			var err error
			cfg, err = descriptor.LoadServiceConfig(ctx, dir)
			if err != nil {
				return depError(remote, ErrInvalidDependencyConfig, err)
			}
			return nil
		})
		return cfg, err
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debug("Installer", "Shared in-flight fetch of %s", remote.RepoName)
	}
	return v.(*descriptor.ServiceConfig), nil
}

func (i *Installer) update(ctx context.Context, remote descriptor.RemoteConfig, dir string) error {
	logging.Debug("Installer", "Updating %s in %s", remote.RepoName, dir)
	if err := NewGitConfigManager(i.runner, dir, PartialCloneConfig, SparsePattern).EnsureConfig(ctx); err != nil {
		return depError(remote, ErrDependency, err)
	}
	if _, err := i.git(ctx, dir, "fetch", "origin", remote.Branch, "--filter=blob:none"); err != nil {
		return depError(remote, ErrDependency, err)
	}

	local, err := i.git(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return depError(remote, ErrDependency, err)
	}
	fetched, err := i.git(ctx, dir, "rev-parse", "FETCH_HEAD")
	if err != nil {
		return depError(remote, ErrDependency, err)
	}
	if strings.TrimSpace(local.Stdout) == strings.TrimSpace(fetched.Stdout) {
		logging.Debug("Installer", "%s is up to date", remote.RepoName)
		return nil
	}

	if _, err := i.git(ctx, dir, "checkout", "-f", "FETCH_HEAD"); err != nil {
		return depError(remote, ErrDependency, err)
	}
	logging.Info("Installer", "Updated %s to %s", remote.RepoName, strings.TrimSpace(fetched.Stdout))
	return nil
}

// checkout clones into a scratch directory next to dir and renames it into
// place, so dir never holds a half-written clone.
func (i *Installer) checkout(ctx context.Context, remote descriptor.RemoteConfig, dir string) error {
	logging.Info("Installer", "Cloning %s (%s) on branch %s", remote.RepoName, remote.RepoLink, remote.Branch)
	if err := os.MkdirAll(i.VersionedRoot(), 0o755); err != nil {
		return depError(remote, ErrDependency, err)
	}
	tmp, err := os.MkdirTemp(i.VersionedRoot(), ".clone-"+remote.RepoName+"-")
	if err != nil {
		return depError(remote, ErrDependency, err)
	}
	defer os.RemoveAll(tmp)

	if _, err := i.git(ctx, tmp, "clone", "--filter=blob:none", "--no-checkout", remote.RepoLink, tmp); err != nil {
		return depError(remote, ErrUnableToClone, err)
	}
	if err := NewGitConfigManager(i.runner, tmp, PartialCloneConfig, SparsePattern).EnsureConfig(ctx); err != nil {
		return depError(remote, ErrDependency, err)
	}
	if _, err := i.git(ctx, tmp, "checkout", remote.Branch); err != nil {
		return depError(remote, ErrDependency, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return depError(remote, ErrDependency, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return depError(remote, ErrDependency, err)
	}
	return nil
}

// InstallDependencies installs every remote among deps concurrently. It is
// best-effort: a failing dependency is logged and reported while its siblings
// still install. No I/O happens when deps has no remotes.
func (i *Installer) InstallDependencies(ctx context.Context, deps []descriptor.Dependency) (InstalledSet, []error) {
	remotes := remoteConfigs(deps)
	installed := make(InstalledSet)
	if len(remotes) == 0 {
		return installed, nil
	}
	if err := os.MkdirAll(i.cacheRoot, 0o755); err != nil {
		return installed, []error{fmt.Errorf("failed to create dependency cache: %w", err)}
	}

	var errs []error
	for _, o := range workerpool.BestEffort(ctx, i.pool, remotes, i.InstallDependency) {
		if o.Err != nil {
			logging.Error("Installer", o.Err, "Failed to install %s", o.Item.RepoName)
			errs = append(errs, o.Err)
			continue
		}
		installed.Union(o.Result)
	}
	return installed, errs
}

// InstallDependenciesStrict installs every remote among deps concurrently and
// fails if any of them fails. All started installs are joined first.
func (i *Installer) InstallDependenciesStrict(ctx context.Context, deps []descriptor.Dependency) (InstalledSet, error) {
	remotes := remoteConfigs(deps)
	installed := make(InstalledSet)
	if len(remotes) == 0 {
		return installed, nil
	}
	if err := os.MkdirAll(i.cacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dependency cache: %w", err)
	}

	results, err := workerpool.ForkJoin(ctx, i.pool, remotes, i.InstallDependency)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		installed.Union(r)
	}
	return installed, nil
}

// VerifyLocalDependencies reports, without network access, whether every remote
// among deps and below them has a usable clone.
func (i *Installer) VerifyLocalDependencies(ctx context.Context, deps []descriptor.Dependency) bool {
	remotes := remoteConfigs(deps)
	if len(remotes) == 0 {
		return true
	}
	if _, err := os.Stat(i.VersionedRoot()); err != nil {
		return false
	}
	_, err := i.walkInstalled(ctx, remotes, true)
	if err != nil {
		logging.Debug("Installer", "Local dependencies need installing: %v", err)
		return false
	}
	return true
}

// InstalledRemoteDependencies recomputes the transitive installed set from the
// descriptors on disk.
func (i *Installer) InstalledRemoteDependencies(ctx context.Context, deps []descriptor.Dependency) (InstalledSet, error) {
	return i.walkInstalled(ctx, remoteConfigs(deps), false)
}

func (i *Installer) walkInstalled(ctx context.Context, remotes []descriptor.RemoteConfig, checkHead bool) (InstalledSet, error) {
	installed := make(InstalledSet)
	visited := make(map[string]struct{})
	queue := append([]descriptor.RemoteConfig(nil), remotes...)

	for len(queue) > 0 {
		remote := queue[0]
		queue = queue[1:]
		key := remote.RepoName + "\x00" + remoteMode(remote)
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}

		dir := i.RepoDir(remote.RepoName)
		if !hasConfigFile(dir) {
			return nil, depError(remote, ErrDependencyNotInstalled, nil)
		}
		if checkHead {
			if _, err := i.git(ctx, dir, "rev-parse", "HEAD"); err != nil {
				return nil, depError(remote, ErrDependencyNotInstalled, err)
			}
		}
		cfg, err := descriptor.LoadServiceConfig(ctx, dir)
		if err != nil {
			return nil, depError(remote, ErrInvalidDependencyConfig, err)
		}
		mode := remoteMode(remote)
		if !cfg.HasMode(mode) {
			return nil, &descriptor.ModeDoesNotExistError{Service: cfg.ServiceName, Mode: mode, Available: cfg.AvailableModes()}
		}
		installed.Add(InstalledRemoteDependency{ServiceName: cfg.ServiceName, RepoPath: dir, Mode: mode})
		for _, nested := range cfg.RemoteDependencies(cfg.Modes[mode]) {
			queue = append(queue, nested.Remote)
		}
	}
	return installed, nil
}

// InstallAndVerify resolves the remote dependencies of cfg's modes, installing
// only when the local cache is missing or broken.
func (i *Installer) InstallAndVerify(ctx context.Context, cfg *descriptor.ServiceConfig, modes []string) (InstalledSet, error) {
	deps, err := cfg.SelectDependencies(modes)
	if err != nil {
		return nil, err
	}

	if i.VerifyLocalDependencies(ctx, deps) {
		return i.InstalledRemoteDependencies(ctx, deps)
	}
	return i.InstallDependenciesStrict(ctx, deps)
}

// RemoteConfig loads the installed descriptor of remote.
func (i *Installer) RemoteConfig(ctx context.Context, remote descriptor.RemoteConfig) (*descriptor.ServiceConfig, error) {
	dir := i.RepoDir(remote.RepoName)
	cfg, err := descriptor.LoadServiceConfig(ctx, dir)
	if err != nil {
		if errors.Is(err, descriptor.ErrConfigNotFound) {
			return nil, depError(remote, ErrDependencyNotInstalled, err)
		}
		return nil, depError(remote, ErrInvalidDependencyConfig, err)
	}
	return cfg, nil
}

func (i *Installer) isValidRepo(ctx context.Context, dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return false
	}
	_, err := i.git(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

func (i *Installer) git(ctx context.Context, dir string, args ...string) (utils.Result, error) {
	return i.runner.Run(ctx, utils.Command{Name: "git", Args: args, Dir: dir})
}

func hasConfigFile(dir string) bool {
	_, err := os.Stat(descriptor.ConfigPath(dir))
	return err == nil
}

func remoteMode(remote descriptor.RemoteConfig) string {
	if remote.Mode == "" {
		return descriptor.DefaultMode
	}
	return remote.Mode
}

func remoteConfigs(deps []descriptor.Dependency) []descriptor.RemoteConfig {
	var out []descriptor.RemoteConfig
	for _, d := range deps {
		if r, ok := descriptor.RemoteOf(d); ok {
			out = append(out, r)
		}
	}
	return out
}

func depError(remote descriptor.RemoteConfig, kind, err error) error {
	return &DependencyError{
		RepoName: remote.RepoName,
		RepoLink: remote.RepoLink,
		Branch:   remote.Branch,
		Kind:     kind,
		Err:      err,
	}
}
