package dependency

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devctl/internal/descriptor"
	"devctl/internal/testutil"
	"devctl/internal/utils"
	"devctl/internal/workerpool"
)

// remoteRepo is a local git repository acting as a dependency's upstream.
type remoteRepo struct {
	name string
	dir  string
}

func (r remoteRepo) remote() descriptor.RemoteConfig {
	return descriptor.RemoteConfig{RepoName: r.name, RepoLink: "file://" + r.dir, Branch: "main", Mode: "default"}
}

func remoteBlock(r remoteRepo) string {
	return fmt.Sprintf(`
      description: %[1]s
      remote:
        repo_name: %[1]s
        repo_link: file://%[2]s
        branch: main`, r.name, r.dir)
}

// newUpstream creates an upstream repository declaring service name with the given remote dependencies.
func newUpstream(t *testing.T, root, name string, deps ...remoteRepo) remoteRepo {
	t.Helper()
	dir := filepath.Join(root, "upstream", name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	testutil.InitRepo(t, dir)
	writeUpstreamConfig(t, dir, name, deps...)
	testutil.WriteFile(t, filepath.Join(dir, "src", "main.py"), "print('hi')\n")
	testutil.CommitAll(t, dir, "initial")
	return remoteRepo{name: name, dir: dir}
}

func writeUpstreamConfig(t *testing.T, dir, name string, deps ...remoteRepo) {
	t.Helper()
	content := "x-service-config:\n  version: 0.1\n  service_name: " + name + "\n  dependencies:"
	var names []string
	if len(deps) == 0 {
		content += " {}"
	}
	for _, d := range deps {
		content += "\n    " + d.name + ":" + remoteBlock(d)
		names = append(names, d.name)
	}
	content += "\n  modes:\n    default: [" + joinComma(names) + "]\n"
	testutil.WriteFile(t, descriptor.ConfigPath(dir), content)
}

func joinComma(s []string) string {
	out := ""
	for i, v := range s {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func newTestInstaller(t *testing.T) *Installer {
	t.Helper()
	return NewInstaller(filepath.Join(t.TempDir(), "cache", "dependencies"), utils.NewExecRunner(), workerpool.New(4))
}

func serviceNames(s InstalledSet) []string {
	names := s.ServiceNames()
	sort.Strings(names)
	return names
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if !info.IsDir() {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			files = append(files, rel+":"+string(data))
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestInstallDependency_ClonesSparse(t *testing.T) {
	testutil.RequireGit(t)
	up := newUpstream(t, t.TempDir(), "child")
	inst := newTestInstaller(t)

	got, err := inst.InstallDependency(context.Background(), up.remote())
	require.NoError(t, err)

	dir := inst.RepoDir("child")
	assert.Equal(t, NewInstalledSet(InstalledRemoteDependency{ServiceName: "child", RepoPath: dir, Mode: "default"}), got)
	assert.FileExists(t, descriptor.ConfigPath(dir))
	assert.NoFileExists(t, filepath.Join(dir, "src", "main.py"), "only the devservices directory is checked out")

	for key, want := range PartialCloneConfig {
		assert.Equal(t, want, testutil.Git(t, dir, "config", "--get", key), key)
	}
}

func TestInstallDependency_Idempotent(t *testing.T) {
	testutil.RequireGit(t)
	up := newUpstream(t, t.TempDir(), "child")
	inst := newTestInstaller(t)
	ctx := context.Background()

	_, err := inst.InstallDependency(ctx, up.remote())
	require.NoError(t, err)
	dir := inst.RepoDir("child")
	before := listFiles(t, dir)
	headBefore := testutil.Git(t, dir, "rev-parse", "HEAD")

	_, err = inst.InstallDependency(ctx, up.remote())
	require.NoError(t, err)
	assert.Equal(t, before, listFiles(t, dir))
	assert.Equal(t, headBefore, testutil.Git(t, dir, "rev-parse", "HEAD"))
}

func TestInstallDependency_SelfHealsConfig(t *testing.T) {
	testutil.RequireGit(t)
	up := newUpstream(t, t.TempDir(), "child")
	inst := newTestInstaller(t)
	ctx := context.Background()

	_, err := inst.InstallDependency(ctx, up.remote())
	require.NoError(t, err)
	dir := inst.RepoDir("child")

	testutil.Git(t, dir, "config", "protocol.version", "1")
	testutil.Git(t, dir, "config", "core.sparseCheckout", "false")

	_, err = inst.InstallDependency(ctx, up.remote())
	require.NoError(t, err)
	for key, want := range PartialCloneConfig {
		assert.Equal(t, want, testutil.Git(t, dir, "config", "--get", key), key)
	}
}

func TestInstallDependency_PicksUpUpstreamChanges(t *testing.T) {
	testutil.RequireGit(t)
	up := newUpstream(t, t.TempDir(), "child")
	inst := newTestInstaller(t)
	ctx := context.Background()

	_, err := inst.InstallDependency(ctx, up.remote())
	require.NoError(t, err)

	testutil.WriteFile(t, filepath.Join(up.dir, "devservices", "extra.yml"), "changed: true\n")
	head := testutil.CommitAll(t, up.dir, "change")

	_, err = inst.InstallDependency(ctx, up.remote())
	require.NoError(t, err)
	dir := inst.RepoDir("child")
	assert.Equal(t, head, testutil.Git(t, dir, "rev-parse", "HEAD"))
	assert.FileExists(t, filepath.Join(dir, "devservices", "extra.yml"))
}

func TestInstallDependency_Nested(t *testing.T) {
	testutil.RequireGit(t)
	root := t.TempDir()
	leaf := newUpstream(t, root, "leaf")
	parent := newUpstream(t, root, "parent", leaf)
	inst := newTestInstaller(t)

	got, err := inst.InstallDependency(context.Background(), parent.remote())
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf", "parent"}, serviceNames(got))
	assert.FileExists(t, descriptor.ConfigPath(inst.RepoDir("leaf")))
}

func TestInstallDependencies_SharedNestedConverges(t *testing.T) {
	testutil.RequireGit(t)
	root := t.TempDir()
	shared := newUpstream(t, root, "shared")
	top1 := newUpstream(t, root, "top1", shared)
	top2 := newUpstream(t, root, "top2", shared)
	inst := newTestInstaller(t)

	deps := []descriptor.Dependency{
		descriptor.ServiceDependency{Remote: top1.remote()},
		descriptor.ServiceDependency{Remote: top2.remote()},
	}
	got, errs := inst.InstallDependencies(context.Background(), deps)
	require.Empty(t, errs)
	assert.Len(t, got, 3)
	assert.Equal(t, []string{"shared", "top1", "top2"}, serviceNames(got))

	dir := inst.RepoDir("shared")
	assert.Equal(t, "true", testutil.Git(t, dir, "rev-parse", "--is-inside-work-tree"))
	testutil.Git(t, dir, "fsck", "--connectivity-only")
}

func TestInstallDependency_ConcurrentCallersShareClone(t *testing.T) {
	testutil.RequireGit(t)
	up := newUpstream(t, t.TempDir(), "child")
	inst := newTestInstaller(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = inst.InstallDependency(context.Background(), up.remote())
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.FileExists(t, descriptor.ConfigPath(inst.RepoDir("child")))
}

func TestInstallDependencies_BestEffort(t *testing.T) {
	testutil.RequireGit(t)
	root := t.TempDir()
	good := newUpstream(t, root, "good")
	inst := newTestInstaller(t)

	missing := descriptor.RemoteConfig{RepoName: "missing", RepoLink: "file://" + filepath.Join(root, "nope"), Branch: "main", Mode: "default"}
	deps := []descriptor.Dependency{
		descriptor.ServiceDependency{Remote: good.remote()},
		descriptor.ServiceDependency{Remote: missing},
	}

	got, errs := inst.InstallDependencies(context.Background(), deps)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnableToClone)
	assert.Equal(t, []string{"good"}, serviceNames(got))

	_, err := inst.InstallDependenciesStrict(context.Background(), deps)
	assert.ErrorIs(t, err, ErrUnableToClone)
}

func TestInstallDependencies_NoRemotesNoIO(t *testing.T) {
	inst := NewInstaller(filepath.Join(t.TempDir(), "never"), &testutil.FakeRunner{}, workerpool.New(2))

	got, errs := inst.InstallDependencies(context.Background(), []descriptor.Dependency{descriptor.ComposeDependency{}})
	assert.Empty(t, errs)
	assert.Empty(t, got)
	assert.NoDirExists(t, inst.CacheRoot())
}

func TestInstallDependency_Cycle(t *testing.T) {
	testutil.RequireGit(t)
	root := t.TempDir()
	aDir := filepath.Join(root, "upstream", "a")
	bDir := filepath.Join(root, "upstream", "b")
	a := remoteRepo{name: "a", dir: aDir}
	b := remoteRepo{name: "b", dir: bDir}
	for _, r := range []struct {
		self, other remoteRepo
	}{{a, b}, {b, a}} {
		require.NoError(t, os.MkdirAll(r.self.dir, 0o755))
		testutil.InitRepo(t, r.self.dir)
		writeUpstreamConfig(t, r.self.dir, r.self.name, r.other)
		testutil.CommitAll(t, r.self.dir, "initial")
	}

	_, err := newTestInstaller(t).InstallDependency(context.Background(), a.remote())
	require.ErrorIs(t, err, ErrCyclicDependency)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestInstallDependency_InvalidNestedConfig(t *testing.T) {
	testutil.RequireGit(t)
	root := t.TempDir()
	broken := remoteRepo{name: "broken", dir: filepath.Join(root, "upstream", "broken")}
	require.NoError(t, os.MkdirAll(broken.dir, 0o755))
	testutil.InitRepo(t, broken.dir)
	testutil.WriteFile(t, descriptor.ConfigPath(broken.dir), "x-service-config:\n  version: 7\n")
	testutil.CommitAll(t, broken.dir, "broken")
	parent := newUpstream(t, root, "parent", broken)

	_, err := newTestInstaller(t).InstallDependency(context.Background(), parent.remote())
	require.ErrorIs(t, err, ErrInvalidDependencyConfig)
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "broken", depErr.RepoName)
}

func TestInstallDependency_MissingRemoteMode(t *testing.T) {
	testutil.RequireGit(t)
	up := newUpstream(t, t.TempDir(), "child")
	remote := up.remote()
	remote.Mode = "minimal"

	_, err := newTestInstaller(t).InstallDependency(context.Background(), remote)
	var modeErr *descriptor.ModeDoesNotExistError
	require.ErrorAs(t, err, &modeErr)
	assert.Equal(t, "child", modeErr.Service)
}

func TestVerifyAndInstalledRemoteDependencies(t *testing.T) {
	testutil.RequireGit(t)
	root := t.TempDir()
	leaf := newUpstream(t, root, "leaf")
	parent := newUpstream(t, root, "parent", leaf)
	inst := newTestInstaller(t)
	ctx := context.Background()
	deps := []descriptor.Dependency{descriptor.ServiceDependency{Remote: parent.remote()}}

	assert.False(t, inst.VerifyLocalDependencies(ctx, deps))
	_, err := inst.InstalledRemoteDependencies(ctx, deps)
	assert.ErrorIs(t, err, ErrDependencyNotInstalled)

	installed, err := inst.InstallDependenciesStrict(ctx, deps)
	require.NoError(t, err)

	assert.True(t, inst.VerifyLocalDependencies(ctx, deps))
	onDisk, err := inst.InstalledRemoteDependencies(ctx, deps)
	require.NoError(t, err)
	assert.Equal(t, installed, onDisk)

	require.NoError(t, os.RemoveAll(inst.RepoDir("leaf")))
	assert.False(t, inst.VerifyLocalDependencies(ctx, deps), "nested clones are verified too")
}

func TestInstallAndVerify_SkipsNetworkWhenCurrent(t *testing.T) {
	testutil.RequireGit(t)
	up := newUpstream(t, t.TempDir(), "child")
	inst := newTestInstaller(t)
	ctx := context.Background()

	cfg := &descriptor.ServiceConfig{
		ServiceName:  "app",
		Dependencies: map[string]descriptor.Dependency{"child": descriptor.ServiceDependency{Remote: up.remote()}},
		Modes:        map[string][]string{"default": {"child"}},
		ModeOrder:    []string{"default"},
	}
	first, err := inst.InstallAndVerify(ctx, cfg, []string{"default"})
	require.NoError(t, err)

	// a second resolution must not reach the (now gone) upstream
	require.NoError(t, os.RemoveAll(up.dir))
	second, err := inst.InstallAndVerify(ctx, cfg, []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = inst.InstallAndVerify(ctx, cfg, []string{"nope"})
	var modeErr *descriptor.ModeDoesNotExistError
	assert.ErrorAs(t, err, &modeErr)
}

func TestRemoteConfig(t *testing.T) {
	inst := NewInstaller(t.TempDir(), &testutil.FakeRunner{}, nil)
	_, err := inst.RemoteConfig(context.Background(), descriptor.RemoteConfig{RepoName: "absent"})
	assert.ErrorIs(t, err, ErrDependencyNotInstalled)
}
