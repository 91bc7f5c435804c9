package dependency

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"devctl/internal/utils"
	"devctl/pkg/logging"
)

// PartialCloneConfig is enforced on every dependency clone. extensions.partialClone
// names the promisor remote, which is what git itself writes on a filtered clone.
var PartialCloneConfig = map[string]string{
	"protocol.version":        "2",
	"extensions.partialClone": "origin",
	"core.sparseCheckout":     "true",
}

// GitConfigManager enforces git config keys and a sparse-checkout pattern on a repository.
type GitConfigManager struct {
	runner        utils.CommandRunner
	repoDir       string
	options       map[string]string
	sparsePattern string
}

// NewGitConfigManager returns a manager for repoDir. An empty sparsePattern
// leaves sparse checkout untouched.
func NewGitConfigManager(runner utils.CommandRunner, repoDir string, options map[string]string, sparsePattern string) *GitConfigManager {
	return &GitConfigManager{
		runner:        runner,
		repoDir:       repoDir,
		options:       options,
		sparsePattern: sparsePattern,
	}
}

// EnsureConfig sets every key whose current value differs and applies the
// sparse pattern. Calling it again is a no-op; calling it after the repo
// config was changed externally restores it.
func (m *GitConfigManager) EnsureConfig(ctx context.Context) error {
	keys := make([]string, 0, len(m.options))
	for k := range m.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := m.options[key]
		current, err := m.get(ctx, key)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", ErrFailedToSetGitConfig, key, err)
		}
		if current == want {
			continue
		}
		logging.Debug("GitConfig", "Setting %s=%s in %s (was %q)", key, want, m.repoDir, current)
		if _, err := m.git(ctx, "config", key, want); err != nil {
			return fmt.Errorf("%w: setting %s: %w", ErrFailedToSetGitConfig, key, err)
		}
	}

	if m.sparsePattern == "" {
		return nil
	}
	return m.ensureSparseCheckout(ctx)
}

func (m *GitConfigManager) ensureSparseCheckout(ctx context.Context) error {
	sparseFile := filepath.Join(m.repoDir, ".git", "info", "sparse-checkout")
	if _, err := os.Stat(sparseFile); err != nil {
		if _, err := m.git(ctx, "sparse-checkout", "init"); err != nil {
			return fmt.Errorf("%w: sparse-checkout init: %w", ErrFailedToSetGitConfig, err)
		}
	}

	res, err := m.git(ctx, "sparse-checkout", "list")
	if err == nil && samePatterns(res.Stdout, m.sparsePattern) {
		return nil
	}
	if _, err := m.git(ctx, "sparse-checkout", "set", m.sparsePattern); err != nil {
		return fmt.Errorf("%w: sparse-checkout set %s: %w", ErrFailedToSetGitConfig, m.sparsePattern, err)
	}
	return nil
}

// get returns the configured value of key, or "" when it is unset.
func (m *GitConfigManager) get(ctx context.Context, key string) (string, error) {
	res, err := m.git(ctx, "config", "--get", key)
	if err != nil {
		var exitErr *utils.ExitError
		// git config --get exits 1 when the key is missing
		if errors.As(err, &exitErr) && exitErr.ExitCode == 1 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (m *GitConfigManager) git(ctx context.Context, args ...string) (utils.Result, error) {
	return m.runner.Run(ctx, utils.Command{Name: "git", Args: args, Dir: m.repoDir})
}

// samePatterns compares sparse-checkout list output with the single wanted
// pattern. Cone mode lists directories without the trailing slash.
func samePatterns(listOutput, pattern string) bool {
	lines := strings.Fields(strings.TrimSpace(listOutput))
	if len(lines) != 1 {
		return false
	}
	return strings.TrimSuffix(lines[0], "/") == strings.TrimSuffix(pattern, "/")
}
