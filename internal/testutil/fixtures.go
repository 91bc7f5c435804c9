package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteRepo creates <root>/<dir>/devservices/config.yml with content and returns the repo path.
func WriteRepo(t testing.TB, root, dir, content string) string {
	t.Helper()
	repo := filepath.Join(root, dir)
	WriteFile(t, filepath.Join(repo, "devservices", "config.yml"), content)
	return repo
}

// WritePrograms writes devservices/programs.toml into repo.
func WritePrograms(t testing.TB, repo, content string) {
	t.Helper()
	WriteFile(t, filepath.Join(repo, "devservices", "programs.toml"), content)
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
