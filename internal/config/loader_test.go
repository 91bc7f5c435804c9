package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	orig := osUserHomeDir
	osUserHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { osUserHomeDir = orig })
	return home
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	home := withHome(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "code"), cfg.Coderoot)
	assert.Equal(t, "devservices", cfg.NetworkName)
	assert.Equal(t, 45*time.Second, cfg.HealthcheckTimeout)
	assert.Equal(t, 5*time.Second, cfg.HealthcheckInterval)
	assert.GreaterOrEqual(t, cfg.Concurrency, 4)
	assert.Equal(t, filepath.Join(home, ".cache", "devctl", "dependencies", "v1"), cfg.VersionedDependenciesDir())
	assert.Equal(t, filepath.Join(home, ".local", "share", "devctl", "state.db"), cfg.StateDBPath())
}

func TestLoadConfig_UserFileOverridesDefaults(t *testing.T) {
	home := withHome(t)
	writeConfig(t, filepath.Join(home, ".config", "devctl", "config.yaml"), `
coderoot: ~/src
network_name: testnet
healthcheck_timeout: 90s
concurrency: 2
`)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "src"), cfg.Coderoot)
	assert.Equal(t, "testnet", cfg.NetworkName)
	assert.Equal(t, 90*time.Second, cfg.HealthcheckTimeout)
	assert.Equal(t, 2, cfg.Concurrency)
	// untouched keys keep defaults
	assert.Equal(t, 5*time.Second, cfg.HealthcheckInterval)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	home := withHome(t)
	path := filepath.Join(home, "custom.yaml")
	writeConfig(t, path, "network_name: fromfile\n")
	t.Setenv("DEVCTL_NETWORK_NAME", "fromenv")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.NetworkName)
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	home := withHome(t)

	_, err := LoadConfig(filepath.Join(home, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero concurrency", "concurrency: 0\n"},
		{"empty network", "network_name: \"\"\n"},
		{"negative timeout", "healthcheck_timeout: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := withHome(t)
			path := filepath.Join(home, "config.yaml")
			writeConfig(t, path, tt.content)

			_, err := LoadConfig(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/h", expandHome("~", "/h"))
	assert.Equal(t, "/h/x/y", expandHome("~/x/y", "/h"))
	assert.Equal(t, "/abs", expandHome("/abs", "/h"))
}
