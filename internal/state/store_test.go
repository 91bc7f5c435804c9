package state

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestServiceEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateServiceEntry(ctx, "sentry", "default", StartingServices))
	require.NoError(t, s.UpdateServiceEntry(ctx, "snuba", "default", StartingServices))
	require.NoError(t, s.UpdateServiceEntry(ctx, "sentry", "full", StartingServices))
	require.NoError(t, s.UpdateServiceEntry(ctx, "sentry", "default", StartingServices), "upsert is idempotent")

	names, err := s.GetServiceEntries(ctx, StartingServices)
	require.NoError(t, err)
	assert.Equal(t, []string{"sentry", "snuba"}, names)

	modes, err := s.GetActiveModesForService(ctx, "sentry", StartingServices)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "full"}, modes)

	started, err := s.GetServiceEntries(ctx, StartedServices)
	require.NoError(t, err)
	assert.Empty(t, started, "tables are independent")

	require.NoError(t, s.RemoveServiceEntry(ctx, "sentry", StartingServices))
	modes, err = s.GetActiveModesForService(ctx, "sentry", StartingServices)
	require.NoError(t, err)
	assert.Empty(t, modes)
}

func TestInvalidTable(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateServiceEntry(context.Background(), "x", "default", Table("users; DROP TABLE x"))
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestServiceRuntime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rt, err := s.GetServiceRuntime(ctx, "snuba")
	require.NoError(t, err)
	assert.Equal(t, RuntimeContainerized, rt, "containerized by default")

	require.NoError(t, s.UpdateServiceRuntime(ctx, "snuba", RuntimeLocal))
	require.NoError(t, s.UpdateServiceRuntime(ctx, "relay", RuntimeLocal))
	require.NoError(t, s.UpdateServiceRuntime(ctx, "relay", RuntimeContainerized))

	rt, err = s.GetServiceRuntime(ctx, "snuba")
	require.NoError(t, err)
	assert.Equal(t, RuntimeLocal, rt)

	local, err := s.GetServicesByRuntime(ctx, RuntimeLocal)
	require.NoError(t, err)
	assert.Equal(t, []string{"snuba"}, local)
}

func TestPersistsAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.UpdateServiceEntry(ctx, "sentry", "default", StartedServices))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	names, err := s2.GetServiceEntries(ctx, StartedServices)
	require.NoError(t, err)
	assert.Equal(t, []string{"sentry"}, names)
}

func TestConcurrentHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := Open(path)
			if err != nil {
				errs[i] = err
				return
			}
			defer s.Close()
			errs[i] = s.UpdateServiceEntry(ctx, "svc", "default", StartedServices)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	check, err := Open(path)
	require.NoError(t, err)
	defer check.Close()
	modes, err := check.GetActiveModesForService(ctx, "svc", StartedServices)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, modes)
}

func TestClearAndDestroy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.UpdateServiceEntry(ctx, "sentry", "default", StartedServices))
	require.NoError(t, s.UpdateServiceRuntime(ctx, "sentry", RuntimeLocal))
	require.NoError(t, s.ClearState(ctx))

	names, err := s.GetServiceEntries(ctx, StartedServices)
	require.NoError(t, err)
	assert.Empty(t, names)
	local, err := s.GetServicesByRuntime(ctx, RuntimeLocal)
	require.NoError(t, err)
	assert.Empty(t, local)

	require.NoError(t, s.Destroy())
	assert.NoFileExists(t, path)
}

func TestParseRuntime(t *testing.T) {
	rt, err := ParseRuntime("local")
	require.NoError(t, err)
	assert.Equal(t, RuntimeLocal, rt)

	_, err = ParseRuntime("docker")
	assert.Error(t, err)
}
