package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devctl/internal/compose"
	"devctl/internal/state"
	"devctl/internal/testutil"
	"devctl/internal/utils"
)

func TestLogs(t *testing.T) {
	e := newEnv(t)
	sentry := e.addService("sentry", sentryService)
	testutil.WritePrograms(t, sentry, sentryPrograms)
	snuba := e.installRemote("snuba", snubaService)
	e.markActive("sentry", "default", state.StartedServices)
	e.setOverride(func(cmd utils.Command) *reply {
		switch {
		case isCompose(cmd, "snuba", compose.VerbLogs):
			return &reply{res: utils.Result{Stdout: "kafka-1  | started\n"}}
		case isCompose(cmd, "sentry", compose.VerbLogs):
			return &reply{res: utils.Result{Stdout: "redis-1  | Ready to accept connections\n"}}
		}
		return nil
	})

	require.NoError(t, e.orch.Logs(e.ctx, "sentry"))

	assert.ElementsMatch(t, []string{
		composeLine("snuba", configOf(snuba), "logs", "-n", "100", "clickhouse", "kafka"),
		composeLine("sentry", configOf(sentry), "logs", "-n", "100", "redis"),
	}, e.composeCalls("logs"))
	assert.Equal(t, []string{
		"kafka-1  | started",
		"redis-1  | Ready to accept connections",
	}, e.console.Lines("info"), "remote logs come first")
}

func TestLogs_NotRunning(t *testing.T) {
	e := newEnv(t)
	e.addService("example-service", exampleService)
	e.markActive("example-service", "default", state.StartingServices)

	require.NoError(t, e.orch.Logs(e.ctx, "example-service"))
	assert.Equal(t, []string{"example-service is not running"}, e.console.Lines("warning"))
	assert.Empty(t, e.runner.Commands())
}

func TestLogs_ComposeFailure(t *testing.T) {
	e := newEnv(t)
	e.addService("example-service", exampleService)
	e.markActive("example-service", "default", state.StartedServices)
	e.setOverride(func(cmd utils.Command) *reply {
		if isCompose(cmd, "example-service", compose.VerbLogs) {
			return composeFailure(cmd, "no such project")
		}
		return nil
	})

	err := e.orch.Logs(e.ctx, "example-service")

	var composeErr *compose.ComposeError
	require.ErrorAs(t, err, &composeErr)
	assert.Equal(t, []string{"Failed to get logs for example-service"}, e.console.Lines("failure"))
}
