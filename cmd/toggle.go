package cmd

import (
	"context"
	"fmt"

	"devctl/internal/state"

	"github.com/spf13/cobra"
)

// toggleCmd switches a service between the local and containerized runtime.
var toggleCmd = &cobra.Command{
	Use:   "toggle [service] [local|containerized]",
	Short: "Switch a service between local and containerized runtime",
	Long: `Switch the runtime a service uses when other services depend on it.

In the local runtime the service is run from its own checkout instead of
the cached dependency copy. Running services that depend on it are
restarted so they pick up the change. Without a runtime argument the
current runtime is flipped.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runToggle,
}

func runToggle(cmd *cobra.Command, args []string) error {
	var runtime string
	if len(args) == 2 {
		if _, err := state.ParseRuntime(args[1]); err != nil {
			return fmt.Errorf("invalid runtime %q: must be %s or %s", args[1], state.RuntimeLocal, state.RuntimeContainerized)
		}
		runtime = args[1]
	}
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.Toggle(ctx, serviceArg(args), runtime)
	})
}

func init() {
	rootCmd.AddCommand(toggleCmd)
}
