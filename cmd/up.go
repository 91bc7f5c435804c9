package cmd

import (
	"context"

	"devctl/internal/orchestrator"

	"github.com/spf13/cobra"
)

var (
	upMode         string
	upExcludeLocal bool
)

// upCmd starts a service and everything its mode depends on.
var upCmd = &cobra.Command{
	Use:   "up [service]",
	Short: "Bring up a service and its dependencies",
	Long: `Bring up a service in the given mode together with its dependencies.

Remote dependencies are fetched or updated first, then every repository's
compose services are started concurrently. The command waits until all
containers report healthy.

Without a service argument the repository in the current directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.Up(ctx, serviceArg(args), orchestrator.UpOptions{
			Mode:         upMode,
			ExcludeLocal: upExcludeLocal,
		})
	})
}

func init() {
	rootCmd.AddCommand(upCmd)

	upCmd.Flags().StringVar(&upMode, "mode", "default", "Mode to bring the service up in")
	upCmd.Flags().BoolVar(&upExcludeLocal, "exclude-local", false, "Do not start dependencies that run in the local runtime")
}
