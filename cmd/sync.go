package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var syncMode string

// syncCmd fetches the remote dependencies of a service without starting anything.
var syncCmd = &cobra.Command{
	Use:   "sync [service]",
	Short: "Fetch or update the remote dependencies of a service",
	Long: `Fetch or update every remote dependency of a service mode. All
dependencies are attempted; the command fails if any of them could not be
synced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.Sync(ctx, serviceArg(args), modesFlag(syncMode))
	})
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncMode, "mode", "", "Mode whose dependencies to sync (default \"default\")")
}
