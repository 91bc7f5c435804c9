package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// purgeCmd removes everything devctl created on this machine.
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove all containers, cached dependencies and state",
	Long: `Stop and remove every container on the shared network, remove the network,
delete the dependency cache and the state database.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func runPurge(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.Purge(ctx)
	})
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
