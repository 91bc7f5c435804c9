package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// downCmd stops a service and the remote dependencies nobody else needs.
var downCmd = &cobra.Command{
	Use:   "down [service]",
	Short: "Bring down a service and its unshared dependencies",
	Long: `Bring down a service in every mode it is active in.

Remote dependencies still required by another running service are left
alone. The command refuses to stop a service that another running service
depends on.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDown,
}

func runDown(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.Down(ctx, serviceArg(args))
	})
}

func init() {
	rootCmd.AddCommand(downCmd)
}
