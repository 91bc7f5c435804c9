package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// statusCmd shows the containers of a running service.
var statusCmd = &cobra.Command{
	Use:   "status [service]",
	Short: "Show the containers of a running service",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.Status(ctx, serviceArg(args))
	})
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
