package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// logsCmd prints the recent container logs of a running service.
var logsCmd = &cobra.Command{
	Use:   "logs [service]",
	Short: "Show recent logs of a running service",
	Long: `Prints the last lines of container output for every repository the service
was started with, including remote dependencies.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func runLogs(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.Logs(ctx, serviceArg(args))
	})
}

func init() {
	rootCmd.AddCommand(logsCmd)
}
