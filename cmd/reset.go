package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// resetCmd wipes the docker volumes of one compose service.
var resetCmd = &cobra.Command{
	Use:   "reset <service>",
	Short: "Reset the docker volumes of a compose service",
	Long: `Brings down every running service that uses the given compose service,
then stops its containers and removes their volumes. The next up starts it
with empty data.`,
	Args: cobra.ExactArgs(1),
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.Reset(ctx, args[0])
	})
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
