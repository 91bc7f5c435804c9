package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	listServicesAll      bool
	listDependenciesMode string
)

// listServicesCmd lists services found under the coderoot.
var listServicesCmd = &cobra.Command{
	Use:   "list-services",
	Short: "List services found under the coderoot",
	Long: `List services found under the configured coderoot with their active
modes and runtime. Stopped services are hidden unless --all is given.`,
	Args: cobra.NoArgs,
	RunE: runListServices,
}

// listDependenciesCmd prints what a service needs, in start order.
var listDependenciesCmd = &cobra.Command{
	Use:   "list-dependencies [service]",
	Short: "List the dependencies of a service in start order",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runListDependencies,
}

func runListServices(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.ListServices(ctx, listServicesAll)
	})
}

func runListDependencies(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e Engine) error {
		return e.ListDependencies(ctx, serviceArg(args), modesFlag(listDependenciesMode))
	})
}

func init() {
	rootCmd.AddCommand(listServicesCmd)
	rootCmd.AddCommand(listDependenciesCmd)

	listServicesCmd.Flags().BoolVar(&listServicesAll, "all", false, "Include stopped services")
	listDependenciesCmd.Flags().StringVar(&listDependenciesMode, "mode", "", "Mode to list dependencies for (default \"default\")")
}
