package cmd

import (
	"context"
	"fmt"
	"os"

	"devctl/internal/app"
	"devctl/internal/orchestrator"

	"github.com/spf13/cobra"
)

var (
	rootDebug      bool
	rootConfigPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "devctl",
	Short: "Run interdependent development services on your workstation",
	Long: `devctl brings up the services a repository declares in devservices/config.yml,
together with every dependency they need. Dependencies living in other
repositories are fetched with sparse git clones and started first.`,
	// Errors are reported by Execute; usage is noise for runtime failures.
	SilenceUsage: true,
}

// Engine is the subset of the orchestrator the commands drive.
type Engine interface {
	Up(ctx context.Context, name string, opts orchestrator.UpOptions) error
	Down(ctx context.Context, name string) error
	Toggle(ctx context.Context, name, runtime string) error
	Status(ctx context.Context, name string) error
	ListServices(ctx context.Context, all bool) error
	ListDependencies(ctx context.Context, name string, modes []string) error
	Sync(ctx context.Context, name string, modes []string) error
	Purge(ctx context.Context) error
	Logs(ctx context.Context, name string) error
	Reset(ctx context.Context, name string) error
}

// loadEngine bootstraps the application. Replaced in tests.
var loadEngine = func() (Engine, func(), error) {
	application, err := app.NewApplication(app.NewConfig(rootDebug, rootConfigPath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Services().Orchestrator, func() { _ = application.Close() }, nil
}

// withEngine runs fn against a freshly bootstrapped engine and releases it afterwards.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e Engine) error) error {
	engine, closeFn, err := loadEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, engine)
}

// serviceArg returns the optional service argument. Empty selects the
// repository in the current directory.
func serviceArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// modesFlag turns an optional --mode value into a mode list.
func modesFlag(mode string) []string {
	if mode == "" {
		return nil
	}
	return []string{mode}
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "devctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Config file (default is $HOME/.config/devctl/config.yaml)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
