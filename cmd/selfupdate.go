package cmd

import (
	"context"
	"fmt"

	"devctl/internal/config"
	"devctl/internal/console"
	"devctl/pkg/logging"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update devctl to the latest version",
		Long: `Checks for the latest release of devctl on GitHub and replaces the running
binary when a newer version is available. The repository is taken from the
update_repository configuration key.`,
		Args: cobra.NoArgs,
		RunE: runSelfUpdate,
	}
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	current := rootCmd.Version
	if current == "" || current == "dev" {
		return fmt.Errorf("cannot self-update a development version")
	}

	cfg, err := config.LoadConfig(rootConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load devctl configuration: %w", err)
	}

	ctx := context.Background()
	out := console.Stdout()
	if cmd != nil {
		if cmd.Context() != nil {
			ctx = cmd.Context()
		}
		out = console.New(cmd.OutOrStdout())
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(cfg.UpdateRepository))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s", cfg.UpdateRepository)
	}
	logging.Debug("SelfUpdate", "Latest release of %s is %s", cfg.UpdateRepository, latest.Version())

	if latest.LessOrEqual(current) {
		out.Info(fmt.Sprintf("Current version %s is the latest", current))
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	out.Success(fmt.Sprintf("Successfully updated to version %s", latest.Version()))
	return nil
}
