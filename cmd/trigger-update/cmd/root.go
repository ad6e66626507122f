package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/covid-projections/covid-data-public/internal/config"
	"github.com/covid-projections/covid-data-public/internal/logger"
	"github.com/covid-projections/covid-data-public/internal/service/trigger"
	"github.com/covid-projections/covid-data-public/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// eventType overrides the configured event type.
	eventType string
	// dryRun prints the request instead of sending it.
	dryRun bool
	// logLevel sets the minimum log level.
	logLevel string

	// rootCmd represents the base command for triggering a remote update.
	rootCmd = &cobra.Command{
		Use:   "trigger-update",
		Short: "Trigger the source data update workflow on GitHub.",
		Long: `Sends a repository_dispatch event to the covid-data-public repository.

The GitHub token is read from GITHUB_TOKEN, or from the .env file when the
variable is not set. The command fails before any network call when no
token can be found. On success the URL of the workflow runs is printed.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !logger.SetLevelFromString(logLevel) {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return trigger.Run(ctx, &trigger.Options{
				ConfigPath: cfgPath,
				EventType:  eventType,
				DryRun:     dryRun,
				Out:        cmd.OutOrStdout(),
			})
		},
	}
)

// Execute runs the trigger-update CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&eventType, "event-type", "", "event type to send instead of the configured one")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the request without sending it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
