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
	"github.com/covid-projections/covid-data-public/internal/service/sequencer"
	"github.com/covid-projections/covid-data-public/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// logLevel sets the minimum log level.
	logLevel string
	// reportFile overrides the configured report location.
	reportFile string
	// metricsFile overrides the configured metrics location.
	metricsFile string
	// dryRun logs the jobs instead of running them.
	dryRun bool
	// overrides collects --enable, --disable, --only and --flag.
	overrides sequencer.Overrides

	// rootCmd represents the base command for running the update jobs.
	rootCmd = &cobra.Command{
		Use:   "update-data",
		Short: "Run the source data update jobs in order.",
		Long: `Runs every enabled update job one after another.

The first failing job stops the run and its exit code becomes the exit code
of update-data. Jobs marked allow_failure are logged and skipped over.
A report of the run is written to the report file, and Prometheus metrics
to the metrics file when one is set.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: setLogLevel,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return sequencer.Run(ctx, &sequencer.Options{
				ConfigPath:  cfgPath,
				Overrides:   overrides,
				DryRun:      dryRun,
				ReportFile:  reportFile,
				MetricsFile: metricsFile,
			})
		},
	}

	// jobsCmd lists the configured jobs.
	jobsCmd = &cobra.Command{
		Use:   "jobs",
		Short: "List the configured jobs in execution order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sequencer.ListJobs(cmd.Context(), &sequencer.ListOptions{
				ConfigPath: cfgPath,
				Out:        cmd.OutOrStdout(),
			})
		},
	}

	// lastRunCmd prints the report of the previous run.
	lastRunCmd = &cobra.Command{
		Use:   "last-run",
		Short: "Show the report of the previous run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sequencer.LastRun(cmd.Context(), &sequencer.ListOptions{
				ConfigPath: cfgPath,
				ReportFile: reportFile,
				Out:        cmd.OutOrStdout(),
			})
		},
	}
)

// Execute runs the update-data CLI and exits with the failing job's exit code.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(sequencer.ExitCode(err))
	}
}

func setLogLevel(_ *cobra.Command, _ []string) error {
	if !logger.SetLevelFromString(logLevel) {
		return fmt.Errorf("unknown log level %q", logLevel)
	}

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&reportFile, "report-file", "", "report file (defaults to report_file from the configuration)")

	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus text metrics to this file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the jobs without running them")
	rootCmd.Flags().StringSliceVar(&overrides.Enable, "enable", nil, "enable the named jobs for this run")
	rootCmd.Flags().StringSliceVar(&overrides.Disable, "disable", nil, "disable the named jobs for this run")
	rootCmd.Flags().StringSliceVar(&overrides.Only, "only", nil, "run only the named jobs")
	rootCmd.Flags().StringArrayVar(&overrides.Flags, "flag", nil, "turn a job flag on, as JOB:FLAG")

	rootCmd.AddCommand(jobsCmd, lastRunCmd)
}
