package sequencer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/covid-projections/covid-data-public/internal/config"
	"github.com/covid-projections/covid-data-public/internal/domain/job"
	"github.com/covid-projections/covid-data-public/internal/logger"
	"github.com/covid-projections/covid-data-public/internal/metrics"
	"github.com/covid-projections/covid-data-public/internal/repository/report"
	"github.com/covid-projections/covid-data-public/internal/service/common"
	"github.com/covid-projections/covid-data-public/internal/version"
)

// Options are inputs accepted by the sequencer entry point.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Overrides adjust the job list for this run only.
	Overrides Overrides
	// DryRun logs every enabled job instead of running it.
	DryRun bool
	// ReportFile overrides the configured report location.
	ReportFile string
	// MetricsFile overrides the configured metrics location.
	MetricsFile string
	// Executor replaces the process executor, mostly for tests.
	Executor Executor
}

// Run loads the configuration and executes the job list once.
// The returned error is a *JobError when a job aborted the run.
//
//nolint:cyclop // Linear setup steps; splitting would scatter the run lifecycle.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "update-data")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	defs, err := opts.Overrides.Apply(cfg.Definitions())
	if err != nil {
		return fmt.Errorf("apply overrides: %w", err)
	}

	if err = job.ValidateSequence(defs); err != nil {
		return fmt.Errorf("invalid job list: %w", err)
	}

	workDir := cfg.WorkDir

	// Only one run per work directory; dry runs do not touch anything.
	if !opts.DryRun {
		release, lockErr := acquireLock(ctx, inDir(workDir, cfg.LockFile))
		if lockErr != nil {
			return lockErr
		}

		defer release()
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	}

	run := job.NewRun(uuid.NewString(), actor, defs)
	run.Version = version.Short()

	ctx = logger.WithKV(ctx, "run_id", run.ID)
	logger.InfoKV(ctx, "Starting update run", "jobs", len(defs), "actor", actor.String(), "work_dir", workDir)

	executor := opts.Executor
	if executor == nil {
		executor = NewProcessExecutor(workDir)
	}

	seq := New(executor, WithWorkDir(workDir), WithDryRun(opts.DryRun))
	runErr := seq.Execute(ctx, run, defs)

	if !opts.DryRun {
		publish(ctx, run, pick(opts.ReportFile, workDir, cfg.ReportFile), pick(opts.MetricsFile, workDir, cfg.MetricsFile))
	}

	logger.InfoKV(ctx, "Update run finished",
		"state", run.State,
		"duration", run.Duration().String(),
		"succeeded", run.Count(job.StatusSucceeded),
		"tolerated", run.Count(job.StatusTolerated),
		"skipped", run.Count(job.StatusSkipped),
		"not_run", run.Count(job.StatusNotRun),
	)

	return runErr
}

// publish writes the report and metrics. Failures are logged so they never
// mask the run outcome.
func publish(ctx context.Context, run *job.Run, reportPath, metricsPath string) {
	if err := report.NewFileRepository(reportPath).Save(ctx, run); err != nil {
		logger.WarnKV(ctx, "Unable to save run report", "path", reportPath, "error", err)
	} else {
		logger.DebugKV(ctx, "Run report saved", "path", reportPath)
	}

	if metricsPath == "" {
		return
	}

	recorder := metrics.NewRecorder()
	recorder.Observe(run)

	if err := recorder.WriteTextfile(metricsPath); err != nil {
		logger.WarnKV(ctx, "Unable to write metrics", "path", metricsPath, "error", err)
	}
}

// pick prefers the command line path; configured paths are relative to the
// work directory.
func pick(override, workDir, configured string) string {
	if override != "" {
		return override
	}

	return inDir(workDir, configured)
}

func inDir(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, path)
}
