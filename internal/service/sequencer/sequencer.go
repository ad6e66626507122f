package sequencer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
	"github.com/covid-projections/covid-data-public/internal/logger"
)

var (
	errMissingInput  = errors.New("declared input is missing")
	errMissingOutput = errors.New("declared output is missing")
	errRunCanceled   = errors.New("run canceled")
)

// Sequencer executes job definitions strictly one after another.
type Sequencer struct {
	// executor runs a single job.
	executor Executor
	// workDir resolves relative input and output paths.
	workDir string
	// dryRun logs the jobs instead of running them.
	dryRun bool
	// now is the clock used for timestamps.
	now func() time.Time
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithWorkDir sets the directory relative paths are resolved against.
func WithWorkDir(dir string) Option {
	return func(s *Sequencer) {
		if dir != "" {
			s.workDir = dir
		}
	}
}

// WithDryRun makes the sequencer skip every job after logging it.
func WithDryRun(dryRun bool) Option {
	return func(s *Sequencer) {
		s.dryRun = dryRun
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a sequencer backed by executor.
func New(executor Executor, opts ...Option) *Sequencer {
	s := &Sequencer{
		executor: executor,
		workDir:  ".",
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Execute runs defs in order and records every outcome in run. It returns a
// *JobError for the job that aborted the run, or nil once the run completed.
func (s *Sequencer) Execute(ctx context.Context, run *job.Run, defs []*job.Definition) error {
	if err := run.Start(s.now()); err != nil {
		return err
	}

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			_ = run.Abort(s.now())

			return fmt.Errorf("%w before %s: %w", errRunCanceled, def.Name, err)
		}

		jobCtx := logger.WithKV(ctx, "job", def.Name)

		if !def.Enabled {
			logger.Info(jobCtx, "Job disabled, skipping")

			if err := run.Skip(def.Name); err != nil {
				return err
			}

			continue
		}

		if s.dryRun {
			logger.InfoKV(jobCtx, "Dry run, not executing", "command", def.CommandLine())

			if err := run.Skip(def.Name); err != nil {
				return err
			}

			continue
		}

		exitCode, err := s.runJob(jobCtx, run, def)
		if err == nil {
			continue
		}

		// A canceled run stops here even when the job may fail.
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.WarnKV(jobCtx, "Run canceled", "exit_code", exitCode, "error", err)

			_ = run.Abort(s.now())

			return fmt.Errorf("%w during %s: %w", errRunCanceled, def.Name, ctxErr)
		}

		if def.AllowFailure {
			logger.WarnKV(jobCtx, "Failed to update "+def.Name+", continuing", "exit_code", exitCode, "error", err)
			continue
		}

		logger.ErrorKV(jobCtx, "Job failed, aborting run", "exit_code", exitCode, "error", err)

		_ = run.Abort(s.now())

		return &JobError{Job: def.Name, ExitCode: exitCode, Err: err}
	}

	return run.Complete(s.now())
}

// runJob checks inputs, executes the job, checks outputs and records the result.
func (s *Sequencer) runJob(ctx context.Context, run *job.Run, def *job.Definition) (int, error) {
	if err := s.checkPaths(def.Inputs, errMissingInput); err != nil {
		if failErr := run.Fail(def.Name, s.now(), err, def.AllowFailure); failErr != nil {
			return job.NoExitCode, errors.Join(err, failErr)
		}

		return job.NoExitCode, err
	}

	if err := run.Begin(def.Name, s.now()); err != nil {
		return job.NoExitCode, err
	}

	logger.InfoKV(ctx, "Starting job", "command", def.CommandLine())

	exitCode, err := s.executor.Execute(ctx, def)
	if err == nil {
		err = s.checkPaths(def.Outputs, errMissingOutput)
	}

	tolerate := def.AllowFailure && ctx.Err() == nil

	if finishErr := run.Finish(def.Name, s.now(), exitCode, err, tolerate); finishErr != nil {
		return exitCode, errors.Join(err, finishErr)
	}

	if err == nil {
		result, _ := run.Result(def.Name)
		logger.InfoKV(ctx, "Job succeeded", "duration", result.Duration().String())
	}

	return exitCode, err
}

// checkPaths returns sentinel wrapped with the first path that does not exist.
func (s *Sequencer) checkPaths(paths []string, sentinel error) error {
	for _, path := range paths {
		if _, err := os.Stat(s.resolve(path)); err != nil {
			return fmt.Errorf("%s: %w", path, sentinel)
		}
	}

	return nil
}

func (s *Sequencer) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(s.workDir, path)
}
