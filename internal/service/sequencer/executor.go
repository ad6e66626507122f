package sequencer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"syscall"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
)

// Executor runs one job to completion and returns its exit code.
// A non-nil error means the job failed; the exit code is job.NoExitCode when
// the process never produced one.
type Executor interface {
	Execute(ctx context.Context, def *job.Definition) (int, error)
}

var errEmptyCommand = errors.New("command is required")

// signalExitBase is added to the signal number of a killed job.
const signalExitBase = 128

// ProcessExecutor runs jobs as child processes.
type ProcessExecutor struct {
	// Dir is the working directory of every job.
	Dir string
	// Stdout and Stderr receive the job output.
	Stdout io.Writer
	Stderr io.Writer
}

// NewProcessExecutor creates an executor that runs jobs in dir and forwards
// their output to the current process.
func NewProcessExecutor(dir string) *ProcessExecutor {
	return &ProcessExecutor{
		Dir:    dir,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Execute starts the job, waits for it and maps its exit status.
func (e *ProcessExecutor) Execute(ctx context.Context, def *job.Definition) (int, error) {
	if def.Command == "" {
		return job.NoExitCode, errEmptyCommand
	}

	if def.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	//nolint:gosec // Commands come from the operator's own configuration.
	cmd := exec.CommandContext(ctx, def.Command, def.Argv()...)
	cmd.Dir = e.Dir
	cmd.Env = mergeEnv(os.Environ(), def.Env)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return job.NoExitCode, fmt.Errorf("%s: %w", def.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitStatus(exitErr)

		return code, fmt.Errorf("%s exited with code %d: %w", def.Name, code, err)
	}

	return job.NoExitCode, fmt.Errorf("start %s: %w", def.Name, err)
}

// exitStatus follows the shell convention of 128+signal for processes
// killed by a signal.
func exitStatus(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return signalExitBase + int(status.Signal())
	}

	return exitErr.ExitCode()
}

// mergeEnv appends extra variables in name order so that they win over base.
func mergeEnv(base []string, extra map[string]string) []string {
	env := make([]string, 0, len(base)+len(extra))
	env = append(env, base...)

	for _, key := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, key+"="+extra[key])
	}

	return env
}
