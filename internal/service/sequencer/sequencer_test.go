package sequencer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
)

// fakeExecutor records executed jobs and returns the configured exit codes.
type fakeExecutor struct {
	mu       sync.Mutex
	codes    map[string]int
	executed []string
	// effect runs before the job returns, e.g. to create outputs.
	effect func(def *job.Definition)
}

func newFakeExecutor(codes map[string]int) *fakeExecutor {
	return &fakeExecutor{codes: codes}
}

func (f *fakeExecutor) Execute(_ context.Context, def *job.Definition) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.executed = append(f.executed, def.Name)

	if f.effect != nil {
		f.effect(def)
	}

	code := f.codes[def.Name]
	if code != 0 {
		return code, fmt.Errorf("%s exited with code %d", def.Name, code)
	}

	return 0, nil
}

func (f *fakeExecutor) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.executed...)
}

func defs(names ...string) []*job.Definition {
	result := make([]*job.Definition, 0, len(names))
	for _, name := range names {
		result = append(result, &job.Definition{Name: name, Command: "python", Enabled: true})
	}

	return result
}

func fixedClock() func() time.Time {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	)

	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		now = now.Add(time.Second)

		return now
	}
}

func execute(t *testing.T, executor Executor, list []*job.Definition, opts ...Option) (*job.Run, error) {
	t.Helper()

	run := job.NewRun("test", nil, list)
	opts = append([]Option{WithClock(fixedClock())}, opts...)

	return run, New(executor, opts...).Execute(context.Background(), run, list)
}

func statuses(run *job.Run) []job.Status {
	result := make([]job.Status, 0, len(run.Results))
	for _, r := range run.Results {
		result = append(result, r.Status)
	}

	return result
}

// TestExecute_AllSucceed runs every job in order and completes the run.
func TestExecute_AllSucceed(t *testing.T) {
	t.Parallel()

	executor := newFakeExecutor(nil)
	run, err := execute(t, executor, defs("a", "b", "c"))

	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, executor.Executed())
	require.True(t, run.Succeeded())
	require.Equal(t, 3, run.Count(job.StatusSucceeded))
}

// TestExecute_FailFast stops at the second of five jobs and reports its exit code.
func TestExecute_FailFast(t *testing.T) {
	t.Parallel()

	executor := newFakeExecutor(map[string]int{"j2": 4})
	run, err := execute(t, executor, defs("j1", "j2", "j3", "j4", "j5"))

	require.Error(t, err)
	require.Equal(t, []string{"j1", "j2"}, executor.Executed())
	require.Equal(t, job.StateAborted, run.State)
	require.Equal(t, []job.Status{
		job.StatusSucceeded,
		job.StatusFailed,
		job.StatusNotRun,
		job.StatusNotRun,
		job.StatusNotRun,
	}, statuses(run))

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	require.Equal(t, "j2", jobErr.Job)
	require.Equal(t, 4, ExitCode(err))
}

// TestExecute_ToleratedFailure keeps going after a job allowed to fail.
func TestExecute_ToleratedFailure(t *testing.T) {
	t.Parallel()

	list := defs("nytimes", "cmdc", "aws-lake")
	list[1].AllowFailure = true

	executor := newFakeExecutor(map[string]int{"cmdc": 1})
	run, err := execute(t, executor, list)

	require.NoError(t, err)
	require.Equal(t, []string{"nytimes", "cmdc", "aws-lake"}, executor.Executed())
	require.True(t, run.Succeeded())
	require.Equal(t, []job.Status{job.StatusSucceeded, job.StatusTolerated, job.StatusSucceeded}, statuses(run))

	result, err := run.Result("cmdc")
	require.NoError(t, err)
	require.Equal(t, 1, result.ExitCode)
	require.Contains(t, result.Error, "exited with code 1")
}

// TestExecute_DisabledJob is skipped without affecting its neighbours.
func TestExecute_DisabledJob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x"), 0o600))

	list := defs("a", "b", "c")
	list[0].Outputs = []string{"a.csv"}
	list[1].Enabled = false
	list[1].Outputs = []string{"b.csv"}
	list[2].Inputs = []string{"a.csv"}

	executor := newFakeExecutor(map[string]int{"b": 1})
	run, err := execute(t, executor, list, WithWorkDir(dir))

	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, executor.Executed())
	require.Equal(t, []job.Status{job.StatusSucceeded, job.StatusSkipped, job.StatusSucceeded}, statuses(run))
	require.NoFileExists(t, filepath.Join(dir, "b.csv"))
}

// TestExecute_MissingInput fails the job without starting it.
func TestExecute_MissingInput(t *testing.T) {
	t.Parallel()

	list := defs("texas-fips-hospitalizations", "after")
	list[0].Inputs = []string{"tx_tsa_hospitalizations.csv"}

	executor := newFakeExecutor(nil)
	run, err := execute(t, executor, list, WithWorkDir(t.TempDir()))

	require.ErrorIs(t, err, errMissingInput)
	require.Empty(t, executor.Executed())
	require.Equal(t, 1, ExitCode(err))
	require.Equal(t, []job.Status{job.StatusFailed, job.StatusNotRun}, statuses(run))

	result, err := run.Result("texas-fips-hospitalizations")
	require.NoError(t, err)
	require.Equal(t, job.NoExitCode, result.ExitCode)
}

// TestExecute_MissingOutput fails a job that exited 0 without producing its output.
func TestExecute_MissingOutput(t *testing.T) {
	t.Parallel()

	list := defs("nytimes")
	list[0].Outputs = []string{"data/cases-nytimes/timeseries-common.csv"}

	run, err := execute(t, newFakeExecutor(nil), list, WithWorkDir(t.TempDir()))

	require.ErrorIs(t, err, errMissingOutput)
	require.Equal(t, job.StateAborted, run.State)
}

// TestExecute_OutputProduced passes once the job writes its declared output.
func TestExecute_OutputProduced(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	list := defs("producer", "consumer")
	list[0].Outputs = []string{"out.csv"}
	list[1].Inputs = []string{"out.csv"}

	executor := newFakeExecutor(nil)
	executor.effect = func(def *job.Definition) {
		if def.Name == "producer" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "out.csv"), []byte("x"), 0o600))
		}
	}

	run, err := execute(t, executor, list, WithWorkDir(dir))

	require.NoError(t, err)
	require.True(t, run.Succeeded())
}

// TestExecute_DryRun never calls the executor.
func TestExecute_DryRun(t *testing.T) {
	t.Parallel()

	executor := newFakeExecutor(nil)
	run, err := execute(t, executor, defs("a", "b"), WithDryRun(true))

	require.NoError(t, err)
	require.Empty(t, executor.Executed())
	require.Equal(t, 2, run.Count(job.StatusSkipped))
}

// TestExecute_Canceled aborts before starting the next job.
func TestExecute_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	list := defs("a", "b")

	executor := newFakeExecutor(nil)
	executor.effect = func(*job.Definition) { cancel() }

	run := job.NewRun("test", nil, list)
	err := New(executor).Execute(ctx, run, list)

	require.ErrorIs(t, err, errRunCanceled)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"a"}, executor.Executed())
	require.Equal(t, []job.Status{job.StatusSucceeded, job.StatusNotRun}, statuses(run))
	require.Equal(t, 1, ExitCode(err))
}

// TestExecute_CanceledDuringToleratedJob aborts instead of moving past a job allowed to fail.
func TestExecute_CanceledDuringToleratedJob(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	list := defs("nytimes", "cmdc", "usafacts")
	list[1].AllowFailure = true
	list[2].Enabled = false

	executor := newFakeExecutor(map[string]int{"cmdc": 1})
	executor.effect = func(def *job.Definition) {
		if def.Name == "cmdc" {
			cancel()
		}
	}

	run := job.NewRun("test", nil, list)
	err := New(executor).Execute(ctx, run, list)

	require.ErrorIs(t, err, errRunCanceled)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, ExitCode(err))
	require.Equal(t, job.StateAborted, run.State)
	require.Equal(t, []string{"nytimes", "cmdc"}, executor.Executed())
	require.Equal(t, []job.Status{job.StatusSucceeded, job.StatusFailed, job.StatusNotRun}, statuses(run))
}

// TestExitCode maps run errors to process exit codes.
func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "job exit code", err: &JobError{Job: "a", ExitCode: 7, Err: errors.New("x")}, want: 7},
		{name: "wrapped job error", err: fmt.Errorf("run: %w", &JobError{Job: "a", ExitCode: 2}), want: 2},
		{name: "job without exit code", err: &JobError{Job: "a", ExitCode: job.NoExitCode}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
