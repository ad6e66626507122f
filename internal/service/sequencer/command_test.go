package sequencer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covid-projections/covid-data-public/internal/config"
	"github.com/covid-projections/covid-data-public/internal/domain/job"
	"github.com/covid-projections/covid-data-public/internal/repository/report"
)

// writeConfig saves a config with five jobs whose work dir is a temp dir.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	disabled := false

	cfg := &config.Config{
		WorkDir: dir,
		Jobs: []config.Job{
			{Name: "j1", Command: "python", Args: []string{"scripts/j1.py"}},
			{Name: "j2", Command: "python", Args: []string{"scripts/j2.py"}, AllowFailure: true},
			{Name: "j3", Command: "python", Args: []string{"scripts/j3.py"}},
			{Name: "j4", Command: "python", Args: []string{"scripts/j4.py"}, Enabled: &disabled},
			{Name: "j5", Command: "python", Args: []string{"scripts/j5.py"}},
		},
	}

	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	return path, dir
}

// TestRun_WritesReportAndMetrics records the outcome and releases the lock.
func TestRun_WritesReportAndMetrics(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)
	metricsPath := filepath.Join(dir, "metrics", "update.prom")
	require.NoError(t, os.MkdirAll(filepath.Dir(metricsPath), 0o755))

	executor := newFakeExecutor(map[string]int{"j2": 1})

	err := Run(context.Background(), &Options{
		ConfigPath:  cfgPath,
		MetricsFile: metricsPath,
		Executor:    executor,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"j1", "j2", "j3", "j5"}, executor.Executed())
	require.NoFileExists(t, filepath.Join(dir, config.DefaultLockFilename))

	run, err := report.NewFileRepository(filepath.Join(dir, config.DefaultReportFilename)).Load(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	require.Equal(t, job.StateCompleted, run.State)
	require.Equal(t, []job.Status{
		job.StatusSucceeded,
		job.StatusTolerated,
		job.StatusSucceeded,
		job.StatusSkipped,
		job.StatusSucceeded,
	}, statuses(run))

	contents, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.Contains(t, string(contents), "covid_data_update_run_success 1")
}

// TestRun_FailFastExitCode returns the failing job's exit code.
func TestRun_FailFastExitCode(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)
	executor := newFakeExecutor(map[string]int{"j3": 5})

	err := Run(context.Background(), &Options{ConfigPath: cfgPath, Executor: executor})
	require.Error(t, err)
	require.Equal(t, 5, ExitCode(err))
	require.Equal(t, []string{"j1", "j2", "j3"}, executor.Executed())

	run, err := report.NewFileRepository(filepath.Join(dir, config.DefaultReportFilename)).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, job.StateAborted, run.State)
	require.Equal(t, job.StatusNotRun, run.Results[4].Status)
}

// TestRun_Overrides runs only the selected jobs.
func TestRun_Overrides(t *testing.T) {
	t.Parallel()

	cfgPath, _ := writeConfig(t)
	executor := newFakeExecutor(nil)

	err := Run(context.Background(), &Options{
		ConfigPath: cfgPath,
		Overrides:  Overrides{Only: []string{"j4", "j5"}},
		Executor:   executor,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"j4", "j5"}, executor.Executed())

	err = Run(context.Background(), &Options{
		ConfigPath: cfgPath,
		Overrides:  Overrides{Enable: []string{"j9"}},
		Executor:   executor,
	})
	require.ErrorIs(t, err, errUnknownJobName)
	require.Equal(t, 1, ExitCode(err))
}

// TestRun_DryRun executes nothing and leaves no report behind.
func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)
	executor := newFakeExecutor(nil)

	err := Run(context.Background(), &Options{ConfigPath: cfgPath, DryRun: true, Executor: executor})
	require.NoError(t, err)
	require.Empty(t, executor.Executed())
	require.NoFileExists(t, filepath.Join(dir, config.DefaultReportFilename))
}

// TestRun_Locked refuses to run while another live process holds the marker.
func TestRun_Locked(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)
	lockPath := filepath.Join(dir, config.DefaultLockFilename)
	require.NoError(t, os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getppid())), 0o600))

	executor := newFakeExecutor(nil)

	err := Run(context.Background(), &Options{ConfigPath: cfgPath, Executor: executor})
	require.ErrorIs(t, err, errAlreadyRunning)
	require.Empty(t, executor.Executed())
}

// TestListJobs prints one row per configured job.
func TestListJobs(t *testing.T) {
	t.Parallel()

	cfgPath, _ := writeConfig(t)

	var out bytes.Buffer
	require.NoError(t, ListJobs(context.Background(), &ListOptions{ConfigPath: cfgPath, Out: &out}))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 6)
	require.Contains(t, string(lines[4]), "j4")
	require.Contains(t, string(lines[4]), "no")
	require.Contains(t, string(lines[1]), "python scripts/j1.py")
}

// TestLastRun prints the previous report, or ErrNoReport before any run.
func TestLastRun(t *testing.T) {
	t.Parallel()

	cfgPath, _ := writeConfig(t)

	var out bytes.Buffer

	err := LastRun(context.Background(), &ListOptions{ConfigPath: cfgPath, Out: &out})
	require.ErrorIs(t, err, ErrNoReport)

	require.NoError(t, Run(context.Background(), &Options{
		ConfigPath: cfgPath,
		Executor:   newFakeExecutor(map[string]int{"j2": 9}),
	}))

	require.NoError(t, LastRun(context.Background(), &ListOptions{ConfigPath: cfgPath, Out: &out}))
	require.Contains(t, out.String(), string(job.StateCompleted))
	require.Contains(t, out.String(), string(job.StatusTolerated))
	require.Contains(t, out.String(), "9")
}
