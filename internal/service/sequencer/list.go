package sequencer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/covid-projections/covid-data-public/internal/config"
	"github.com/covid-projections/covid-data-public/internal/domain/job"
	"github.com/covid-projections/covid-data-public/internal/repository/report"
)

// ErrNoReport is returned by LastRun before the first recorded run.
var ErrNoReport = errors.New("no run has been recorded yet")

// ListOptions are inputs accepted by the listing commands.
type ListOptions struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ReportFile overrides the configured report location.
	ReportFile string
	// Out receives the table, os.Stdout when nil.
	Out io.Writer
}

func (o *ListOptions) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}

	return o.Out
}

// ListJobs prints the configured jobs in execution order.
func ListJobs(_ context.Context, opts *ListOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	w := tabwriter.NewWriter(opts.out(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tNAME\tENABLED\tALLOW FAILURE\tCOMMAND\tINPUTS\tOUTPUTS")

	for i, def := range cfg.Definitions() {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			def.Name,
			yesNo(def.Enabled),
			yesNo(def.AllowFailure),
			def.CommandLine(),
			orDash(def.Inputs),
			orDash(def.Outputs),
		)
	}

	return w.Flush()
}

// LastRun prints the report of the previous run.
func LastRun(ctx context.Context, opts *ListOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	path := pick(opts.ReportFile, cfg.WorkDir, cfg.ReportFile)

	run, err := report.NewFileRepository(path).Load(ctx)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			return fmt.Errorf("%w (%s)", ErrNoReport, path)
		}

		return err
	}

	out := opts.out()
	_, _ = fmt.Fprintf(out, "Run %s by %s: %s\n", run.ID, run.Actor.String(), run.State)
	_, _ = fmt.Fprintf(out, "Started %s, took %s\n\n", run.StartedAt.Format(time.RFC3339), run.Duration().Round(time.Second))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "JOB\tSTATUS\tEXIT CODE\tDURATION\tERROR")

	for _, result := range run.Results {
		exitCode := "-"
		if !result.StartedAt.IsZero() && result.ExitCode != job.NoExitCode {
			exitCode = strconv.Itoa(result.ExitCode)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			result.Name,
			result.Status,
			exitCode,
			result.Duration().Round(time.Millisecond),
			result.Error,
		)
	}

	return w.Flush()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}

func orDash(paths []string) string {
	if len(paths) == 0 {
		return "-"
	}

	return strings.Join(paths, ",")
}
