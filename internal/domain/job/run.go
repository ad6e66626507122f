package job

import (
	"errors"
	"fmt"
	"time"
)

// Status is the state of one job inside a run.
type Status string

const (
	// StatusPending jobs have not been reached yet.
	StatusPending Status = "pending"
	// StatusRunning marks the job currently executing.
	StatusRunning Status = "running"
	// StatusSucceeded jobs exited 0 and produced their outputs.
	StatusSucceeded Status = "succeeded"
	// StatusFailed jobs aborted the run.
	StatusFailed Status = "failed"
	// StatusTolerated jobs failed but were allowed to.
	StatusTolerated Status = "tolerated"
	// StatusSkipped jobs were disabled or the run was a dry run.
	StatusSkipped Status = "skipped"
	// StatusNotRun jobs were never reached because the run aborted.
	StatusNotRun Status = "not_run"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTolerated, StatusSkipped, StatusNotRun:
		return true
	default:
		return false
	}
}

// State is the state of a whole run.
type State string

const (
	// StatePending runs have not started any job.
	StatePending State = "pending"
	// StateRunning runs are executing their jobs.
	StateRunning State = "running"
	// StateCompleted runs reached the end of the job list.
	StateCompleted State = "completed"
	// StateAborted runs stopped at a fatal job failure or cancellation.
	StateAborted State = "aborted"
)

var (
	errInvalidTransition = errors.New("invalid state transition")
	errUnknownJob        = errors.New("unknown job")
)

// Actor identifies who started a run.
type Actor struct {
	// Hostname is the machine the run executed on.
	Hostname string
	// Username is the system user that started the run.
	Username string
}

// String renders the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return a.Username + "@" + a.Hostname
}

// NoExitCode is recorded when a job failed without producing an exit status.
const NoExitCode = -1

// Result is the outcome of one job.
type Result struct {
	Name       string
	Status     Status
	ExitCode   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the job ran, zero if it never started.
func (r *Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}

	return r.FinishedAt.Sub(r.StartedAt)
}

// Run tracks one execution of the job sequence.
type Run struct {
	ID         string
	Version    string
	Actor      *Actor
	State      State
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []*Result
}

// NewRun creates a pending run with one pending result per definition.
func NewRun(id string, actor *Actor, defs []*Definition) *Run {
	results := make([]*Result, 0, len(defs))
	for _, def := range defs {
		results = append(results, &Result{Name: def.Name, Status: StatusPending})
	}

	return &Run{
		ID:      id,
		Actor:   actor,
		State:   StatePending,
		Results: results,
	}
}

// Start moves the run from pending to running.
func (r *Run) Start(now time.Time) error {
	if r.State != StatePending {
		return fmt.Errorf("run %s -> %s: %w", r.State, StateRunning, errInvalidTransition)
	}

	r.State = StateRunning
	r.StartedAt = now

	return nil
}

// Complete marks a running run as completed.
func (r *Run) Complete(now time.Time) error {
	if r.State != StateRunning {
		return fmt.Errorf("run %s -> %s: %w", r.State, StateCompleted, errInvalidTransition)
	}

	r.State = StateCompleted
	r.FinishedAt = now

	return nil
}

// Abort marks the run as aborted and every job still pending as not run.
func (r *Run) Abort(now time.Time) error {
	if r.State != StateRunning && r.State != StatePending {
		return fmt.Errorf("run %s -> %s: %w", r.State, StateAborted, errInvalidTransition)
	}

	for _, result := range r.Results {
		if result.Status == StatusPending {
			result.Status = StatusNotRun
		}
	}

	r.State = StateAborted
	r.FinishedAt = now

	return nil
}

// Result returns the result of the named job.
func (r *Run) Result(name string) (*Result, error) {
	for _, result := range r.Results {
		if result.Name == name {
			return result, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", name, errUnknownJob)
}

// Begin marks a pending job as running.
func (r *Run) Begin(name string, now time.Time) error {
	result, err := r.pending(name, StatusRunning)
	if err != nil {
		return err
	}

	result.Status = StatusRunning
	result.StartedAt = now

	return nil
}

// Skip marks a pending job as skipped.
func (r *Run) Skip(name string) error {
	result, err := r.pending(name, StatusSkipped)
	if err != nil {
		return err
	}

	result.Status = StatusSkipped

	return nil
}

// Finish records the outcome of a running job. A nil cause means success;
// otherwise the job is failed, or tolerated when tolerate is set.
func (r *Run) Finish(name string, now time.Time, exitCode int, cause error, tolerate bool) error {
	result, err := r.Result(name)
	if err != nil {
		return err
	}

	status := StatusSucceeded

	switch {
	case cause == nil:
	case tolerate:
		status = StatusTolerated
	default:
		status = StatusFailed
	}

	if result.Status != StatusRunning {
		return fmt.Errorf("job %s %s -> %s: %w", name, result.Status, status, errInvalidTransition)
	}

	result.Status = status
	result.ExitCode = exitCode
	result.FinishedAt = now

	if cause != nil {
		result.Error = cause.Error()
	}

	return nil
}

// Fail records a job that failed before it could start, such as a missing input.
func (r *Run) Fail(name string, now time.Time, cause error, tolerate bool) error {
	if err := r.Begin(name, now); err != nil {
		return err
	}

	return r.Finish(name, now, NoExitCode, cause, tolerate)
}

// Succeeded reports whether the run completed.
func (r *Run) Succeeded() bool {
	return r.State == StateCompleted
}

// Duration returns the wall time of the run, zero while it is still running.
func (r *Run) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}

	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns how many jobs ended with the given status.
func (r *Run) Count(status Status) int {
	var n int

	for _, result := range r.Results {
		if result.Status == status {
			n++
		}
	}

	return n
}

func (r *Run) pending(name string, to Status) (*Result, error) {
	if r.State != StateRunning {
		return nil, fmt.Errorf("run is %s: %w", r.State, errInvalidTransition)
	}

	result, err := r.Result(name)
	if err != nil {
		return nil, err
	}

	if result.Status != StatusPending {
		return nil, fmt.Errorf("job %s %s -> %s: %w", name, result.Status, to, errInvalidTransition)
	}

	return result, nil
}
