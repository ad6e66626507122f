package sequencer

import (
	"errors"
	"fmt"
)

// JobError reports the job that aborted a run.
type JobError struct {
	// Job is the name of the failing job.
	Job string
	// ExitCode is the job exit status, or a negative value when there is none.
	ExitCode int
	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed: %v", e.Job, e.Err)
}

// Unwrap returns the underlying failure.
func (e *JobError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Run to a process exit status: 0 for
// nil, the exit code of the failing job when it has one, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var jobErr *JobError
	if errors.As(err, &jobErr) && jobErr.ExitCode > 0 {
		return jobErr.ExitCode
	}

	return 1
}
