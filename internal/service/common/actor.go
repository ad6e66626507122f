//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
)

// DetectActor gathers host and user information for the run report.
func DetectActor() (*job.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &job.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
