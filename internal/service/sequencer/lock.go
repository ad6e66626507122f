package sequencer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/covid-projections/covid-data-public/internal/logger"
)

// errAlreadyRunning is returned while another live process holds the lock.
var errAlreadyRunning = errors.New("another update-data run is in progress")

// lockFilePermissions restricts the marker to the current user.
const lockFilePermissions = 0o600

// acquireLock creates the marker file holding our PID. A marker left behind
// by a process that no longer exists is removed and replaced.
func acquireLock(ctx context.Context, path string) (release func(), err error) {
	path = filepath.Clean(path)

	for attempt := 0; attempt < 2; attempt++ {
		err = createMarker(path)
		if err == nil {
			return func() {
				if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
					logger.WarnKV(ctx, "Unable to remove run marker", "path", path, "error", removeErr)
				}
			}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create run marker: %w", err)
		}

		pid, alive := markerOwner(path)
		if alive {
			return nil, fmt.Errorf("%w (pid %d, marker %s)", errAlreadyRunning, pid, path)
		}

		logger.InfoKV(ctx, "Removing stale run marker", "path", path, "pid", pid)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale run marker: %w", err)
		}
	}

	return nil, fmt.Errorf("%w (marker %s)", errAlreadyRunning, path)
}

func createMarker(path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, lockFilePermissions)
	if err != nil {
		return err
	}

	_, err = file.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	return err
}

// markerOwner reads the PID from the marker and reports whether that process
// is still alive. Unreadable markers are treated as stale.
func markerOwner(path string) (int, bool) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return pid, false
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return pid, false
	}

	return pid, true
}
