// Package lockfile implements the advisory lock guarding concurrent pulls.
// The lock is a plain file: presence means a run is in progress. It is
// advisory only; -force bypasses it after a crashed run leaves one behind.
package lockfile

import (
	"fmt"
	"os"

	"github.com/Perth-Artifactory/tidyproxy/internal/common"
	"github.com/google/uuid"
)

// Lock is a held advisory lock.
type Lock struct {
	path  string
	runID string
}

// Acquire creates the lock file. If one already exists and force is false,
// common.ErrLockHeld is returned. The file body records a run id and pid so
// an operator can tell which run left it behind.
func Acquire(path string, force bool) (*Lock, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%s: %w", path, common.ErrLockHeld)
		}
	}

	runID := uuid.NewString()
	body := fmt.Sprintf("run=%s pid=%d\n", runID, os.Getpid())
	if err := os.WriteFile(path, []byte(body), 0o660); err != nil {
		return nil, fmt.Errorf("create lock %s: %w", path, err)
	}

	return &Lock{path: path, runID: runID}, nil
}

// RunID identifies this run in the lock file body.
func (l *Lock) RunID() string {
	return l.runID
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}
