// Package common defines shared sentinel errors used across tidyproxy
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrNotFound marks a lookup miss (group, contact or custom field
	// absent from a cache). Non-fatal: callers fall back or skip.
	ErrNotFound = errors.New("not found")

	// ErrLockHeld means a pull.lock from another run is present.
	ErrLockHeld = errors.New("lock file present")
)
