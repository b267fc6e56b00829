// Package process answers liveness questions about local processes.
//
// The probe is a signal-0 check: it delivers no signal but reports
// whether the target exists. Permission errors count as alive, since
// EPERM proves a process owns the pid. Ambiguous probe failures are
// also treated as alive so callers never start a duplicate server on
// shaky evidence.
package process

import (
	"errors"
	"os"
	"syscall"
)

// IsAlive reports whether the process with the given pid is running.
// Non-positive pids are never alive.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		// Unix never fails here; Windows fails when the pid is gone.
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true
	case errors.Is(err, os.ErrProcessDone):
		return false
	case errors.Is(err, syscall.ESRCH):
		return false
	case errors.Is(err, syscall.EPERM):
		return true
	default:
		return true
	}
}
