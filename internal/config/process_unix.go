//go:build !windows

package config

import "golang.org/x/sys/unix"

// isProcessAlive checks whether a process with the given PID exists.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 checks existence. EPERM means it exists under another user.
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
