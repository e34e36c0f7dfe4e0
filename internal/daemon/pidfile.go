package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/leonletto/max/internal/paths"
)

// WritePIDFile writes the given process ID to path as decimal text.
// The daemon does this at startup; the client only ever reads it.
func WritePIDFile(path string, pid int) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	content := fmt.Sprintf("%d\n", pid)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	return nil
}

// ReadPIDFile reads the process ID from the specified file.
func ReadPIDFile(path string) (int, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304 - path from daemon directory
	if err != nil {
		// Return error without wrapping to preserve os.IsNotExist check
		return 0, err
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %q", pidStr)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %d", pid)
	}

	return pid, nil
}

// IsAlive reports whether the daemon recorded in the pid file is running.
// A missing, empty, or unparsable pid file means not alive; it never errors.
func IsAlive(p paths.DaemonPaths) bool {
	pid, err := ReadPIDFile(p.PID)
	if err != nil {
		return false
	}
	return isProcessRunning(pid)
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		// On Unix, FindProcess always succeeds
		return false
	}

	// Signal 0 performs the existence and permission checks without
	// delivering anything to the target.
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	if errors.Is(err, syscall.EPERM) {
		// Process exists but belongs to someone else
		return true
	}

	// ESRCH, or os.ErrProcessDone
	return false
}

// CleanStale removes the socket and pid files left by a dead daemon.
// Best effort: errors, including already-removed files, are ignored.
func CleanStale(p paths.DaemonPaths) {
	_ = os.Remove(p.Socket)
	_ = os.Remove(p.PID)
}
