package daemon

import (
	"errors"
	"fmt"
)

// ErrScriptNotFound means no daemon entry point could be resolved.
var ErrScriptNotFound = errors.New("cannot find daemon script, set MAX_DAEMON")

// DirError reports a failure creating or writing the daemon directory.
type DirError struct {
	Op   string // "create" or "write"
	Path string
	Err  error
}

func (e *DirError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DirError) Unwrap() error { return e.Err }

// SpawnError reports a failure launching the daemon process.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn daemon (%s): %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ConnectError is returned when every connect attempt failed.
type ConnectError struct {
	Attempts int
	Socket   string
	Err      error // last dial error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect after %d attempts: %v, %s", e.Attempts, e.Err, e.Socket)
}

func (e *ConnectError) Unwrap() error { return e.Err }
