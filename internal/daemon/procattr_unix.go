//go:build unix

package daemon

import "syscall"

// detachedProcAttr puts the daemon in a new session so terminal signals
// sent to the client's process group never reach it.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
