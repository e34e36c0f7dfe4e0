//go:build !unix

package daemon

import "syscall"

// detachedProcAttr is a no-op on non-unix platforms.
func detachedProcAttr() *syscall.SysProcAttr {
	return nil
}
