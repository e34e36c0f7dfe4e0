package cli

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int
}

// ColorEnabled decides whether the daemon may emit ANSI color.
//
// Resolution order:
//  1. FORCE_COLOR set to anything but "" or "0" enables color
//  2. NO_COLOR set (any value) disables color
//  3. otherwise color follows whether stdout is a terminal
func ColorEnabled(stdoutIsTerminal bool, getenv func(string) string) bool {
	if v := getenv("FORCE_COLOR"); v != "" && v != "0" {
		return true
	}
	if getenv("NO_COLOR") != "" {
		return false
	}
	return stdoutIsTerminal
}
