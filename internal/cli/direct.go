package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// DirectRunner runs the daemon entry point as an ordinary foreground
// process with the caller's stdio, bypassing the socket.
type DirectRunner struct {
	Runtime    []string
	EntryPoint func() (string, error)
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *slog.Logger
}

// DirectArgs builds the runtime arguments for a foreground run.
func DirectArgs(script, root string, args []string) []string {
	out := []string{"run", script}
	if root != "" {
		out = append(out, "--project-root", root)
	}
	return append(out, args...)
}

// Run executes the entry point with args and returns its exit status.
// A process killed by a signal reports 1. root may be empty when no
// project was found.
func (r *DirectRunner) Run(ctx context.Context, root string, args []string) (int, error) {
	if len(r.Runtime) == 0 {
		return 1, errors.New("failed to run: no runtime configured")
	}
	script, err := r.EntryPoint()
	if err != nil {
		return 1, err
	}

	cmdArgs := append(append([]string{}, r.Runtime[1:]...), DirectArgs(script, root, args)...)
	if r.Logger != nil {
		r.Logger.Debug("running direct", "program", r.Runtime[0], "args", cmdArgs)
	}

	cmd := exec.CommandContext(ctx, r.Runtime[0], cmdArgs...) //nolint:gosec // runtime from config, script from entry point resolution
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return 1, nil
	}
	return 1, fmt.Errorf("failed to run: %w", err)
}
