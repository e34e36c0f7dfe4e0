package daemon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/leonletto/max/internal/config"
	"github.com/leonletto/max/internal/paths"
)

// LaunchSpec describes a detached background process: stdin and stdout go to
// the null device, stderr is appended to LogPath.
type LaunchSpec struct {
	Program string
	Args    []string
	Dir     string
	LogPath string
}

// Launcher starts a process described by a LaunchSpec and returns without
// waiting for it.
type Launcher interface {
	Launch(spec LaunchSpec) error
}

// ExecLauncher launches processes with os/exec in their own session.
type ExecLauncher struct{}

// Launch implements Launcher.
func (ExecLauncher) Launch(spec LaunchSpec) error {
	logFile, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // G304 - path from daemon directory
	if err != nil {
		return &SpawnError{Program: spec.Program, Err: fmt.Errorf("open daemon log: %w", err)}
	}
	// The child holds its own descriptor once started.
	defer func() { _ = logFile.Close() }()

	cmd := exec.Command(spec.Program, spec.Args...) //nolint:gosec // program and args from config and resolved entry point
	cmd.Dir = spec.Dir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = logFile
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return &SpawnError{Program: spec.Program, Err: err}
	}

	// Release the child so it gets adopted by init/launchd. Never Wait():
	// the client exits long before the daemon does.
	if err := cmd.Process.Release(); err != nil {
		return &SpawnError{Program: spec.Program, Err: fmt.Errorf("release daemon process: %w", err)}
	}
	return nil
}

// Spawner starts a project's daemon in the background.
type Spawner struct {
	Runtime    []string // program followed by leading arguments
	DevMode    bool
	EntryPoint func() (string, error)
	Launcher   Launcher
	Notices    io.Writer // user-facing banners, usually stderr
	Logger     *slog.Logger
}

// NewSpawner returns a Spawner configured from cfg that launches real processes.
func NewSpawner(cfg *config.Config, notices io.Writer, logger *slog.Logger) *Spawner {
	return &Spawner{
		Runtime:    cfg.RuntimeCommand,
		DevMode:    cfg.DevMode,
		EntryPoint: EntryPointFor(cfg.DaemonOverride),
		Launcher:   ExecLauncher{},
		Notices:    notices,
		Logger:     logger,
	}
}

// Spawn prepares the daemon directory and launches the daemon for root.
// It returns as soon as the process is started; readiness is the
// connector's job. Failures are reported, never retried.
func (s *Spawner) Spawn(root string, p paths.DaemonPaths) error {
	if err := os.MkdirAll(p.Dir, 0700); err != nil {
		return &DirError{Op: "create", Path: p.Dir, Err: err}
	}
	if err := WriteMetadata(p.Metadata, root); err != nil {
		return &DirError{Op: "write", Path: p.Metadata, Err: err}
	}

	if len(s.Runtime) == 0 {
		return &SpawnError{Err: errors.New("no runtime configured")}
	}

	script, err := s.EntryPoint()
	if err != nil {
		return err
	}

	if s.DevMode && s.Notices != nil {
		fmt.Fprintln(s.Notices, "\x1b[33mStarting daemon in watch mode\x1b[0m")
	}

	spec := LaunchSpec{
		Program: s.Runtime[0],
		Args:    append(append([]string{}, s.Runtime[1:]...), DaemonArgs(script, root, s.DevMode)...),
		Dir:     root,
		LogPath: p.Log,
	}
	s.logger().Debug("spawning daemon", "program", spec.Program, "args", spec.Args, "log", spec.LogPath)

	if err := s.Launcher.Launch(spec); err != nil {
		var spawnErr *SpawnError
		if errors.As(err, &spawnErr) {
			return err
		}
		return &SpawnError{Program: spec.Program, Err: err}
	}
	return nil
}

// DaemonArgs builds the runtime arguments for a daemonized entry point.
// Dev mode runs under the runtime's file watcher instead of a plain run.
func DaemonArgs(script, root string, dev bool) []string {
	runFlag := "run"
	if dev {
		runFlag = "--watch"
	}
	return []string{runFlag, script, "--daemonized", "--project-root", root}
}

func (s *Spawner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
