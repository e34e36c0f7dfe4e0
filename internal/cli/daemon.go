package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/leonletto/max/internal/daemon"
	"github.com/leonletto/max/internal/paths"
)

// ErrNotRunning is returned by operations that need a live daemon.
var ErrNotRunning = errors.New("daemon is not running")

// DaemonStatusResult contains daemon status information.
type DaemonStatusResult struct {
	Running     bool   `json:"running"`
	Status      string `json:"status"`
	PID         int    `json:"pid,omitempty"`
	Identity    string `json:"identity"`
	Root        string `json:"root,omitempty"`
	Socket      string `json:"socket"`
	Log         string `json:"log"`
	SpawnLocked bool   `json:"spawn_locked,omitempty"`
}

// ResolveProjectRoot finds the project containing dir.
func ResolveProjectRoot(dir string) (string, error) {
	root, ok := paths.FindProjectRoot(dir)
	if !ok {
		return "", fmt.Errorf("no max project found at or above %s (need %s and %s/)",
			dir, paths.ProjectConfigFile, paths.ProjectDir)
	}
	return root, nil
}

// DaemonStatus reports on the daemon for root. It never contacts the daemon.
func DaemonStatus(baseDir, root string) *DaemonStatusResult {
	return statusFor(paths.ForProject(baseDir, root), root)
}

func statusFor(p paths.DaemonPaths, root string) *DaemonStatusResult {
	result := &DaemonStatusResult{
		Status:      "stopped",
		Identity:    p.Identity(),
		Root:        root,
		Socket:      p.Socket,
		Log:         p.Log,
		SpawnLocked: daemon.IsSpawnLocked(p.Lock),
	}

	pid, err := daemon.ReadPIDFile(p.PID)
	if err == nil && daemon.IsAlive(p) {
		result.Running = true
		result.Status = "running"
		result.PID = pid
	}
	return result
}

// DaemonStart makes sure the daemon for root is serving, spawning it if
// needed, and returns its status afterwards.
func DaemonStart(ctx context.Context, connector Connector, baseDir, root string) (*DaemonStatusResult, error) {
	conn, err := connector.Connect(ctx, root)
	if err != nil {
		return nil, err
	}
	_ = conn.Close()
	return DaemonStatus(baseDir, root), nil
}

// DaemonStop sends SIGTERM to the daemon for root and waits up to timeout
// for it to exit, then removes its socket and pid files.
func DaemonStop(baseDir, root string, timeout time.Duration) error {
	p := paths.ForProject(baseDir, root)
	pid, err := daemon.ReadPIDFile(p.PID)
	if err != nil || !daemon.IsAlive(p) {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process %d: %w", pid, err)
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return fmt.Errorf("timeout waiting for daemon to stop (PID %d still running)", pid)
		case <-ticker.C:
			if !daemon.IsAlive(p) {
				daemon.CleanStale(p)
				return nil
			}
		}
	}
}

// DaemonRestart stops the daemon if it is running and starts it again.
func DaemonRestart(ctx context.Context, connector Connector, baseDir, root string, timeout time.Duration) (*DaemonStatusResult, error) {
	if err := DaemonStop(baseDir, root, timeout); err != nil && !errors.Is(err, ErrNotRunning) {
		return nil, err
	}
	return DaemonStart(ctx, connector, baseDir, root)
}

// DaemonClean removes the socket and pid files of a daemon that is not
// running. It refuses while the daemon is alive.
func DaemonClean(baseDir, root string) error {
	p := paths.ForProject(baseDir, root)
	if daemon.IsAlive(p) {
		pid, _ := daemon.ReadPIDFile(p.PID)
		return fmt.Errorf("daemon is running (PID %d), stop it first", pid)
	}
	daemon.CleanStale(p)
	return nil
}

// ListDaemons reports every daemon directory under baseDir, sorted by root.
// Directories without project metadata are listed with an empty root.
func ListDaemons(baseDir string) ([]*DaemonStatusResult, error) {
	entries, err := os.ReadDir(baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read daemons directory: %w", err)
	}

	var results []*DaemonStatusResult
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p := paths.ForIdentity(baseDir, entry.Name())
		var root string
		if m, err := daemon.ReadMetadata(p.Metadata); err == nil {
			root = m.Root
		}
		results = append(results, statusFor(p, root))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Root != results[j].Root {
			return results[i].Root < results[j].Root
		}
		return results[i].Identity < results[j].Identity
	})
	return results, nil
}

// FormatDaemonStatus formats the daemon status for display.
func FormatDaemonStatus(result *DaemonStatusResult) string {
	var b strings.Builder
	if result.Running {
		fmt.Fprintf(&b, "Daemon:   running (PID %d)\n", result.PID)
	} else {
		b.WriteString("Daemon:   not running\n")
	}
	if result.Root != "" {
		fmt.Fprintf(&b, "Project:  %s\n", result.Root)
	}
	fmt.Fprintf(&b, "Identity: %s\n", result.Identity)
	fmt.Fprintf(&b, "Socket:   %s\n", result.Socket)
	fmt.Fprintf(&b, "Log:      %s\n", result.Log)
	if result.SpawnLocked {
		b.WriteString("Spawn:    in progress\n")
	}
	return b.String()
}

// FormatDaemonList formats ListDaemons output as one line per daemon.
func FormatDaemonList(results []*DaemonStatusResult) string {
	if len(results) == 0 {
		return "No daemons.\n"
	}

	var b strings.Builder
	for _, r := range results {
		state := "stopped"
		if r.Running {
			state = fmt.Sprintf("running (PID %d)", r.PID)
		}
		root := r.Root
		if root == "" {
			root = "(unknown project)"
		}
		fmt.Fprintf(&b, "%s  %-20s %s\n", r.Identity, state, root)
	}
	return b.String()
}

// FormatDaemonPaths formats the derived paths for a project.
func FormatDaemonPaths(baseDir, root string) string {
	p := paths.ForProject(baseDir, root)
	rows := []struct{ name, path string }{
		{"dir", p.Dir},
		{"socket", p.Socket},
		{"pid", p.PID},
		{"log", p.Log},
		{"metadata", p.Metadata},
		{"lock", p.Lock},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "root      %s\n", root)
	fmt.Fprintf(&b, "identity  %s\n", p.Identity())
	for _, r := range rows {
		fmt.Fprintf(&b, "%-9s %s\n", r.name, r.path)
	}
	return b.String()
}
