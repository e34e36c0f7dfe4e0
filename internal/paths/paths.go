package paths

import (
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile marks a project root together with ProjectDir.
	ProjectConfigFile = "max.json"

	// ProjectDir is the per-project state directory. Both markers are required.
	ProjectDir = ".max"
)

// FindProjectRoot walks up from startPath looking for a directory that holds
// both max.json and a .max/ directory, the same way git looks for .git/.
//
// startPath is made absolute and symlink-free first so the result matches
// what the daemon computes for the same directory; identities are derived
// from the root string, so both sides must agree byte for byte.
//
// Returns ("", false) when no ancestor qualifies or startPath cannot be
// resolved.
func FindProjectRoot(startPath string) (string, bool) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", false
	}
	dir, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", false
	}

	for {
		if isProjectRoot(dir) {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", false
		}
		dir = parent
	}
}

func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ProjectConfigFile)); err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, ProjectDir))
	return err == nil && info.IsDir()
}
