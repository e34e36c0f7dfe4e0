package daemon

import (
	"os"
	"path/filepath"
)

// Entry point locations relative to the directory holding the max binary.
const (
	devEntryRel     = "packages/cli/src/index.ts" // binary at the repo root
	releaseEntryRel = "../../../src/index.ts"     // binary in the package's target dir
)

// FindEntryPoint resolves the daemon's runnable script.
//
// Resolution order:
//  1. <exe dir>/packages/cli/src/index.ts (development checkout)
//  2. <exe dir>/../../../src/index.ts (release layout)
//  3. override (MAX_DAEMON / [daemon] entry)
//
// Layout paths are symlink-resolved and must exist.
func FindEntryPoint(executable, override string) (string, error) {
	if executable != "" {
		exeDir := filepath.Dir(executable)
		for _, rel := range []string{devEntryRel, releaseEntryRel} {
			if p, ok := resolveExisting(filepath.Join(exeDir, rel)); ok {
				return p, nil
			}
		}
	}

	if override != "" {
		return override, nil
	}
	return "", ErrScriptNotFound
}

// EntryPointFor returns an entry point resolver bound to the running binary.
func EntryPointFor(override string) func() (string, error) {
	return func() (string, error) {
		exe, err := os.Executable()
		if err != nil {
			exe = ""
		}
		return FindEntryPoint(exe, override)
	}
}

func resolveExisting(path string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(abs); err != nil {
		return "", false
	}
	return abs, true
}
