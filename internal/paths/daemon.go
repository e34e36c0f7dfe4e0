package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// identityBytes is how much of the SHA-256 digest names a daemon directory.
// 48 bits is plenty for the number of projects one user has on disk.
const identityBytes = 6

// DaemonPaths holds the on-disk artifacts of one project's daemon.
// All fields are derived together from a single identity.
type DaemonPaths struct {
	Dir      string // <base>/<identity>
	Socket   string // daemon.sock, the daemon listens here
	PID      string // daemon.pid, written by the daemon at startup
	Log      string // daemon.log, daemon stderr
	Metadata string // project.json, written at spawn time
	Lock     string // spawn.lock, guards check-then-spawn
}

// Identity returns the hex fingerprint of a project root path.
func Identity(root string) string {
	sum := sha256.Sum256([]byte(root))
	return hex.EncodeToString(sum[:identityBytes])
}

// ForIdentity returns the daemon paths for an identity under baseDir.
func ForIdentity(baseDir, identity string) DaemonPaths {
	dir := filepath.Join(baseDir, identity)
	return DaemonPaths{
		Dir:      dir,
		Socket:   filepath.Join(dir, "daemon.sock"),
		PID:      filepath.Join(dir, "daemon.pid"),
		Log:      filepath.Join(dir, "daemon.log"),
		Metadata: filepath.Join(dir, "project.json"),
		Lock:     filepath.Join(dir, "spawn.lock"),
	}
}

// ForProject returns the daemon paths for a project root under baseDir.
func ForProject(baseDir, root string) DaemonPaths {
	return ForIdentity(baseDir, Identity(root))
}

// Identity returns the identity component of the paths.
func (p DaemonPaths) Identity() string {
	return filepath.Base(p.Dir)
}

// DefaultBaseDir returns ~/.max/daemons.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return BaseDirFor(home), nil
}

// BaseDirFor returns the daemons directory for a home directory.
func BaseDirFor(home string) string {
	return filepath.Join(home, ProjectDir, "daemons")
}
