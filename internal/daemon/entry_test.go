package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0644))
}

func TestFindEntryPoint(t *testing.T) {
	t.Run("development checkout", func(t *testing.T) {
		root, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)
		bin := filepath.Join(root, "a", "b", "c")
		touch(t, filepath.Join(bin, "packages", "cli", "src", "index.ts"))
		// Release layout also present; development wins.
		touch(t, filepath.Join(root, "src", "index.ts"))

		got, err := FindEntryPoint(filepath.Join(bin, "max"), "/override.ts")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(bin, "packages", "cli", "src", "index.ts"), got)
	})

	t.Run("release layout", func(t *testing.T) {
		root, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)
		exe := filepath.Join(root, "target", "release", "bin", "max")
		touch(t, exe)
		touch(t, filepath.Join(root, "src", "index.ts"))

		got, err := FindEntryPoint(exe, "/override.ts")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "src", "index.ts"), got)
	})

	t.Run("release entry reached through symlink", func(t *testing.T) {
		root, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)
		target := filepath.Join(root, "real", "index.ts")
		touch(t, target)
		require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0755))
		require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "src")))

		got, err := FindEntryPoint(filepath.Join(root, "a", "b", "c", "max"), "")
		require.NoError(t, err)
		assert.Equal(t, target, got)
	})

	t.Run("override when no layout matches", func(t *testing.T) {
		got, err := FindEntryPoint(filepath.Join(t.TempDir(), "max"), "/custom/daemon.ts")
		require.NoError(t, err)
		assert.Equal(t, "/custom/daemon.ts", got)
	})

	t.Run("nothing found", func(t *testing.T) {
		_, err := FindEntryPoint(filepath.Join(t.TempDir(), "max"), "")
		assert.ErrorIs(t, err, ErrScriptNotFound)
	})

	t.Run("unknown executable uses override", func(t *testing.T) {
		got, err := FindEntryPoint("", "/custom/daemon.ts")
		require.NoError(t, err)
		assert.Equal(t, "/custom/daemon.ts", got)
	})
}
