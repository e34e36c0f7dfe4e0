package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonletto/max/internal/paths"
)

func TestWriteAndReadPIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "sub", "daemon.pid")

	require.NoError(t, WritePIDFile(pidPath, 4242))

	info, err := os.Stat(pidPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	pid, err := ReadPIDFile(pidPath)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestReadPIDFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"text", "not-a-pid"},
		{"zero", "0"},
		{"negative", "-12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pidPath := filepath.Join(t.TempDir(), "daemon.pid")
			require.NoError(t, os.WriteFile(pidPath, []byte(tt.content), 0600))

			_, err := ReadPIDFile(pidPath)
			assert.Error(t, err)
		})
	}

	t.Run("missing file keeps not-exist error", func(t *testing.T) {
		_, err := ReadPIDFile(filepath.Join(t.TempDir(), "missing.pid"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestIsAlive(t *testing.T) {
	newPaths := func(t *testing.T) paths.DaemonPaths {
		return paths.ForIdentity(t.TempDir(), "abc123abc123")
	}

	t.Run("no pid file", func(t *testing.T) {
		assert.False(t, IsAlive(newPaths(t)))
	})

	t.Run("garbage pid file", func(t *testing.T) {
		p := newPaths(t)
		require.NoError(t, os.MkdirAll(p.Dir, 0700))
		require.NoError(t, os.WriteFile(p.PID, []byte("garbage"), 0600))
		assert.False(t, IsAlive(p))
	})

	t.Run("current process", func(t *testing.T) {
		p := newPaths(t)
		require.NoError(t, WritePIDFile(p.PID, os.Getpid()))
		assert.True(t, IsAlive(p))
	})

	t.Run("exited process", func(t *testing.T) {
		cmd := exec.Command("sh", "-c", "exit 0")
		require.NoError(t, cmd.Run())

		p := newPaths(t)
		require.NoError(t, WritePIDFile(p.PID, cmd.Process.Pid))
		assert.False(t, IsAlive(p))
	})
}

func TestCleanStale(t *testing.T) {
	p := paths.ForIdentity(t.TempDir(), "abc123abc123")
	require.NoError(t, os.MkdirAll(p.Dir, 0700))
	require.NoError(t, os.WriteFile(p.Socket, nil, 0600))
	require.NoError(t, WritePIDFile(p.PID, 1234))
	require.NoError(t, os.WriteFile(p.Log, []byte("keep"), 0600))

	CleanStale(p)

	assert.NoFileExists(t, p.Socket)
	assert.NoFileExists(t, p.PID)
	assert.FileExists(t, p.Log)

	// Second call finds nothing to remove and must not panic or fail.
	CleanStale(p)
}

func TestMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.json")
	require.NoError(t, WriteMetadata(path, "/home/u/project"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"root":"/home/u/project"}`, string(data))

	m, err := ReadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "/home/u/project", m.Root)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))
	_, err = ReadMetadata(path)
	assert.Error(t, err)
}
