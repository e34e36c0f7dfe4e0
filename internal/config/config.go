package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/leonletto/max/internal/paths"
)

// Defaults for the connect handshake. The daemon needs a variable amount of
// time to bind its socket after spawn; 20 × 50ms bounds the wait to ~1s.
const (
	DefaultConnectAttempts = 20
	DefaultConnectInterval = 50 * time.Millisecond
	DefaultRuntime         = "bun"

	// FileName is the proxy config file inside ~/.max/.
	FileName = "proxy.toml"
)

// Config is computed once at startup and passed to every component.
type Config struct {
	BaseDir         string        // Root of the per-project daemon directories
	DevMode         bool          // Launch the daemon in watch mode
	DaemonOverride  string        // Entry point used when no layout path resolves
	Runtime         string        // Command line that runs the entry point, shell-quoted
	RuntimeCommand  []string      // Runtime split into program and leading arguments
	ConnectAttempts int           // Retry budget after the fast path fails
	ConnectInterval time.Duration // Sleep before each retry
	SpawnLock       bool          // Serialize check-then-spawn with a file lock
	FallbackDirect  bool          // Run the command directly when connect fails
	Debug           bool          // Debug-level logging
}

// File is the on-disk shape of ~/.max/proxy.toml.
type File struct {
	DaemonsDir string         `toml:"daemons_dir"`
	Debug      bool           `toml:"debug"`
	Daemon     DaemonSection  `toml:"daemon"`
	Connect    ConnectSection `toml:"connect"`
}

// DaemonSection holds [daemon] settings.
type DaemonSection struct {
	Runtime string `toml:"runtime"`
	Entry   string `toml:"entry"`
}

// ConnectSection holds [connect] settings.
type ConnectSection struct {
	Attempts       int   `toml:"attempts"`
	IntervalMS     int   `toml:"interval_ms"`
	SpawnLock      *bool `toml:"spawn_lock"`
	FallbackDirect bool  `toml:"fallback_direct"`
}

// Default returns the configuration used when no file or env is present.
func Default(home string) *Config {
	return &Config{
		BaseDir:         paths.BaseDirFor(home),
		Runtime:         DefaultRuntime,
		RuntimeCommand:  []string{DefaultRuntime},
		ConnectAttempts: DefaultConnectAttempts,
		ConnectInterval: DefaultConnectInterval,
		SpawnLock:       true,
	}
}

// Load resolves configuration for the current user.
//
// Priority (highest first):
//  1. Environment variables (MAX_DEV, MAX_DAEMON, MAX_RUNTIME, MAX_DAEMONS_DIR,
//     MAX_CONNECT_ATTEMPTS, MAX_CONNECT_INTERVAL_MS, MAX_DEBUG)
//  2. ~/.max/proxy.toml
//  3. Built-in defaults
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return LoadFrom(home, os.Getenv)
}

// LoadFrom is Load with the home directory and environment injected.
func LoadFrom(home string, getenv func(string) string) (*Config, error) {
	cfg := Default(home)

	file, err := LoadFile(filepath.Join(home, paths.ProjectDir, FileName))
	if err != nil {
		return nil, err
	}
	file.apply(cfg)

	env := envReader(getenv)
	if v := env.str("MAX_DAEMONS_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if env.bool("MAX_DEV") {
		cfg.DevMode = true
	}
	if v := env.str("MAX_DAEMON"); v != "" {
		cfg.DaemonOverride = v
	}
	if v := env.str("MAX_RUNTIME"); v != "" {
		cfg.Runtime = v
	}
	if v := env.int("MAX_CONNECT_ATTEMPTS"); v > 0 {
		cfg.ConnectAttempts = v
	}
	if v := env.int("MAX_CONNECT_INTERVAL_MS"); v > 0 {
		cfg.ConnectInterval = time.Duration(v) * time.Millisecond
	}
	if env.bool("MAX_DEBUG") {
		cfg.Debug = true
	}

	cfg.clamp()

	cmd, err := ParseRuntime(cfg.Runtime, getenv)
	if err != nil {
		return nil, err
	}
	cfg.RuntimeCommand = cmd
	return cfg, nil
}

// LoadFile reads a proxy.toml. A missing file yields a zero File.
func LoadFile(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) apply(cfg *Config) {
	if f.DaemonsDir != "" {
		cfg.BaseDir = f.DaemonsDir
	}
	if f.Debug {
		cfg.Debug = true
	}
	if f.Daemon.Runtime != "" {
		cfg.Runtime = f.Daemon.Runtime
	}
	if f.Daemon.Entry != "" {
		cfg.DaemonOverride = f.Daemon.Entry
	}
	if f.Connect.Attempts != 0 {
		cfg.ConnectAttempts = f.Connect.Attempts
	}
	if f.Connect.IntervalMS != 0 {
		cfg.ConnectInterval = time.Duration(f.Connect.IntervalMS) * time.Millisecond
	}
	if f.Connect.SpawnLock != nil {
		cfg.SpawnLock = *f.Connect.SpawnLock
	}
	if f.Connect.FallbackDirect {
		cfg.FallbackDirect = true
	}
}

func (c *Config) clamp() {
	if c.ConnectAttempts < 1 {
		c.ConnectAttempts = 1
	}
	if c.ConnectInterval < time.Millisecond {
		c.ConnectInterval = time.Millisecond
	}
}

// ConnectBudget is the worst-case time the retry loop can take.
func (c *Config) ConnectBudget() time.Duration {
	return time.Duration(c.ConnectAttempts) * c.ConnectInterval
}
