package daemon

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/leonletto/max/internal/config"
	"github.com/leonletto/max/internal/paths"
)

// DaemonSpawner starts a daemon for a project root. *Spawner implements it.
type DaemonSpawner interface {
	Spawn(root string, p paths.DaemonPaths) error
}

// Connector performs the connect-or-launch-then-retry handshake.
type Connector struct {
	BaseDir   string
	Attempts  int
	Interval  time.Duration
	SpawnLock bool
	Spawner   DaemonSpawner
	Logger    *slog.Logger

	// Dial opens the socket. Defaults to a Unix domain socket dial.
	Dial func(socket string) (net.Conn, error)
}

// NewConnector returns a Connector configured from cfg.
func NewConnector(cfg *config.Config, spawner DaemonSpawner, logger *slog.Logger) *Connector {
	return &Connector{
		BaseDir:   cfg.BaseDir,
		Attempts:  cfg.ConnectAttempts,
		Interval:  cfg.ConnectInterval,
		SpawnLock: cfg.SpawnLock,
		Spawner:   spawner,
		Logger:    logger,
	}
}

// DialUnix connects to a Unix domain socket.
func DialUnix(socket string) (net.Conn, error) {
	return net.Dial("unix", socket)
}

// Connect returns a live stream to the daemon serving root.
//
//  1. Try the socket once; a serving daemon answers immediately.
//  2. Otherwise, if the pid file does not name a live process, clean the
//     stale socket/pid files and spawn a daemon. Spawn errors end here.
//  3. Poll: sleep Interval, dial, up to Attempts times.
//
// With SpawnLock set, step 2 and 3 run under an advisory file lock so
// concurrent invocations do not each spawn a daemon. The lock wait is
// bounded by the retry budget; if it cannot be taken the sequence runs
// unlocked.
func (c *Connector) Connect(ctx context.Context, root string) (net.Conn, error) {
	p := paths.ForProject(c.BaseDir, root)
	log := c.logger().With("socket", p.Socket)

	conn, err := c.dial(p.Socket)
	if err == nil {
		log.Debug("connected to running daemon")
		return conn, nil
	}
	log.Debug("daemon socket not accepting", "error", err)

	if c.SpawnLock {
		lock, err := AcquireSpawnLock(ctx, p.Lock, c.budget(), c.Interval)
		if err != nil {
			log.Debug("continuing without spawn lock", "error", err)
		} else {
			defer func() { _ = lock.Release() }()
			// Whoever held the lock may have brought the daemon up already.
			if conn, err := c.dial(p.Socket); err == nil {
				log.Debug("connected after waiting for spawn lock")
				return conn, nil
			}
		}
	}

	if !IsAlive(p) {
		CleanStale(p)
		if err := c.Spawner.Spawn(root, p); err != nil {
			return nil, err
		}
		log.Debug("daemon spawned, waiting for socket")
	} else {
		log.Debug("daemon process alive but socket not ready")
	}

	return c.retry(ctx, p.Socket)
}

func (c *Connector) retry(ctx context.Context, socket string) (net.Conn, error) {
	attempts := max(c.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := sleep(ctx, c.Interval); err != nil {
			return nil, err
		}

		conn, err := c.dial(socket)
		if err == nil {
			c.logger().Debug("connected", "attempt", attempt)
			return conn, nil
		}
		lastErr = err
	}

	return nil, &ConnectError{Attempts: attempts, Socket: socket, Err: lastErr}
}

func (c *Connector) dial(socket string) (net.Conn, error) {
	if c.Dial != nil {
		return c.Dial(socket)
	}
	return DialUnix(socket)
}

func (c *Connector) budget() time.Duration {
	return time.Duration(max(c.Attempts, 1)) * c.Interval
}

func (c *Connector) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
