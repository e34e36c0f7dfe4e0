// Package testharness provides a scripted stand-in for the max daemon so
// client code can be tested against a real Unix socket.
package testharness

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leonletto/max/internal/protocol"
)

// Handler scripts the daemon side of one connection.
type Handler func(c *Conn) error

// Daemon listens on a Unix socket and runs a Handler per connection.
type Daemon struct {
	socketPath string
	handler    Handler
	listener   net.Listener

	mu       sync.Mutex
	requests []protocol.Request
	inputs   []string
	errs     []error
	shutdown bool

	wg sync.WaitGroup
}

// Listen binds socketPath and starts accepting. A socket file left by a
// dead listener is replaced; a live one is an error.
func Listen(socketPath string, handler Handler) (*Daemon, error) {
	d := &Daemon{socketPath: socketPath, handler: handler}

	if err := d.removeOldSocket(); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}
	d.listener = listener

	go d.acceptLoop()
	return d, nil
}

// Start is Listen for tests: it fails the test on error and closes the
// daemon during cleanup.
func Start(t testing.TB, socketPath string, handler Handler) *Daemon {
	t.Helper()
	d, err := Listen(socketPath, handler)
	if err != nil {
		t.Fatalf("start fake daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// SocketPath returns the path the daemon listens on.
func (d *Daemon) SocketPath() string {
	return d.socketPath
}

// Close stops accepting, waits for open connections and removes the socket.
func (d *Daemon) Close() error {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return nil
	}
	d.shutdown = true
	d.mu.Unlock()

	err := d.listener.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return errors.New("timeout waiting for connections to close")
	}

	_ = os.Remove(d.socketPath)
	return err
}

// Requests returns the requests received so far, in order.
func (d *Daemon) Requests() []protocol.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]protocol.Request(nil), d.requests...)
}

// Inputs returns every input value received so far, in order.
func (d *Daemon) Inputs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.inputs...)
}

// Errors returns handler failures, including protocol violations by the client.
func (d *Daemon) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errs...)
}

func (d *Daemon) removeOldSocket() error {
	if _, err := os.Stat(d.socketPath); err != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", d.socketPath, 500*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("socket %s is in use by another daemon", d.socketPath)
	}
	if err := os.Remove(d.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return nil
}

func (d *Daemon) acceptLoop() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			d.mu.Lock()
			shutdown := d.shutdown
			d.mu.Unlock()
			if shutdown || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		d.wg.Add(1)
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer d.wg.Done()
	defer func() { _ = conn.Close() }()

	c := &Conn{
		conn:   conn,
		enc:    protocol.NewEncoder(conn),
		dec:    protocol.NewDecoder(conn),
		daemon: d,
	}

	line, err := c.dec.ReadLine()
	if err != nil {
		d.recordErr(fmt.Errorf("read request: %w", err))
		return
	}
	req, err := protocol.DecodeRequest(line)
	if err != nil {
		d.recordErr(err)
		return
	}
	c.Request = req

	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	if d.handler == nil {
		return
	}
	if err := d.handler(c); err != nil {
		d.recordErr(err)
	}
}

func (d *Daemon) recordErr(err error) {
	d.mu.Lock()
	d.errs = append(d.errs, err)
	d.mu.Unlock()
}

// SocketDir returns a short temporary directory for sockets. Unix socket
// paths are limited to about 104 bytes, which t.TempDir often exceeds.
func SocketDir(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "max-")
	if err != nil {
		t.Fatalf("create socket dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("resolve socket dir: %v", err)
	}
	return resolved
}
