package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/leonletto/max/internal/paths"
	"github.com/leonletto/max/internal/session"
)

// Connector obtains a stream to the daemon for a project root.
// *daemon.Connector implements it.
type Connector interface {
	Connect(ctx context.Context, root string) (net.Conn, error)
}

// Proxy routes one max invocation: to the project daemon when possible,
// otherwise to a direct run of the entry point.
type Proxy struct {
	Connector      Connector
	Direct         *DirectRunner
	Terminal       session.Terminal
	Color          bool
	FallbackDirect bool
	Logger         *slog.Logger
}

// Run serves args (os.Args[1:]) from cwd and returns the process exit code.
// A non-nil error always comes with exit code 1 and should be reported.
func (p *Proxy) Run(ctx context.Context, cwd string, args []string) (int, error) {
	log := p.logger()
	inv := ParseInvocation(args)
	root, found := paths.FindProjectRoot(cwd)
	log.Debug("invocation", "mode", inv.Mode, "root", root, "found", found)

	if inv.Mode == ModeDirect {
		return p.Direct.Run(ctx, root, inv.Args)
	}
	// Outside a project (e.g. before init) there is no daemon to talk to.
	if !found {
		return p.Direct.Run(ctx, "", inv.Args)
	}

	conn, err := p.Connector.Connect(ctx, root)
	if err != nil {
		if !p.FallbackDirect {
			return 1, err
		}
		fmt.Fprintf(p.stderr(), "\x1b[31mDaemon not responding (%v)\x1b[0m\n", err)
		return p.Direct.Run(ctx, root, inv.Args)
	}
	defer func() { _ = conn.Close() }()

	req := BuildRequest(inv, cwd, p.Color)
	return session.Run(conn, req, p.Terminal, log)
}

func (p *Proxy) stderr() io.Writer {
	if p.Terminal.Err == nil {
		return io.Discard
	}
	return p.Terminal.Err
}

func (p *Proxy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}
