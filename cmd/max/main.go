// Command max forwards each invocation to the project's long-running daemon
// over a Unix socket, starting the daemon when needed.
//
// Command-line parsing belongs to the daemon: max only routes
// "daemon …" (always run directly) and "__complete [shell] …" (completion
// requests). Everything else is sent as-is.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/leonletto/max/internal/cli"
	"github.com/leonletto/max/internal/config"
	"github.com/leonletto/max/internal/daemon"
	"github.com/leonletto/max/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "max: %v\n", err)
		return 1
	}

	logger := cli.NewLogger(os.Stderr, cfg.Debug).With("session", cli.NewSessionID())

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "max: cannot determine working directory: %v\n", err)
		return 1
	}

	spawner := daemon.NewSpawner(cfg, os.Stderr, logger)
	proxy := &cli.Proxy{
		Connector: daemon.NewConnector(cfg, spawner, logger),
		Direct: &cli.DirectRunner{
			Runtime:    cfg.RuntimeCommand,
			EntryPoint: daemon.EntryPointFor(cfg.DaemonOverride),
			Stdin:      os.Stdin,
			Stdout:     os.Stdout,
			Stderr:     os.Stderr,
			Logger:     logger,
		},
		Terminal: session.Terminal{
			In:  os.Stdin,
			Out: os.Stdout,
			Err: os.Stderr,
		},
		Color:          cli.ColorEnabled(cli.IsTerminal(os.Stdout), os.Getenv),
		FallbackDirect: cfg.FallbackDirect,
		Logger:         logger,
	}

	code, err := proxy.Run(context.Background(), cwd, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "max: %v\n", err)
		return 1
	}
	return code
}
