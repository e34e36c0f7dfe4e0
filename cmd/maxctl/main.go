package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	goruntime "runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonletto/max/internal/cli"
	"github.com/leonletto/max/internal/config"
	"github.com/leonletto/max/internal/daemon"
)

var (
	// Build info (set via ldflags).
	Version = "dev"
	Build   = "unknown"
)

var (
	// Global flags.
	flagDir     string
	flagJSON    bool
	flagQuiet   bool
	flagVerbose bool
)

// errNotRunning makes status exit 1 without printing an error.
var errNotRunning = errors.New("not running")

func main() {
	rootCmd := &cobra.Command{
		Use:   "maxctl",
		Short: "Manage max project daemons",
		Long: `maxctl inspects and controls the per-project daemons that max starts
on demand. Each project (a directory with max.json and .max/) gets its own
daemon, addressed by a fingerprint of the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", ".", "Directory inside the project")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "JSON output for scripting")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Debug output")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("maxctl v{{.Version}} (build: " + Build + ", " + goruntime.Version() + ")\n")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(restartCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(pathsCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotRunning) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// env bundles what every subcommand needs.
type env struct {
	cfg  *config.Config
	root string
}

func loadEnv(needRoot bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg}
	if needRoot {
		root, err := cli.ResolveProjectRoot(flagDir)
		if err != nil {
			return nil, err
		}
		e.root = root
	}
	return e, nil
}

func (e *env) connector() *daemon.Connector {
	logger := cli.NewLogger(os.Stderr, e.cfg.Debug || flagVerbose).With("session", cli.NewSessionID())
	return daemon.NewConnector(e.cfg, daemon.NewSpawner(e.cfg, os.Stderr, logger), logger)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status for the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(true)
			if err != nil {
				return err
			}

			result := cli.DaemonStatus(e.cfg.BaseDir, e.root)
			if flagJSON {
				if err := printJSON(result); err != nil {
					return err
				}
			} else {
				fmt.Print(cli.FormatDaemonStatus(result))
			}

			// Exit code 1 when daemon is not running (like systemctl status)
			if !result.Running {
				return errNotRunning
			}
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the project daemon if it is not serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(true)
			if err != nil {
				return err
			}

			result, err := cli.DaemonStart(cmd.Context(), e.connector(), e.cfg.BaseDir, e.root)
			if err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Printf("✓ Daemon serving %s (%s)\n", e.root, result.Identity)
			}
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the project daemon gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(true)
			if err != nil {
				return err
			}

			if err := cli.DaemonStop(e.cfg.BaseDir, e.root, timeout); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Println("✓ Daemon stopped successfully")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

func restartCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the project daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(true)
			if err != nil {
				return err
			}

			if _, err := cli.DaemonRestart(cmd.Context(), e.connector(), e.cfg.BaseDir, e.root, timeout); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Println("✓ Daemon restarted successfully")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the socket and pid files of a dead daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(true)
			if err != nil {
				return err
			}

			if err := cli.DaemonClean(e.cfg.BaseDir, e.root); err != nil {
				return err
			}
			if !flagQuiet {
				fmt.Println("✓ Stale daemon files removed")
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the daemons of every project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(false)
			if err != nil {
				return err
			}

			results, err := cli.ListDaemons(e.cfg.BaseDir)
			if err != nil {
				return err
			}
			if flagJSON {
				if results == nil {
					results = []*cli.DaemonStatusResult{}
				}
				return printJSON(results)
			}
			fmt.Print(cli.FormatDaemonList(results))
			return nil
		},
	}
}

func pathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the daemon paths derived for the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(true)
			if err != nil {
				return err
			}
			fmt.Print(cli.FormatDaemonPaths(e.cfg.BaseDir, e.root))
			return nil
		},
	}
}
