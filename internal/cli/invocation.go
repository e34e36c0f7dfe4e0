package cli

import (
	"github.com/leonletto/max/internal/protocol"
)

// Mode is how an invocation is served.
type Mode int

const (
	// ModeRun sends a run request to the project daemon.
	ModeRun Mode = iota
	// ModeComplete sends a shell completion request to the project daemon.
	ModeComplete
	// ModeDirect bypasses the daemon and runs the entry point in-process.
	ModeDirect
)

func (m Mode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModeComplete:
		return "complete"
	case ModeDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Subcommand names with special routing.
const (
	DaemonCommand   = "daemon"
	CompleteCommand = "__complete"
)

// Invocation is the parsed command line of one max run.
type Invocation struct {
	Mode Mode
	// Args is the command line as given, without the program name.
	Args []string
	// Argv is what the daemon receives. For completion requests the
	// __complete marker and shell name are removed.
	Argv  []string
	Shell string
}

// ParseInvocation classifies args (os.Args[1:]).
func ParseInvocation(args []string) Invocation {
	inv := Invocation{
		Mode: ModeRun,
		Args: append([]string{}, args...),
		Argv: append([]string{}, args...),
	}
	if len(args) == 0 {
		return inv
	}

	switch args[0] {
	case DaemonCommand:
		inv.Mode = ModeDirect
	case CompleteCommand:
		inv.Mode = ModeComplete
		rest := args[1:]
		if len(rest) > 0 {
			inv.Shell = rest[0]
			rest = rest[1:]
		}
		inv.Argv = append([]string{}, rest...)
	}
	return inv
}

// BuildRequest returns the request sent for inv. Direct invocations never
// reach the daemon; calling this for them is a programming error.
func BuildRequest(inv Invocation, cwd string, color bool) protocol.Request {
	kind := protocol.RequestRun
	if inv.Mode == ModeComplete {
		kind = protocol.RequestComplete
	}

	argv := inv.Argv
	if argv == nil {
		argv = []string{}
	}

	return protocol.Request{
		Kind:  kind,
		Argv:  argv,
		Cwd:   cwd,
		Shell: inv.Shell,
		Color: color,
	}
}
