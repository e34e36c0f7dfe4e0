package session_test

import (
	"bytes"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonletto/max/internal/protocol"
	"github.com/leonletto/max/internal/session"
	"github.com/leonletto/max/internal/testharness"
)

// terminal records output written by the session. Out and Err share one
// log so interleaving can be checked.
type terminal struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	events []string
}

type tap struct {
	buf    *bytes.Buffer
	name   string
	events *[]string
}

func (w tap) Write(p []byte) (int, error) {
	*w.events = append(*w.events, w.name+":"+string(p))
	return w.buf.Write(p)
}

func (tm *terminal) Terminal(stdin string) session.Terminal {
	return session.Terminal{
		In:  strings.NewReader(stdin),
		Out: tap{buf: &tm.stdout, name: "out", events: &tm.events},
		Err: tap{buf: &tm.stderr, name: "err", events: &tm.events},
	}
}

type result struct {
	term   *terminal
	code   int
	err    error
	daemon *testharness.Daemon
}

func runAgainst(t *testing.T, handler testharness.Handler, req protocol.Request, stdin string) result {
	t.Helper()
	socket := filepath.Join(testharness.SocketDir(t), "daemon.sock")
	d := testharness.Start(t, socket, handler)

	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)

	tm := &terminal{}
	code, runErr := session.Run(conn, req, tm.Terminal(stdin), nil)
	require.NoError(t, conn.Close())
	require.NoError(t, d.Close())
	return result{term: tm, code: code, err: runErr, daemon: d}
}

func runRequest(argv ...string) protocol.Request {
	return protocol.Request{Kind: protocol.RequestRun, Argv: argv, Cwd: "/project"}
}

func completeRequest(shell string) protocol.Request {
	return protocol.Request{Kind: protocol.RequestComplete, Argv: []string{"sc"}, Cwd: "/project", Shell: shell}
}

func TestRunOrdersWritesPromptsAndResponse(t *testing.T) {
	handler := func(c *testharness.Conn) error {
		if err := c.Write("A"); err != nil {
			return err
		}
		answer, err := c.Prompt("B? ")
		if err != nil {
			return err
		}
		if err := c.Write("C:" + answer); err != nil {
			return err
		}
		return c.Respond(protocol.Response{Stdout: protocol.String("D"), ExitCode: protocol.Int(0)})
	}

	r := runAgainst(t, handler, runRequest("init"), "yes\n")
	require.NoError(t, r.err)
	assert.Equal(t, 0, r.code)
	assert.Equal(t, "AB? C:yesD", r.term.stdout.String())
	assert.Equal(t, []string{"out:A", "out:B? ", "out:C:yes", "out:D"}, r.term.events)
	assert.Equal(t, []string{"yes"}, r.daemon.Inputs())

	reqs := r.daemon.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, protocol.RequestRun, reqs[0].Kind)
	assert.Equal(t, []string{"init"}, reqs[0].Argv)
	assert.Empty(t, r.daemon.Errors())
}

func TestRunResponse(t *testing.T) {
	t.Run("stdout then stderr with exit code", func(t *testing.T) {
		resp := protocol.Response{
			Stdout:   protocol.String("out\n"),
			Stderr:   protocol.String("err\n"),
			ExitCode: protocol.Int(3),
		}
		r := runAgainst(t, testharness.Reply(resp), runRequest("x"), "")
		require.NoError(t, r.err)
		assert.Equal(t, 3, r.code)
		assert.Equal(t, []string{"out:out\n", "err:err\n"}, r.term.events)
	})

	t.Run("missing exit code means failure", func(t *testing.T) {
		r := runAgainst(t, testharness.Reply(protocol.Response{}), runRequest("x"), "")
		require.NoError(t, r.err)
		assert.Equal(t, 1, r.code)
	})

	t.Run("completion fields are ignored for run", func(t *testing.T) {
		resp := protocol.Response{Completions: []string{"a"}, ExitCode: protocol.Int(0)}
		r := runAgainst(t, testharness.Reply(resp), runRequest("x"), "")
		require.NoError(t, r.err)
		assert.Equal(t, 0, r.code)
		assert.Empty(t, r.term.stdout.String())
	})
}

func TestRunCompletion(t *testing.T) {
	t.Run("completion output printed verbatim", func(t *testing.T) {
		resp := protocol.Response{
			CompletionOutput: protocol.String("schema\nsearch\n:4\n"),
			Completions:      []string{"ignored"},
			ExitCode:         protocol.Int(7),
		}
		r := runAgainst(t, testharness.Reply(resp), completeRequest("zsh"), "")
		require.NoError(t, r.err)
		assert.Equal(t, 0, r.code)
		assert.Equal(t, "schema\nsearch\n:4\n", r.term.stdout.String())
		assert.Equal(t, "zsh", r.daemon.Requests()[0].Shell)
	})

	t.Run("completions one per line", func(t *testing.T) {
		resp := protocol.Response{Completions: []string{"schema", "search"}}
		r := runAgainst(t, testharness.Reply(resp), completeRequest(""), "")
		require.NoError(t, r.err)
		assert.Equal(t, 0, r.code)
		assert.Equal(t, "schema\nsearch\n", r.term.stdout.String())
	})

	t.Run("neither field prints nothing", func(t *testing.T) {
		resp := protocol.Response{Stdout: protocol.String("nope"), ExitCode: protocol.Int(2)}
		r := runAgainst(t, testharness.Reply(resp), completeRequest("bash"), "")
		require.NoError(t, r.err)
		assert.Equal(t, 0, r.code)
		assert.Empty(t, r.term.stdout.String())
		assert.Empty(t, r.term.stderr.String())
	})
}

func TestRunSkipsUnknownKinds(t *testing.T) {
	handler := func(c *testharness.Conn) error {
		if err := c.SendRaw(`{"kind":"progress","pct":50}`); err != nil {
			return err
		}
		if err := c.SendRaw(""); err != nil {
			return err
		}
		return c.Respond(protocol.Response{ExitCode: protocol.Int(4)})
	}

	r := runAgainst(t, handler, runRequest(), "")
	require.NoError(t, r.err)
	assert.Equal(t, 4, r.code)
}

func TestRunUnexpectedClose(t *testing.T) {
	t.Run("before any message", func(t *testing.T) {
		handler := func(c *testharness.Conn) error { return c.Close() }
		r := runAgainst(t, handler, runRequest("x"), "")
		assert.ErrorIs(t, r.err, session.ErrUnexpectedClose)
		assert.Equal(t, 1, r.code)
	})

	t.Run("after output", func(t *testing.T) {
		handler := func(c *testharness.Conn) error {
			if err := c.Write("partial"); err != nil {
				return err
			}
			return c.Close()
		}
		r := runAgainst(t, handler, runRequest("x"), "")
		assert.ErrorIs(t, r.err, session.ErrUnexpectedClose)
		assert.Equal(t, "partial", r.term.stdout.String())
	})
}

func TestRunMalformedMessage(t *testing.T) {
	handler := func(c *testharness.Conn) error {
		return c.SendRaw(`{"kind":"write",`)
	}
	r := runAgainst(t, handler, runRequest("x"), "")
	var parseErr *protocol.ParseError
	require.ErrorAs(t, r.err, &parseErr)
	assert.Equal(t, 1, r.code)
}

func TestRunPromptInput(t *testing.T) {
	twoPrompts := func(c *testharness.Conn) error {
		for _, q := range []string{"first? ", "second? "} {
			if _, err := c.Prompt(q); err != nil {
				return err
			}
		}
		return c.Respond(protocol.Response{ExitCode: protocol.Int(0)})
	}

	t.Run("lines read in sequence with CRLF stripped", func(t *testing.T) {
		r := runAgainst(t, twoPrompts, runRequest(), "one\r\ntwo\n")
		require.NoError(t, r.err)
		assert.Equal(t, 0, r.code)
		assert.Equal(t, []string{"one", "two"}, r.daemon.Inputs())
	})

	t.Run("end of input sends what was read", func(t *testing.T) {
		r := runAgainst(t, twoPrompts, runRequest(), "partial")
		require.NoError(t, r.err)
		assert.Equal(t, 0, r.code)
		assert.Equal(t, []string{"partial", ""}, r.daemon.Inputs())
	})
}

func TestRunStdinError(t *testing.T) {
	socket := filepath.Join(testharness.SocketDir(t), "daemon.sock")
	d := testharness.Start(t, socket, func(c *testharness.Conn) error {
		_, err := c.Prompt("? ")
		return err
	})

	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)

	boom := errors.New("stdin gone")
	term := session.Terminal{In: errReader{boom}, Out: io.Discard, Err: io.Discard}
	code, err := session.Run(conn, runRequest(), term, nil)
	require.NoError(t, conn.Close())
	require.NoError(t, d.Close())

	var ioErr *session.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read stdin", ioErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, code)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
