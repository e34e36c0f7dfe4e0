// Package session drives one request/response exchange with the daemon,
// relaying prompts and streamed output to the user's terminal.
package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leonletto/max/internal/protocol"
)

// ErrUnexpectedClose is returned when the daemon closes the stream before
// sending a response.
var ErrUnexpectedClose = errors.New("daemon closed connection unexpectedly")

// IOError reports a failure reading or writing the socket or the terminal.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Terminal is the user-facing side of a session.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type flusher interface {
	Flush() error
}

type session struct {
	req    protocol.Request
	enc    *protocol.Encoder
	dec    *protocol.Decoder
	term   Terminal
	input  *bufio.Reader
	logger *slog.Logger
}

// Run sends req over conn and processes daemon messages until a response
// arrives. It returns the exit code the client process should use.
//
// Writes and prompts are handled in arrival order. Unknown message kinds
// are skipped. Any error means the session failed and the caller should
// exit with status 1.
func Run(conn io.ReadWriter, req protocol.Request, term Terminal, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &session{
		req:    req,
		enc:    protocol.NewEncoder(conn),
		dec:    protocol.NewDecoder(conn),
		term:   term,
		input:  bufio.NewReader(term.In),
		logger: logger,
	}
	return s.run()
}

func (s *session) run() (int, error) {
	if err := s.enc.Encode(s.req); err != nil {
		return 1, &IOError{Op: "send request", Err: err}
	}
	s.logger.Debug("request sent", "kind", s.req.Kind, "argc", len(s.req.Argv))

	for {
		msg, err := s.dec.Next()
		if errors.Is(err, io.EOF) {
			return 1, ErrUnexpectedClose
		}
		if err != nil {
			var parseErr *protocol.ParseError
			if errors.As(err, &parseErr) {
				return 1, err
			}
			return 1, &IOError{Op: "read from daemon", Err: err}
		}

		switch m := msg.(type) {
		case protocol.Write:
			if err := s.write(s.term.Out, m.Text, "write stdout"); err != nil {
				return 1, err
			}
		case protocol.Prompt:
			if err := s.prompt(m); err != nil {
				return 1, err
			}
		case protocol.Response:
			s.logger.Debug("response received", "line", s.dec.Line())
			return s.respond(m)
		default:
			s.logger.Debug("ignoring message", "kind", msg.Kind())
		}
	}
}

func (s *session) prompt(m protocol.Prompt) error {
	if err := s.write(s.term.Out, m.Message, "write prompt"); err != nil {
		return err
	}

	line, err := s.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return &IOError{Op: "read stdin", Err: err}
	}
	// At end of input, whatever was read (possibly nothing) is the answer.
	value := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

	if err := s.enc.Encode(protocol.NewInput(value)); err != nil {
		return &IOError{Op: "send input", Err: err}
	}
	return nil
}

func (s *session) respond(resp protocol.Response) (int, error) {
	if s.req.Kind == protocol.RequestComplete {
		switch {
		case resp.CompletionOutput != nil:
			if err := s.write(s.term.Out, *resp.CompletionOutput, "write stdout"); err != nil {
				return 1, err
			}
		case resp.Completions != nil:
			var b strings.Builder
			for _, c := range resp.Completions {
				b.WriteString(c)
				b.WriteByte('\n')
			}
			if err := s.write(s.term.Out, b.String(), "write stdout"); err != nil {
				return 1, err
			}
		}
		return 0, nil
	}

	if resp.Stdout != nil {
		if err := s.write(s.term.Out, *resp.Stdout, "write stdout"); err != nil {
			return 1, err
		}
	}
	if resp.Stderr != nil {
		if err := s.write(s.term.Err, *resp.Stderr, "write stderr"); err != nil {
			return 1, err
		}
	}
	if resp.ExitCode != nil {
		return *resp.ExitCode, nil
	}
	return 1, nil
}

// write emits text verbatim and flushes w when it buffers.
func (s *session) write(w io.Writer, text, op string) error {
	if text == "" {
		return nil
	}
	if _, err := io.WriteString(w, text); err != nil {
		return &IOError{Op: op, Err: err}
	}
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return &IOError{Op: op, Err: err}
		}
	}
	return nil
}
