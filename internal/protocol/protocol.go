// Package protocol defines the messages exchanged between max and its daemon.
// Messages are JSON-encoded and sent over a Unix domain socket, one per line.
//
// A session is: one Request from the client, then any number of Prompt and
// Write messages from the daemon (each Prompt answered by one Input), ended by
// exactly one Response.
package protocol

import (
	"encoding/json"
	"fmt"
)

// RequestKind selects how the daemon treats a Request.
type RequestKind string

const (
	RequestRun      RequestKind = "run"
	RequestComplete RequestKind = "complete"
)

// Request is the first line a client sends.
type Request struct {
	Kind RequestKind `json:"kind"`
	// Argv is the command line after the program name. Always an array.
	Argv []string `json:"argv"`
	// Cwd is the client's absolute working directory.
	Cwd string `json:"cwd"`
	// Shell names the completing shell. Only set for complete requests.
	Shell string `json:"shell,omitempty"`
	// Color tells the daemon whether the client terminal renders ANSI color.
	Color bool `json:"color"`
}

// MessageKind is the "kind" tag carried by every message.
type MessageKind string

const (
	KindPrompt   MessageKind = "prompt"
	KindWrite    MessageKind = "write"
	KindResponse MessageKind = "response"
	KindInput    MessageKind = "input"
)

// Message is a daemon-to-client message: Prompt, Write, Response, or
// Unknown for kinds this client does not understand.
type Message interface {
	Kind() MessageKind
	isMessage()
}

// Prompt asks for one line of input from the client's terminal.
// Message is printed as-is, without a newline.
type Prompt struct {
	Message string `json:"message"`
}

// Write streams output that must be shown immediately.
type Write struct {
	Text string `json:"text"`
}

// Response ends the session. Absent fields are nil.
type Response struct {
	Stdout           *string  `json:"stdout,omitempty"`
	Stderr           *string  `json:"stderr,omitempty"`
	ExitCode         *int     `json:"exitCode,omitempty"`
	Completions      []string `json:"completions,omitempty"`
	CompletionOutput *string  `json:"completionOutput,omitempty"`
}

// Unknown is a well-formed message with a kind this client does not handle.
// Clients skip it so the daemon can add message kinds.
type Unknown struct {
	Type MessageKind
	Raw  json.RawMessage
}

func (Prompt) Kind() MessageKind    { return KindPrompt }
func (Write) Kind() MessageKind     { return KindWrite }
func (Response) Kind() MessageKind  { return KindResponse }
func (u Unknown) Kind() MessageKind { return u.Type }

func (Prompt) isMessage()   {}
func (Write) isMessage()    {}
func (Response) isMessage() {}
func (Unknown) isMessage()  {}

// Input answers a Prompt with the line the user typed, newline stripped.
type Input struct {
	Kind  MessageKind `json:"kind"`
	Value string      `json:"value"`
}

// NewInput returns an input message carrying value.
func NewInput(value string) Input {
	return Input{Kind: KindInput, Value: value}
}

// ParseError reports a line that is not a well-formed message.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	line := e.Line
	if len(line) > 100 {
		line = line[:100] + "..."
	}
	return fmt.Sprintf("failed to parse message %q: %v", line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeMessage parses one line from the daemon.
func DecodeMessage(line []byte) (Message, error) {
	var envelope struct {
		Kind MessageKind `json:"kind"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, &ParseError{Line: string(line), Err: err}
	}

	var (
		msg Message
		err error
	)
	switch envelope.Kind {
	case KindPrompt:
		var p Prompt
		err = json.Unmarshal(line, &p)
		msg = p
	case KindWrite:
		var w Write
		err = json.Unmarshal(line, &w)
		msg = w
	case KindResponse:
		var r Response
		err = json.Unmarshal(line, &r)
		msg = r
	default:
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		msg = Unknown{Type: envelope.Kind, Raw: raw}
	}
	if err != nil {
		return nil, &ParseError{Line: string(line), Err: err}
	}
	return msg, nil
}

// MarshalMessage encodes a daemon message with its kind tag.
func MarshalMessage(m Message) ([]byte, error) {
	switch m := m.(type) {
	case Prompt:
		return json.Marshal(struct {
			Kind MessageKind `json:"kind"`
			Prompt
		}{KindPrompt, m})
	case Write:
		return json.Marshal(struct {
			Kind MessageKind `json:"kind"`
			Write
		}{KindWrite, m})
	case Response:
		return json.Marshal(struct {
			Kind MessageKind `json:"kind"`
			Response
		}{KindResponse, m})
	case Unknown:
		return m.Raw, nil
	default:
		return nil, fmt.Errorf("unsupported message type %T", m)
	}
}

// DecodeRequest parses a client request line.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return req, &ParseError{Line: string(line), Err: err}
	}
	return req, nil
}

// DecodeInput parses a client input line.
func DecodeInput(line []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(line, &in); err != nil {
		return in, &ParseError{Line: string(line), Err: err}
	}
	if in.Kind != KindInput {
		return in, &ParseError{Line: string(line), Err: fmt.Errorf("unexpected kind %q", in.Kind)}
	}
	return in, nil
}

// String returns a pointer to s, for building Responses.
func String(s string) *string { return &s }

// Int returns a pointer to n, for building Responses.
func Int(n int) *int { return &n }
