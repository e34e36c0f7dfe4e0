package testharness

import (
	"fmt"
	"io"
	"net"

	"github.com/leonletto/max/internal/protocol"
)

// Conn is the daemon's view of one client session.
type Conn struct {
	Request protocol.Request

	conn   net.Conn
	enc    *protocol.Encoder
	dec    *protocol.Decoder
	daemon *Daemon
}

// Write streams text to the client.
func (c *Conn) Write(text string) error {
	return c.enc.EncodeMessage(protocol.Write{Text: text})
}

// Prompt sends a prompt and waits for the client's input line.
func (c *Conn) Prompt(message string) (string, error) {
	if err := c.enc.EncodeMessage(protocol.Prompt{Message: message}); err != nil {
		return "", err
	}

	line, err := c.dec.ReadLine()
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	in, err := protocol.DecodeInput(line)
	if err != nil {
		return "", err
	}

	c.daemon.mu.Lock()
	c.daemon.inputs = append(c.daemon.inputs, in.Value)
	c.daemon.mu.Unlock()
	return in.Value, nil
}

// Respond ends the session.
func (c *Conn) Respond(resp protocol.Response) error {
	return c.enc.EncodeMessage(resp)
}

// Send writes an arbitrary daemon message.
func (c *Conn) Send(m protocol.Message) error {
	return c.enc.EncodeMessage(m)
}

// SendRaw writes line followed by a newline, unvalidated.
func (c *Conn) SendRaw(line string) error {
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

// Close closes the connection without a response.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Reply returns a Handler that answers every request with resp.
func Reply(resp protocol.Response) Handler {
	return func(c *Conn) error {
		return c.Respond(resp)
	}
}
