package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Encoder writes one JSON value per line and flushes after each, so the
// peer always sees complete lines.
type Encoder struct {
	writer *bufio.Writer
}

// NewEncoder creates a new line encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: bufio.NewWriter(w)}
}

// Encode writes v as a single JSON line.
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return e.writeLine(data)
}

// EncodeMessage writes a daemon message with its kind tag.
func (e *Encoder) EncodeMessage(m Message) error {
	data, err := MarshalMessage(m)
	if err != nil {
		return err
	}
	return e.writeLine(data)
}

func (e *Encoder) writeLine(data []byte) error {
	if _, err := e.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := e.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	// Flush immediately: the other side blocks on a full line.
	if err := e.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// Decoder reads newline-delimited lines. Lines are unbounded in length:
// completion output and streamed writes can be large.
type Decoder struct {
	reader  *bufio.Reader
	lineNum int
}

// NewDecoder creates a new line decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// ReadLine returns the next non-blank line without its terminator.
// A final line missing its newline is still returned; io.EOF is returned
// only when no bytes remain.
func (d *Decoder) ReadLine() ([]byte, error) {
	for {
		line, err := d.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read error after line %d: %w", d.lineNum, err)
		}
		if len(line) == 0 && err != nil {
			return nil, io.EOF
		}

		d.lineNum++
		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) == 0 {
			if err != nil {
				return nil, io.EOF
			}
			continue
		}
		return line, nil
	}
}

// Next reads and decodes the next daemon message.
func (d *Decoder) Next() (Message, error) {
	line, err := d.ReadLine()
	if err != nil {
		return nil, err
	}
	return DecodeMessage(line)
}

// Line returns how many lines have been read.
func (d *Decoder) Line() int {
	return d.lineNum
}
