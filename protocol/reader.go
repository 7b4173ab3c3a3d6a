// Package protocol implements the line grammar spoken between the snake
// host and its AI clients.
//
// Host to client, one command per line:
//
//	INIT BEGIN
//	INIT END
//	player_id <int>
//	MAP BEGIN
//	snake <int> (<float>,<float>) (<float>,<float>) ...
//	food (<float>,<float>) ...
//	MAP END
//	REQUEST_ACTION
//
// Client to host: "username <name>" once per handshake and one action token
// per REQUEST_ACTION.
package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineLength bounds a single command line, terminator excluded.
const DefaultMaxLineLength = 64 * 1024

var (
	ErrMalformedLine = errors.New("malformed line")
	ErrLineTooLong   = fmt.Errorf("%w: line too long", ErrMalformedLine)
)

// LineReader splits a stream into command lines.
//
// Next returns io.EOF once the stream is exhausted and keeps returning it.
// An over-long line is consumed up to its terminator and reported as
// ErrLineTooLong; the reader stays usable.
type LineReader struct {
	r       *bufio.Reader
	maxLine int
	err     error
}

func NewLineReader(r io.Reader, maxLine int) *LineReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	// +2 leaves room for "\r\n" so a line of exactly maxLine fits one slice.
	return &LineReader{r: bufio.NewReaderSize(r, maxLine+2), maxLine: maxLine}
}

func (lr *LineReader) Next() (string, error) {
	if lr.err != nil {
		return "", lr.err
	}

	chunk, err := lr.r.ReadSlice('\n')
	switch {
	case err == nil:
		line := trimTerminator(chunk)
		if len(line) > lr.maxLine {
			return "", fmt.Errorf("%w (%d bytes)", ErrLineTooLong, len(line))
		}
		return string(line), nil
	case errors.Is(err, bufio.ErrBufferFull):
		n, derr := lr.discardLine()
		if derr != nil {
			lr.err = derr
		}
		return "", fmt.Errorf("%w (%d+ bytes)", ErrLineTooLong, len(chunk)+n)
	case errors.Is(err, io.EOF):
		lr.err = io.EOF
		if len(chunk) == 0 {
			return "", io.EOF
		}
		// Unterminated final line.
		line := trimTerminator(chunk)
		if len(line) > lr.maxLine {
			return "", fmt.Errorf("%w (%d bytes)", ErrLineTooLong, len(line))
		}
		return string(line), nil
	default:
		lr.err = err
		return "", err
	}
}

// discardLine skips to just past the next '\n'.
func (lr *LineReader) discardLine() (int, error) {
	n := 0
	for {
		chunk, err := lr.r.ReadSlice('\n')
		n += len(chunk)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return n, err
		}
	}
}

func trimTerminator(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}
