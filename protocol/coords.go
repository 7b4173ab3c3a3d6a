package protocol

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/brensch/snekline/game"
)

var ErrMalformedCoordinate = errors.New("malformed coordinate")

// PositionScanner reads "(x,y)" pairs left to right, blanks allowed between
// and inside pairs.
//
// Scanning stops at the first text that does not open a pair. That text is
// available from Rest and is not an error. A pair that opens but holds a bad
// number or is never closed stops the scan with Err set; pairs already
// returned stay valid.
type PositionScanner struct {
	text string
	off  int
	cur  game.Position
	err  error
	done bool
}

func NewPositionScanner(text string) *PositionScanner {
	return &PositionScanner{text: text}
}

func (s *PositionScanner) Scan() bool {
	if s.done {
		return false
	}
	s.skipBlanks()
	if s.off >= len(s.text) || s.text[s.off] != '(' {
		s.done = true
		return false
	}

	start := s.off
	body := s.text[s.off+1:]
	end := strings.IndexByte(body, ')')
	if end < 0 {
		return s.fail(start, "unclosed pair")
	}
	xs, ys, ok := strings.Cut(body[:end], ",")
	if !ok {
		return s.fail(start, "missing comma")
	}
	x, err := parseCoord(xs)
	if err != nil {
		return s.fail(start, err.Error())
	}
	y, err := parseCoord(ys)
	if err != nil {
		return s.fail(start, err.Error())
	}

	s.cur = game.Position{X: x, Y: y}
	s.off += 1 + end + 1
	return true
}

func (s *PositionScanner) Position() game.Position { return s.cur }

func (s *PositionScanner) Err() error { return s.err }

// Rest is the unparsed remainder once Scan has returned false, with leading
// blanks removed. It is empty when the whole text was consumed.
func (s *PositionScanner) Rest() string {
	return s.text[s.off:]
}

func (s *PositionScanner) fail(at int, reason string) bool {
	s.err = fmt.Errorf("%w at offset %d: %s", ErrMalformedCoordinate, at, reason)
	s.done = true
	return false
}

func (s *PositionScanner) skipBlanks() {
	for s.off < len(s.text) && (s.text[s.off] == ' ' || s.text[s.off] == '\t') {
		s.off++
	}
}

func parseCoord(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

// Positions yields every well-formed pair in text. Each call to the
// returned sequence re-parses from the start.
func Positions(text string) iter.Seq[game.Position] {
	return func(yield func(game.Position) bool) {
		sc := NewPositionScanner(text)
		for sc.Scan() {
			if !yield(sc.Position()) {
				return
			}
		}
	}
}

// ParsePositions collects every well-formed pair and reports where parsing
// stopped. err is non-nil only for a malformed pair; trailing text that does
// not start a pair is returned in rest.
func ParsePositions(text string) (ps []game.Position, rest string, err error) {
	sc := NewPositionScanner(text)
	for sc.Scan() {
		ps = append(ps, sc.Position())
	}
	return ps, sc.Rest(), sc.Err()
}

// FormatPositions renders positions in wire form separated by single spaces.
func FormatPositions(ps []game.Position) string {
	var b strings.Builder
	for i, p := range ps {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.String())
	}
	return b.String()
}
