package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the command set.
type Kind int

const (
	Unrecognized Kind = iota
	InitBegin
	InitEnd
	PlayerID
	MapBegin
	MapEnd
	SnakeBody
	Food
	ActionRequest
)

var kindNames = [...]string{
	Unrecognized:  "unrecognized",
	InitBegin:     "init_begin",
	InitEnd:       "init_end",
	PlayerID:      "player_id",
	MapBegin:      "map_begin",
	MapEnd:        "map_end",
	SnakeBody:     "snake",
	Food:          "food",
	ActionRequest: "request_action",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Wire spellings.
const (
	LineInitBegin     = "INIT BEGIN"
	LineInitEnd       = "INIT END"
	LineMapBegin      = "MAP BEGIN"
	LineMapEnd        = "MAP END"
	LineRequestAction = "REQUEST_ACTION"

	KeywordPlayerID = "player_id"
	KeywordSnake    = "snake"
	KeywordFood     = "food"
	KeywordUsername = "username"
)

// Command is one classified line.
//
// ID is set for PlayerID and SnakeBody. Payload is the coordinate text for
// SnakeBody and Food. Err explains why a line is Unrecognized; it wraps
// ErrMalformedLine when a known keyword had a bad argument.
type Command struct {
	Kind    Kind
	ID      int
	Payload string
	Line    string
	Err     error
}

// Classify maps a line to a Command. It never fails: anything it cannot
// read comes back as Unrecognized.
func Classify(line string) Command {
	s := strings.TrimSpace(line)
	switch s {
	case LineInitBegin:
		return Command{Kind: InitBegin, Line: line}
	case LineInitEnd:
		return Command{Kind: InitEnd, Line: line}
	case LineMapBegin:
		return Command{Kind: MapBegin, Line: line}
	case LineMapEnd:
		return Command{Kind: MapEnd, Line: line}
	case LineRequestAction:
		return Command{Kind: ActionRequest, Line: line}
	}

	if rest, ok := cutKeyword(s, KeywordPlayerID); ok {
		arg, _ := nextField(rest)
		id, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return malformed(line, "player_id needs a 32-bit integer, got %q", arg)
		}
		return Command{Kind: PlayerID, ID: int(id), Line: line}
	}
	if rest, ok := cutKeyword(s, KeywordSnake); ok {
		arg, payload := nextField(rest)
		id, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return malformed(line, "snake needs a 32-bit integer id, got %q", arg)
		}
		return Command{Kind: SnakeBody, ID: int(id), Payload: payload, Line: line}
	}
	if rest, ok := cutKeyword(s, KeywordFood); ok {
		return Command{Kind: Food, Payload: rest, Line: line}
	}

	return Command{Kind: Unrecognized, Line: line, Err: fmt.Errorf("unknown command %q", s)}
}

func malformed(line, format string, args ...any) Command {
	return Command{
		Kind: Unrecognized,
		Line: line,
		Err:  fmt.Errorf("%w: "+format, append([]any{ErrMalformedLine}, args...)...),
	}
}

// cutKeyword matches kw as a whole leading token and returns the text after
// it with leading blanks removed.
func cutKeyword(s, kw string) (string, bool) {
	rest, ok := strings.CutPrefix(s, kw)
	if !ok {
		return "", false
	}
	if rest == "" {
		return "", true
	}
	if rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimLeft(rest, " \t"), true
}

// nextField splits off the first blank-delimited token.
func nextField(s string) (field, rest string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// FormatUsername renders the registration line.
func FormatUsername(name string) string {
	return KeywordUsername + " " + name
}
