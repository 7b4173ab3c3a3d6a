// Package rules holds the action vocabulary and the movement geometry of
// the snake host, shared by every decision policy.
package rules

import (
	"fmt"
	"strings"
)

// Action is a relative steering decision.
type Action int

const (
	Straight Action = iota
	TurnLeft
	TurnRight
)

// Actions lists every action in preference order for ties.
var Actions = []Action{Straight, TurnLeft, TurnRight}

func (a Action) String() string {
	return DefaultVocabulary.Token(a)
}

// Vocabulary maps actions to the tokens written on the wire, indexed by
// Action.
type Vocabulary [3]string

// DefaultVocabulary is what the reference host understands.
var DefaultVocabulary = Vocabulary{"straight", "turn_left", "turn_right"}

// Token returns the wire token; unknown actions map to the Straight token.
func (v Vocabulary) Token(a Action) string {
	if a < 0 || int(a) >= len(v) {
		return v[Straight]
	}
	return v[a]
}

// Lookup is the inverse of Token.
func (v Vocabulary) Lookup(tok string) (Action, bool) {
	for i, t := range v {
		if t == tok {
			return Action(i), true
		}
	}
	return Straight, false
}

// ParseVocabulary reads "straight,left,right" style lists: exactly three
// distinct, non-empty tokens without blanks, in Action order.
func ParseVocabulary(s string) (Vocabulary, error) {
	parts := strings.Split(s, ",")
	if len(parts) != len(Vocabulary{}) {
		return Vocabulary{}, fmt.Errorf("vocabulary %q: want %d comma-separated tokens, got %d", s, len(Vocabulary{}), len(parts))
	}
	var v Vocabulary
	seen := make(map[string]bool, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.ContainsAny(p, " \t\r\n") {
			return Vocabulary{}, fmt.Errorf("vocabulary %q: bad token %q", s, p)
		}
		if seen[p] {
			return Vocabulary{}, fmt.Errorf("vocabulary %q: duplicate token %q", s, p)
		}
		seen[p] = true
		v[i] = p
	}
	return v, nil
}

func (v Vocabulary) String() string {
	return strings.Join(v[:], ",")
}
