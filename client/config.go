package client

import (
	"time"

	"github.com/brensch/snekline/game"
	"github.com/brensch/snekline/protocol"
	"github.com/brensch/snekline/rules"
	"github.com/google/uuid"
)

// Config holds client configuration
type Config struct {
	Username      string // sent as "username <name>" after INIT END
	Limits        game.Limits
	MaxLineLength int
	Vocabulary    rules.Vocabulary

	// TurnTimeout is the deadline handed to the policy. The action is still
	// sent when it is exceeded; 0 disables it.
	TurnTimeout time.Duration

	// StrictMapCycle drops snake/food lines that arrive outside
	// MAP BEGIN ... MAP END.
	StrictMapCycle bool

	// PolicyName is stamped on recorded turns.
	PolicyName string

	// SessionID tags logs and recorded turns. A random UUID is used when
	// empty.
	SessionID string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Username:       "snekline",
		Limits:         game.DefaultLimits,
		MaxLineLength:  protocol.DefaultMaxLineLength,
		Vocabulary:     rules.DefaultVocabulary,
		TurnTimeout:    200 * time.Millisecond,
		StrictMapCycle: true,
		PolicyName:     "straight",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Username == "" {
		c.Username = d.Username
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = d.MaxLineLength
	}
	if c.Vocabulary == (rules.Vocabulary{}) {
		c.Vocabulary = d.Vocabulary
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	return c
}
