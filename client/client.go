// Package client runs the protocol turn loop: it reads command lines, keeps
// the session and world up to date and answers every REQUEST_ACTION.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"time"

	"github.com/brensch/snekline/game"
	"github.com/brensch/snekline/logging"
	"github.com/brensch/snekline/policy"
	"github.com/brensch/snekline/protocol"
	"github.com/brensch/snekline/rules"
	"github.com/brensch/snekline/store"
)

var (
	ErrUnexpectedEndOfStream = errors.New("unexpected end of stream")
	ErrOutsideMapCycle       = errors.New("entity outside map cycle")
)

// Recorder receives one row per answered REQUEST_ACTION.
type Recorder interface {
	Record(row store.TurnRow) error
}

// Client owns the session, the world and the policy. It is not safe for
// concurrent use.
type Client struct {
	cfg       Config
	policy    policy.Policy
	log       *slog.Logger
	rec       Recorder
	sessionID string

	session *Session
	world   *game.World
	inMap   bool
	turn    int
}

// New builds a client. p may be nil, in which case every turn answers
// straight. logger and rec may be nil.
func New(cfg Config, p policy.Policy, logger *slog.Logger, rec Recorder) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.Discard()
	}
	if p == nil {
		p = policy.Straight{}
	}
	id := cfg.SessionID
	return &Client{
		cfg:       cfg,
		policy:    policy.Fallback{Policy: p, Default: rules.Straight, Timeout: cfg.TurnTimeout},
		log:       logger.With("session", id),
		rec:       rec,
		sessionID: id,
		session:   NewSession(),
		world:     game.NewWorld(cfg.Limits),
	}
}

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) Session() *Session { return c.session }

// Turn is the number of actions sent so far.
func (c *Client) Turn() int { return c.turn }

// InMapCycle reports whether a MAP BEGIN is open.
func (c *Client) InMapCycle() bool { return c.inMap }

// Snapshot copies the current world.
func (c *Client) Snapshot() game.Snapshot { return c.world.Snapshot() }

// Run processes lines from r until end of stream, writing responses to w.
//
// A clean end of stream returns nil. If the stream ends during a handshake
// or a map cycle, Run returns an error wrapping ErrUnexpectedEndOfStream.
// Write failures and ctx cancellation, checked between lines, also end Run.
func (c *Client) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	lr := protocol.NewLineReader(r, c.cfg.MaxLineLength)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			return c.endOfStream()
		}
		if errors.Is(err, protocol.ErrLineTooLong) {
			c.log.Warn("skipped line", "err", err, "max", c.cfg.MaxLineLength)
			continue
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if err := c.Process(ctx, line, w); err != nil {
			return err
		}
	}
}

func (c *Client) endOfStream() error {
	switch {
	case c.session.Phase() == Initializing:
		return fmt.Errorf("%w: during handshake", ErrUnexpectedEndOfStream)
	case c.inMap:
		return fmt.Errorf("%w: during map cycle", ErrUnexpectedEndOfStream)
	}
	c.log.Info("input closed", "turns", c.turn)
	return nil
}

// Process handles one line. Protocol problems are logged and swallowed; the
// returned error is non-nil only when writing to w fails.
func (c *Client) Process(ctx context.Context, line string, w io.Writer) error {
	cmd := protocol.Classify(line)
	switch cmd.Kind {
	case protocol.InitBegin:
		if c.session.BeginInit() {
			c.log.Warn("handshake restarted before INIT END")
		}
		c.log.Debug("handshake begin")

	case protocol.InitEnd:
		if !c.session.EndInit() {
			c.log.Warn("INIT END outside handshake ignored")
			return nil
		}
		if _, err := io.WriteString(w, protocol.FormatUsername(c.cfg.Username)+"\n"); err != nil {
			return fmt.Errorf("write username: %w", err)
		}
		c.log.Info("registered", "username", c.cfg.Username)

	case protocol.PlayerID:
		prev := c.session.SetPlayerID(cmd.ID)
		switch {
		case prev == Unassigned:
			c.log.Info("player id assigned", "player_id", cmd.ID)
		case prev != cmd.ID:
			c.log.Warn("player id reassigned", "from", prev, "to", cmd.ID)
		}

	case protocol.MapBegin:
		c.world.Reset()
		if c.inMap {
			c.log.Debug("map cycle restarted")
		}
		c.inMap = true

	case protocol.MapEnd:
		if !c.inMap {
			c.log.Warn("MAP END without MAP BEGIN")
		}
		c.inMap = false

	case protocol.SnakeBody:
		if c.outsideMap(cmd) {
			return nil
		}
		c.setEntity(cmd, func(ps iter.Seq[game.Position]) error {
			return c.world.SetSnakeBody(cmd.ID, ps)
		})

	case protocol.Food:
		if c.outsideMap(cmd) {
			return nil
		}
		c.setEntity(cmd, c.world.SetFood)

	case protocol.ActionRequest:
		return c.act(ctx, w)

	default:
		c.log.Warn("unrecognized line", "line", truncate(line, 120), "err", cmd.Err)
	}
	return nil
}

func (c *Client) outsideMap(cmd protocol.Command) bool {
	if c.inMap || !c.cfg.StrictMapCycle {
		return false
	}
	c.log.Warn("dropped entity", "kind", cmd.Kind, "snake_id", cmd.ID, "err", ErrOutsideMapCycle)
	return true
}

// setEntity feeds the payload's pairs to set and logs whatever went wrong.
// An out-of-range id never consumes the sequence, so its payload is not
// inspected.
func (c *Client) setEntity(cmd protocol.Command, set func(iter.Seq[game.Position]) error) {
	sc := protocol.NewPositionScanner(cmd.Payload)
	consumed := false
	seq := func(yield func(game.Position) bool) {
		consumed = true
		for sc.Scan() {
			if !yield(sc.Position()) {
				return
			}
		}
	}

	if err := set(seq); err != nil {
		var ee *game.EntityError
		switch {
		case errors.As(err, &ee) && errors.Is(err, game.ErrCapacityExceeded):
			c.log.Warn("truncated entity", "kind", ee.Kind, "snake_id", ee.ID, "limit", ee.Limit, "dropped", ee.Dropped)
		case errors.As(err, &ee):
			c.log.Warn("dropped entity", "kind", ee.Kind, "snake_id", ee.ID, "limit", ee.Limit, "err", err)
		default:
			c.log.Warn("entity update failed", "kind", cmd.Kind, "err", err)
		}
	}
	if !consumed {
		return
	}
	if err := sc.Err(); err != nil {
		c.log.Warn("malformed coordinates", "kind", cmd.Kind, "snake_id", cmd.ID, "err", err)
	} else if rest := sc.Rest(); rest != "" {
		c.log.Warn("ignored trailing text", "kind", cmd.Kind, "snake_id", cmd.ID, "rest", truncate(rest, 60))
	}
}

// act asks the policy for a move and writes exactly one action token.
func (c *Client) act(ctx context.Context, w io.Writer) error {
	snap := c.world.Snapshot()
	selfID := c.session.PlayerID()

	start := time.Now()
	action, err := c.policy.Decide(ctx, snap, selfID)
	elapsed := time.Since(start)
	fallback := err != nil
	if fallback {
		c.log.Warn("policy failed, sending default", "turn", c.turn, "err", err)
	}

	token := c.cfg.Vocabulary.Token(action)
	if _, err := io.WriteString(w, token+"\n"); err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	c.log.Debug("action", "turn", c.turn, "player_id", selfID, "action", token, "took", elapsed)

	if c.rec != nil {
		// Classify only yields 32-bit ids; the turn counter saturates.
		row := store.TurnRow{
			SessionID:   c.sessionID,
			Turn:        int32(min(c.turn, math.MaxInt32)),
			PlayerID:    int32(selfID),
			Username:    c.cfg.Username,
			Policy:      c.cfg.PolicyName,
			Action:      token,
			Fallback:    fallback,
			UnixNano:    start.UnixNano(),
			DecideNanos: elapsed.Nanoseconds(),
		}
		row.SetSnapshot(snap)
		if err := c.rec.Record(row); err != nil {
			c.log.Error("record turn", "turn", c.turn, "err", err)
		}
	}
	c.turn++
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
