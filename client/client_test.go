package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/brensch/snekline/game"
	"github.com/brensch/snekline/policy"
	"github.com/brensch/snekline/rules"
	"github.com/brensch/snekline/store"
)

type memRecorder struct {
	rows []store.TurnRow
	err  error
}

func (m *memRecorder) Record(row store.TurnRow) error {
	m.rows = append(m.rows, row)
	return m.err
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func run(t *testing.T, c *Client, input string) string {
	t.Helper()
	var out bytes.Buffer
	if err := c.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v\ninput:\n%s", err, input)
	}
	return out.String()
}

func dumpWorld(snap game.Snapshot) string {
	var b strings.Builder
	for _, s := range snap.Snakes {
		fmt.Fprintf(&b, "snake %d %v\n", s.ID, s.Body)
	}
	fmt.Fprintf(&b, "food %v\n", snap.Food)
	return b.String()
}

func TestRun_Handshake(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Username = "tester"
	c := New(cfg, nil, nil, nil)

	out := run(t, c, "INIT BEGIN\nINIT END\n")
	if out != "username tester\n" {
		t.Fatalf("out=%q", out)
	}
	if c.Session().Phase() != Ready || !c.Session().UsernameSent() {
		t.Fatalf("phase=%v sent=%v", c.Session().Phase(), c.Session().UsernameSent())
	}
}

func TestRun_ActionWithoutMap(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil)
	out := run(t, c, "player_id 3\nREQUEST_ACTION\n")
	if out != "straight\n" {
		t.Fatalf("out=%q", out)
	}
	if c.Session().PlayerID() != 3 || c.Turn() != 1 {
		t.Fatalf("player=%d turn=%d", c.Session().PlayerID(), c.Turn())
	}
}

func TestRun_MapCycle(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil)
	out := run(t, c, "MAP BEGIN\nsnake 0 (1.0,1.0) (1.0,2.0)\nfood (5.0,5.0)\nMAP END\nREQUEST_ACTION\n")
	if out != "straight\n" {
		t.Fatalf("out=%q", out)
	}
	snap := c.Snapshot()
	s, ok := snap.Snake(0)
	if !ok || len(s.Body) != 2 || len(snap.Food) != 1 {
		t.Fatalf("world:\n%s", dumpWorld(snap))
	}
	if s.Body[1] != (game.Position{X: 1, Y: 2}) {
		t.Fatalf("body=%v", s.Body)
	}
}

func TestRun_UnrecognizedLineIsSkipped(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil)
	run(t, c, "MAP BEGIN\nwhat is this\nsnake 0 (1,1)\nplayer_id x\nfood (2,2)\nMAP END\n")
	snap := c.Snapshot()
	if _, ok := snap.Snake(0); !ok || len(snap.Food) != 1 {
		t.Fatalf("world:\n%s", dumpWorld(snap))
	}
	if c.Session().Assigned() {
		t.Fatalf("malformed player_id assigned %d", c.Session().PlayerID())
	}
}

func feed(t *testing.T, c *Client, input string) string {
	t.Helper()
	var out bytes.Buffer
	for line := range strings.Lines(input) {
		if err := c.Process(context.Background(), strings.TrimSuffix(line, "\n"), &out); err != nil {
			t.Fatalf("Process(%q): %v", line, err)
		}
	}
	return out.String()
}

func TestProcess_MapBeginIdempotent(t *testing.T) {
	once := New(DefaultConfig(), nil, nil, nil)
	twice := New(DefaultConfig(), nil, nil, nil)
	prior := "player_id 1\nMAP BEGIN\nsnake 1 (1,1)\nfood (3,3)\nMAP END\n"

	feed(t, once, prior+"MAP BEGIN\n")
	feed(t, twice, prior+"MAP BEGIN\nMAP BEGIN\n")

	for _, c := range []*Client{once, twice} {
		snap := c.Snapshot()
		if len(snap.Snakes) != 0 || len(snap.Food) != 0 {
			t.Fatalf("not reset:\n%s", dumpWorld(snap))
		}
		if !c.InMapCycle() {
			t.Fatalf("map cycle closed")
		}
	}

	rest := "snake 1 (2,2) (1,2)\nfood (4,4)\nMAP END\nREQUEST_ACTION\n"
	outOnce, outTwice := feed(t, once, rest), feed(t, twice, rest)
	if outOnce != outTwice {
		t.Fatalf("output diverged: %q vs %q", outOnce, outTwice)
	}
	if a, b := dumpWorld(once.Snapshot()), dumpWorld(twice.Snapshot()); a != b {
		t.Fatalf("world diverged:\n%s\nvs\n%s", a, b)
	}
	if once.InMapCycle() != twice.InMapCycle() || once.Turn() != twice.Turn() {
		t.Fatalf("state diverged: inMap %v/%v turn %d/%d", once.InMapCycle(), twice.InMapCycle(), once.Turn(), twice.Turn())
	}
}

func TestRun_MapBeginIdempotentAtEndOfStream(t *testing.T) {
	prior := "MAP BEGIN\nsnake 1 (1,1)\nMAP END\n"
	for _, input := range []string{prior + "MAP BEGIN\n", prior + "MAP BEGIN\nMAP BEGIN\n"} {
		c := New(DefaultConfig(), nil, nil, nil)
		err := c.Run(context.Background(), strings.NewReader(input), io.Discard)
		if !errors.Is(err, ErrUnexpectedEndOfStream) {
			t.Fatalf("input %q: err=%v", input, err)
		}
		if snap := c.Snapshot(); len(snap.Snakes) != 0 || !c.InMapCycle() {
			t.Fatalf("input %q: inMap=%v world:\n%s", input, c.InMapCycle(), dumpWorld(snap))
		}
	}
}

func TestRun_RepeatedSnakeOverwrites(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil)
	run(t, c, "MAP BEGIN\nsnake 2 (1,1) (2,2) (3,3)\nsnake 2 (9,9)\nMAP END\n")
	s, _ := c.Snapshot().Snake(2)
	if len(s.Body) != 1 || s.Body[0] != (game.Position{X: 9, Y: 9}) {
		t.Fatalf("body=%v", s.Body)
	}
}

func TestRun_Truncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits = game.Limits{MaxSnakes: 4, MaxSnakeLen: 2, MaxFood: 1}
	c := New(cfg, nil, nil, nil)
	out := run(t, c, "MAP BEGIN\nsnake 0 (1,1) (2,2) (3,3)\nfood (4,4) (5,5)\nMAP END\nREQUEST_ACTION\n")
	if out != "straight\n" {
		t.Fatalf("out=%q", out)
	}
	snap := c.Snapshot()
	s, _ := snap.Snake(0)
	if len(s.Body) != 2 || s.Body[1] != (game.Position{X: 2, Y: 2}) {
		t.Fatalf("body=%v", s.Body)
	}
	if len(snap.Food) != 1 || snap.Food[0] != (game.Position{X: 4, Y: 4}) {
		t.Fatalf("food=%v", snap.Food)
	}
}

func TestRun_OutOfRangeDropsOnlyThatSnake(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits = game.Limits{MaxSnakes: 2, MaxSnakeLen: 8, MaxFood: 8}
	c := New(cfg, nil, nil, nil)
	run(t, c, "MAP BEGIN\nsnake 5 (1,1)\nsnake -1 (1,1)\nsnake 1 (2,2)\nMAP END\n")
	snap := c.Snapshot()
	if len(snap.Snakes) != 1 || snap.Snakes[0].ID != 1 {
		t.Fatalf("world:\n%s", dumpWorld(snap))
	}
}

func TestRun_PartialCoordinatesKept(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil)
	run(t, c, "MAP BEGIN\nsnake 0 (1,1) (2,oops) (3,3)\nfood (4,4) trailing\nMAP END\n")
	snap := c.Snapshot()
	s, _ := snap.Snake(0)
	if len(s.Body) != 1 || len(snap.Food) != 1 {
		t.Fatalf("world:\n%s", dumpWorld(snap))
	}
}

func TestRun_EntityOutsideMapCycle(t *testing.T) {
	strict := New(DefaultConfig(), nil, nil, nil)
	run(t, strict, "snake 0 (1,1)\nfood (2,2)\n")
	if snap := strict.Snapshot(); len(snap.Snakes) != 0 || len(snap.Food) != 0 {
		t.Fatalf("strict accepted:\n%s", dumpWorld(snap))
	}

	cfg := DefaultConfig()
	cfg.StrictMapCycle = false
	lax := New(cfg, nil, nil, nil)
	run(t, lax, "snake 0 (1,1)\nfood (2,2)\n")
	if snap := lax.Snapshot(); len(snap.Snakes) != 1 || len(snap.Food) != 1 {
		t.Fatalf("lax dropped:\n%s", dumpWorld(snap))
	}
}

func TestRun_OneActionPerRequest(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil)
	input := "INIT BEGIN\nplayer_id 0\nINIT END\n"
	for i := 0; i < 5; i++ {
		input += "MAP BEGIN\nsnake 0 (0,0) (-1,0)\nMAP END\nREQUEST_ACTION\n"
	}
	out := run(t, c, input)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 6 || lines[0] != "username snekline" {
		t.Fatalf("out=%q", out)
	}
	for _, l := range lines[1:] {
		if l != "straight" {
			t.Fatalf("out=%q", out)
		}
	}
}

func TestRun_LineTooLongIsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 16
	c := New(cfg, nil, nil, nil)
	out := run(t, c, "snake 0 "+strings.Repeat("(1,1) ", 10)+"\nREQUEST_ACTION\n")
	if out != "straight\n" {
		t.Fatalf("out=%q", out)
	}
}

func TestRun_UnexpectedEndOfStream(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"clean", "INIT BEGIN\nINIT END\nMAP BEGIN\nMAP END\n", false},
		{"empty", "", false},
		{"mid handshake", "INIT BEGIN\n", true},
		{"mid map", "MAP BEGIN\nsnake 0 (1,1)\n", true},
		{"unterminated last line", "MAP BEGIN\nMAP END", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(DefaultConfig(), nil, nil, nil)
			var out bytes.Buffer
			err := c.Run(context.Background(), strings.NewReader(tt.input), &out)
			if got := errors.Is(err, ErrUnexpectedEndOfStream); got != tt.want {
				t.Fatalf("err=%v want unexpected=%v", err, tt.want)
			}
			if !tt.want && err != nil {
				t.Fatalf("err=%v", err)
			}
		})
	}
}

func TestRun_PolicyAndVocabulary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vocabulary = rules.Vocabulary{"S", "L", "R"}
	p := policy.Func(func(context.Context, game.Snapshot, int) (rules.Action, error) {
		return rules.TurnLeft, nil
	})
	c := New(cfg, p, nil, nil)
	if out := run(t, c, "REQUEST_ACTION\n"); out != "L\n" {
		t.Fatalf("out=%q", out)
	}
}

func TestRun_GreedyPolicy(t *testing.T) {
	c := New(DefaultConfig(), policy.NewGreedy(), nil, nil)
	out := run(t, c, "player_id 0\nMAP BEGIN\nsnake 0 (0,0) (-1,0)\nfood (0,50)\nMAP END\nREQUEST_ACTION\n")
	if out != "turn_left\n" {
		t.Fatalf("out=%q", out)
	}
}

func TestRun_PolicyFailureStillAnswers(t *testing.T) {
	rec := &memRecorder{}
	p := policy.Func(func(context.Context, game.Snapshot, int) (rules.Action, error) {
		panic("model exploded")
	})
	c := New(DefaultConfig(), p, nil, rec)
	if out := run(t, c, "REQUEST_ACTION\nREQUEST_ACTION\n"); out != "straight\nstraight\n" {
		t.Fatalf("out=%q", out)
	}
	if len(rec.rows) != 2 || !rec.rows[0].Fallback {
		t.Fatalf("rows=%+v", rec.rows)
	}
}

func TestRun_RecordsTurns(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	cfg := DefaultConfig()
	cfg.PolicyName = "const"
	c := New(cfg, nil, nil, rec)
	run(t, c, "player_id 1\nMAP BEGIN\nsnake 1 (1,1)\nfood (2,2)\nMAP END\nREQUEST_ACTION\nREQUEST_ACTION\n")

	if len(rec.rows) != 2 {
		t.Fatalf("rows=%d", len(rec.rows))
	}
	for i, row := range rec.rows {
		if row.Turn != int32(i) || row.PlayerID != 1 || row.Action != "straight" || row.Policy != "const" || row.SessionID != c.SessionID() {
			t.Fatalf("row %d = %+v", i, row)
		}
		snap := row.Snapshot()
		if len(snap.Snakes) != 1 || len(snap.Food) != 1 {
			t.Fatalf("row %d world:\n%s", i, dumpWorld(snap))
		}
	}
}

func TestRun_OversizedPlayerIDIgnored(t *testing.T) {
	rec := &memRecorder{}
	c := New(DefaultConfig(), nil, nil, rec)
	out := run(t, c, "player_id 4294967296\nREQUEST_ACTION\n")

	if out != "straight\n" {
		t.Fatalf("out=%q", out)
	}
	if c.Session().Assigned() {
		t.Fatalf("player id assigned: %d", c.Session().PlayerID())
	}
	if len(rec.rows) != 1 || rec.rows[0].PlayerID != Unassigned {
		t.Fatalf("rows=%+v", rec.rows)
	}
}

func TestRun_WriteFailure(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil)
	err := c.Run(context.Background(), strings.NewReader("REQUEST_ACTION\n"), failWriter{})
	if err == nil || !strings.Contains(err.Error(), "write action") {
		t.Fatalf("err=%v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(DefaultConfig(), nil, nil, nil)
	var out bytes.Buffer
	if err := c.Run(ctx, strings.NewReader("REQUEST_ACTION\n"), &out); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("out=%q", out.String())
	}
}

func TestRun_LogsDiagnostics(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := DefaultConfig()
	cfg.Limits = game.Limits{MaxSnakes: 2, MaxSnakeLen: 1, MaxFood: 4}
	c := New(cfg, nil, logger, nil)

	var out bytes.Buffer
	input := "MAP BEGIN\nnonsense\nsnake 0 (1,1) (2,2)\nsnake 7 (1,1)\nMAP END\nREQUEST_ACTION\n"
	if err := c.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "straight\n" {
		t.Fatalf("diagnostics leaked into output: %q", out.String())
	}
	for _, want := range []string{"unrecognized line", "truncated entity", "dropped entity", `"session":"` + c.SessionID()} {
		if !strings.Contains(logs.String(), want) {
			t.Fatalf("logs missing %q:\n%s", want, logs.String())
		}
	}
}

func TestSession(t *testing.T) {
	s := NewSession()
	if s.Phase() != Uninitialized || s.PlayerID() != Unassigned || s.Assigned() {
		t.Fatalf("fresh session %+v", s)
	}

	// INIT END with no handshake still registers once.
	if !s.EndInit() {
		t.Fatalf("implicit handshake did not send username")
	}
	if s.EndInit() {
		t.Fatalf("second stray INIT END sent username")
	}

	if s.BeginInit() {
		t.Fatalf("restart reported from Ready")
	}
	if !s.BeginInit() {
		t.Fatalf("restart not reported")
	}
	if !s.EndInit() || s.Phase() != Ready || s.Handshakes() != 2 {
		t.Fatalf("phase=%v handshakes=%d", s.Phase(), s.Handshakes())
	}

	if prev := s.SetPlayerID(4); prev != Unassigned {
		t.Fatalf("prev=%d", prev)
	}
	if prev := s.SetPlayerID(2); prev != 4 || s.PlayerID() != 2 {
		t.Fatalf("prev=%d now=%d", prev, s.PlayerID())
	}
}

func TestConfigDefaults(t *testing.T) {
	c := New(Config{}, nil, nil, nil)
	if c.cfg.Username != "snekline" || c.cfg.MaxLineLength <= 0 || c.cfg.Vocabulary != rules.DefaultVocabulary {
		t.Fatalf("cfg=%+v", c.cfg)
	}
	if c.world.Limits() != game.DefaultLimits {
		t.Fatalf("limits=%+v", c.world.Limits())
	}
	if len(c.SessionID()) != 36 {
		t.Fatalf("generated session id %q", c.SessionID())
	}

	fixed := New(Config{SessionID: "abc"}, nil, nil, nil)
	if fixed.SessionID() != "abc" {
		t.Fatalf("session id=%q", fixed.SessionID())
	}
}
