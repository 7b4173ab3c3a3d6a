package game

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"
)

// dumpSnapshot is a test helper to print a snapshot in failure messages.
func dumpSnapshot(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Food(%d):", len(s.Food))
	for _, f := range s.Food {
		b.WriteString(" " + f.String())
	}
	b.WriteString("\n")
	for _, sn := range s.Snakes {
		fmt.Fprintf(&b, "Snake %d Len=%d Body:", sn.ID, len(sn.Body))
		for _, p := range sn.Body {
			b.WriteString(" " + p.String())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func line(n int) []Position {
	out := make([]Position, n)
	for i := range out {
		out[i] = Position{X: float64(i), Y: float64(-i)}
	}
	return out
}

func TestSetSnakeBody_StoresInOrder(t *testing.T) {
	w := NewWorld(DefaultLimits)
	body := []Position{{X: 1, Y: 1}, {X: 1, Y: 2}}
	if err := w.SetSnakeBody(0, slices.Values(body)); err != nil {
		t.Fatalf("SetSnakeBody: %v", err)
	}

	snap := w.Snapshot()
	sn, ok := snap.Snake(0)
	if !ok {
		t.Fatalf("snake 0 missing:\n%s", dumpSnapshot(snap))
	}
	if !slices.Equal(sn.Body, body) {
		t.Fatalf("body=%v want=%v", sn.Body, body)
	}
}

func TestSetSnakeBody_OutOfRangeDropsUpdate(t *testing.T) {
	w := NewWorld(Limits{MaxSnakes: 4, MaxSnakeLen: 8, MaxFood: 8})
	consumed := 0
	seq := func(yield func(Position) bool) {
		consumed++
		yield(Position{})
	}

	for _, id := range []int{-1, 4, 100} {
		err := w.SetSnakeBody(id, seq)
		if !errors.Is(err, ErrOutOfRangeEntity) {
			t.Fatalf("id=%d err=%v want ErrOutOfRangeEntity", id, err)
		}
		var ee *EntityError
		if !errors.As(err, &ee) || ee.ID != id {
			t.Fatalf("id=%d err=%#v", id, err)
		}
	}
	if consumed != 0 {
		t.Fatalf("sequence consumed %d times for rejected ids", consumed)
	}
	if snap := w.Snapshot(); len(snap.Snakes) != 0 {
		t.Fatalf("expected empty world:\n%s", dumpSnapshot(snap))
	}
}

func TestSetSnakeBody_TruncatesToCapacity(t *testing.T) {
	w := NewWorld(Limits{MaxSnakes: 2, MaxSnakeLen: 3, MaxFood: 3})
	err := w.SetSnakeBody(1, slices.Values(line(5)))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err=%v want ErrCapacityExceeded", err)
	}
	var ee *EntityError
	if !errors.As(err, &ee) || ee.Dropped != 2 || ee.Limit != 3 {
		t.Fatalf("entity error=%+v", ee)
	}

	sn, _ := w.Snapshot().Snake(1)
	if want := line(3); !slices.Equal(sn.Body, want) {
		t.Fatalf("body=%v want=%v", sn.Body, want)
	}
}

func TestSetSnakeBody_RepeatOverwrites(t *testing.T) {
	w := NewWorld(DefaultLimits)
	_ = w.SetSnakeBody(2, slices.Values(line(4)))
	_ = w.SetSnakeBody(2, slices.Values([]Position{{X: 9, Y: 9}}))

	sn, _ := w.Snapshot().Snake(2)
	if len(sn.Body) != 1 || sn.Body[0] != (Position{X: 9, Y: 9}) {
		t.Fatalf("body=%v want single (9,9)", sn.Body)
	}
}

func TestSetFood_Truncates(t *testing.T) {
	w := NewWorld(Limits{MaxSnakes: 1, MaxSnakeLen: 1, MaxFood: 2})
	err := w.SetFood(slices.Values(line(3)))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err=%v want ErrCapacityExceeded", err)
	}
	if got := w.Snapshot().Food; !slices.Equal(got, line(2)) {
		t.Fatalf("food=%v", got)
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	w := NewWorld(DefaultLimits)
	_ = w.SetSnakeBody(0, slices.Values(line(3)))
	_ = w.SetSnakeBody(5, slices.Values(line(2)))
	_ = w.SetFood(slices.Values(line(4)))

	w.Reset()
	snap := w.Snapshot()
	if len(snap.Snakes) != 0 || len(snap.Food) != 0 {
		t.Fatalf("after reset:\n%s", dumpSnapshot(snap))
	}

	// Twice in a row is the same as once.
	w.Reset()
	snap = w.Snapshot()
	if len(snap.Snakes) != 0 || len(snap.Food) != 0 {
		t.Fatalf("after double reset:\n%s", dumpSnapshot(snap))
	}
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	w := NewWorld(DefaultLimits)
	_ = w.SetSnakeBody(0, slices.Values(line(2)))
	_ = w.SetFood(slices.Values(line(1)))

	snap := w.Snapshot()
	snap.Snakes[0].Body[0] = Position{X: 100, Y: 100}
	snap.Food[0] = Position{X: 100, Y: 100}

	again := w.Snapshot()
	if again.Snakes[0].Body[0] != (Position{}) || again.Food[0] != (Position{}) {
		t.Fatalf("snapshot aliased world:\n%s", dumpSnapshot(again))
	}

	// Mutating the world after a snapshot leaves the snapshot alone.
	w.Reset()
	if len(snap.Snakes) != 1 {
		t.Fatalf("reset leaked into snapshot")
	}
}

func TestSnapshot_OrderedByID(t *testing.T) {
	w := NewWorld(DefaultLimits)
	for _, id := range []int{7, 0, 3} {
		_ = w.SetSnakeBody(id, slices.Values(line(1)))
	}
	var ids []int
	for _, sn := range w.Snapshot().Snakes {
		ids = append(ids, sn.ID)
	}
	if !slices.Equal(ids, []int{0, 3, 7}) {
		t.Fatalf("ids=%v", ids)
	}
}

func TestSnapshot_Bounds(t *testing.T) {
	s := Snapshot{
		Snakes: []Snake{{ID: 0, Body: []Position{{X: -3, Y: 2}, {X: 1, Y: 5}}}},
		Food:   []Position{{X: 4, Y: -1}},
	}
	lo, hi, ok := s.Bounds()
	if !ok || lo != (Position{X: -3, Y: -1}) || hi != (Position{X: 4, Y: 5}) {
		t.Fatalf("bounds=%v %v %v", lo, hi, ok)
	}
	if _, _, ok := (Snapshot{}).Bounds(); ok {
		t.Fatalf("empty snapshot has bounds")
	}

	s.Food = append(s.Food, Position{X: math.NaN(), Y: 0}, Position{X: 2, Y: math.Inf(-1)})
	if lo2, hi2, _ := s.Bounds(); lo2 != lo || hi2 != hi {
		t.Fatalf("non-finite points widened bounds: %v %v", lo2, hi2)
	}
	if _, _, ok := (Snapshot{Food: []Position{{X: math.Inf(1)}}}).Bounds(); ok {
		t.Fatalf("only non-finite points has bounds")
	}
}

func TestPosition_String(t *testing.T) {
	cases := map[Position]string{
		{X: 1, Y: 2}:       "(1,2)",
		{X: -1.5, Y: 0.25}: "(-1.5,0.25)",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Fatalf("%#v.String()=%q want %q", p, got, want)
		}
	}
}
