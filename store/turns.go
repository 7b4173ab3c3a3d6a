// Package store persists answered turns to Parquet so matches can be
// replayed and mined for training data later.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/brensch/snekline/game"
	"github.com/parquet-go/parquet-go"
)

// SchemaName is written into each file's key/value metadata.
const SchemaName = "snekline_turn_v1"

// TurnRow is one answered REQUEST_ACTION with the world it was decided on.
//
// Coordinates are split into parallel x/y columns, which compress far better
// than nested pairs. Fallback is true when the policy failed and the default
// action was sent instead.
type TurnRow struct {
	SessionID string `parquet:"session_id,dict"`
	Turn      int32  `parquet:"turn"`
	PlayerID  int32  `parquet:"player_id"`
	Username  string `parquet:"username,dict"`
	Policy    string `parquet:"policy,dict"`
	Action    string `parquet:"action,dict"`
	Fallback  bool   `parquet:"fallback"`

	UnixNano    int64 `parquet:"unix_nano"`
	DecideNanos int64 `parquet:"decide_nanos"`

	FoodX []float64 `parquet:"food_x"`
	FoodY []float64 `parquet:"food_y"`

	Snakes []SnakeRow `parquet:"snakes"`
}

type SnakeRow struct {
	ID    int32     `parquet:"id"`
	BodyX []float64 `parquet:"body_x"`
	BodyY []float64 `parquet:"body_y"`
}

// SetSnapshot copies snap into the row's coordinate columns.
func (r *TurnRow) SetSnapshot(snap game.Snapshot) {
	r.FoodX, r.FoodY = split(snap.Food)
	r.Snakes = make([]SnakeRow, 0, len(snap.Snakes))
	for _, s := range snap.Snakes {
		xs, ys := split(s.Body)
		r.Snakes = append(r.Snakes, SnakeRow{ID: int32(s.ID), BodyX: xs, BodyY: ys})
	}
}

// Snapshot rebuilds the world the row was decided on.
func (r TurnRow) Snapshot() game.Snapshot {
	snap := game.Snapshot{Food: join(r.FoodX, r.FoodY)}
	for _, s := range r.Snakes {
		snap.Snakes = append(snap.Snakes, game.Snake{ID: int(s.ID), Body: join(s.BodyX, s.BodyY)})
	}
	return snap
}

func split(ps []game.Position) (xs, ys []float64) {
	xs = make([]float64, len(ps))
	ys = make([]float64, len(ps))
	for i, p := range ps {
		xs[i], ys[i] = p.X, p.Y
	}
	return xs, ys
}

func join(xs, ys []float64) []game.Position {
	n := min(len(xs), len(ys))
	if n == 0 {
		return nil
	}
	out := make([]game.Position, n)
	for i := range out {
		out[i] = game.Position{X: xs[i], Y: ys[i]}
	}
	return out
}

// ReadTurns loads every row of a recording in file order.
func ReadTurns(path string) ([]TurnRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != SchemaName {
		return nil, fmt.Errorf("%s: schema %q, want %q", path, schema, SchemaName)
	}

	reader := parquet.NewGenericReader[TurnRow](pf)
	defer reader.Close()

	out := make([]TurnRow, 0, pf.NumRows())
	buf := make([]TurnRow, 64)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
}
