// Package game defines the per-turn world model for the line-protocol client.
//
// The model holds every snake body and food item announced between a
// MAP BEGIN and MAP END. It is reset at each map cycle and is owned by a
// single control loop, so it does no locking of its own.
package game

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
)

// Position is a point on the continuous game plane.
// The host uses a y-up plane centred on the origin.
type Position struct {
	X float64
	Y float64
}

// String renders the position in the wire form "(x,y)".
func (p Position) String() string {
	return "(" + strconv.FormatFloat(p.X, 'f', -1, 64) + "," + strconv.FormatFloat(p.Y, 'f', -1, 64) + ")"
}

// Finite reports whether both coordinates are neither NaN nor infinite.
func (p Position) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Limits are the fixed capacities of the world model.
type Limits struct {
	MaxSnakes   int // snake ids are valid in [0, MaxSnakes)
	MaxSnakeLen int
	MaxFood     int
}

// DefaultLimits are large enough for the reference host (14 player colours,
// one food spawned per second).
var DefaultLimits = Limits{MaxSnakes: 16, MaxSnakeLen: 1024, MaxFood: 1024}

var (
	ErrOutOfRangeEntity = errors.New("entity id out of range")
	ErrCapacityExceeded = errors.New("entity capacity exceeded")
)

// EntityError reports an update that was rejected or truncated.
// For ErrCapacityExceeded the update was still committed up to Limit.
type EntityError struct {
	Kind    string // "snake" or "food"
	ID      int    // snake id; -1 for food
	Limit   int
	Dropped int
	Err     error
}

func (e *EntityError) Error() string {
	if errors.Is(e.Err, ErrOutOfRangeEntity) {
		return fmt.Sprintf("%s %d: %v (limit %d)", e.Kind, e.ID, e.Err, e.Limit)
	}
	if e.ID >= 0 {
		return fmt.Sprintf("%s %d: %v: kept %d, dropped %d", e.Kind, e.ID, e.Err, e.Limit, e.Dropped)
	}
	return fmt.Sprintf("%s: %v: kept %d, dropped %d", e.Kind, e.Err, e.Limit, e.Dropped)
}

func (e *EntityError) Unwrap() error { return e.Err }

// World is the bounded, mutable store for the current map cycle.
type World struct {
	limits Limits
	bodies [][]Position // indexed by snake id; empty means absent
	food   []Position
}

// NewWorld allocates a world with the given limits. Non-positive limits fall
// back to DefaultLimits field by field.
func NewWorld(limits Limits) *World {
	if limits.MaxSnakes <= 0 {
		limits.MaxSnakes = DefaultLimits.MaxSnakes
	}
	if limits.MaxSnakeLen <= 0 {
		limits.MaxSnakeLen = DefaultLimits.MaxSnakeLen
	}
	if limits.MaxFood <= 0 {
		limits.MaxFood = DefaultLimits.MaxFood
	}
	return &World{
		limits: limits,
		bodies: make([][]Position, limits.MaxSnakes),
	}
}

func (w *World) Limits() Limits { return w.limits }

// Reset clears every snake body and the food set. Backing arrays are kept.
func (w *World) Reset() {
	for i := range w.bodies {
		w.bodies[i] = w.bodies[i][:0]
	}
	w.food = w.food[:0]
}

// SetSnakeBody replaces the body of snake id with positions taken in
// encounter order. An id outside [0, MaxSnakes) is rejected before the
// sequence is consumed. Positions past MaxSnakeLen are counted and dropped;
// the kept prefix is committed and an ErrCapacityExceeded EntityError is
// returned.
func (w *World) SetSnakeBody(id int, positions iter.Seq[Position]) error {
	if id < 0 || id >= w.limits.MaxSnakes {
		return &EntityError{Kind: "snake", ID: id, Limit: w.limits.MaxSnakes, Err: ErrOutOfRangeEntity}
	}
	body, dropped := fill(w.bodies[id][:0], positions, w.limits.MaxSnakeLen)
	w.bodies[id] = body
	if dropped > 0 {
		return &EntityError{Kind: "snake", ID: id, Limit: w.limits.MaxSnakeLen, Dropped: dropped, Err: ErrCapacityExceeded}
	}
	return nil
}

// SetFood replaces the food set, capped at MaxFood with the same truncation
// policy as SetSnakeBody.
func (w *World) SetFood(positions iter.Seq[Position]) error {
	food, dropped := fill(w.food[:0], positions, w.limits.MaxFood)
	w.food = food
	if dropped > 0 {
		return &EntityError{Kind: "food", ID: -1, Limit: w.limits.MaxFood, Dropped: dropped, Err: ErrCapacityExceeded}
	}
	return nil
}

func fill(dst []Position, positions iter.Seq[Position], limit int) ([]Position, int) {
	dropped := 0
	for p := range positions {
		if len(dst) >= limit {
			dropped++
			continue
		}
		dst = append(dst, p)
	}
	return dst, dropped
}

// Snapshot returns a deep copy of the current world. Snakes with an empty
// body are omitted; the rest are ordered by id.
func (w *World) Snapshot() Snapshot {
	out := Snapshot{}
	for id, body := range w.bodies {
		if len(body) == 0 {
			continue
		}
		b := make([]Position, len(body))
		copy(b, body)
		out.Snakes = append(out.Snakes, Snake{ID: id, Body: b})
	}
	if len(w.food) > 0 {
		out.Food = make([]Position, len(w.food))
		copy(out.Food, w.food)
	}
	return out
}
