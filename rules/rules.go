package rules

import (
	"math"

	"github.com/brensch/snekline/game"
	"gonum.org/v1/gonum/floats"
)

// Geometry mirrors the host's movement model: the head advances Speed units
// per tick and a turn rotates the heading by TurnRate radians per tick.
// Two segments collide when their centres are closer than 2*Radius.
type Geometry struct {
	Radius    float64
	Speed     float64
	TurnRate  float64
	Lookahead int // ticks simulated when projecting an action
}

// DefaultGeometry matches the reference host: speed 5 scaled by a 1/60 s
// tick, a full turn per second, segment radius 5.
var DefaultGeometry = Geometry{
	Radius:    5,
	Speed:     5 * 5.0 / 60,
	TurnRate:  2 * math.Pi / 60,
	Lookahead: 12,
}

// Heading returns the direction the snake is travelling, taken from the
// second segment towards the head. ok is false for bodies shorter than two
// segments or with the first two segments stacked.
func Heading(body []game.Position) (angle float64, ok bool) {
	if len(body) < 2 {
		return 0, false
	}
	dx := body[0].X - body[1].X
	dy := body[0].Y - body[1].Y
	if dx == 0 && dy == 0 {
		return 0, false
	}
	return math.Atan2(dy, dx), true
}

// Steer returns the per-tick rotation for an action. Positive is
// counter-clockwise, which is a left turn on the host's y-up plane.
func (g Geometry) Steer(a Action) float64 {
	switch a {
	case TurnLeft:
		return g.TurnRate
	case TurnRight:
		return -g.TurnRate
	default:
		return 0
	}
}

// Path simulates holding action a for Lookahead ticks from head and returns
// every intermediate head position.
func (g Geometry) Path(head game.Position, heading float64, a Action) []game.Position {
	n := g.Lookahead
	if n <= 0 {
		n = 1
	}
	out := make([]game.Position, 0, n)
	p := head
	turn := g.Steer(a)
	for i := 0; i < n; i++ {
		heading += turn
		p = game.Position{X: p.X + g.Speed*math.Cos(heading), Y: p.Y + g.Speed*math.Sin(heading)}
		out = append(out, p)
	}
	return out
}

// Distance is the euclidean distance between two positions.
func Distance(a, b game.Position) float64 {
	return floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
}

// AngleDiff returns to-from wrapped into (-π, π].
func AngleDiff(from, to float64) float64 {
	d := math.Mod(to-from, 2*math.Pi)
	if d <= -math.Pi {
		d += 2 * math.Pi
	} else if d > math.Pi {
		d -= 2 * math.Pi
	}
	return d
}

// IsSafe reports whether a head at p touches no segment of any snake other
// than selfID. The host only kills on contact with another snake.
func (g Geometry) IsSafe(snap game.Snapshot, selfID int, p game.Position) bool {
	limit := 2 * g.Radius
	for _, s := range snap.Snakes {
		if s.ID == selfID {
			continue
		}
		for _, seg := range s.Body {
			if Distance(p, seg) < limit {
				return false
			}
		}
	}
	return true
}

// SafeActions returns the actions whose projected path stays clear of other
// snakes, in Actions order. ok is false when the snake or its heading is
// unknown, in which case no action can be judged.
func (g Geometry) SafeActions(snap game.Snapshot, selfID int) (safe []Action, ok bool) {
	you, found := snap.Snake(selfID)
	if !found {
		return nil, false
	}
	heading, known := Heading(you.Body)
	if !known {
		return nil, false
	}

	for _, a := range Actions {
		blocked := false
		for _, p := range g.Path(you.Body[0], heading, a) {
			if !g.IsSafe(snap, selfID, p) {
				blocked = true
				break
			}
		}
		if !blocked {
			safe = append(safe, a)
		}
	}
	return safe, true
}
