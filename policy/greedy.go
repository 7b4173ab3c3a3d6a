package policy

import (
	"context"
	"math"
	"slices"

	"github.com/brensch/snekline/game"
	"github.com/brensch/snekline/rules"
)

// DefaultTolerance is the heading error, in radians, under which Greedy keeps
// going straight.
const DefaultTolerance = 0.1

// Greedy steers toward the nearest food and vetoes turns that would run into
// another snake within the lookahead.
type Greedy struct {
	Geometry  rules.Geometry
	Tolerance float64
}

func NewGreedy() Greedy {
	return Greedy{Geometry: rules.DefaultGeometry, Tolerance: DefaultTolerance}
}

func (g Greedy) Decide(_ context.Context, snap game.Snapshot, selfID int) (rules.Action, error) {
	you, ok := snap.Snake(selfID)
	if !ok {
		return rules.Straight, nil
	}
	heading, ok := rules.Heading(you.Body)
	if !ok {
		return rules.Straight, nil
	}

	want := rules.Straight
	if food, ok := NearestFood(you.Body[0], snap.Food); ok {
		want = g.toward(you.Body[0], heading, food)
	}

	safe, _ := g.Geometry.SafeActions(snap, selfID)
	if len(safe) == 0 || slices.Contains(safe, want) {
		return want, nil
	}
	return safe[0], nil
}

func (g Greedy) toward(head game.Position, heading float64, target game.Position) rules.Action {
	bearing := math.Atan2(target.Y-head.Y, target.X-head.X)
	d := rules.AngleDiff(heading, bearing)
	switch {
	case math.Abs(d) < g.Tolerance:
		return rules.Straight
	case d > 0:
		return rules.TurnLeft
	default:
		return rules.TurnRight
	}
}

// NearestFood returns the food item closest to p.
func NearestFood(p game.Position, food []game.Position) (game.Position, bool) {
	best, bestDist, found := game.Position{}, math.Inf(1), false
	for _, f := range food {
		if d := rules.Distance(p, f); d < bestDist {
			best, bestDist, found = f, d, true
		}
	}
	return best, found
}
