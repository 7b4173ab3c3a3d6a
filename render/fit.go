package render

import (
	"math"

	"github.com/brensch/snekline/game"
)

// fit maps plane coordinates into a bounding box as fractions of its span.
// Offsets and spans are halved first so boxes covering the whole float64
// range stay finite.
type fit struct {
	lo           game.Position
	halfX, halfY float64
}

func newFit(lo, hi game.Position) fit {
	return fit{lo: lo, halfX: hi.X/2 - lo.X/2, halfY: hi.Y/2 - lo.Y/2}
}

// unit returns p's offset from lo as a fraction of the span per axis.
// A degenerate axis maps to 0. ok is false for non-finite input.
func (f fit) unit(p game.Position) (u, v float64, ok bool) {
	if !p.Finite() {
		return 0, 0, false
	}
	return ratio(p.X/2-f.lo.X/2, f.halfX), ratio(p.Y/2-f.lo.Y/2, f.halfY), true
}

func ratio(d, half float64) float64 {
	if half < 1e-9 {
		return 0
	}
	return d / half
}

// index scales a unit fraction onto [0, n).
func index(u float64, n int) int {
	i := int(math.Round(u * float64(n-1)))
	return min(max(i, 0), n-1)
}
