package policy

import (
	"math"

	"github.com/brensch/snekline/game"
)

// Grid channels fed to learned policies.
const (
	ChannelOwnHead = iota
	ChannelOwnBody
	ChannelOthers
	ChannelFood
	Channels
)

// GridLayout describes an egocentric occupancy grid: the own head sits in the
// centre cell and the heading points along +x.
type GridLayout struct {
	Size     int     // cells per side, odd
	CellSize float64 // plane units per cell
}

var DefaultGridLayout = GridLayout{Size: 21, CellSize: 10}

// Len is the number of float32 values in an encoded grid, laid out [C, H, W].
func (g GridLayout) Len() int { return Channels * g.Size * g.Size }

// Encode writes snap into dst (length g.Len()) from selfID's point of view.
// It returns false, leaving dst zeroed, when selfID has no usable heading.
func (g GridLayout) Encode(snap game.Snapshot, selfID int, heading float64, dst []float32) bool {
	clear(dst)
	you, ok := snap.Snake(selfID)
	if !ok || len(you.Body) == 0 {
		return false
	}
	head := you.Body[0]
	cos, sin := math.Cos(-heading), math.Sin(-heading)
	half := g.Size / 2

	mark := func(ch int, p game.Position) {
		dx, dy := p.X-head.X, p.Y-head.Y
		rx := dx*cos - dy*sin
		ry := dx*sin + dy*cos
		col := half + int(math.Round(rx/g.CellSize))
		row := half - int(math.Round(ry/g.CellSize))
		if col < 0 || col >= g.Size || row < 0 || row >= g.Size {
			return
		}
		dst[(ch*g.Size+row)*g.Size+col] = 1
	}

	for _, s := range snap.Snakes {
		ch := ChannelOthers
		if s.ID == selfID {
			ch = ChannelOwnBody
		}
		for i, p := range s.Body {
			if s.ID == selfID && i == 0 {
				mark(ChannelOwnHead, p)
				continue
			}
			mark(ch, p)
		}
	}
	for _, f := range snap.Food {
		mark(ChannelFood, f)
	}
	return true
}
