package render

import (
	"strings"

	"github.com/brensch/snekline/game"
)

// ASCII renders snap as a cols x rows character grid, y-up, fitted to the
// entities' bounds. Own head/body are 'O'/'o', other snakes 'S'/'s', food
// 'F'. Later entities overwrite earlier ones; heads win over bodies.
func ASCII(snap game.Snapshot, selfID, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	grid := make([][]byte, rows)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", cols))
	}

	lo, hi, ok := snap.Bounds()
	if ok {
		box := newFit(lo, hi)
		cell := func(p game.Position) (int, int, bool) {
			u, v, ok := box.unit(p)
			return index(u, cols), rows - 1 - index(v, rows), ok
		}

		for _, f := range snap.Food {
			if c, r, ok := cell(f); ok {
				grid[r][c] = 'F'
			}
		}
		for _, s := range snap.Snakes {
			head, body := byte('S'), byte('s')
			if s.ID == selfID {
				head, body = 'O', 'o'
			}
			for i := len(s.Body) - 1; i >= 0; i-- {
				c, r, ok := cell(s.Body[i])
				if !ok {
					continue
				}
				if i == 0 {
					grid[r][c] = head
				} else if grid[r][c] != 'S' && grid[r][c] != 'O' {
					grid[r][c] = body
				}
			}
		}
	}

	var b strings.Builder
	for _, row := range grid {
		b.Write(row)
		b.WriteByte('\n')
	}
	return b.String()
}
