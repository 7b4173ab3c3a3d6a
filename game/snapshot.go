package game

// Snake is one player's body for the current turn, head first.
type Snake struct {
	ID   int
	Body []Position
}

// Head returns the first body segment.
func (s Snake) Head() (Position, bool) {
	if len(s.Body) == 0 {
		return Position{}, false
	}
	return s.Body[0], true
}

// Snapshot is a read-only view of one map cycle. It shares no memory with
// the World it was taken from.
type Snapshot struct {
	Snakes []Snake
	Food   []Position
}

// Snake looks up a snake by id.
func (s Snapshot) Snake(id int) (Snake, bool) {
	for _, sn := range s.Snakes {
		if sn.ID == id {
			return sn, true
		}
	}
	return Snake{}, false
}

// Clone performs a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{}
	if len(s.Food) > 0 {
		out.Food = make([]Position, len(s.Food))
		copy(out.Food, s.Food)
	}
	if len(s.Snakes) > 0 {
		out.Snakes = make([]Snake, len(s.Snakes))
		for i := range s.Snakes {
			out.Snakes[i] = Snake{ID: s.Snakes[i].ID}
			if len(s.Snakes[i].Body) > 0 {
				out.Snakes[i].Body = make([]Position, len(s.Snakes[i].Body))
				copy(out.Snakes[i].Body, s.Snakes[i].Body)
			}
		}
	}
	return out
}

// Bounds returns the axis-aligned box covering every entity.
// Non-finite coordinates are ignored; ok is false when nothing is left.
func (s Snapshot) Bounds() (lo, hi Position, ok bool) {
	visit := func(p Position) {
		if !p.Finite() {
			return
		}
		if !ok {
			lo, hi, ok = p, p, true
			return
		}
		lo.X, lo.Y = min(lo.X, p.X), min(lo.Y, p.Y)
		hi.X, hi.Y = max(hi.X, p.X), max(hi.Y, p.Y)
	}
	for _, sn := range s.Snakes {
		for _, p := range sn.Body {
			visit(p)
		}
	}
	for _, f := range s.Food {
		visit(f)
	}
	return lo, hi, ok
}
