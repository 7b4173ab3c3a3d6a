package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/brensch/snekline/render"
	"github.com/brensch/snekline/store"
	tea "github.com/charmbracelet/bubbletea"
)

type model struct {
	rows    []store.TurnRow
	idx     int
	playing bool
	speed   time.Duration
	cols    int
	lines   int
}

func initialModel(rows []store.TurnRow, speed time.Duration) model {
	return model{rows: rows, speed: speed, cols: 60, lines: 24}
}

type TickMsg time.Time

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.speed, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "right", "l", "n":
			m.step(1)
		case "left", "h", "p":
			m.step(-1)
		case "g", "home":
			m.idx = 0
		case "G", "end":
			m.idx = max(len(m.rows)-1, 0)
		case " ", "space":
			m.playing = !m.playing
			if m.playing {
				return m, m.tickCmd()
			}
		}
	case tea.WindowSizeMsg:
		m.cols = max(msg.Width, 10)
		m.lines = max(msg.Height-4, 5)
	case TickMsg:
		if !m.playing {
			return m, nil
		}
		if m.idx >= len(m.rows)-1 {
			m.playing = false
			return m, nil
		}
		m.idx++
		return m, m.tickCmd()
	}
	return m, nil
}

func (m *model) step(d int) {
	m.idx = min(max(m.idx+d, 0), max(len(m.rows)-1, 0))
}

func (m model) View() string {
	if len(m.rows) == 0 {
		return "No turns recorded.\n\nPress q to quit.\n"
	}
	row := m.rows[m.idx]
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d/%d  player %d  action %s  policy %s", m.idx+1, len(m.rows), row.PlayerID, row.Action, row.Policy)
	if row.Fallback {
		b.WriteString("  (fallback)")
	}
	fmt.Fprintf(&b, "  decide %s\n", time.Duration(row.DecideNanos))
	b.WriteString(render.ASCII(row.Snapshot(), int(row.PlayerID), m.cols, m.lines))
	b.WriteString("\n←/→ step  space play/pause  g/G first/last  q quit\n")
	return b.String()
}
