package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brensch/snekline/render"
	"github.com/brensch/snekline/store"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	speed := flag.Duration("speed", 200*time.Millisecond, "Delay between turns while playing")
	dump := flag.Bool("dump", false, "Print every turn to stdout instead of starting the viewer")
	cols := flag.Int("cols", 60, "Grid width for -dump")
	lines := flag.Int("rows", 24, "Grid height for -dump")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: snakereplay [flags] session.parquet")
		os.Exit(2)
	}

	rows, err := store.ReadTurns(flag.Arg(0))
	if err != nil {
		log.Fatalf("read %s: %v", flag.Arg(0), err)
	}

	if *dump {
		for _, row := range rows {
			fmt.Printf("turn %d player %d action %s\n", row.Turn, row.PlayerID, row.Action)
			fmt.Print(render.ASCII(row.Snapshot(), int(row.PlayerID), *cols, *lines))
			fmt.Println()
		}
		return
	}

	p := tea.NewProgram(initialModel(rows, *speed), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
}
