package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the thicket banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Greens fading into moss
	lines := []struct{ text, color string }{
		{"  _   _     _      _        _   ", "#86efac"},
		{" | |_| |__ (_) ___| | _____| |_ ", "#4ade80"},
		{" | __| '_ \\| |/ __| |/ / _ \\ __|", "#22c55e"},
		{" | |_| | | | | (__|   <  __/ |_ ", "#16a34a"},
		{"  \\__|_| |_|_|\\___|_|\\_\\___|\\__|", "#15803d"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
