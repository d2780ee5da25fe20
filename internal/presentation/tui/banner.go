package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the stepbnb banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{`     _             _           _     `, "#34d399"},
		{` ___| |_ ___ _ __ | |__  _ __ | |__  `, "#2dd4bf"},
		{`/ __| __/ _ \ '_ \| '_ \| '_ \| '_ \ `, "#22d3ee"},
		{`\__ \ ||  __/ |_) | |_) | | | | |_) |`, "#38bdf8"},
		{`|___/\__\___| .__/|_.__/|_| |_|_.__/ `, "#60a5fa"},
		{`            |_|                      `, "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, p.String("  step-wise branch-and-bound "+version).Faint())
	fmt.Fprintln(w)
}
