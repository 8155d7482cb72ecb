package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	` _                     _        __  __ `,
	`| |__   __ _ _ __   __| | ___  / _|/ _|`,
	`| '_ \ / _' | '_ \ / _' |/ _ \| |_| |_ `,
	`| | | | (_| | | | | (_| | (_) |  _|  _|`,
	`|_| |_|\__,_|_| |_|\__,_|\___/|_| |_|  `,
}

var bannerColors = []string{"#38bdf8", "#22d3ee", "#2dd4bf", "#34d399", "#4ade80"}

// PrintBanner writes the handoff banner to w, colored when the terminal supports it.
func PrintBanner(w io.Writer, subtitle string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(p.Color(bannerColors[i])))
	}
	if subtitle != "" {
		fmt.Fprintln(w, out.String("  "+subtitle).Faint())
	}
	fmt.Fprintln(w)
}
