package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// Banner writes the startup banner for interactive runs.
func Banner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{`   ____ _   _ ___ ____  _____ `, "#818cf8"},
		{`  / ___| | | |_ _|  _ \| ____|`, "#a78bfa"},
		{` | |  _| | | || || | | |  _|  `, "#c084fc"},
		{` | |_| | |_| || || |_| | |___ `, "#e879f9"},
		{`  \____|\___/|___|____/|_____|`, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
