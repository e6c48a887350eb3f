// Package tui holds the terminal presentation helpers for the interactive
// CLI: markdown rendering and the startup banner.
package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a prompt renderer backed by glamour. Suspension
// prompts are authored as markdown; this turns them into ANSI for TTYs.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Plain passthrough keeps the session usable without styling.
		return func(s string) (string, error) { return s, nil }
	}
	return r.Render
}
