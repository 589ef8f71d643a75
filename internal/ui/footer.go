package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type footerHint struct {
	key  string // Short symbol: "y", "esc", "?"
	desc string // Short description: "Download", "Cancel"
}

// footerLine renders pill-style key hints centered in width.
func footerLine(hints []footerHint, width int) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, styleKeyPill.Render(" "+h.key+" ")+" "+styleKeyDesc.Render(h.desc))
	}
	line := strings.Join(parts, "  ")
	if width <= 0 {
		return line
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, line)
}
