package ui

import (
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "…"

func stripANSI(s string) string {
	return ansi.Strip(s)
}

// truncateMiddle shortens s to width cells, keeping both ends. Long URLs and
// paths stay recognisable that way.
func truncateMiddle(s string, width int) string {
	if width <= 0 || ansi.StringWidth(s) <= width {
		return s
	}
	if width <= 2 {
		return ansi.Truncate(s, width, "")
	}
	head := (width - 1) / 2
	tail := width - 1 - head
	runes := []rune(ansi.Strip(s))
	if len(runes) < head+tail {
		return truncateEnd(s, width)
	}
	return string(runes[:head]) + ellipsis + string(runes[len(runes)-tail:])
}

// truncateEnd shortens s to width cells with a trailing ellipsis.
func truncateEnd(s string, width int) string {
	if width <= 0 {
		return s
	}
	return ansi.Truncate(s, width, ellipsis)
}
