package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"puzzlemania/internal/update"
)

var (
	cPurple     = lipgloss.Color("99")
	cCyan       = lipgloss.Color("39")
	cNeonGreen  = lipgloss.Color("118")
	cRed        = lipgloss.Color("203")
	cOrange     = lipgloss.Color("208")
	cGold       = lipgloss.Color("220")
	cBrightGray = lipgloss.Color("246")
	cLightGray  = lipgloss.Color("250")
	cWhite      = lipgloss.Color("255")
	cField      = lipgloss.Color("63")

	styleDialog = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cPurple).
			Padding(1, 2)

	styleDialogTitle = lipgloss.NewStyle().
				Foreground(cPurple).
				Bold(true)

	styleDivider = lipgloss.NewStyle().
			Foreground(cPurple)

	styleVersion = lipgloss.NewStyle().Foreground(cGold).Bold(true)

	styleField = lipgloss.NewStyle().
			Foreground(cField).
			Bold(true).
			Width(10)

	styleValue   = lipgloss.NewStyle().Foreground(cLightGray)
	styleMuted   = lipgloss.NewStyle().Foreground(cBrightGray)
	styleWarning = lipgloss.NewStyle().Foreground(cOrange)

	// Footer bar styles
	styleKeyPill = lipgloss.NewStyle().
			Background(cPurple).
			Foreground(cWhite).
			Bold(true)

	styleKeyDesc = lipgloss.NewStyle().
			Foreground(cBrightGray)

	styleProgressLabel = lipgloss.NewStyle().Foreground(cBrightGray)
	styleSpinner       = lipgloss.NewStyle().Foreground(cCyan)
)

// noticeStyle returns the icon and style for a notice level.
func noticeStyle(level update.Level) (string, lipgloss.Style) {
	switch level {
	case update.LevelSuccess:
		return "✔", lipgloss.NewStyle().Foreground(cNeonGreen).Bold(true)
	case update.LevelWarning:
		return "⚠", lipgloss.NewStyle().Foreground(cOrange).Bold(true)
	case update.LevelError:
		return "✖", lipgloss.NewStyle().Foreground(cRed).Bold(true)
	default:
		return "●", lipgloss.NewStyle().Foreground(cCyan).Bold(true)
	}
}

// resolveNotesStyle maps an output format to a glamour style. "rich"
// follows the terminal background, which means querying the terminal; call
// it before a bubbletea program owns the input.
func resolveNotesStyle(format string) string {
	style := strings.ToLower(strings.TrimSpace(format))
	if style == "" || style == "rich" {
		if termenv.HasDarkBackground() {
			return "dark"
		}
		return "light"
	}
	return style
}

// buildMarkdownRenderer renders release notes. "dark" and "light" pick a
// style; "plain" only wraps.
func buildMarkdownRenderer(format string, width int) func(string) string {
	fallback := func(input string) string {
		return wordwrap.String(input, width)
	}

	style := resolveNotesStyle(format)
	if style == "plain" {
		return fallback
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	return func(input string) string {
		out, err := renderer.Render(input)
		if err != nil {
			return fallback(input)
		}
		return strings.TrimSpace(out)
	}
}
