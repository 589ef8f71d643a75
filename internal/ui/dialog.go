package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"puzzlemania/internal/update"
)

const (
	defaultDialogWidth = 72
	minDialogWidth     = 36
	maxNoteLines       = 14
)

// ConfirmDialog is a modal asking the user to answer an update prompt.
type ConfirmDialog struct {
	prompt   update.Prompt
	keys     DialogKeyMap
	help     help.Model
	style    string
	notes    map[int][]string
	width    int
	answer   update.Answer
	answered bool
	status   string
	copyFn   func(string) error
}

// NewConfirmDialog creates a dialog for p. format selects the release notes
// style: rich, dark, light or plain.
func NewConfirmDialog(p update.Prompt, format string) *ConfirmDialog {
	h := help.New()
	h.ShowAll = false
	return &ConfirmDialog{
		prompt: p,
		keys:   NewDialogKeyMap(p),
		help:   h,
		style:  resolveNotesStyle(format),
		notes:  make(map[int][]string),
		answer: update.AnswerCancel,
		copyFn: clipboard.WriteAll,
	}
}

// Answer returns the chosen answer. It is AnswerCancel until the user picks.
func (m *ConfirmDialog) Answer() update.Answer {
	return m.answer
}

// Answered reports whether the user picked anything.
func (m *ConfirmDialog) Answered() bool {
	return m.answered
}

// Init implements tea.Model.
func (m *ConfirmDialog) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *ConfirmDialog) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Yes):
			return m.choose(update.AnswerYes)
		case key.Matches(msg, m.keys.No):
			return m.choose(update.AnswerNo)
		case key.Matches(msg, m.keys.Cancel):
			return m.choose(update.AnswerCancel)
		case key.Matches(msg, m.keys.Copy):
			m.copyDetails()
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}
	return m, nil
}

func (m *ConfirmDialog) choose(a update.Answer) (tea.Model, tea.Cmd) {
	m.answer = a
	m.answered = true
	return m, tea.Quit
}

func (m *ConfirmDialog) copyDetails() {
	text, what := m.prompt.DownloadURL, "download URL"
	if text == "" {
		text, what = m.prompt.Digest, "SHA-256 digest"
	}
	if text == "" {
		return
	}
	if err := m.copyFn(text); err != nil {
		m.status = "Clipboard unavailable: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("Copied %s to clipboard.", what)
}

// View implements tea.Model.
func (m *ConfirmDialog) View() string {
	if m.answered {
		return ""
	}
	return styleDialog.Render(strings.Join(m.renderLines(), "\n")) + "\n"
}

func (m *ConfirmDialog) innerWidth() int {
	w := defaultDialogWidth
	if m.width > 0 && m.width-6 < w {
		w = m.width - 6
	}
	return max(w, minDialogWidth)
}

func (m *ConfirmDialog) renderLines() []string {
	width := m.innerWidth()
	divider := styleDivider.Render(strings.Repeat("─", width))
	p := m.prompt

	title := p.Title
	if title == "" {
		title = "Update"
	}
	lines := []string{styleDialogTitle.Render(title), divider, ""}

	if p.Message != "" {
		lines = append(lines, strings.Split(wordwrap.String(p.Message, width), "\n")...)
		lines = append(lines, "")
	}

	valueWidth := width - styleField.GetWidth()
	if p.CurrentVersion != "" {
		lines = append(lines, fieldLine("Current", styleValue.Render(p.CurrentVersion)))
	}
	if p.NewVersion != "" {
		lines = append(lines, fieldLine("New", styleVersion.Render(p.NewVersion)))
	}
	if p.DownloadURL != "" {
		lines = append(lines, fieldLine("Source", styleValue.Render(truncateMiddle(p.DownloadURL, valueWidth))))
	}
	if p.Kind != update.PromptRestore {
		if p.Digest != "" {
			lines = append(lines, fieldLine("SHA-256", styleValue.Render(truncateMiddle(p.Digest, valueWidth))))
		} else {
			lines = append(lines, fieldLine("SHA-256", styleWarning.Render("not provided, download cannot be verified")))
		}
	}
	if p.Path != "" {
		lines = append(lines, fieldLine("File", styleValue.Render(truncateMiddle(p.Path, valueWidth))))
	}

	if notes := strings.TrimSpace(p.Notes); notes != "" {
		lines = append(lines, "", styleField.Render("Notes"))
		lines = append(lines, m.renderNotes(notes, width)...)
	}

	lines = append(lines, "", divider, m.renderFooter(width))
	if m.status != "" {
		lines = append(lines, styleMuted.Render(m.status))
	}
	if m.help.ShowAll {
		m.help.Width = width
		lines = append(lines, "", m.help.View(m.keys))
	}
	return lines
}

// renderNotes caches rendered notes per width; glamour is too slow to run
// on every frame.
func (m *ConfirmDialog) renderNotes(notes string, width int) []string {
	if cached, ok := m.notes[width]; ok {
		return cached
	}
	rendered := strings.Split(buildMarkdownRenderer(m.style, width)(notes), "\n")
	if len(rendered) > maxNoteLines {
		rendered = append(rendered[:maxNoteLines], styleMuted.Render(ellipsis))
	}
	for i, l := range rendered {
		rendered[i] = truncateEnd(l, width)
	}
	m.notes[width] = rendered
	return rendered
}

func fieldLine(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, styleField.Render(label), value)
}

func (m *ConfirmDialog) renderFooter(width int) string {
	var hints []footerHint
	for _, b := range []key.Binding{m.keys.Yes, m.keys.No, m.keys.Cancel, m.keys.Help} {
		if !b.Enabled() {
			continue
		}
		hints = append(hints, footerHint{key: b.Help().Key, desc: b.Help().Desc})
	}
	return footerLine(hints, width)
}
