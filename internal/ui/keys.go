package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"puzzlemania/internal/update"
)

// DialogKeyMap defines the confirmation dialog shortcuts. Help text follows
// the prompt's own labels.
type DialogKeyMap struct {
	Yes    key.Binding
	No     key.Binding
	Cancel key.Binding
	Copy   key.Binding
	Help   key.Binding
}

// NewDialogKeyMap returns the bindings for p. No is disabled unless the
// prompt offers a second choice.
func NewDialogKeyMap(p update.Prompt) DialogKeyMap {
	yes, no, cancel := labelsFor(p)
	km := DialogKeyMap{
		Yes: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", yes),
		),
		No: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", no),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c", "esc", "q", "ctrl+c"),
			key.WithHelp("esc", cancel),
		),
		Copy: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Copy URL"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "More"),
		),
	}
	km.No.SetEnabled(p.AllowNo)
	km.Copy.SetEnabled(p.DownloadURL != "" || p.Digest != "")
	return km
}

// ShortHelp implements help.KeyMap.
func (k DialogKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Yes, k.No, k.Cancel, k.Help}
}

// FullHelp implements help.KeyMap.
func (k DialogKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Yes, k.No, k.Cancel},
		{k.Copy, k.Help},
	}
}

func labelsFor(p update.Prompt) (yes, no, cancel string) {
	yes, no, cancel = p.YesLabel, p.NoLabel, p.CancelLabel
	if yes == "" {
		yes = "Yes"
	}
	if no == "" {
		no = "No"
	}
	if cancel == "" {
		cancel = "Cancel"
	}
	return yes, no, cancel
}
