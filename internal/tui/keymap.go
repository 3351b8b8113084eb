package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the record flow.
type KeyMap struct {
	Pause  key.Binding
	Finish key.Binding
	Cancel key.Binding
}

// DefaultKeyMap returns the default key bindings for the record flow.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause/resume"),
		),
		Finish: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "save note"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "discard"),
		),
	}
}

// ShortHelp returns the short help bindings for the record flow.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Finish, k.Cancel}
}

// FullHelp returns the full help bindings for the record flow.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Finish, k.Cancel},
	}
}
