package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/cloudsync/internal/core"
)

// ViewKeyMap defines the key bindings of the observer view.
type ViewKeyMap struct {
	Left       key.Binding
	Right      key.Binding
	Up         key.Binding
	Down       key.Binding
	Recenter   key.Binding
	Screenshot key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k ViewKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Up, k.Down, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k ViewKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Recenter, k.Screenshot},
		{k.Help, k.Quit},
	}
}

// DefaultViewKeyMap returns default key bindings.
func DefaultViewKeyMap() ViewKeyMap {
	return ViewKeyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "a", "h"),
			key.WithHelp("←/a", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "d", "l"),
			key.WithHelp("→/d", "right"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "w", "k"),
			key.WithHelp("↑/w", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "s", "j"),
			key.WithHelp("↓/s", "down"),
		),
		Recenter: key.NewBinding(
			key.WithKeys("c", "home"),
			key.WithHelp("c", "back to origin"),
		),
		Screenshot: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "screenshot"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// AnchorDelta maps a movement key to a unit step. ok is false for keys that
// do not move the anchor.
func (k ViewKeyMap) AnchorDelta(msg tea.KeyMsg) (d core.Vec2, ok bool) {
	switch {
	case key.Matches(msg, k.Left):
		return core.V(-1, 0), true
	case key.Matches(msg, k.Right):
		return core.V(1, 0), true
	case key.Matches(msg, k.Up):
		return core.V(0, 1), true
	case key.Matches(msg, k.Down):
		return core.V(0, -1), true
	}
	return core.Vec2{}, false
}
