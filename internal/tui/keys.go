package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Enter  key.Binding
	Space  key.Binding
	Escape key.Binding
	Add    key.Binding
	Filter key.Binding
	Next   key.Binding
	Prev   key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up"), key.WithHelp("↑/↓", "row")),
		Down:   key.NewBinding(key.WithKeys("down")),
		Left:   key.NewBinding(key.WithKeys("left"), key.WithHelp("←/→", "column")),
		Right:  key.NewBinding(key.WithKeys("right")),
		Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "edit/commit")),
		Space:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "next unit")),
		Escape: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add item")),
		Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Next:   key.NewBinding(key.WithKeys("tab")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Left, k.Enter, k.Space, k.Escape, k.Add, k.Filter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
