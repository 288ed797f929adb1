package tui

import "github.com/charmbracelet/bubbles/key"

// DashboardKeyMap holds the dashboard bindings.
type DashboardKeyMap struct {
	Refresh key.Binding
	Add     key.Binding
	Tab     key.Binding
	Up      key.Binding
	Down    key.Binding
	Clear   key.Binding
	Quit    key.Binding
}

// InputKeyMap holds the add-URL popup bindings.
type InputKeyMap struct {
	Submit    key.Binding
	AudioOnly key.Binding
	Cancel    key.Binding
}

var DashboardKeys = DashboardKeyMap{
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "pending/completed")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear completed")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var InputKeys = InputKeyMap{
	Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "queue")),
	AudioOnly: key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "toggle audio only")),
	Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}

func (k DashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Add, k.Tab, k.Clear, k.Quit}
}

func (k DashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Add, k.Clear}, {k.Tab, k.Up, k.Down, k.Quit}}
}

func (k InputKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.AudioOnly, k.Cancel}
}

func (k InputKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
