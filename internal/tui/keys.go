package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	NextFile   key.Binding
	PrevFile   key.Binding
	NextHunk   key.Binding
	PrevHunk   key.Binding
	Toggle     key.Binding
	Search     key.Binding
	Explain    key.Binding
	ExplainAll key.Binding
	Panel      key.Binding
	PanelDown  key.Binding
	PanelUp    key.Binding
	Copy       key.Binding
	Back       key.Binding
	Accept     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	NextFile: key.NewBinding(
		key.WithKeys("n", "tab"),
		key.WithHelp("n/tab", "next file"),
	),
	PrevFile: key.NewBinding(
		key.WithKeys("N", "shift+tab"),
		key.WithHelp("N/S-tab", "prev file"),
	),
	NextHunk: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("]", "next hunk"),
	),
	PrevHunk: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "prev hunk"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "unified/split"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter files"),
	),
	Explain: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "explain file"),
	),
	ExplainAll: key.NewBinding(
		key.WithKeys("E"),
		key.WithHelp("E", "explain whole diff"),
	),
	Panel: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "show/hide explanation"),
	),
	PanelDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "scroll explanation down"),
	),
	PanelUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "scroll explanation up"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy explanation"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel / close"),
	),
	Accept: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "apply filter"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// helpKeys lists the bindings shown on the help screen, in order.
func helpKeys() []key.Binding {
	return []key.Binding{
		keys.Up, keys.Down, keys.NextFile, keys.PrevFile, keys.NextHunk, keys.PrevHunk,
		keys.Toggle, keys.Search, keys.Explain, keys.ExplainAll, keys.Panel,
		keys.PanelDown, keys.PanelUp, keys.Copy, keys.Back, keys.Help, keys.Quit,
	}
}
