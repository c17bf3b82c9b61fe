package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the application
type KeyMap struct {
	// Navigation
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	NextTab key.Binding
	PrevTab key.Binding

	// Editing
	Edit      key.Binding
	AddRow    key.Binding
	RemoveRow key.Binding
	NewTab    key.Binding
	DeleteTab key.Binding
	Rename    key.Binding

	// Files
	Save    key.Binding
	SaveAll key.Binding
	Reload  key.Binding
	Visible key.Binding
	OpenDir key.Binding

	// Runs
	Run    key.Binding
	RunAll key.Binding
	Output key.Binding
	Cancel key.Binding

	// General
	Toggle    key.Binding
	Escape    key.Binding
	Help      key.Binding
	Quit      key.Binding
	Interrupt key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev tab"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "edit cell"),
		),
		AddRow: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add row"),
		),
		RemoveRow: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "remove row"),
		),
		NewTab: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new tab"),
		),
		DeleteTab: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "delete tab"),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rename tab"),
		),
		Save: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save tab"),
		),
		SaveAll: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "save all"),
		),
		Reload: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reload"),
		),
		Visible: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "visible experiments"),
		),
		OpenDir: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open directory"),
		),
		Run: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "run tab"),
		),
		RunAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "run all"),
		),
		Output: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "last run output"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel run"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "toggle"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.AddRow, k.NewTab, k.Save, k.Run, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.NextTab, k.PrevTab},
		{k.Edit, k.AddRow, k.RemoveRow, k.NewTab, k.DeleteTab, k.Rename},
		{k.Save, k.SaveAll, k.Reload, k.Visible, k.OpenDir},
		{k.Run, k.RunAll, k.Output, k.Cancel, k.Help, k.Quit, k.Interrupt},
	}
}
