package tui

import (
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clive/experimenter/internal/csvstore"
)

const maxListedSuggestions = 6

// dirSuggestions lists the subdirectories completing value. Each suggestion
// keeps the typed prefix so the text input can match on it.
func dirSuggestions(value string) []string {
	sep := string(filepath.Separator)
	prefix := ""
	if i := strings.LastIndex(value, sep); i >= 0 {
		prefix = value[:i+1]
	}
	partial := strings.TrimPrefix(value, prefix)

	dir := prefix
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(expandHome(dir))
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, partial) {
			continue
		}
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(partial, ".") {
			continue
		}
		out = append(out, prefix+name+sep)
	}
	return out
}

// countTabFiles returns how many tab files dir holds, or -1 when it cannot
// be read.
func countTabFiles(dir string) int {
	names, err := csvstore.ScanDir(expandHome(dir), csvstore.Options{})
	if err != nil {
		return -1
	}
	return len(names)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// updateChooser handles keys while the directory chooser is shown.
func (m Model) updateChooser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEnter:
		dir := strings.TrimSpace(m.chooser.Value())
		if dir == "" {
			m.chooserErr = "enter a directory"
			return m, nil
		}
		m.openDir(dir)
		return m, nil

	case msg.Type == tea.KeyEsc:
		if m.ws.Set() == nil {
			return m, tea.Quit
		}
		m.chooserErr = ""
		m.chooser.Blur()
		m.viewMode = ViewModeMain
		return m, nil
	}

	var cmd tea.Cmd
	m.chooser, cmd = m.chooser.Update(msg)
	m.chooser.SetSuggestions(dirSuggestions(m.chooser.Value()))
	return m, cmd
}

// showChooser switches to the chooser, prefilled with the current directory.
func (m *Model) showChooser() tea.Cmd {
	value := ""
	if dir := m.ws.Dir(); dir != "" {
		value = dir + string(filepath.Separator)
	}
	m.chooser.SetValue(value)
	m.chooser.CursorEnd()
	m.chooser.SetSuggestions(dirSuggestions(value))
	m.chooserErr = ""
	m.viewMode = ViewModeChooser
	return m.chooser.Focus()
}

func (m Model) chooserView() string {
	title := DialogTitleStyle.Render("Choose experiments directory")

	var b strings.Builder
	b.WriteString(title + "\n\n")
	b.WriteString(InputStyle.Width(max(min(m.width-12, 72), 20)).Render(m.chooser.View()))
	b.WriteString("\n")

	value := m.chooser.Value()
	suggestions := dirSuggestions(value)
	for i, s := range suggestions {
		if i == maxListedSuggestions {
			b.WriteString(DimStyle.Render("  … " + itoa(len(suggestions)-i) + " more") + "\n")
			break
		}
		b.WriteString(DimStyle.Render("  "+s) + "\n")
	}

	if value != "" {
		switch n := countTabFiles(value); {
		case n > 0:
			b.WriteString(SuccessStyle.Render(itoa(n)+" tab file(s) here") + "\n")
		case n == 0:
			b.WriteString(WarningStyle.Render("no tab files here, a blank defaults tab will be created") + "\n")
		}
	}
	if m.chooserErr != "" {
		b.WriteString(ErrorStyle.Render(m.chooserErr) + "\n")
	}

	b.WriteString("\n" + DimStyle.Render("tab complete · enter open · esc back"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, DialogStyle.Render(b.String()))
}
