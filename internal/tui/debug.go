package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DebugPanel shows the most recent log lines of the session
type DebugPanel struct {
	enabled bool
	lines   []string
	buffer  int // max lines kept
}

// NewDebugPanel creates a new debug panel
func NewDebugPanel(enabled bool) DebugPanel {
	return DebugPanel{
		enabled: enabled,
		buffer:  100,
	}
}

// logLineMsg carries one formatted log record from the logger's line sink
type logLineMsg struct {
	line string
}

// logClosedMsg is sent once the line sink is closed
type logClosedMsg struct{}

// waitForLogLine blocks on the next log line. Update re-issues it after
// every line so the panel keeps draining the channel.
func waitForLogLine(lines <-chan string) tea.Cmd {
	if lines == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-lines
		if !ok {
			return logClosedMsg{}
		}
		return logLineMsg{line: line}
	}
}

// IsEnabled returns whether debug mode is enabled
func (d *DebugPanel) IsEnabled() bool {
	return d.enabled
}

// AddLine adds a new debug line with timestamp
func (d *DebugPanel) AddLine(line string) {
	if !d.enabled {
		return
	}
	line = strings.TrimRight(line, "\n")
	d.lines = append(d.lines, time.Now().Format("15:04:05.000")+" "+line)
	if len(d.lines) > d.buffer {
		d.lines = d.lines[len(d.lines)-d.buffer:]
	}
}

// Lines returns the current debug lines
func (d *DebugPanel) Lines() []string {
	return d.lines
}

// Render draws the last lines that fit into a bordered box.
func (d *DebugPanel) Render(width, height int) string {
	if !d.enabled {
		return ""
	}

	title := lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true).
		Render("DEBUG")

	contentHeight := max(height-4, 1)
	maxLen := max(width-4, 10)

	start := max(len(d.lines)-contentHeight, 0)
	lines := make([]string, 0, contentHeight)
	for _, line := range d.lines[start:] {
		lines = append(lines, truncate(line, maxLen))
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorYellow).
		Padding(0, 1).
		Render(title + "\n" + strings.Join(lines, "\n"))
}
