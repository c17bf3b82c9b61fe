package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/clive/experimenter/internal/experiment"
	"github.com/clive/experimenter/internal/runs"
)

const (
	debugPanelHeight = 10
	minColumnWidth   = 8
	maxKeyWidth      = 32
)

// View implements tea.Model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	switch m.viewMode {
	case ViewModeChooser:
		return m.chooserView()
	case ViewModeVisible:
		return m.visibleView()
	case ViewModeHelp:
		return m.helpView()
	case ViewModeRunOutput:
		return m.runOutputView()
	}
	return m.mainView()
}

func (m Model) mainView() string {
	set := m.ws.Set()
	tab, _ := set.Tab(set.Selected())

	header := m.renderHeader()
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()

	debugHeight := 0
	if m.debug.IsEnabled() {
		debugHeight = debugPanelHeight
	}

	// header, tab bar, status bar, grid border and column header
	gridRows := max(m.height-lipgloss.Height(header)-lipgloss.Height(tabBar)-lipgloss.Height(statusBar)-debugHeight-3, 1)

	parts := []string{header, tabBar, m.renderGrid(tab, gridRows)}
	if m.debug.IsEnabled() {
		parts = append(parts, m.debug.Render(m.width-2, debugHeight-2))
	}
	parts = append(parts, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := HeaderStyle.Render("EXPERIMENTER")
	dir := HeaderDirStyle.Render(" " + truncate(m.ws.Dir(), max(m.width-16, 10)))
	return title + dir
}

func (m Model) renderTabBar() string {
	set := m.ws.Set()
	var tabs []string
	for i, t := range set.Tabs() {
		label := t.Name
		if t.Dirty {
			label += DirtyMarkStyle.Render("*")
		}
		style := TabStyle
		switch {
		case i == set.Selected():
			style = ActiveTabStyle
		case i == 0:
			style = DefaultsTabStyle
		}
		tabs = append(tabs, style.Render(label))
	}
	bar := strings.Join(tabs, DimStyle.Render("│"))
	return lipgloss.NewStyle().MaxWidth(m.width).Render(bar)
}

// renderGrid draws the rows of t that fit in height lines, scrolled so the
// cursor row is visible.
func (m Model) renderGrid(t experiment.Tab, height int) string {
	widths := columnWidths(t.Rows, m.width-6)

	header := make([]string, len(experiment.Header))
	for c, name := range experiment.Header {
		header[c] = ColumnHeaderStyle.Width(widths[c]).Render(name)
	}
	lines := []string{strings.Join(header, " ")}

	if len(t.Rows) == 0 {
		lines = append(lines, DimStyle.Render("No rows. Press a to add one."))
	}

	start, end := visibleRange(len(t.Rows), m.row, height)
	for i := start; i < end; i++ {
		cells := make([]string, len(widths))
		for c := range cells {
			col := experiment.Column(c)
			w := widths[c]

			if m.inputMode == inputCell && i == m.editRow && col == m.editCol {
				cells[c] = EditCellStyle.Width(w).MaxWidth(w).Render(m.input.View())
				continue
			}

			style := CellStyle
			switch {
			case i == m.row && c == m.col:
				style = CursorCellStyle
			case t.Kind == experiment.KindParamChoice && col == experiment.ColumnComment:
				style = DerivedCellStyle
			case i == m.row:
				style = CursorRowStyle
			}
			cells[c] = style.Width(w).Render(truncate(t.Rows[i].Get(col), w))
		}
		lines = append(lines, strings.Join(cells, " "))
	}

	if m.inputMode == inputRename {
		lines = append(lines, "", InputPromptStyle.Render("rename "+t.Name+": ")+m.input.View())
	}

	return GridStyle.Width(max(m.width-2, 20)).Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar() string {
	var left string
	if m.running {
		left = m.spinner.View() + " " + StatusRunningStyle.Render("running "+m.runLabel) + "  "
	}

	switch m.statusKind {
	case statusSuccess:
		left += SuccessStyle.Render(m.status)
	case statusWarning:
		left += WarningStyle.Render(m.status)
	case statusError:
		left += ErrorStyle.Render(m.status)
	default:
		left += m.status
	}

	set := m.ws.Set()
	tab, _ := set.Tab(set.Selected())
	pos := DimStyle.Render(fmt.Sprintf("row %d/%d  %s", min(m.row+1, len(tab.Rows)), len(tab.Rows), experiment.Column(m.col)))
	right := m.help.View(m.keys)

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(pos)-lipgloss.Width(right)-6, 1)
	return StatusBarStyle.Render(left + strings.Repeat(" ", gap) + pos + "  " + right)
}

func (m Model) visibleView() string {
	var b strings.Builder
	b.WriteString(DialogTitleStyle.Render("Visible experiments") + "\n\n")

	if len(m.visible) == 0 {
		b.WriteString(DimStyle.Render("No tab files in this directory") + "\n")
	}
	for i, item := range m.visible {
		check := "[ ]"
		if item.checked {
			check = "[x]"
		}
		line := check + " " + item.name
		if item.locked {
			line += DimStyle.Render(" (always shown)")
		}
		if i == m.visibleCursor {
			b.WriteString(SelectedItemStyle.Render("› "+line) + "\n")
		} else {
			b.WriteString(ItemStyle.Render("  "+line) + "\n")
		}
	}

	b.WriteString("\n" + DimStyle.Render("space toggle · enter apply · esc cancel"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, DialogStyle.Render(b.String()))
}

func (m Model) helpView() string {
	h := m.help
	h.ShowAll = true

	content := DialogTitleStyle.Render("Keyboard Shortcuts") + "\n\n" +
		h.View(m.keys) + "\n\n" +
		DimStyle.Render("Experiment tabs take params from the defaults tab; their comments follow it.") + "\n" +
		DimStyle.Render("Press ? or Esc to close")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, DialogStyle.Render(content))
}

func (m Model) runOutputView() string {
	title := OutputHeaderStyle.Render("Run output: " + m.runLabel)
	if m.running {
		title += "  " + m.spinner.View() + StatusRunningStyle.Render(" running")
	}

	body := OutputStyle.Width(max(m.width-2, 20)).Render(m.output.View())
	footer := DimStyle.Render(fmt.Sprintf("↑/↓ scroll · c cancel · esc back  %3.f%%", m.output.ScrollPercent()*100))

	return lipgloss.JoinVertical(lipgloss.Left, title, body, footer)
}

// renderRuns formats finished runs for the output viewport.
func renderRuns(done []*runs.Run, err error) string {
	var b strings.Builder
	for _, r := range done {
		status := SuccessStyle.Render("exit 0")
		if r.ExitCode != 0 || r.Error != "" {
			status = ErrorStyle.Render("exit " + itoa(r.ExitCode))
		}
		b.WriteString(OutputHeaderStyle.Render("── "+r.Tab) + "  " + status + DimStyle.Render("  "+r.Duration().String()) + "\n")
		for _, line := range r.Output {
			b.WriteString(line + "\n")
		}
		if r.Error != "" {
			b.WriteString(ErrorStyle.Render("error: "+r.Error) + "\n")
		}
		b.WriteString("\n")
	}
	if err != nil {
		b.WriteString(ErrorStyle.Render(err.Error()) + "\n")
	}
	if len(done) == 0 && err == nil {
		b.WriteString(DimStyle.Render("Nothing ran") + "\n")
	}
	return b.String()
}

// columnWidths sizes Param and Value to their content and gives the rest of
// total to Comment.
func columnWidths(rows []experiment.ParameterRow, total int) []int {
	param, value := len(experiment.Header[0]), len(experiment.Header[1])
	for _, r := range rows {
		param = max(param, lipgloss.Width(r.Param))
		value = max(value, lipgloss.Width(r.Value))
	}
	param = min(max(param+1, minColumnWidth), maxKeyWidth)
	value = min(max(value+1, minColumnWidth), maxKeyWidth)
	comment := max(total-param-value-2, minColumnWidth)
	return []int{param, value, comment}
}

// visibleRange returns the [start, end) window of n rows that holds cursor
// and fits in height.
func visibleRange(n, cursor, height int) (int, int) {
	if n <= height {
		return 0, n
	}
	start := max(cursor-height+1, 0)
	return start, min(start+height, n)
}
