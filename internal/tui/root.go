package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/clive/experimenter/internal/csvstore"
	"github.com/clive/experimenter/internal/experiment"
	"github.com/clive/experimenter/internal/runner"
	"github.com/clive/experimenter/internal/runs"
	"github.com/clive/experimenter/internal/workspace"
)

// ViewMode represents the current view state
type ViewMode int

const (
	ViewModeChooser ViewMode = iota
	ViewModeMain
	ViewModeVisible
	ViewModeHelp
	ViewModeRunOutput
)

type inputMode int

const (
	inputNone inputMode = iota
	inputCell
	inputRename
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusWarning
	statusError
)

// runFinishedMsg is sent when a run started from the UI completes
type runFinishedMsg struct {
	runs []*runs.Run
	err  error
}

type visibleItem struct {
	name    string
	checked bool
	locked  bool // the defaults tab is always shown
}

// Options configures the root model.
type Options struct {
	Workspace *workspace.Workspace
	Dir       string        // opened right away when set
	Debug     bool          // show the debug panel
	LogLines  <-chan string // formatted log records for the debug panel
	Logger    *slog.Logger
}

// Model is the main application model
type Model struct {
	width  int
	height int
	ready  bool

	ws  *workspace.Workspace
	log *slog.Logger

	viewMode ViewMode

	// Grid cursor. The tab is the set's selected tab.
	row int
	col int

	// Cell and rename editing
	input     textinput.Model
	inputMode inputMode
	editTab   int
	editRow   int
	editCol   experiment.Column

	// Directory chooser
	chooser    textinput.Model
	chooserErr string

	// Visible experiments menu
	visible       []visibleItem
	visibleCursor int

	status     string
	statusKind statusKind
	quitArmed  bool

	// Runs
	running    bool
	cancelRun  context.CancelFunc
	runLabel   string
	lastRuns   []*runs.Run
	lastRunErr error
	output     viewport.Model
	spinner    spinner.Model

	help     help.Model
	keys     KeyMap
	debug    DebugPanel
	logLines <-chan string
}

// NewRootModel creates the root model. With opts.Dir set the directory is
// opened immediately, otherwise the directory chooser is shown first.
func NewRootModel(opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ws := opts.Workspace
	if ws == nil {
		ws = workspace.New(workspace.Options{Logger: log})
	}

	chooser := textinput.New()
	chooser.Placeholder = "path/to/experiments"
	chooser.Prompt = InputPromptStyle.Render("› ")
	chooser.ShowSuggestions = true

	input := textinput.New()
	input.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StatusRunningStyle

	m := Model{
		ws:       ws,
		log:      log,
		viewMode: ViewModeChooser,
		chooser:  chooser,
		input:    input,
		output:   viewport.New(80, 20),
		spinner:  sp,
		help:     help.New(),
		keys:     DefaultKeyMap(),
		debug:    NewDebugPanel(opts.Debug),
		logLines: opts.LogLines,
	}

	if opts.Dir != "" {
		m.openDir(opts.Dir)
	}
	if m.viewMode == ViewModeChooser {
		m.chooser.SetValue(opts.Dir)
		m.chooser.CursorEnd()
		m.chooser.SetSuggestions(dirSuggestions(opts.Dir))
		m.chooser.Focus()
	}
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if cmd := waitForLogLine(m.logLines); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.output.Width = max(msg.Width-4, 10)
		m.output.Height = max(msg.Height-6, 3)
		return m, nil

	case logLineMsg:
		m.debug.AddLine(msg.line)
		return m, waitForLogLine(m.logLines)

	case logClosedMsg:
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case runFinishedMsg:
		m.finishRun(msg)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Interrupt) {
			if m.cancelRun != nil {
				m.cancelRun()
			}
			return m, tea.Quit
		}

		switch m.viewMode {
		case ViewModeChooser:
			return m.updateChooser(msg)
		case ViewModeVisible:
			return m.updateVisible(msg)
		case ViewModeHelp:
			if key.Matches(msg, m.keys.Help, m.keys.Escape, m.keys.Quit) {
				m.viewMode = ViewModeMain
			}
			return m, nil
		case ViewModeRunOutput:
			return m.updateRunOutput(msg)
		}

		if m.inputMode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateMain(msg)
	}

	// Cursor blinks and other input internals
	var cmd tea.Cmd
	switch {
	case m.viewMode == ViewModeChooser:
		m.chooser, cmd = m.chooser.Update(msg)
	case m.inputMode != inputNone:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// updateMain handles keys on the grid.
func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	set := m.ws.Set()
	tab := set.Selected()

	if !key.Matches(msg, m.keys.Quit) {
		m.quitArmed = false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if set.Dirty() && !m.quitArmed {
			m.quitArmed = true
			m.setStatus(statusWarning, "Unsaved changes. Press q again to quit, S to save all")
			return m, nil
		}
		if m.cancelRun != nil {
			m.cancelRun()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.viewMode = ViewModeHelp

	case key.Matches(msg, m.keys.Up):
		m.row--
		m.clampCursor()

	case key.Matches(msg, m.keys.Down):
		m.row++
		m.clampCursor()

	case key.Matches(msg, m.keys.Left):
		m.col--
		m.clampCursor()

	case key.Matches(msg, m.keys.Right):
		m.col++
		m.clampCursor()

	case key.Matches(msg, m.keys.NextTab):
		set.Select((tab + 1) % set.Len())
		m.clampCursor()

	case key.Matches(msg, m.keys.PrevTab):
		set.Select((tab - 1 + set.Len()) % set.Len())
		m.clampCursor()

	case key.Matches(msg, m.keys.Edit):
		return m.startCellEdit()

	case key.Matches(msg, m.keys.AddRow):
		if err := set.AddRow(tab); err != nil {
			m.setError(err)
			break
		}
		t, _ := set.Tab(tab)
		m.row = len(t.Rows) - 1
		m.col = int(experiment.ColumnParam)
		m.setStatus(statusInfo, "Added row to "+t.Name)

	case key.Matches(msg, m.keys.RemoveRow):
		if err := set.RemoveRow(tab, m.row); err != nil {
			m.setError(err)
			break
		}
		m.clampCursor()
		m.setStatus(statusInfo, "Removed row")

	case key.Matches(msg, m.keys.NewTab):
		idx := set.AddTab()
		set.Select(idx)
		m.row, m.col = 0, 0
		m.setStatus(statusInfo, "Added tab "+m.tabName(idx))

	case key.Matches(msg, m.keys.DeleteTab):
		name := m.tabName(tab)
		if err := set.DeleteTab(tab); err != nil {
			m.setError(err)
			break
		}
		m.clampCursor()
		m.setStatus(statusInfo, "Deleted tab "+name+". Its file stays until pruned")

	case key.Matches(msg, m.keys.Rename):
		if tab == 0 {
			m.setStatus(statusWarning, "The defaults tab cannot be renamed")
			break
		}
		return m.startInput(inputRename, tab, 0, 0, m.tabName(tab), nil)

	case key.Matches(msg, m.keys.Save):
		if err := m.ws.SaveTab(tab); err != nil {
			m.setError(err)
			break
		}
		m.setStatus(statusSuccess, "Saved "+m.tabName(tab))

	case key.Matches(msg, m.keys.SaveAll):
		if err := m.ws.SaveAll(); err != nil {
			var saveErr *csvstore.SaveAllError
			if errors.As(err, &saveErr) {
				m.setStatus(statusError, "Could not save: "+strings.Join(saveErr.FailedTabs(), ", "))
				m.log.Error("save all failed", "error", err)
				break
			}
			m.setError(err)
			break
		}
		m.setStatus(statusSuccess, fmt.Sprintf("Saved %d tab(s)", set.Len()))

	case key.Matches(msg, m.keys.Reload):
		if m.busy() {
			break
		}
		if _, err := m.ws.Reload(); err != nil {
			m.setError(err)
			break
		}
		m.clampCursor()
		m.setStatus(statusInfo, "Reloaded "+m.ws.Dir())

	case key.Matches(msg, m.keys.Visible):
		if m.busy() || m.unsaved() {
			break
		}
		m.openVisibleMenu()

	case key.Matches(msg, m.keys.OpenDir):
		if m.busy() || m.unsaved() {
			break
		}
		cmd := m.showChooser()
		return m, cmd

	case key.Matches(msg, m.keys.Run):
		return m.startRun(false)

	case key.Matches(msg, m.keys.RunAll):
		return m.startRun(true)

	case key.Matches(msg, m.keys.Output):
		if !m.running && m.lastRuns == nil && m.lastRunErr == nil {
			m.setStatus(statusInfo, "No runs yet")
			break
		}
		m.viewMode = ViewModeRunOutput

	case key.Matches(msg, m.keys.Cancel):
		if m.running && m.cancelRun != nil {
			m.cancelRun()
			m.setStatus(statusWarning, "Cancelling run...")
		}
	}

	return m, nil
}

// startCellEdit opens the input on the cell under the cursor.
func (m Model) startCellEdit() (tea.Model, tea.Cmd) {
	set := m.ws.Set()
	tab := set.Selected()
	t, _ := set.Tab(tab)
	if len(t.Rows) == 0 {
		m.setStatus(statusWarning, "No rows. Press a to add one")
		return m, nil
	}

	col := experiment.Column(m.col)
	choice := t.Kind == experiment.KindParamChoice
	if choice && col == experiment.ColumnComment {
		m.setStatus(statusWarning, "Comments of "+t.Name+" come from the defaults tab")
		return m, nil
	}

	var suggestions []string
	if choice && col == experiment.ColumnParam {
		suggestions = uniqueParams(set.AvailableParamChoices())
	}
	return m.startInput(inputCell, tab, m.row, col, t.Rows[m.row].Get(col), suggestions)
}

func (m Model) startInput(mode inputMode, tab, row int, col experiment.Column, value string, suggestions []string) (tea.Model, tea.Cmd) {
	m.inputMode = mode
	m.editTab, m.editRow, m.editCol = tab, row, col

	m.input.ShowSuggestions = suggestions != nil
	m.input.SetSuggestions(suggestions)
	m.input.SetValue(value)
	m.input.CursorEnd()
	if mode == inputRename {
		m.input.Placeholder = "tab name"
	} else {
		m.input.Placeholder = col.String()
	}
	cmd := m.input.Focus()
	return m, cmd
}

// updateInput handles keys while a cell or tab name is being edited.
func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.stopInput()
		m.setStatus(statusInfo, "Edit cancelled")
		return m, nil
	case key.Matches(msg, m.keys.Edit):
		return m.commitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// commitInput applies the input to the model. A rejected value keeps the
// input open so it can be corrected.
func (m Model) commitInput() (tea.Model, tea.Cmd) {
	set := m.ws.Set()
	value := m.input.Value()

	switch m.inputMode {
	case inputCell:
		if m.input.ShowSuggestions && value != "" && !slices.Contains(m.input.AvailableSuggestions(), value) {
			if s := m.input.CurrentSuggestion(); strings.HasPrefix(s, value) {
				value = s
			}
		}
		if err := set.SetCell(m.editTab, m.editRow, m.editCol, value); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus(statusInfo, fmt.Sprintf("Set %s row %d %s", m.tabName(m.editTab), m.editRow+1, m.editCol))

	case inputRename:
		old := m.tabName(m.editTab)
		if err := set.RenameTab(m.editTab, value); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus(statusInfo, "Renamed "+old+" to "+m.tabName(m.editTab))
	}

	m.stopInput()
	return m, nil
}

func (m *Model) stopInput() {
	m.inputMode = inputNone
	m.input.Blur()
	m.input.SetValue("")
	m.input.SetSuggestions(nil)
	m.input.ShowSuggestions = false
}

// openDir opens dir in the workspace, falling back to the chooser on error.
func (m *Model) openDir(dir string) {
	res, err := m.ws.Open(expandHome(dir))
	if err != nil {
		m.chooserErr = err.Error()
		m.viewMode = ViewModeChooser
		return
	}

	m.chooserErr = ""
	m.chooser.Blur()
	m.viewMode = ViewModeMain
	m.row, m.col = 0, 0
	m.clampCursor()

	if len(res.Skipped) > 0 {
		names := make([]string, len(res.Skipped))
		for i, s := range res.Skipped {
			names[i] = s.Name
		}
		m.setStatus(statusWarning, "Skipped unreadable tab(s): "+strings.Join(names, ", "))
		return
	}
	m.setStatus(statusInfo, fmt.Sprintf("Opened %d of %d tab(s) from %s", res.Set.Len(), len(res.Available), m.ws.Dir()))
}

func (m *Model) openVisibleMenu() {
	open := m.ws.Set().TabNames()
	m.visible = nil
	for _, name := range m.ws.Available() {
		locked := name == experiment.DefaultsTabName
		m.visible = append(m.visible, visibleItem{
			name:    name,
			checked: locked || slices.Contains(open, name),
			locked:  locked,
		})
	}
	m.visibleCursor = 0
	m.viewMode = ViewModeVisible
}

// updateVisible handles keys in the visible experiments menu.
func (m Model) updateVisible(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape, m.keys.Quit):
		m.viewMode = ViewModeMain

	case key.Matches(msg, m.keys.Up):
		if m.visibleCursor > 0 {
			m.visibleCursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.visibleCursor < len(m.visible)-1 {
			m.visibleCursor++
		}

	case key.Matches(msg, m.keys.Toggle):
		if m.visibleCursor < len(m.visible) && !m.visible[m.visibleCursor].locked {
			m.visible[m.visibleCursor].checked = !m.visible[m.visibleCursor].checked
		}

	case key.Matches(msg, m.keys.Edit):
		var names []string
		for _, item := range m.visible {
			if item.checked && !item.locked {
				names = append(names, item.name)
			}
		}
		if _, err := m.ws.OpenNames(names); err != nil {
			m.setError(err)
			m.viewMode = ViewModeMain
			return m, nil
		}
		m.row, m.col = 0, 0
		m.clampCursor()
		m.viewMode = ViewModeMain
		m.setStatus(statusInfo, fmt.Sprintf("Showing %d tab(s)", m.ws.Set().Len()))
	}
	return m, nil
}

// startRun resolves the requests on the UI loop and executes them in a
// command.
func (m Model) startRun(all bool) (tea.Model, tea.Cmd) {
	if m.running {
		m.setStatus(statusWarning, "A run is already in progress")
		return m, nil
	}

	var reqs []runner.Request
	if all {
		var err error
		if reqs, err = m.ws.PrepareAll(); err != nil {
			m.setError(err)
			return m, nil
		}
		m.runLabel = "all tabs"
	} else {
		tab := m.ws.Set().Selected()
		req, err := m.ws.Prepare(tab)
		if err != nil {
			m.setError(err)
			return m, nil
		}
		reqs = []runner.Request{req}
		m.runLabel = req.Tab
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancelRun = cancel
	m.lastRuns = nil
	m.lastRunErr = nil
	m.output.SetContent(DimStyle.Render("Waiting for output..."))
	m.viewMode = ViewModeRunOutput
	m.setStatus(statusInfo, "Running "+m.runLabel)
	m.log.Info("starting run", "target", m.runLabel, "tabs", len(reqs))

	return m, tea.Batch(m.runCmd(ctx, reqs), m.spinner.Tick)
}

func (m Model) runCmd(ctx context.Context, reqs []runner.Request) tea.Cmd {
	ws := m.ws
	return func() tea.Msg {
		done, err := ws.ExecuteAll(ctx, reqs)
		return runFinishedMsg{runs: done, err: err}
	}
}

func (m *Model) finishRun(msg runFinishedMsg) {
	m.running = false
	if m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
	}
	m.lastRuns = msg.runs
	m.lastRunErr = msg.err
	m.output.SetContent(renderRuns(msg.runs, msg.err))
	m.output.GotoBottom()

	failed := 0
	for _, r := range msg.runs {
		if r.ExitCode != 0 || r.Error != "" {
			failed++
		}
	}
	switch {
	case errors.Is(msg.err, runner.ErrNotConfigured):
		m.setStatus(statusError, "No run command configured (run.command)")
	case len(msg.runs) == 0 && msg.err != nil:
		m.setError(msg.err)
	case failed > 0 || msg.err != nil:
		m.setStatus(statusError, fmt.Sprintf("%s: %d run(s), %d failed", m.runLabel, len(msg.runs), failed))
	default:
		m.setStatus(statusSuccess, fmt.Sprintf("%s: %d run(s) finished", m.runLabel, len(msg.runs)))
	}
}

// updateRunOutput handles keys in the run output view.
func (m Model) updateRunOutput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape, m.keys.Quit, m.keys.Output):
		m.viewMode = ViewModeMain
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		if m.running && m.cancelRun != nil {
			m.cancelRun()
			m.setStatus(statusWarning, "Cancelling run...")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.output, cmd = m.output.Update(msg)
	return m, cmd
}

// busy reports a run in progress, which pins the workspace directory.
func (m *Model) busy() bool {
	if m.running {
		m.setStatus(statusWarning, "Wait for the run to finish or cancel it with c")
	}
	return m.running
}

func (m *Model) unsaved() bool {
	dirty := m.ws.Set().Dirty()
	if dirty {
		m.setStatus(statusWarning, "Unsaved changes. Save all (S) or reload (ctrl+r) first")
	}
	return dirty
}

// clampCursor keeps the cursor on an existing cell of the selected tab.
func (m *Model) clampCursor() {
	t, _ := m.ws.Set().Tab(m.ws.Set().Selected())
	m.row = min(max(m.row, 0), max(len(t.Rows)-1, 0))
	m.col = min(max(m.col, 0), int(experiment.ColumnComment))
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
}

func (m *Model) setError(err error) {
	m.setStatus(statusError, err.Error())
	m.log.Debug("action failed", "error", err)
}

func (m Model) tabName(index int) string {
	t, _ := m.ws.Set().Tab(index)
	return t.Name
}

// uniqueParams drops blanks and repeats, keeping first occurrences.
func uniqueParams(params []string) []string {
	out := []string{}
	for _, p := range params {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}
