package experiment

import (
	"slices"
	"strings"
)

// Set is the ordered collection of tabs being edited. Tab 0 is always the
// defaults tab: FreeText, with an immutable name. Every other tab is
// ParamChoice. A Set is not safe for concurrent use.
type Set struct {
	tabs     []Tab
	selected int
	retired  []string        // names deleted or renamed away since load
	reserved map[string]bool // names of tab files in the directory
}

// NewSet builds a set from loaded tabs, assigning kinds by position. With no
// tabs it synthesizes an empty defaults tab holding a single blank row.
func NewSet(tabs []Tab) *Set {
	s := &Set{}
	for i, t := range tabs {
		t = t.clone()
		t.Kind = KindForIndex(i)
		s.tabs = append(s.tabs, t)
	}
	if len(s.tabs) == 0 {
		s.AddTab()
	}
	return s
}

// Len returns the number of open tabs
func (s *Set) Len() int { return len(s.tabs) }

// Selected returns the index of the selected tab
func (s *Set) Selected() int { return s.selected }

// Select changes the selected tab, clamping to the valid range.
func (s *Set) Select(index int) {
	s.selected = clamp(index, 0, len(s.tabs)-1)
}

// Tab returns a copy of the tab at index.
func (s *Set) Tab(index int) (Tab, bool) {
	if index < 0 || index >= len(s.tabs) {
		return Tab{}, false
	}
	return s.tabs[index].clone(), true
}

// Tabs returns a copy of every tab in order.
func (s *Set) Tabs() []Tab {
	out := make([]Tab, len(s.tabs))
	for i, t := range s.tabs {
		out[i] = t.clone()
	}
	return out
}

// TabNames returns the tab names in order.
func (s *Set) TabNames() []string {
	names := make([]string, len(s.tabs))
	for i, t := range s.tabs {
		names[i] = t.Name
	}
	return names
}

// IndexOf returns the index of the tab called name, or -1.
func (s *Set) IndexOf(name string) int {
	for i, t := range s.tabs {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Reserve records the tab names found on disk. A new or renamed tab may not
// take one of them unless that tab is open or was retired this session.
func (s *Set) Reserve(names []string) {
	s.reserved = make(map[string]bool, len(names))
	for _, n := range names {
		s.reserved[n] = true
	}
}

// nameTaken reports whether name belongs to an open tab or to a file on disk
// that is not open.
func (s *Set) nameTaken(name string) bool {
	if s.IndexOf(name) >= 0 {
		return true
	}
	return s.reserved[name] && !slices.Contains(s.retired, name)
}

// Retired returns the names of tabs deleted or renamed away since the set was
// loaded, minus any name an open tab uses again. Their files are stale.
func (s *Set) Retired() []string {
	var names []string
	seen := make(map[string]bool)
	for _, n := range s.retired {
		if seen[n] || s.IndexOf(n) >= 0 {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	return names
}

// ClearRetired forgets retired names once their files are gone.
func (s *Set) ClearRetired() {
	s.retired = nil
}

// Dirty reports whether any tab has unsaved changes.
func (s *Set) Dirty() bool {
	for _, t := range s.tabs {
		if t.Dirty {
			return true
		}
	}
	return false
}

// MarkSaved clears the dirty flag of the tab at index.
func (s *Set) MarkSaved(index int) {
	if index >= 0 && index < len(s.tabs) {
		s.tabs[index].Dirty = false
	}
}

// AddTab appends a tab holding one blank row and returns its index. The name
// is "defaults" at index 0, otherwise exp%03d of the index, bumped past any
// name already taken.
func (s *Set) AddTab() int {
	index := len(s.tabs)
	name := DefaultTabName(index)
	for n := index; index > 0 && s.nameTaken(name); n++ {
		name = DefaultTabName(n + 1)
	}
	s.tabs = append(s.tabs, Tab{
		Name:  name,
		Kind:  KindForIndex(index),
		Rows:  []ParameterRow{{}},
		Dirty: true,
	})
	return index
}

// DeleteTab removes the tab at index from memory. Its file stays on disk
// until a pruning save-all.
func (s *Set) DeleteTab(index int) error {
	if index == 0 {
		return precondition("delete tab", "the defaults tab cannot be deleted")
	}
	if err := s.checkTab("delete tab", index); err != nil {
		return err
	}
	s.retired = append(s.retired, s.tabs[index].Name)
	s.tabs = append(s.tabs[:index], s.tabs[index+1:]...)
	if s.selected >= index {
		s.Select(s.selected - 1)
	}
	return nil
}

// RenameTab renames the tab at index. The defaults tab keeps its name.
func (s *Set) RenameTab(index int, name string) error {
	if index == 0 {
		return precondition("rename tab", "the defaults tab cannot be renamed")
	}
	if err := s.checkTab("rename tab", index); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if err := ValidateTabName(name); err != nil {
		return err
	}
	if name == s.tabs[index].Name {
		return nil
	}
	if s.nameTaken(name) {
		return precondition("rename tab", "a tab named %q already exists", name)
	}
	s.retired = append(s.retired, s.tabs[index].Name)
	s.tabs[index].Name = name
	s.tabs[index].Dirty = true
	return nil
}

// ValidateTabName rejects names that cannot be used as a tab file name or
// that would collide with the defaults tab.
func ValidateTabName(name string) error {
	switch {
	case name == "":
		return precondition("rename tab", "name must not be empty")
	case name == DefaultsTabName:
		return precondition("rename tab", "%q is reserved for the first tab", DefaultsTabName)
	case strings.ContainsAny(name, `/\;`):
		return precondition("rename tab", "name %q must not contain '/', '\\' or ';'", name)
	case strings.HasPrefix(name, "."):
		return precondition("rename tab", "name %q must not start with '.'", name)
	}
	return nil
}

// AddRow appends a blank row to the tab at index.
func (s *Set) AddRow(tab int) error {
	if err := s.checkTab("add row", tab); err != nil {
		return err
	}
	s.tabs[tab].Rows = append(s.tabs[tab].Rows, ParameterRow{})
	s.tabs[tab].Dirty = true
	return nil
}

// RemoveRow removes one row. A tab may end up with no rows.
func (s *Set) RemoveRow(tab, row int) error {
	if err := s.checkRow("remove row", tab, row); err != nil {
		return err
	}
	rows := s.tabs[tab].Rows
	s.tabs[tab].Rows = append(rows[:row:row], rows[row+1:]...)
	s.tabs[tab].Dirty = true
	if tab == 0 {
		s.RefreshDerivedComments()
	}
	return nil
}

// SetCell edits one cell. On ParamChoice tabs the param must be one of
// AvailableParamChoices (or empty) and the comment is derived from the
// defaults tab, never typed. Edits to the defaults tab re-derive comments
// everywhere else.
func (s *Set) SetCell(tab, row int, col Column, value string) error {
	if err := s.checkRow("edit cell", tab, row); err != nil {
		return err
	}
	r := &s.tabs[tab].Rows[row]
	choice := s.tabs[tab].Kind == KindParamChoice

	switch col {
	case ColumnParam:
		if choice {
			if value != "" && !s.isParamChoice(value) {
				return precondition("edit cell", "%q is not a param of the defaults tab", value)
			}
			r.Param = value
			r.Comment = s.ResolveParamChoice(value)
		} else {
			r.Param = value
		}
	case ColumnValue:
		r.Value = value
	case ColumnComment:
		if choice {
			return precondition("edit cell", "comments of %s are taken from the defaults tab", s.tabs[tab].Name)
		}
		r.Comment = value
	default:
		return precondition("edit cell", "unknown column %d", int(col))
	}
	s.tabs[tab].Dirty = true

	if tab == 0 && col != ColumnValue {
		s.RefreshDerivedComments()
	}
	return nil
}

// ReplaceRows swaps in a whole new row list for the tab at index. On
// ParamChoice tabs every non-empty param must be a defaults param and
// comments are re-derived.
func (s *Set) ReplaceRows(tab int, rows []ParameterRow) error {
	if err := s.checkTab("replace rows", tab); err != nil {
		return err
	}
	next := make([]ParameterRow, len(rows))
	copy(next, rows)
	if s.tabs[tab].Kind == KindParamChoice {
		for i := range next {
			if next[i].Param != "" && !s.isParamChoice(next[i].Param) {
				return precondition("replace rows", "row %d: %q is not a param of the defaults tab", i, next[i].Param)
			}
			next[i].Comment = s.ResolveParamChoice(next[i].Param)
		}
	}
	s.tabs[tab].Rows = next
	s.tabs[tab].Dirty = true
	if tab == 0 {
		s.RefreshDerivedComments()
	}
	return nil
}

// ResolveParamChoice returns the comment of the first defaults row whose
// param equals param, or "" when there is none.
func (s *Set) ResolveParamChoice(param string) string {
	if len(s.tabs) == 0 || param == "" {
		return ""
	}
	for _, r := range s.tabs[0].Rows {
		if r.Param == param {
			return r.Comment
		}
	}
	return ""
}

// AvailableParamChoices returns the params of the defaults tab in row order,
// duplicates and blanks included.
func (s *Set) AvailableParamChoices() []string {
	if len(s.tabs) == 0 {
		return nil
	}
	params := make([]string, len(s.tabs[0].Rows))
	for i, r := range s.tabs[0].Rows {
		params[i] = r.Param
	}
	return params
}

// RefreshDerivedComments re-derives the comment of every ParamChoice row that
// has a param. Only tabs whose comments actually change are marked dirty.
func (s *Set) RefreshDerivedComments() {
	for i := 1; i < len(s.tabs); i++ {
		for j := range s.tabs[i].Rows {
			r := &s.tabs[i].Rows[j]
			if r.Param == "" {
				continue
			}
			if c := s.ResolveParamChoice(r.Param); c != r.Comment {
				r.Comment = c
				s.tabs[i].Dirty = true
			}
		}
	}
}

// ParamValuePairs resolves the pairs an experiment runs with. The defaults
// tab yields its own non-empty rows. Any other tab starts from the defaults
// (first occurrence of each param wins), overrides values with its own rows,
// and appends params the defaults do not define.
func (s *Set) ParamValuePairs(tab int) ([]Pair, error) {
	if err := s.checkTab("resolve params", tab); err != nil {
		return nil, err
	}

	var pairs []Pair
	pos := make(map[string]int)
	add := func(rows []ParameterRow, override bool) {
		for _, r := range rows {
			if r.Param == "" {
				continue
			}
			if i, ok := pos[r.Param]; ok {
				if override {
					pairs[i].Value = r.Value
				}
				continue
			}
			pos[r.Param] = len(pairs)
			pairs = append(pairs, Pair{Param: r.Param, Value: r.Value})
		}
	}

	add(s.tabs[0].Rows, false)
	if tab > 0 {
		add(s.tabs[tab].Rows, true)
	}
	return pairs, nil
}

func (s *Set) isParamChoice(param string) bool {
	for _, p := range s.AvailableParamChoices() {
		if p == param {
			return true
		}
	}
	return false
}

func (s *Set) checkTab(op string, tab int) error {
	if tab < 0 || tab >= len(s.tabs) {
		return precondition(op, "tab %d out of range [0,%d)", tab, len(s.tabs))
	}
	return nil
}

func (s *Set) checkRow(op string, tab, row int) error {
	if err := s.checkTab(op, tab); err != nil {
		return err
	}
	if row < 0 || row >= len(s.tabs[tab].Rows) {
		return precondition(op, "row %d out of range [0,%d)", row, len(s.tabs[tab].Rows))
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
