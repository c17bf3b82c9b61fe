package experiment

import "fmt"

// DefaultsTabName is the name of the first tab, whose rows define the
// canonical params and their comments.
const DefaultsTabName = "defaults"

// DefaultMaxVisibleTabs caps how many tabs are opened from a directory.
const DefaultMaxVisibleTabs = 10

// RowKind controls how the Param column of a tab is edited
type RowKind string

const (
	KindFreeText    RowKind = "free_text"    // any text
	KindParamChoice RowKind = "param_choice" // restricted to defaults params, comment derived
)

// Column addresses a cell within a row
type Column int

const (
	ColumnParam Column = iota
	ColumnValue
	ColumnComment
)

// Header is the fixed column header written at the top of every tab file.
var Header = []string{"Param", "Value", "Comment"}

func (c Column) String() string {
	if c < 0 || int(c) >= len(Header) {
		return fmt.Sprintf("Column(%d)", int(c))
	}
	return Header[c]
}

// ParameterRow is one (Param, Value, Comment) triple
type ParameterRow struct {
	Param   string `json:"param"`
	Value   string `json:"value"`
	Comment string `json:"comment"`
}

// Get returns the cell at col.
func (r ParameterRow) Get(col Column) string {
	switch col {
	case ColumnParam:
		return r.Param
	case ColumnValue:
		return r.Value
	case ColumnComment:
		return r.Comment
	default:
		return ""
	}
}

// Fields returns the row in file column order.
func (r ParameterRow) Fields() []string {
	return []string{r.Param, r.Value, r.Comment}
}

// Tab is one named table of rows, backed by {Name}.csv
type Tab struct {
	Name  string         `json:"name"`
	Kind  RowKind        `json:"kind"`
	Rows  []ParameterRow `json:"rows"`
	Dirty bool           `json:"dirty"` // modified since last load or save
}

func (t Tab) clone() Tab {
	rows := make([]ParameterRow, len(t.Rows))
	copy(rows, t.Rows)
	t.Rows = rows
	return t
}

// Pair is a resolved (param, value) pair handed to an executor
type Pair struct {
	Param string `json:"param"`
	Value string `json:"value"`
}

// KindForIndex returns FreeText for the defaults position and ParamChoice
// everywhere else.
func KindForIndex(index int) RowKind {
	if index == 0 {
		return KindFreeText
	}
	return KindParamChoice
}

// DefaultTabName returns the name given to a new tab at index.
func DefaultTabName(index int) string {
	if index == 0 {
		return DefaultsTabName
	}
	return fmt.Sprintf("exp%03d", index)
}
