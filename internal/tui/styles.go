package tui

import "github.com/charmbracelet/lipgloss"

// One Dark Pro color palette
var (
	// Background colors
	ColorBgPrimary   = lipgloss.Color("#282C34")
	ColorBgHighlight = lipgloss.Color("#2C313C")
	ColorBgSelection = lipgloss.Color("#3E4451")

	// Foreground colors
	ColorFgPrimary   = lipgloss.Color("#ABB2BF")
	ColorFgSecondary = lipgloss.Color("#828997")
	ColorFgMuted     = lipgloss.Color("#636B78")
	ColorFgComment   = lipgloss.Color("#5C6370")

	// Syntax colors
	ColorRed     = lipgloss.Color("#E06C75")
	ColorGreen   = lipgloss.Color("#98C379")
	ColorYellow  = lipgloss.Color("#E5C07B")
	ColorBlue    = lipgloss.Color("#61AFEF")
	ColorMagenta = lipgloss.Color("#C678DD")
	ColorCyan    = lipgloss.Color("#56B6C2")
	ColorOrange  = lipgloss.Color("#D19A66")

	// UI colors
	ColorBorder = lipgloss.Color("#3F4451")
)

// Component styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true).
			PaddingLeft(1)

	HeaderDirStyle = lipgloss.NewStyle().
			Foreground(ColorFgSecondary)

	// Tab bar styles
	TabStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted).
			Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Background(ColorBgHighlight).
			Bold(true).
			Padding(0, 1)

	DefaultsTabStyle = lipgloss.NewStyle().
				Foreground(ColorMagenta).
				Padding(0, 1)

	DirtyMarkStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	// Grid styles
	GridStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	ColumnHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorMagenta).
				Bold(true)

	CellStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary)

	CursorCellStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary).
			Background(ColorBgSelection).
			Bold(true)

	CursorRowStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary).
			Background(ColorBgHighlight)

	// Derived comments are not editable
	DerivedCellStyle = lipgloss.NewStyle().
				Foreground(ColorFgComment).
				Italic(true)

	EditCellStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	// Status bar styles
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted).
			PaddingLeft(1).
			PaddingRight(1)

	StatusRunningStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	InputPromptStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	// Dialog and overlay styles
	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBlue).
			Padding(1, 2)

	DialogTitleStyle = lipgloss.NewStyle().
				Foreground(ColorBlue).
				Bold(true)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(ColorBlue).
				Bold(true)

	ItemStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary)

	// Run output styles
	OutputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	OutputHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorMagenta).
				Bold(true)

	// Message styles
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted)
)
