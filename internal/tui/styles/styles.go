package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	CatalogBlue = lipgloss.Color("#01B4E4")
	Gold        = lipgloss.Color("#F5C518")
	SlateDark   = lipgloss.Color("#1F2937")
	SlateLight  = lipgloss.Color("#374151")
	DimGray     = lipgloss.Color("#6B7280")
	LightGray   = lipgloss.Color("#9CA3AF")
	White       = lipgloss.Color("#F9FAFB")
	Green       = lipgloss.Color("#10B981")
	Red         = lipgloss.Color("#EF4444")
)

// Borders
var (
	ActiveBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(CatalogBlue)

	InactiveBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(DimGray)
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(CatalogBlue)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green)
)

// Favorite marker
const FavoriteChar = "★"

var FavoriteStyle = lipgloss.NewStyle().Foreground(Gold)

// Tabs
var (
	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(CatalogBlue).
			Bold(true).
			Padding(0, 2)

	InactiveTabStyle = lipgloss.NewStyle().
				Foreground(LightGray).
				Background(SlateDark).
				Padding(0, 2)
)

// Connectivity badges
var (
	OnlineBadge = lipgloss.NewStyle().
			Foreground(White).
			Background(Green).
			Padding(0, 1)

	OfflineBadge = lipgloss.NewStyle().
			Foreground(White).
			Background(Red).
			Padding(0, 1)

	UnknownBadge = lipgloss.NewStyle().
			Foreground(LightGray).
			Background(SlateLight).
			Padding(0, 1)
)

// Toast is the transient notification shown in the footer
var ToastStyle = lipgloss.NewStyle().
	Foreground(SlateDark).
	Background(Gold).
	Bold(true).
	Padding(0, 1)

// Details panel
var (
	DetailsStyle = lipgloss.NewStyle().
			Padding(1, 2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(DimGray).
			Width(10)
)

// Spinner style
var SpinnerStyle = lipgloss.NewStyle().Foreground(CatalogBlue)

// SpinnerFrames animate progress outside the TUI
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Filter styles
var (
	FilterStyle = lipgloss.NewStyle().
			Foreground(CatalogBlue)

	FilterPromptStyle = lipgloss.NewStyle().
				Foreground(CatalogBlue).
				Bold(true)
)

// Match highlight styles for filter results
var (
	MatchHighlightStyle = lipgloss.NewStyle().
				Foreground(CatalogBlue).
				Bold(true)

	MatchHighlightSelectedStyle = lipgloss.NewStyle().
					Foreground(CatalogBlue).
					Background(SlateLight).
					Bold(true)
)

// Truncate shortens s to width runes, ending with an ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// RenderListRow renders a complete list row with uniform background when selected.
// Each part is styled separately so that ANSI resets do not break the background.
func RenderListRow(parts []RowPart, selected bool, width int) string {
	var b strings.Builder
	visibleLen := 0

	for _, part := range parts {
		style := part.Style
		if part.Foreground != nil {
			style = style.Foreground(*part.Foreground)
		} else if selected {
			style = style.Foreground(White)
		} else {
			style = style.Foreground(LightGray)
		}
		if selected {
			style = style.Background(SlateLight)
		}
		b.WriteString(style.Render(part.Text))
		visibleLen += lipgloss.Width(part.Text)
	}

	// Fill to width, leaving one column of margin each side
	if pad := width - visibleLen - 2; pad > 0 {
		padStyle := lipgloss.NewStyle()
		if selected {
			padStyle = padStyle.Background(SlateLight)
		}
		b.WriteString(padStyle.Render(strings.Repeat(" ", pad)))
	}

	marginStyle := lipgloss.NewStyle()
	if selected {
		marginStyle = marginStyle.Background(SlateLight)
	}
	margin := marginStyle.Render(" ")

	return margin + b.String() + margin
}

// RowPart is a piece of a list row with an optional foreground color
type RowPart struct {
	Text       string
	Foreground *lipgloss.Color
	Style      lipgloss.Style
}
