// Package styles defines the visual styling for the application.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// Color definitions.
var (
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("63")  // Purple
	ColorMuted     = lipgloss.Color("240") // Gray

	ColorSuccess = lipgloss.Color("42")  // Green
	ColorError   = lipgloss.Color("196") // Red
	ColorWarning = lipgloss.Color("220") // Yellow
	ColorInfo    = lipgloss.Color("39")  // Blue

	ColorBgDark   = lipgloss.Color("235")
	ColorBgAccent = lipgloss.Color("236")

	ColorTextPrimary   = lipgloss.Color("252")
	ColorTextSecondary = lipgloss.Color("245")

	// ToastStyle for floating notifications.
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorPrimary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorSecondary)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorMuted).
	Padding(0, 2)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorPrimary).
	MarginBottom(1)

// LabelStyle styles the left column of key/value listings.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorTextSecondary).
	Width(22)

// ValueStyle styles the right column of key/value listings.
var ValueStyle = lipgloss.NewStyle().
	Foreground(ColorTextPrimary)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorMuted)

// HelpPanelStyle creates the help overlay panel.
var HelpPanelStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(ColorPrimary).
	Padding(1, 3).
	Background(ColorBgDark)

// TableHeaderStyle styles table headers.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorPrimary).
	BorderStyle(lipgloss.NormalBorder()).
	BorderBottom(true).
	BorderForeground(ColorMuted)

// TableSelectedStyle styles selected table rows.
var TableSelectedStyle = lipgloss.NewStyle().
	Background(ColorBgAccent).
	Foreground(ColorTextPrimary).
	Bold(true)

var (
	// RatioOKStyle for ratios inside their plausible range.
	RatioOKStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	// RatioEdgeStyle for ratios in the outer tenth of their range.
	RatioEdgeStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	// RatioOutStyle for ratios outside their range.
	RatioOutStyle = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(ColorError)

// SuccessTextStyle for success messages.
var SuccessTextStyle = lipgloss.NewStyle().
	Foreground(ColorSuccess)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(ColorWarning)

// GetRatioStyle returns the style for a ratio given its plausible range.
func GetRatioStyle(v float64, r models.Range) lipgloss.Style {
	if !r.Contains(v) {
		return RatioOutStyle
	}
	edge := (r.Max - r.Min) / 10
	if v > r.Max-edge {
		return RatioEdgeStyle
	}
	return RatioOKStyle
}

// GetScoreStyle returns the style for a 0-100 quality score.
func GetScoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return SuccessTextStyle
	case score >= 50:
		return WarningTextStyle
	default:
		return ErrorTextStyle
	}
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}
