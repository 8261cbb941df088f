package tui

import (
	"github.com/DachengChen/querybot/config"
	"github.com/charmbracelet/lipgloss"
)

// palette is one colour theme.
type palette struct {
	Primary, Secondary, Accent, Success, Error, Warning, Dim, HighlightBg lipgloss.Color
}

var (
	darkPalette = palette{
		Primary:     "255", // White
		Secondary:   "240", // Dark Gray
		Accent:      "39",  // Blue / Cyan
		Success:     "42",  // Green
		Error:       "196", // Red
		Warning:     "214", // Orange
		Dim:         "240",
		HighlightBg: "236",
	}
	lightPalette = palette{
		Primary:     "235",
		Secondary:   "248",
		Accent:      "25",
		Success:     "28",
		Error:       "160",
		Warning:     "130",
		Dim:         "244",
		HighlightBg: "254",
	}
)

// Colors of the active theme
var (
	ColorPrimary     lipgloss.Color
	ColorSecondary   lipgloss.Color
	ColorAccent      lipgloss.Color
	ColorSuccess     lipgloss.Color
	ColorError       lipgloss.Color
	ColorWarning     lipgloss.Color
	ColorDim         lipgloss.Color
	ColorHighlightBg lipgloss.Color
)

// Shared styles - minimal and clean
var (
	StyleNormal lipgloss.Style
	StyleDimmed lipgloss.Style
	StyleBold   lipgloss.Style

	StyleSuccess lipgloss.Style
	StyleError   lipgloss.Style
	StyleWarning lipgloss.Style

	StyleBorder lipgloss.Style
	StyleTitle  lipgloss.Style
	StylePrompt lipgloss.Style

	StyleTabActive   lipgloss.Style
	StyleTabInactive lipgloss.Style

	StyleListItemActive lipgloss.Style

	StyleUser      lipgloss.Style
	StyleAssistant lipgloss.Style
	StyleBadge     lipgloss.Style

	StyleStatusBar lipgloss.Style
	StyleHelpKey   lipgloss.Style
	StyleHelpDesc  lipgloss.Style
)

func init() {
	ApplyTheme(config.ThemeDark)
}

// ApplyTheme rebuilds every style for theme ("dark" or "light").
func ApplyTheme(theme string) {
	p := darkPalette
	if theme == config.ThemeLight {
		p = lightPalette
	}
	ColorPrimary = p.Primary
	ColorSecondary = p.Secondary
	ColorAccent = p.Accent
	ColorSuccess = p.Success
	ColorError = p.Error
	ColorWarning = p.Warning
	ColorDim = p.Dim
	ColorHighlightBg = p.HighlightBg

	StyleNormal = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleDimmed = lipgloss.NewStyle().Foreground(ColorDim)
	StyleBold = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)

	StyleBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSecondary)

	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).MarginBottom(1)
	StylePrompt = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	StyleTabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent).
		Padding(0, 1)
	StyleTabInactive = lipgloss.NewStyle().
		Foreground(ColorDim).
		Padding(0, 1)

	StyleListItemActive = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	StyleUser = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	StyleAssistant = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StyleBadge = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Background(ColorHighlightBg).
		Padding(0, 1)

	StyleStatusBar = lipgloss.NewStyle().
		Foreground(ColorSecondary)
	StyleHelpKey = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)
	StyleHelpDesc = lipgloss.NewStyle().
		Foreground(ColorDim)
}
