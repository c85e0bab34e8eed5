package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette. A single green accent carries the visual hierarchy;
// everything else stays muted.
const (
	colorAccent    = lipgloss.Color("42")  // spring green
	colorAccentDim = lipgloss.Color("29")  // darker green, inactive accents
	colorWarn      = lipgloss.Color("214") // orange
	colorFail      = lipgloss.Color("160") // red
	colorMuted     = lipgloss.Color("246") // labels, secondary text
	colorFaint     = lipgloss.Color("240") // borders, separators, hints
)

// Styles bundles the lipgloss styles the ingest TUI renders with.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
	Active    lipgloss.Style
	Border    lipgloss.Style
	Sparkline lipgloss.Style
	Speed     lipgloss.Style
	Label     lipgloss.Style
}

// DefaultStyles returns the green-accent theme for color terminals.
func DefaultStyles() Styles {
	base := lipgloss.NewStyle()
	return Styles{
		Header:    base.Bold(true).Foreground(colorAccent),
		Success:   base.Foreground(colorAccent),
		Warning:   base.Foreground(colorWarn),
		Error:     base.Foreground(colorFail),
		Dim:       base.Foreground(colorFaint),
		Active:    base.Bold(true).Foreground(colorAccent),
		Border:    base.Foreground(colorFaint),
		Sparkline: base.Foreground(colorAccentDim),
		Speed:     base.Foreground(colorMuted),
		Label:     base.Foreground(colorMuted),
	}
}

// NoColorStyles returns pass-through styles. The zero lipgloss.Style
// renders text unchanged, which is exactly what NO_COLOR wants.
func NoColorStyles() Styles {
	return Styles{}
}

// GetStyles picks the theme for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
