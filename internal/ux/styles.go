package ux

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

// Styles groups the text styles shared by command output and the TUI.
type Styles struct {
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Title   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles returns the default styles, or unstyled ones when noColor is set.
func NewStyles(noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			Success: plain, Warning: plain, Error: plain, Info: plain,
			Label: plain, Muted: plain, Title: plain,
			Box: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
		}
	}
	return Styles{
		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(ColorInfo),
		Label:   lipgloss.NewStyle().Foreground(ColorMuted),
		Muted:   lipgloss.NewStyle().Foreground(ColorMuted).Italic(true),
		Title:   lipgloss.NewStyle().Bold(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarning).
			Padding(0, 1),
	}
}
