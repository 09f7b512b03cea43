package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/boltview/internal/app"
)

// Catppuccin Mocha
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorLavender lipgloss.Color = "#b4befe"
	colorText     lipgloss.Color = "#cdd6f4"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

// Themes lists the theme names NewStyles accepts.
var Themes = []string{"mocha", "plain"}

// Styles holds the rendering styles.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Pane     lipgloss.Style
	Selected lipgloss.Style
	Normal   lipgloss.Style
	Dim      lipgloss.Style
	Pending  lipgloss.Style
	Bookmark lipgloss.Style
	Info     lipgloss.Style
	Warn     lipgloss.Style
	Error    lipgloss.Style
	Input    lipgloss.Style
}

// NewStyles returns the styles for a theme.
func NewStyles(theme string) (Styles, error) {
	switch theme {
	case "", "mocha":
		return Styles{
			Title:    lipgloss.NewStyle().Bold(true).Foreground(colorPink),
			Header:   lipgloss.NewStyle().Foreground(colorOverlay1),
			Pane:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSurface1).Padding(0, 1),
			Selected: lipgloss.NewStyle().Bold(true).Foreground(colorLavender),
			Normal:   lipgloss.NewStyle().Foreground(colorText),
			Dim:      lipgloss.NewStyle().Foreground(colorOverlay1),
			Pending:  lipgloss.NewStyle().Foreground(colorYellow),
			Bookmark: lipgloss.NewStyle().Foreground(colorPink),
			Info:     lipgloss.NewStyle().Foreground(colorTeal),
			Warn:     lipgloss.NewStyle().Foreground(colorYellow),
			Error:    lipgloss.NewStyle().Bold(true).Foreground(colorRed),
			Input:    lipgloss.NewStyle().Foreground(colorGreen),
		}, nil
	case "plain":
		plain := lipgloss.NewStyle()
		return Styles{
			Title:    plain.Bold(true),
			Header:   plain,
			Pane:     plain.Border(lipgloss.NormalBorder()).Padding(0, 1),
			Selected: plain.Reverse(true),
			Normal:   plain,
			Dim:      plain,
			Pending:  plain,
			Bookmark: plain,
			Info:     plain,
			Warn:     plain,
			Error:    plain.Bold(true),
			Input:    plain,
		}, nil
	default:
		return Styles{}, fmt.Errorf("unknown theme %q (valid: %v)", theme, Themes)
	}
}

// notice returns the style for a notice level.
func (s Styles) notice(l app.Level) lipgloss.Style {
	switch l {
	case app.LevelError:
		return s.Error
	case app.LevelWarn:
		return s.Warn
	default:
		return s.Info
	}
}
