package ui

import "github.com/charmbracelet/lipgloss"

// Single-accent palette: cyan for progress, standard red/green signals.
const (
	colorCyan    = "51"  // accent, active work
	colorCyanDim = "31"  // stage labels
	colorGreen   = "40"  // success
	colorRed     = "196" // errors
	colorYellow  = "220" // warnings
	colorGray    = "245" // secondary text
	colorDark    = "238" // separators
)

// Styles holds the render styles for CLI output.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Stage    lipgloss.Style
	Progress lipgloss.Style
	Label    lipgloss.Style
}

// DefaultStyles returns the colored styles used on a terminal.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorCyan)),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color(colorDark)),
		Stage:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorCyanDim)),
		Progress: lipgloss.NewStyle().Foreground(lipgloss.Color(colorCyan)),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
	}
}

// NoColorStyles returns pass-through styles for non-TTY output.
func NoColorStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle(),
		Success:  lipgloss.NewStyle(),
		Warning:  lipgloss.NewStyle(),
		Error:    lipgloss.NewStyle(),
		Dim:      lipgloss.NewStyle(),
		Stage:    lipgloss.NewStyle(),
		Progress: lipgloss.NewStyle(),
		Label:    lipgloss.NewStyle(),
	}
}

// GetStyles picks styles by color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
