// Package ui holds the color themes shared by every screen of the TUI.
package ui

import "github.com/charmbracelet/lipgloss"

// Theme is the style set the screens draw with.
type Theme struct {
	Name      string
	Accent    lipgloss.Style
	Dim       lipgloss.Style
	Text      lipgloss.Style
	Title     lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Border    lipgloss.Style
	Highlight lipgloss.Style
}

var themeRegistry = map[string]func() Theme{
	"rainbow": Rainbow,
	"mono":    Monochrome,
	"green":   GreenTerminal,
	"nocolor": NoColor,
}

// ThemeNames returns the available theme names.
func ThemeNames() []string {
	return []string{"rainbow", "mono", "green", "nocolor"}
}

// GetTheme resolves a theme by name, falling back to Rainbow for unknown
// names. noColor (the NO_COLOR convention) overrides any choice.
func GetTheme(name string, noColor bool) Theme {
	if noColor {
		return NoColor()
	}
	if fn, ok := themeRegistry[name]; ok {
		return fn()
	}
	return Rainbow()
}

// ValidTheme reports whether name is a registered theme.
func ValidTheme(name string) bool {
	_, ok := themeRegistry[name]
	return ok
}

// Rainbow is the default colorful theme.
func Rainbow() Theme {
	return Theme{
		Name:      "rainbow",
		Accent:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#585B70")),
		Text:      lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4")),
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color("#89DCEB")).Bold(true),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")).Bold(true),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")).Bold(true),
		Border:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387")).Bold(true),
	}
}

// Monochrome is a grayscale theme.
func Monochrome() Theme {
	return Theme{
		Name:      "mono",
		Accent:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#5F5F5F")),
		Text:      lipgloss.NewStyle().Foreground(lipgloss.Color("#C6C6C6")),
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true).Underline(true),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("#C6C6C6")).Bold(true),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E")).Bold(true),
		Border:    lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true).Reverse(true),
	}
}

// GreenTerminal is a classic green-on-black phosphor theme.
func GreenTerminal() Theme {
	bright := lipgloss.Color("#33FF33")
	medium := lipgloss.Color("#22CC22")
	dark := lipgloss.Color("#118811")
	faint := lipgloss.Color("#0A550A")

	return Theme{
		Name:      "green",
		Accent:    lipgloss.NewStyle().Foreground(bright).Bold(true),
		Dim:       lipgloss.NewStyle().Foreground(faint),
		Text:      lipgloss.NewStyle().Foreground(medium),
		Title:     lipgloss.NewStyle().Foreground(bright).Bold(true),
		Error:     lipgloss.NewStyle().Foreground(bright).Bold(true).Reverse(true),
		Success:   lipgloss.NewStyle().Foreground(bright).Bold(true),
		Warning:   lipgloss.NewStyle().Foreground(medium).Bold(true),
		Border:    lipgloss.NewStyle().Foreground(dark),
		Highlight: lipgloss.NewStyle().Foreground(bright).Bold(true).Underline(true),
	}
}

// NoColor uses only bold, underline, and reverse for NO_COLOR environments.
func NoColor() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Name:      "nocolor",
		Accent:    plain.Bold(true),
		Dim:       plain,
		Text:      plain,
		Title:     plain.Bold(true),
		Error:     plain.Bold(true),
		Success:   plain.Bold(true),
		Warning:   plain.Bold(true),
		Border:    plain,
		Highlight: plain.Reverse(true),
	}
}
