package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestGetTheme(t *testing.T) {
	tests := []struct {
		name     string
		noColor  bool
		expected string
	}{
		{"rainbow", false, "rainbow"},
		{"mono", false, "mono"},
		{"green", false, "green"},
		{"nocolor", false, "nocolor"},
		{"invalid", false, "rainbow"}, // falls back to rainbow
		{"rainbow", true, "nocolor"},  // noColor overrides
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theme := GetTheme(tt.name, tt.noColor)
			if theme.Name != tt.expected {
				t.Errorf("GetTheme(%q, %v) = %q, want %q", tt.name, tt.noColor, theme.Name, tt.expected)
			}
		})
	}
}

func TestValidTheme(t *testing.T) {
	for _, name := range ThemeNames() {
		if !ValidTheme(name) {
			t.Errorf("ValidTheme(%q) should be true", name)
		}
	}
	if ValidTheme("plasma") {
		t.Error("ValidTheme('plasma') should be false")
	}
}

func TestNoColorUsesAttributesOnly(t *testing.T) {
	theme := NoColor()
	if !theme.Title.GetBold() {
		t.Error("NoColor title should be bold")
	}
	if !theme.Highlight.GetReverse() {
		t.Error("NoColor highlight should be reverse video")
	}
}

func TestThemesHaveColors(t *testing.T) {
	for _, name := range []string{"rainbow", "mono", "green"} {
		t.Run(name, func(t *testing.T) {
			theme := GetTheme(name, false)
			// An unset foreground comes back as NoColor, not nil.
			if theme.Accent.GetForeground() == (lipgloss.NoColor{}) {
				t.Errorf("%s accent should set a color", name)
			}
		})
	}
}
