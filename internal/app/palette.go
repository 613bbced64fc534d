package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

const paletteMaxRows = 12

// PaletteState drives the fuzzy command palette overlay.
type PaletteState struct {
	open     bool
	input    string
	selected int
	matches  []fuzzy.Match
	registry *CommandRegistry
}

func NewPaletteState(registry *CommandRegistry) *PaletteState {
	return &PaletteState{registry: registry}
}

// Open reports whether the palette is showing.
func (p *PaletteState) Open() bool { return p.open }

// Show opens the palette with a cleared filter.
func (p *PaletteState) Show() {
	p.open = true
	p.input = ""
	p.selected = 0
	p.matches = nil
}

func (p *PaletteState) Hide() { p.open = false }

func (p *PaletteState) Type(ch rune) {
	p.input += string(ch)
	p.refilter()
}

func (p *PaletteState) Backspace() {
	if p.input == "" {
		return
	}
	rs := []rune(p.input)
	p.input = string(rs[:len(rs)-1])
	p.refilter()
}

func (p *PaletteState) MoveUp() {
	if p.selected > 0 {
		p.selected--
	}
}

func (p *PaletteState) MoveDown() {
	if p.selected < len(p.visible())-1 {
		p.selected++
	}
}

// Selected returns the highlighted command, nil when nothing matches.
func (p *PaletteState) Selected() *Command {
	vis := p.visible()
	if len(vis) == 0 {
		return nil
	}
	idx := clamp(p.selected, 0, len(vis)-1)
	return &p.registry.commands[vis[idx]]
}

// visible returns registry indexes in display order: every command when the
// filter is empty, fuzzy matches otherwise.
func (p *PaletteState) visible() []int {
	if p.input == "" {
		out := make([]int, len(p.registry.commands))
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, len(p.matches))
	for i, match := range p.matches {
		out[i] = match.Index
	}
	return out
}

func (p *PaletteState) refilter() {
	p.selected = 0
	if p.input == "" {
		p.matches = nil
		return
	}
	p.matches = fuzzy.Find(p.input, p.registry.Names())
}

// Render draws the palette overlay centered in the window.
func (p *PaletteState) Render(m *Model) string {
	var b strings.Builder

	b.WriteString(m.theme.Title.Render("Command Palette"))
	b.WriteString("\n\n")

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(40)
	b.WriteString(inputStyle.Render(p.input + "▏"))
	b.WriteString("\n\n")

	vis := p.visible()
	if len(vis) == 0 {
		b.WriteString(m.theme.Dim.Render("  No matching commands"))
		b.WriteString("\n")
	}

	start := 0
	if p.selected >= paletteMaxRows {
		start = p.selected - paletteMaxRows + 1
	}
	end := start + paletteMaxRows
	if end > len(vis) {
		end = len(vis)
	}

	category := ""
	for i := start; i < end; i++ {
		cmd := p.registry.commands[vis[i]]

		if p.input == "" && cmd.Category != category {
			category = cmd.Category
			b.WriteString(m.theme.Accent.Render("  " + category))
			b.WriteString("\n")
		}

		prefix := "   "
		if i == p.selected {
			prefix = m.theme.Highlight.Render(" ▸ ")
		}

		name := cmd.Name
		if p.input != "" && i < len(p.matches) {
			name = highlightMatches(name, p.matches[i].MatchedIndexes, m.theme.Accent)
		}

		hint := ""
		if cmd.Keybinding != "" {
			hint = m.theme.Dim.Render(" [" + cmd.Keybinding + "]")
		}

		if i == p.selected {
			b.WriteString(prefix + m.theme.Text.Bold(true).Render(name) + hint)
		} else {
			b.WriteString(prefix + m.theme.Text.Render(name) + hint)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Dim.Render("  ↑↓ navigate  enter run  esc close"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// highlightMatches restyles the matched runes of a fuzzy hit.
func highlightMatches(s string, indexes []int, style lipgloss.Style) string {
	if len(indexes) == 0 {
		return s
	}
	matched := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		matched[idx] = true
	}
	var out strings.Builder
	for i, ch := range s {
		if matched[i] {
			out.WriteString(style.Render(string(ch)))
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}
