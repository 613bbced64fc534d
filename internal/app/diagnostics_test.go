package app

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tonearm/tonearm/internal/scanner"
)

func TestDiagnosticsRefreshPopulatesRuntime(t *testing.T) {
	d := NewDiagnosticsState()
	d.refresh()

	if d.MemoryUsage == 0 {
		t.Error("memory usage should be nonzero")
	}
	if d.GoroutineCount == 0 {
		t.Error("goroutine count should be nonzero")
	}
	if d.Uptime() < 0 {
		t.Error("uptime went backwards")
	}
}

func TestDiagnosticsRenderSections(t *testing.T) {
	m, _ := newTestApp(t, "One", "Two")
	m.width = 80
	m.height = 30

	out := m.diag.Render(&m)
	for _, want := range []string{"Runtime", "Library", "Last Scan", "Playback", "Queue", "Tracks: 2", "No scans this session"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
}

func TestDiagnosticsRenderLastScan(t *testing.T) {
	m, _ := newTestApp(t, "One")
	m.width = 80
	m.height = 30
	m.lastScan = scanner.Summary{Added: 3, Updated: 1, Elapsed: 42 * time.Millisecond}

	out := m.diag.Render(&m)
	if !strings.Contains(out, "Added: 3") {
		t.Fatalf("render = %q", out)
	}
	if !strings.Contains(out, "Took: 42ms") {
		t.Error("render should show scan duration")
	}
}

func TestDiagnosticsToggleKey(t *testing.T) {
	m, _ := newTestApp(t, "One")
	m, _ = updateModel(m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if !m.showDiag {
		t.Fatal("ctrl+d should open diagnostics")
	}
	if !strings.Contains(m.View(), "Diagnostics") {
		t.Fatal("view should show the overlay")
	}
	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.showDiag {
		t.Fatal("ctrl+d should close diagnostics")
	}
}
