package app

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/tonearm/tonearm/internal/player"
)

// DiagnosticsState snapshots runtime health for the overlay.
type DiagnosticsState struct {
	StartTime      time.Time
	MemoryUsage    uint64
	GoroutineCount int
}

func NewDiagnosticsState() *DiagnosticsState {
	return &DiagnosticsState{StartTime: time.Now()}
}

func (d *DiagnosticsState) refresh() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	d.MemoryUsage = ms.Alloc
	d.GoroutineCount = runtime.NumGoroutine()
}

// Uptime returns time since the overlay state was created, which tracks
// app start.
func (d *DiagnosticsState) Uptime() time.Duration {
	return time.Since(d.StartTime)
}

// Render draws the diagnostics overlay pinned to the top right.
func (d *DiagnosticsState) Render(m *Model) string {
	d.refresh()
	stats := m.svc.Index().Stats()

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Diagnostics"))
	b.WriteString("\n\n")

	b.WriteString(m.theme.Accent.Render("Runtime"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Uptime: %s\n", d.Uptime().Round(time.Second)))
	b.WriteString(fmt.Sprintf("  Memory: %s\n", humanize.IBytes(d.MemoryUsage)))
	b.WriteString(fmt.Sprintf("  Goroutines: %d\n", d.GoroutineCount))
	b.WriteString("\n")

	b.WriteString(m.theme.Accent.Render("Library"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Tracks: %s\n", humanize.Comma(int64(stats.Tracks))))
	b.WriteString(fmt.Sprintf("  Artists: %d  Albums: %d\n", stats.Artists, stats.Albums))
	b.WriteString(fmt.Sprintf("  Playlists: %d  Favorites: %d\n", stats.Playlists, stats.Favorites))
	b.WriteString(fmt.Sprintf("  Size: %s\n", humanize.IBytes(uint64(stats.TotalBytes))))
	b.WriteString(fmt.Sprintf("  Duration: %s\n", stats.TotalDuration.Round(time.Minute)))
	b.WriteString("\n")

	b.WriteString(m.theme.Accent.Render("Last Scan"))
	b.WriteString("\n")
	if m.lastScan.Elapsed > 0 {
		s := m.lastScan
		b.WriteString(fmt.Sprintf("  Added: %d  Updated: %d  Skipped: %d\n", s.Added, s.Updated, s.Skipped))
		b.WriteString(fmt.Sprintf("  Removed: %d  Unsupported: %d  Corrupt: %d  Failed: %d\n",
			s.Removed, s.Unsupported, s.Corrupt, s.Failed))
		b.WriteString(fmt.Sprintf("  Took: %s (%s read)\n",
			s.Elapsed.Round(time.Millisecond), humanize.IBytes(uint64(s.Bytes))))
	} else if m.scanning {
		b.WriteString("  In progress\n")
	} else {
		b.WriteString("  No scans this session\n")
	}
	b.WriteString("\n")

	b.WriteString(m.theme.Accent.Render("Playback"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  State: %s\n", m.playState))
	if m.playState == player.StatePlaying || m.playState == player.StatePaused {
		b.WriteString(fmt.Sprintf("  Track: %s\n", trackLabel(m.nowPlaying)))
		b.WriteString(fmt.Sprintf("  Position: %s / %s\n", fmtTime(m.position), fmtTime(m.duration)))
	}
	b.WriteString(fmt.Sprintf("  Volume: %d%%\n", m.volume))
	if m.vis != nil {
		if m.vis.Running() {
			b.WriteString(m.theme.Success.Render("  Visualizer: running") + "\n")
		} else {
			b.WriteString(m.theme.Dim.Render("  Visualizer: stopped") + "\n")
		}
	}
	b.WriteString("\n")

	b.WriteString(m.theme.Accent.Render("Queue"))
	b.WriteString("\n")
	snap := m.svc.Snapshot()
	b.WriteString(fmt.Sprintf("  Items: %d  Position: %d\n", snap.QueueLen, snap.QueuePos))
	b.WriteString(fmt.Sprintf("  Shuffle: %v  Repeat: %s\n", snap.Shuffled, repeatLabel(snap.Repeat)))

	b.WriteString("\n")
	b.WriteString(m.theme.Dim.Render("ctrl+d closes"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		Width(44).
		Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Right, lipgloss.Top, box)
}
