package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/core"
	"github.com/tonearm/tonearm/internal/events"
	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/queue"
	"github.com/tonearm/tonearm/internal/scanner"
	"github.com/tonearm/tonearm/internal/ui"
	"github.com/tonearm/tonearm/internal/visualizer"
)

type screen int

const (
	screenNowPlaying screen = iota
	screenLibrary
	screenPlaylists
	screenFavorites
	screenRecent
	screenQueue
	screenCount
)

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputPlaylist
)

const recentLimit = 50

type Model struct {
	cfg   *config.Config
	svc   *core.Service
	vis   *visualizer.Visualizer
	theme ui.Theme

	bus         <-chan events.Event
	unsubscribe func()

	screen    screen
	selection int
	width     int
	height    int

	rows      []library.Track
	playlists []library.Playlist
	openPl    string

	input     string
	inputMode inputMode

	playState  player.State
	nowPlaying library.Track
	position   time.Duration
	duration   time.Duration
	volume     int

	scanning bool
	scanLine string
	lastScan scanner.Summary

	status   string
	errorMsg string
	showHelp bool
	showVis  bool
	showDiag bool

	palette  *PaletteState
	registry *CommandRegistry
	diag     *DiagnosticsState
}

func New(cfg *config.Config, svc *core.Service) Model {
	bus, cancel := svc.Subscribe()
	m := Model{
		cfg:         cfg,
		svc:         svc,
		vis:         svc.Visualizer(),
		theme:       ui.GetTheme(cfg.UI.Theme, noColorEnv()),
		bus:         bus,
		unsubscribe: cancel,
		screen:      screenLibrary,
		volume:      svc.Engine().Volume(),
		showVis:     true,
		diag:        NewDiagnosticsState(),
	}
	m.registry = NewCommandRegistry(&m)
	m.palette = NewPaletteState(m.registry)
	m.rows = svc.Index().Tracks()
	m.status = fmt.Sprintf("%d tracks", svc.Index().Len())
	if t, ok := svc.NowPlaying(); ok {
		m.nowPlaying = t
		m.playState = svc.Engine().State()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitBusCmd(), m.tickCmd())
}

type busMsg struct {
	ev events.Event
}

type tickMsg time.Time

type clearErrorMsg struct{}

func (m Model) waitBusCmd() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.bus
		if !ok {
			return nil
		}
		return busMsg{ev: ev}
	}
}

func (m Model) tickCmd() tea.Cmd {
	d := 500 * time.Millisecond
	if m.showVis && m.vis != nil && m.playState == player.StatePlaying {
		d = 100 * time.Millisecond
	}
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) clearErrorCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}

func (m Model) setError(err error) (Model, tea.Cmd) {
	m.errorMsg = err.Error()
	return m, m.clearErrorCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case clearErrorMsg:
		m.errorMsg = ""
		return m, nil
	case tickMsg:
		m.position = m.svc.Engine().Position()
		m.duration = m.svc.Engine().Duration()
		return m, m.tickCmd()
	case busMsg:
		next := m.applyEvent(msg.ev)
		return next, next.waitBusCmd()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) applyEvent(ev events.Event) Model {
	switch ev := ev.(type) {
	case core.StateChanged:
		m.playState = ev.State
		m.nowPlaying = ev.Track
		if ev.Err != nil {
			m.errorMsg = ev.Err.Error()
		}
		switch ev.State {
		case player.StatePlaying:
			m.status = "Playing " + trackLabel(ev.Track)
		case player.StatePaused:
			m.status = "Paused"
		case player.StateStopped:
			m.status = "Stopped"
		}
	case core.QueueChanged:
		if m.screen == screenQueue || m.screen == screenNowPlaying {
			m = m.refreshRows()
		}
	case core.LibraryChanged:
		m = m.refreshRows()
	case core.VolumeChanged:
		m.volume = ev.Volume
	case core.ScanStarted:
		m.scanning = true
		m.scanLine = ""
		m.status = "Scanning library"
	case core.ScanProgress:
		m.scanLine = fmt.Sprintf("%d/%d %s", ev.Scanned, ev.Total, filepath.Base(ev.Path))
	case core.ScanFinished:
		m.scanning = false
		m.scanLine = ""
		if ev.Err != nil {
			m.errorMsg = "Scan failed: " + ev.Err.Error()
		} else {
			m.lastScan = ev.Summary
			m.status = scanStatus(ev.Summary)
		}
	}
	return m
}

func scanStatus(s scanner.Summary) string {
	problems := s.Unsupported + s.Corrupt + s.Failed
	return fmt.Sprintf("Scan done: %d added, %d updated, %d removed, %d problems (%s)",
		s.Added, s.Updated, s.Removed, problems, s.Elapsed.Round(time.Millisecond))
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == " " {
		key = "space"
	}

	// ctrl+c always quits, whatever mode we are in.
	if key == "ctrl+c" {
		m.unsubscribe()
		return m, tea.Quit
	}

	if m.palette.Open() {
		return m.handlePaletteKey(msg, key)
	}
	if m.inputMode != inputNone {
		return m.handleInputKey(msg, key)
	}
	if m.showHelp && key != m.cfg.Keybindings.Help {
		m.showHelp = false
		return m, nil
	}

	switch key {
	case m.cfg.Keybindings.Quit:
		m.unsubscribe()
		return m, tea.Quit
	case m.cfg.Keybindings.Help:
		m.showHelp = !m.showHelp
		return m, nil
	case "ctrl+p":
		m.palette.Show()
		return m, nil
	case "ctrl+d":
		m.showDiag = !m.showDiag
		return m, nil
	case m.cfg.Keybindings.Visualizer:
		m.showVis = !m.showVis
		return m, nil
	case "tab":
		m.screen = (m.screen + 1) % screenCount
		m.selection = 0
		m.openPl = ""
		return m.refreshRows(), nil
	case "shift+tab":
		m.screen--
		if m.screen < 0 {
			m.screen = screenCount - 1
		}
		m.selection = 0
		m.openPl = ""
		return m.refreshRows(), nil
	case "j", "down":
		if m.selection < m.listLen()-1 {
			m.selection++
		}
		return m, nil
	case "k", "up":
		if m.selection > 0 {
			m.selection--
		}
		return m, nil
	case "g":
		m.selection = 0
		return m, nil
	case "G":
		if n := m.listLen(); n > 0 {
			m.selection = n - 1
		}
		return m, nil
	case "enter":
		return m.handleEnter()
	case "esc":
		if m.screen == screenPlaylists && m.openPl != "" {
			m.openPl = ""
			m.selection = 0
			return m.refreshRows(), nil
		}
		m.showDiag = false
		return m, nil
	case m.cfg.Keybindings.PlayPause:
		if err := m.svc.PlayPause(); err != nil && !errors.Is(err, queue.ErrEmpty) {
			return m.setError(err)
		}
		return m, nil
	case m.cfg.Keybindings.Stop:
		if err := m.svc.Stop(); err != nil {
			return m.setError(err)
		}
		return m, nil
	case m.cfg.Keybindings.NextTrack:
		if err := m.svc.Next(); err != nil {
			if errors.Is(err, queue.ErrExhausted) || errors.Is(err, queue.ErrEmpty) {
				m.status = "End of queue"
				return m, nil
			}
			return m.setError(err)
		}
		return m, nil
	case m.cfg.Keybindings.PrevTrack:
		if err := m.svc.Previous(); err != nil {
			if errors.Is(err, queue.ErrExhausted) || errors.Is(err, queue.ErrEmpty) {
				m.status = "Start of queue"
				return m, nil
			}
			return m.setError(err)
		}
		return m, nil
	case m.cfg.Keybindings.SeekForward, "right":
		m.seekBy(time.Duration(m.cfg.Player.SeekSmall) * time.Second)
		return m, nil
	case m.cfg.Keybindings.SeekBackward, "left":
		m.seekBy(-time.Duration(m.cfg.Player.SeekSmall) * time.Second)
		return m, nil
	case "L":
		m.seekBy(time.Duration(m.cfg.Player.SeekLarge) * time.Second)
		return m, nil
	case "H":
		m.seekBy(-time.Duration(m.cfg.Player.SeekLarge) * time.Second)
		return m, nil
	case m.cfg.Keybindings.VolumeUp, "=":
		m.svc.AdjustVolume(m.cfg.Player.VolumeStep)
		return m, nil
	case m.cfg.Keybindings.VolumeDown:
		m.svc.AdjustVolume(-m.cfg.Player.VolumeStep)
		return m, nil
	case m.cfg.Keybindings.Shuffle:
		if m.svc.ToggleShuffle() {
			m.status = "Shuffle on"
		} else {
			m.status = "Shuffle off"
		}
		return m, nil
	case m.cfg.Keybindings.Repeat:
		m.status = "Repeat: " + repeatLabel(m.svc.CycleRepeat())
		return m, nil
	case m.cfg.Keybindings.Favorite:
		return m.toggleFavorite()
	case m.cfg.Keybindings.Search:
		m.screen = screenLibrary
		m.inputMode = inputSearch
		m.openPl = ""
		return m.refreshRows(), nil
	case "R":
		m.svc.Rescan()
		return m, nil
	case "a":
		if t, ok := m.selectedTrack(); ok {
			m.svc.Enqueue(t.ID)
			m.status = "Queued " + trackLabel(t)
		}
		return m, nil
	case "A":
		return m.addToOpenPlaylist()
	case "N":
		if m.screen == screenPlaylists && m.openPl == "" {
			m.inputMode = inputPlaylist
			m.input = ""
		}
		return m, nil
	case "d":
		return m.handleDelete()
	case "c":
		if m.screen == screenQueue {
			m.svc.ClearQueue()
			m.selection = 0
			m.status = "Queue cleared"
		}
		return m, nil
	case "X":
		return m.removeSelectedTrack()
	}
	return m, nil
}

func (m Model) handlePaletteKey(msg tea.KeyMsg, key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc", "ctrl+p":
		m.palette.Hide()
		return m, nil
	case "enter":
		if cmd := m.palette.Selected(); cmd != nil {
			m.palette.Hide()
			return cmd.Handler(&m)
		}
		return m, nil
	case "up":
		m.palette.MoveUp()
		return m, nil
	case "down":
		m.palette.MoveDown()
		return m, nil
	case "backspace":
		m.palette.Backspace()
		return m, nil
	case "space":
		m.palette.Type(' ')
		return m, nil
	default:
		if len(msg.Runes) == 1 {
			m.palette.Type(msg.Runes[0])
		}
		return m, nil
	}
}

func (m Model) handleInputKey(msg tea.KeyMsg, key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc":
		if m.inputMode == inputSearch {
			m.input = ""
			m.inputMode = inputNone
			return m.refreshRows(), nil
		}
		m.input = ""
		m.inputMode = inputNone
		return m, nil
	case "enter":
		if m.inputMode == inputPlaylist && strings.TrimSpace(m.input) != "" {
			name := strings.TrimSpace(m.input)
			m.input = ""
			m.inputMode = inputNone
			if err := m.svc.CreatePlaylist(context.Background(), name); err != nil {
				return m.setError(err)
			}
			m.status = "Created playlist " + name
			return m.refreshRows(), nil
		}
		m.inputMode = inputNone
		return m, nil
	case "backspace":
		if rs := []rune(m.input); len(rs) > 0 {
			m.input = string(rs[:len(rs)-1])
		}
		if m.inputMode == inputSearch {
			return m.refreshRows(), nil
		}
		return m, nil
	case "space":
		m.input += " "
		if m.inputMode == inputSearch {
			return m.refreshRows(), nil
		}
		return m, nil
	default:
		if len(msg.Runes) == 1 {
			m.input += string(msg.Runes[0])
			if m.inputMode == inputSearch {
				return m.refreshRows(), nil
			}
		}
		return m, nil
	}
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenLibrary, screenFavorites, screenRecent:
		return m.playRows()
	case screenPlaylists:
		if m.openPl == "" {
			if len(m.playlists) == 0 {
				return m, nil
			}
			idx := clamp(m.selection, 0, len(m.playlists)-1)
			m.openPl = m.playlists[idx].Name
			m.selection = 0
			return m.refreshRows(), nil
		}
		if len(m.rows) == 0 {
			return m, nil
		}
		idx := clamp(m.selection, 0, len(m.rows)-1)
		if err := m.svc.PlayPlaylist(m.openPl, idx); err != nil {
			return m.setError(err)
		}
		return m, nil
	case screenQueue:
		return m.playRows()
	}
	return m, nil
}

// playRows replaces the queue with the visible rows, starting at the
// selection.
func (m Model) playRows() (tea.Model, tea.Cmd) {
	if len(m.rows) == 0 {
		return m, nil
	}
	idx := clamp(m.selection, 0, len(m.rows)-1)
	if err := m.svc.Play(trackIDs(m.rows), idx); err != nil {
		return m.setError(err)
	}
	return m, nil
}

func (m Model) toggleFavorite() (tea.Model, tea.Cmd) {
	t, ok := m.selectedTrack()
	if m.screen == screenNowPlaying {
		t, ok = m.svc.NowPlaying()
	}
	if !ok {
		return m, nil
	}
	fav, err := m.svc.ToggleFavorite(context.Background(), t.ID)
	if err != nil {
		return m.setError(err)
	}
	if fav {
		m.status = "Favorited " + trackLabel(t)
	} else {
		m.status = "Unfavorited " + trackLabel(t)
	}
	return m.refreshRows(), nil
}

func (m Model) addToOpenPlaylist() (tea.Model, tea.Cmd) {
	if m.openPl == "" {
		m.status = "Open a playlist first (tab to Playlists, enter)"
		return m, nil
	}
	t, ok := m.selectedTrack()
	if !ok {
		return m, nil
	}
	if err := m.svc.AddToPlaylist(context.Background(), m.openPl, t.ID); err != nil {
		return m.setError(err)
	}
	m.status = fmt.Sprintf("Added %s to %s", trackLabel(t), m.openPl)
	return m, nil
}

func (m Model) handleDelete() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenQueue:
		if len(m.rows) == 0 {
			return m, nil
		}
		idx := clamp(m.selection, 0, len(m.rows)-1)
		m.svc.RemoveFromQueue(m.rows[idx].ID)
		if m.selection >= len(m.rows)-1 && m.selection > 0 {
			m.selection--
		}
		return m.refreshRows(), nil
	case screenPlaylists:
		if m.openPl == "" {
			if len(m.playlists) == 0 {
				return m, nil
			}
			idx := clamp(m.selection, 0, len(m.playlists)-1)
			name := m.playlists[idx].Name
			if err := m.svc.DeletePlaylist(context.Background(), name); err != nil {
				return m.setError(err)
			}
			m.status = "Deleted playlist " + name
			if m.selection > 0 {
				m.selection--
			}
			return m.refreshRows(), nil
		}
		if len(m.rows) == 0 {
			return m, nil
		}
		idx := clamp(m.selection, 0, len(m.rows)-1)
		if err := m.svc.RemoveFromPlaylist(context.Background(), m.openPl, idx); err != nil {
			return m.setError(err)
		}
		if m.selection > 0 {
			m.selection--
		}
		return m.refreshRows(), nil
	}
	return m, nil
}

// removeSelectedTrack drops the track from the library entirely.
func (m Model) removeSelectedTrack() (tea.Model, tea.Cmd) {
	t, ok := m.selectedTrack()
	if !ok {
		return m, nil
	}
	if err := m.svc.RemoveTrack(context.Background(), t.ID); err != nil {
		return m.setError(err)
	}
	m.status = "Removed " + trackLabel(t)
	if m.selection > 0 {
		m.selection--
	}
	return m.refreshRows(), nil
}

func (m Model) seekBy(delta time.Duration) {
	_ = m.svc.SeekBy(delta)
}

func (m Model) refreshRows() Model {
	switch m.screen {
	case screenLibrary:
		var rows []library.Track
		for t := range m.svc.Index().Query(library.Filter{Search: m.input}) {
			rows = append(rows, t)
		}
		m.rows = rows
	case screenFavorites:
		var rows []library.Track
		for t := range m.svc.Index().Query(library.Filter{FavoritesOnly: true}) {
			rows = append(rows, t)
		}
		m.rows = rows
	case screenRecent:
		m.rows = m.svc.Index().RecentlyPlayed(recentLimit)
	case screenPlaylists:
		m.playlists = m.svc.Index().Playlists()
		if m.openPl != "" {
			rows, err := m.svc.Index().PlaylistTracks(m.openPl)
			if err != nil {
				m.openPl = ""
				m.rows = nil
			} else {
				m.rows = rows
			}
		} else {
			m.rows = nil
		}
	case screenQueue:
		ids := m.svc.Queue().Items()
		rows := make([]library.Track, 0, len(ids))
		for _, id := range ids {
			if t, ok := m.svc.Index().Get(id); ok {
				rows = append(rows, t)
			}
		}
		m.rows = rows
	case screenNowPlaying:
		m.rows = nil
	}
	if n := m.listLen(); m.selection >= n && n > 0 {
		m.selection = n - 1
	} else if n == 0 {
		m.selection = 0
	}
	return m
}

func (m Model) listLen() int {
	if m.screen == screenPlaylists && m.openPl == "" {
		return len(m.playlists)
	}
	return len(m.rows)
}

func (m Model) selectedTrack() (library.Track, bool) {
	if len(m.rows) == 0 {
		return library.Track{}, false
	}
	idx := clamp(m.selection, 0, len(m.rows)-1)
	return m.rows[idx], true
}

func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	var main string
	switch m.screen {
	case screenNowPlaying:
		main = m.renderNowPlaying()
	case screenLibrary:
		main = m.renderLibrary()
	case screenPlaylists:
		main = m.renderPlaylists()
	case screenFavorites:
		main = m.renderRows("No favorites yet (press f on a track)")
	case screenRecent:
		main = m.renderRows("Nothing played yet")
	case screenQueue:
		main = m.renderQueue()
	}

	status := m.theme.Dim.Render(m.status)
	if m.errorMsg != "" {
		status = m.theme.Error.Render(m.errorMsg)
	}
	view := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTopBar(),
		main,
		status,
		m.renderTransportBar(),
	)

	if m.palette.Open() {
		return m.palette.Render(&m)
	}
	if m.showDiag {
		return m.diag.Render(&m)
	}
	return view
}

func (m Model) renderTopBar() string {
	title := m.theme.Title.Render("tonearm") + m.theme.Dim.Render(" ▸ ") + m.theme.Accent.Render(m.screenTitle())
	if m.scanning {
		badge := "scanning"
		if m.scanLine != "" {
			badge = "scanning " + m.scanLine
		}
		title += "  " + m.theme.Warning.Render(badge)
	}
	return title
}

func (m Model) screenTitle() string {
	switch m.screen {
	case screenNowPlaying:
		return "Now Playing"
	case screenLibrary:
		return "Library"
	case screenPlaylists:
		if m.openPl != "" {
			return "Playlist: " + m.openPl
		}
		return "Playlists"
	case screenFavorites:
		return "Favorites"
	case screenRecent:
		return "Recent"
	case screenQueue:
		return "Queue"
	default:
		return ""
	}
}

func (m Model) renderNowPlaying() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.nowPlaying.ID == "" {
		b.WriteString(m.theme.Dim.Render("Nothing playing") + "\n")
		b.WriteString(m.theme.Dim.Render("Press tab for the library, enter to play") + "\n")
	} else {
		t := m.nowPlaying
		fav := ""
		if cur, ok := m.svc.Index().Get(t.ID); ok && cur.Favorite {
			fav = " " + m.theme.Accent.Render("♥")
		}
		b.WriteString(m.theme.Accent.Render(t.Title) + fav + "\n")
		b.WriteString(m.theme.Text.Render(t.Artist) + "\n")
		if t.Album != "" {
			b.WriteString(m.theme.Dim.Render(t.Album) + "\n")
		}
		b.WriteString("\n")

		width := m.width - 4
		if width < 10 {
			width = 10
		}
		pct := 0.0
		if m.duration > 0 {
			pct = float64(m.position) / float64(m.duration)
		}
		filled := clamp(int(float64(width)*pct), 0, width)
		bar := strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
		b.WriteString(m.theme.Highlight.Render(bar) + "\n")
		b.WriteString(m.theme.Dim.Render(fmtTime(m.position)+" / "+fmtTime(m.duration)) + "\n")
	}

	if m.vis != nil && m.showVis && m.playState == player.StatePlaying {
		w := m.width - 4
		if w < 16 {
			w = 16
		}
		b.WriteString("\n" + m.vis.RenderSized(w, 8, m.theme.Name == "rainbow") + "\n")
	}

	b.WriteString("\n" + m.theme.Title.Render("Up Next") + "\n")
	if next, ok := m.peekNext(); ok {
		b.WriteString(m.theme.Text.Render(trackLabel(next)) + "\n")
	} else {
		b.WriteString(m.theme.Dim.Render("(end of queue)") + "\n")
	}
	return b.String()
}

// peekNext resolves the track the walk would advance to, for display only.
func (m Model) peekNext() (library.Track, bool) {
	q := m.svc.Queue()
	items := q.Items()
	pos := q.Pos()
	if len(items) == 0 || pos < 0 {
		return library.Track{}, false
	}
	var nextID string
	switch {
	case q.Repeat() == queue.RepeatOne:
		nextID = items[pos]
	case pos+1 < len(items):
		nextID = items[pos+1]
	case q.Repeat() == queue.RepeatAll:
		nextID = items[0]
	default:
		return library.Track{}, false
	}
	return m.svc.Index().Get(nextID)
}

func (m Model) renderLibrary() string {
	var b strings.Builder
	if m.inputMode == inputSearch || m.input != "" {
		prompt := m.theme.Accent.Render("search: ") + m.theme.Text.Render(m.input)
		if m.inputMode == inputSearch {
			prompt += m.theme.Accent.Render("▏")
		}
		b.WriteString(prompt + "\n")
	}
	b.WriteString(m.renderRows("No tracks — press R to scan your library"))
	return b.String()
}

func (m Model) renderPlaylists() string {
	if m.openPl != "" {
		return m.renderRows("Playlist is empty — press A on a library track to add it")
	}

	var b strings.Builder
	if m.inputMode == inputPlaylist {
		b.WriteString(m.theme.Accent.Render("new playlist: ") + m.theme.Text.Render(m.input) + m.theme.Accent.Render("▏") + "\n")
	}
	if len(m.playlists) == 0 {
		b.WriteString(m.theme.Dim.Render("No playlists — press N to create one") + "\n")
		return b.String()
	}
	start, end := m.viewport(len(m.playlists))
	for i := start; i < end; i++ {
		p := m.playlists[i]
		prefix := "  "
		if i == m.selection {
			prefix = "⏵ "
		}
		line := fmt.Sprintf("%s%s (%d tracks)", prefix, p.Name, len(p.TrackIDs))
		if i == m.selection {
			b.WriteString(m.theme.Highlight.Render(line) + "\n")
		} else {
			b.WriteString(m.theme.Text.Render(line) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderQueue() string {
	var b strings.Builder
	if len(m.rows) == 0 {
		b.WriteString(m.theme.Dim.Render("Queue is empty — press a on a track to queue it") + "\n")
		return b.String()
	}
	pos := m.svc.Queue().Pos()
	start, end := m.viewport(len(m.rows))
	for i := start; i < end; i++ {
		t := m.rows[i]
		marker := "  "
		if i == pos {
			marker = m.theme.Success.Render("♪ ")
		}
		prefix := "  "
		if i == m.selection {
			prefix = "⏵ "
		}
		line := fmt.Sprintf("%s%s%2d. %s", prefix, marker, i+1, trackLabel(t))
		if i == m.selection {
			b.WriteString(m.theme.Highlight.Render(line) + "\n")
		} else {
			b.WriteString(m.theme.Text.Render(line) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderRows(empty string) string {
	var b strings.Builder
	if len(m.rows) == 0 {
		b.WriteString(m.theme.Dim.Render(empty) + "\n")
		return b.String()
	}
	start, end := m.viewport(len(m.rows))
	for i := start; i < end; i++ {
		t := m.rows[i]
		prefix := "  "
		if i == m.selection {
			prefix = "⏵ "
		}
		fav := "  "
		if t.Favorite {
			fav = "♥ "
		}
		line := fmt.Sprintf("%s%s%s (%s)", prefix, fav, trackLabel(t), fmtTime(time.Duration(t.DurationMs)*time.Millisecond))
		if i == m.selection {
			b.WriteString(m.theme.Highlight.Render(line) + "\n")
		} else {
			b.WriteString(m.theme.Text.Render(line) + "\n")
		}
	}
	if len(m.rows) > end-start {
		b.WriteString(m.theme.Dim.Render(fmt.Sprintf("  … %d of %d", end-start, len(m.rows))) + "\n")
	}
	return b.String()
}

// viewport windows a list of n rows around the selection.
func (m Model) viewport(n int) (start, end int) {
	h := m.height - 6
	if h < 5 {
		h = 5
	}
	if h > m.cfg.UI.PageSize {
		h = m.cfg.UI.PageSize
	}
	if n <= h {
		return 0, n
	}
	start = clamp(m.selection-h/2, 0, n-h)
	return start, start + h
}

func (m Model) renderTransportBar() string {
	em := !m.cfg.UI.NoEmoji

	var state string
	switch m.playState {
	case player.StatePlaying:
		state = "⏵"
	case player.StatePaused:
		state = "⏸"
	case player.StateLoading:
		state = "…"
	default:
		state = "■"
	}

	name := "(stopped)"
	if m.nowPlaying.ID != "" {
		name = trackLabel(m.nowPlaying)
	}

	progress := ""
	if m.duration > 0 && m.playState != player.StateStopped && m.playState != player.StateIdle {
		progress = " " + fmtTime(m.position) + "/" + fmtTime(m.duration)
	}

	shuffle := ""
	if m.svc.Queue().Shuffled() {
		shuffle = " [shuf]"
		if em {
			shuffle = " 🔀"
		}
	}
	repeat := ""
	switch m.svc.Queue().Repeat() {
	case queue.RepeatAll:
		repeat = " [rep]"
		if em {
			repeat = " 🔁"
		}
	case queue.RepeatOne:
		repeat = " [rep1]"
		if em {
			repeat = " 🔂"
		}
	}

	return fmt.Sprintf("%s %s%s  Vol %d%%%s%s", state, name, progress, m.volume, shuffle, repeat)
}

func (m Model) renderHelp() string {
	k := m.cfg.Keybindings
	lines := []string{
		m.theme.Title.Render("Help"),
		"",
		m.theme.Accent.Render("Screens"),
		"  tab/shift+tab : Cycle screens",
		"  " + pad(k.Search) + ": Search the library",
		"  ctrl+p        : Command palette",
		"  ctrl+d        : Diagnostics",
		"  " + pad(k.Help) + ": Toggle help",
		"  " + pad(k.Quit) + ": Quit",
		"",
		m.theme.Accent.Render("Playback"),
		"  " + pad(k.PlayPause) + ": Play / pause",
		"  " + pad(k.Stop) + ": Stop",
		"  " + pad(k.NextTrack+" / "+k.PrevTrack) + ": Next / previous",
		"  " + pad(k.SeekBackward+" / "+k.SeekForward) + ": Seek ±" + fmt.Sprintf("%ds", m.cfg.Player.SeekSmall),
		"  " + pad("H / L") + ": Seek ±" + fmt.Sprintf("%ds", m.cfg.Player.SeekLarge),
		"  " + pad(k.VolumeDown+" / "+k.VolumeUp) + ": Volume down / up",
		"  " + pad(k.Shuffle) + ": Toggle shuffle",
		"  " + pad(k.Repeat) + ": Cycle repeat",
		"  " + pad(k.Visualizer) + ": Toggle visualizer",
		"",
		m.theme.Accent.Render("Lists"),
		"  j / k         : Move selection",
		"  g / G         : First / last",
		"  enter         : Play from here / open playlist",
		"  " + pad(k.Favorite) + ": Toggle favorite",
		"  a             : Add to queue",
		"  A             : Add to open playlist",
		"  d             : Remove (queue entry, playlist, playlist track)",
		"  X             : Remove track from library",
		"  N             : New playlist (on Playlists)",
		"  R             : Rescan library",
	}
	return strings.Join(lines, "\n")
}

func pad(s string) string {
	for len(s) < 14 {
		s += " "
	}
	return s
}

func trackLabel(t library.Track) string {
	if t.ID == "" {
		return ""
	}
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " — " + t.Title
}

func repeatLabel(m queue.RepeatMode) string {
	switch m {
	case queue.RepeatAll:
		return "all"
	case queue.RepeatOne:
		return "one"
	default:
		return "off"
	}
}

func fmtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func trackIDs(rows []library.Track) []string {
	ids := make([]string, len(rows))
	for i, t := range rows {
		ids[i] = t.ID
	}
	return ids
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func noColorEnv() bool {
	return os.Getenv("NO_COLOR") != ""
}
