package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/core"
	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/metadata"
	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/scanner"
	"github.com/tonearm/tonearm/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeStream struct {
	mu     sync.Mutex
	paused bool
	pos    time.Duration
}

func (s *fakeStream) Pause(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *fakeStream) Seek(to time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = to
	return nil
}

func (s *fakeStream) SetVolume(int) {}

func (s *fakeStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *fakeStream) Duration() time.Duration { return 3 * time.Second }
func (s *fakeStream) Close()                  {}

type fakeOutput struct{}

func (o *fakeOutput) Open(path string, volume int, done func(), fail func(error)) (player.Stream, error) {
	return &fakeStream{}, nil
}

func fakeExtract(path string) (metadata.Meta, error) {
	return metadata.Meta{Title: filepath.Base(path), Format: metadata.FormatMP3}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Player.Volume = 70
	cfg.Player.VolumeStep = 5
	cfg.Player.SeekSmall = 5
	cfg.Player.SeekLarge = 30
	cfg.Player.SampleRate = 44100
	cfg.UI.Theme = "rainbow"
	cfg.UI.PageSize = 100
	cfg.Library.ScanWorkers = 2
	cfg.Keybindings = config.KeybindConfig{
		PlayPause:    "space",
		Stop:         "x",
		NextTrack:    "n",
		PrevTrack:    "p",
		SeekForward:  "l",
		SeekBackward: "h",
		VolumeUp:     "+",
		VolumeDown:   "-",
		Shuffle:      "s",
		Repeat:       "r",
		Favorite:     "f",
		Visualizer:   "v",
		Search:       "/",
		Help:         "?",
		Quit:         "q",
	}
	return cfg
}

func newTestApp(t *testing.T, titles ...string) (Model, *core.Service) {
	t.Helper()
	cfg := testConfig()
	st, err := store.Open(context.Background(), store.Options{
		Driver:        "sqlite",
		Path:          filepath.Join(t.TempDir(), "db"),
		DefaultVolume: cfg.Player.Volume,
		Logger:        discard,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc, err := core.New(core.Options{
		Config:  cfg,
		Logger:  discard,
		Store:   st,
		Output:  &fakeOutput{},
		Extract: fakeExtract,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	for i, title := range titles {
		track := library.Track{
			Path:       fmt.Sprintf("/music/%02d.mp3", i),
			Title:      title,
			Artist:     "Artist",
			Album:      "Album",
			Format:     "mp3",
			DurationMs: 3000,
		}
		if err := svc.Index().UpsertTrack(context.Background(), track); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return New(cfg, svc), svc
}

func updateModel(m Model, msg tea.Msg) (Model, tea.Cmd) {
	nm, cmd := m.Update(msg)
	return nm.(Model), cmd
}

func press(m Model, keys ...rune) Model {
	for _, k := range keys {
		m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{k}})
	}
	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestTabCyclesScreens(t *testing.T) {
	m, _ := newTestApp(t, "One")

	want := []screen{screenPlaylists, screenFavorites, screenRecent, screenQueue, screenNowPlaying, screenLibrary}
	for _, expected := range want {
		m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyTab})
		if m.screen != expected {
			t.Fatalf("screen = %d, want %d", m.screen, expected)
		}
	}
}

func TestSearchFiltersRows(t *testing.T) {
	m, _ := newTestApp(t, "Blue Monday", "Transmission", "Atmosphere")

	if len(m.rows) != 3 {
		t.Fatalf("initial rows = %d", len(m.rows))
	}
	m = press(m, '/')
	if m.inputMode != inputSearch {
		t.Fatal("slash should begin a search")
	}
	m = press(m, 'b', 'l', 'u', 'e')
	if len(m.rows) != 1 || m.rows[0].Title != "Blue Monday" {
		t.Fatalf("filtered rows = %+v", m.rows)
	}

	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.inputMode != inputNone || len(m.rows) != 3 {
		t.Fatalf("escape should clear the filter, rows = %d", len(m.rows))
	}
}

func TestEnterPlaysFromSelection(t *testing.T) {
	m, svc := newTestApp(t, "One", "Two", "Three")

	m = press(m, 'j')
	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyEnter})

	wantID := m.rows[1].ID
	waitFor(t, func() bool {
		now, ok := svc.NowPlaying()
		return ok && now.ID == wantID && svc.Engine().State() == player.StatePlaying
	})
	if svc.Queue().Len() != 3 {
		t.Fatalf("queue len = %d", svc.Queue().Len())
	}
}

func TestFavoriteKeyToggles(t *testing.T) {
	m, svc := newTestApp(t, "One", "Two")

	id := m.rows[0].ID
	m = press(m, 'f')
	if tr, _ := svc.Index().Get(id); !tr.Favorite {
		t.Fatal("track should be favorited")
	}

	m.screen = screenFavorites
	m = m.refreshRows()
	if len(m.rows) != 1 || m.rows[0].ID != id {
		t.Fatalf("favorites rows = %+v", m.rows)
	}

	m.screen = screenLibrary
	m = m.refreshRows()
	m = press(m, 'f')
	if tr, _ := svc.Index().Get(id); tr.Favorite {
		t.Fatal("second press should unfavorite")
	}
}

func TestQueueScreenDelete(t *testing.T) {
	m, svc := newTestApp(t, "One", "Two")
	svc.Enqueue(m.rows[0].ID, m.rows[1].ID)

	m.screen = screenQueue
	m = m.refreshRows()
	if len(m.rows) != 2 {
		t.Fatalf("queue rows = %d", len(m.rows))
	}

	m = press(m, 'd')
	if svc.Queue().Len() != 1 {
		t.Fatalf("queue len after delete = %d", svc.Queue().Len())
	}
	if len(m.rows) != 1 {
		t.Fatalf("rows after delete = %d", len(m.rows))
	}
}

func TestPaletteRunsCommand(t *testing.T) {
	m, svc := newTestApp(t, "One")

	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyCtrlP})
	if !m.palette.Open() {
		t.Fatal("palette should open")
	}
	m = press(m, 's', 'h', 'u', 'f')
	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.palette.Open() {
		t.Fatal("palette should close after running")
	}
	if !svc.Queue().Shuffled() {
		t.Fatal("shuffle command should have run")
	}
}

func TestCreatePlaylistFlow(t *testing.T) {
	m, svc := newTestApp(t, "One")

	m.screen = screenPlaylists
	m = m.refreshRows()
	m = press(m, 'N')
	if m.inputMode != inputPlaylist {
		t.Fatal("N should begin playlist name input")
	}
	m = press(m, 'r', 'o', 'a', 'd')
	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyEnter})

	pls := svc.Index().Playlists()
	if len(pls) != 1 || pls[0].Name != "road" {
		t.Fatalf("playlists = %+v", pls)
	}
	if len(m.playlists) != 1 {
		t.Fatalf("model playlists = %d", len(m.playlists))
	}
}

func TestStateEventUpdatesTransport(t *testing.T) {
	m, _ := newTestApp(t, "One")

	track := m.rows[0]
	m, _ = updateModel(m, busMsg{ev: core.StateChanged{State: player.StatePlaying, Track: track}})

	if !strings.Contains(m.status, "Playing") {
		t.Fatalf("status = %q", m.status)
	}
	bar := m.renderTransportBar()
	if !strings.Contains(bar, "One") {
		t.Fatalf("transport bar = %q", bar)
	}
}

func TestScanEventsDriveBadge(t *testing.T) {
	m, _ := newTestApp(t, "One")

	m, _ = updateModel(m, busMsg{ev: core.ScanStarted{}})
	if !m.scanning {
		t.Fatal("scan start should set the badge")
	}
	top := m.renderTopBar()
	if !strings.Contains(top, "scanning") {
		t.Fatalf("top bar = %q", top)
	}

	sum := scanner.Summary{Added: 4, Elapsed: 100 * time.Millisecond}
	m, _ = updateModel(m, busMsg{ev: core.ScanFinished{Summary: sum}})
	if m.scanning {
		t.Fatal("scan finish should clear the badge")
	}
	if !strings.Contains(m.status, "4 added") {
		t.Fatalf("status = %q", m.status)
	}
}

func TestHelpOverlay(t *testing.T) {
	m, _ := newTestApp(t, "One")

	m = press(m, '?')
	if !m.showHelp {
		t.Fatal("help should show")
	}
	if !strings.Contains(m.View(), "Playback") {
		t.Fatal("help view should list playback keys")
	}
	m = press(m, 'j')
	if m.showHelp {
		t.Fatal("any other key should dismiss help")
	}
}

func TestQuitKeyReturnsQuit(t *testing.T) {
	m, _ := newTestApp(t, "One")

	_, cmd := updateModel(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit key should produce a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("quit key should quit")
	}
}

func TestViewListsTracks(t *testing.T) {
	m, _ := newTestApp(t, "Blue Monday")
	m, _ = updateModel(m, tea.WindowSizeMsg{Width: 80, Height: 24})

	view := m.View()
	if !strings.Contains(view, "Blue Monday") {
		t.Fatal("library view should list the track")
	}
	if !strings.Contains(view, "(stopped)") {
		t.Fatal("transport bar should show stopped")
	}
}
