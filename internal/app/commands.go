package app

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tonearm/tonearm/internal/queue"
)

// Command is one action reachable through the command palette.
type Command struct {
	ID         string
	Name       string
	Category   string
	Keybinding string
	Handler    func(m *Model) (Model, tea.Cmd)
}

// CommandRegistry holds all palette commands.
type CommandRegistry struct {
	commands []Command
}

// NewCommandRegistry builds the registry. Keybinding hints come from the
// resolved config, so the palette always shows the user's own bindings.
func NewCommandRegistry(m *Model) *CommandRegistry {
	k := m.cfg.Keybindings
	r := &CommandRegistry{}

	goTo := func(id, name string, s screen) {
		r.register(Command{
			ID:       id,
			Name:     name,
			Category: "Navigation",
			Handler: func(m *Model) (Model, tea.Cmd) {
				m.screen = s
				m.selection = 0
				m.openPl = ""
				return m.refreshRows(), nil
			},
		})
	}
	goTo("nav.now_playing", "Go to Now Playing", screenNowPlaying)
	goTo("nav.library", "Go to Library", screenLibrary)
	goTo("nav.playlists", "Go to Playlists", screenPlaylists)
	goTo("nav.favorites", "Go to Favorites", screenFavorites)
	goTo("nav.recent", "Go to Recent", screenRecent)
	goTo("nav.queue", "Go to Queue", screenQueue)

	r.register(Command{
		ID:         "playback.play_pause",
		Name:       "Play/Pause",
		Category:   "Playback",
		Keybinding: k.PlayPause,
		Handler: func(m *Model) (Model, tea.Cmd) {
			if err := m.svc.PlayPause(); err != nil && !errors.Is(err, queue.ErrEmpty) {
				return m.setError(err)
			}
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "playback.stop",
		Name:       "Stop",
		Category:   "Playback",
		Keybinding: k.Stop,
		Handler: func(m *Model) (Model, tea.Cmd) {
			if err := m.svc.Stop(); err != nil {
				return m.setError(err)
			}
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "playback.next",
		Name:       "Next Track",
		Category:   "Playback",
		Keybinding: k.NextTrack,
		Handler: func(m *Model) (Model, tea.Cmd) {
			if err := m.svc.Next(); err != nil {
				m.status = "End of queue"
			}
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "playback.prev",
		Name:       "Previous Track",
		Category:   "Playback",
		Keybinding: k.PrevTrack,
		Handler: func(m *Model) (Model, tea.Cmd) {
			if err := m.svc.Previous(); err != nil {
				m.status = "Start of queue"
			}
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "playback.shuffle",
		Name:       "Toggle Shuffle",
		Category:   "Playback",
		Keybinding: k.Shuffle,
		Handler: func(m *Model) (Model, tea.Cmd) {
			if m.svc.ToggleShuffle() {
				m.status = "Shuffle on"
			} else {
				m.status = "Shuffle off"
			}
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "playback.repeat",
		Name:       "Cycle Repeat",
		Category:   "Playback",
		Keybinding: k.Repeat,
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.status = "Repeat: " + repeatLabel(m.svc.CycleRepeat())
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "playback.volume_up",
		Name:       "Volume Up",
		Category:   "Playback",
		Keybinding: k.VolumeUp,
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.svc.AdjustVolume(m.cfg.Player.VolumeStep)
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "playback.volume_down",
		Name:       "Volume Down",
		Category:   "Playback",
		Keybinding: k.VolumeDown,
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.svc.AdjustVolume(-m.cfg.Player.VolumeStep)
			return *m, nil
		},
	})

	r.register(Command{
		ID:         "library.rescan",
		Name:       "Rescan Library",
		Category:   "Library",
		Keybinding: "R",
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.svc.Rescan()
			return *m, nil
		},
	})
	r.register(Command{
		ID:       "library.cancel_scan",
		Name:     "Cancel Scan",
		Category: "Library",
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.svc.CancelScan()
			return *m, nil
		},
	})
	r.register(Command{
		ID:       "library.new_playlist",
		Name:     "New Playlist",
		Category: "Library",
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.screen = screenPlaylists
			m.openPl = ""
			m.inputMode = inputPlaylist
			m.input = ""
			return m.refreshRows(), nil
		},
	})
	r.register(Command{
		ID:       "queue.clear",
		Name:     "Clear Queue",
		Category: "Library",
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.svc.ClearQueue()
			m.status = "Queue cleared"
			return *m, nil
		},
	})

	r.register(Command{
		ID:         "ui.visualizer",
		Name:       "Toggle Visualizer",
		Category:   "UI",
		Keybinding: k.Visualizer,
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.showVis = !m.showVis
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "ui.diagnostics",
		Name:       "Diagnostics",
		Category:   "UI",
		Keybinding: "ctrl+d",
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.showDiag = !m.showDiag
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "ui.help",
		Name:       "Show Help",
		Category:   "UI",
		Keybinding: k.Help,
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.showHelp = !m.showHelp
			return *m, nil
		},
	})
	r.register(Command{
		ID:         "ui.quit",
		Name:       "Quit",
		Category:   "UI",
		Keybinding: k.Quit,
		Handler: func(m *Model) (Model, tea.Cmd) {
			m.unsubscribe()
			return *m, tea.Quit
		},
	})

	return r
}

func (r *CommandRegistry) register(cmd Command) {
	r.commands = append(r.commands, cmd)
}

// Commands returns all registered commands.
func (r *CommandRegistry) Commands() []Command {
	return r.commands
}

// Names returns command names in registry order, for fuzzy matching.
func (r *CommandRegistry) Names() []string {
	names := make([]string, len(r.commands))
	for i, cmd := range r.commands {
		names[i] = cmd.Name
	}
	return names
}
