package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds Tonearm runtime configuration loaded from TOML.
type Config struct {
	ConfigVersion int              `toml:"config_version"`
	Library       LibraryConfig    `toml:"library"`
	Database      DatabaseConfig   `toml:"database"`
	Player        PlayerConfig     `toml:"player"`
	UI            UIConfig         `toml:"ui"`
	Visualizer    VisualizerConfig `toml:"visualizer"`
	Keybindings   KeybindConfig    `toml:"keybindings"`
}

// LibraryConfig holds music library locations and scan settings.
type LibraryConfig struct {
	Roots       []string `toml:"roots"`
	Watch       bool     `toml:"watch"`
	ScanWorkers int      `toml:"scan_workers"`
}

// DatabaseConfig selects the persistence backend. The sqlite driver stores
// its file under the state directory unless a path is given; the mysql
// driver requires a DSN.
type DatabaseConfig struct {
	Driver string `toml:"driver"` // "sqlite", "mysql"
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

type PlayerConfig struct {
	Volume     int `toml:"volume"`
	VolumeStep int `toml:"volume_step"`
	SeekSmall  int `toml:"seek_small_seconds"`
	SeekLarge  int `toml:"seek_large_seconds"`
	SampleRate int `toml:"sample_rate"`
}

type UIConfig struct {
	PageSize int    `toml:"page_size"`
	NoEmoji  bool   `toml:"no_emoji"`
	Theme    string `toml:"theme"`
}

// VisualizerConfig holds spectrum display settings.
type VisualizerConfig struct {
	Enabled bool `toml:"enabled"`
	Bars    int  `toml:"bars"`
}

// KeybindConfig allows customizing keybindings.
type KeybindConfig struct {
	PlayPause    string `toml:"play_pause"`
	Stop         string `toml:"stop"`
	NextTrack    string `toml:"next_track"`
	PrevTrack    string `toml:"prev_track"`
	SeekForward  string `toml:"seek_forward"`
	SeekBackward string `toml:"seek_backward"`
	VolumeUp     string `toml:"volume_up"`
	VolumeDown   string `toml:"volume_down"`
	Shuffle      string `toml:"shuffle"`
	Repeat       string `toml:"repeat"`
	Favorite     string `toml:"favorite"`
	Visualizer   string `toml:"visualizer"`
	Search       string `toml:"search"`
	Help         string `toml:"help"`
	Quit         string `toml:"quit"`
}

// Load reads configuration from disk. If path is empty, a default OS-specific
// location is used. A missing file at the default location yields the default
// configuration rather than an error.
func Load(path string) (*Config, string, error) {
	cfgPath := path
	usingDefault := false
	if cfgPath == "" {
		var err error
		cfgPath, err = defaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve config path: %w", err)
		}
		usingDefault = true
	}

	var cfg Config
	data, err := os.ReadFile(cfgPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, cfgPath, fmt.Errorf("parse config: %w", err)
		}
	case usingDefault && errors.Is(err, os.ErrNotExist):
		// First run, nothing written yet.
	default:
		return nil, cfgPath, fmt.Errorf("read config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

func defaultPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(dir, "Tonearm")
	default:
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(dir, "tonearm")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(base, "config.toml"), nil
}

func applyDefaults(cfg *Config) {
	if cfg.ConfigVersion == 0 {
		cfg.ConfigVersion = 1
	}
	if cfg.Library.ScanWorkers == 0 {
		cfg.Library.ScanWorkers = 4
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Player.Volume == 0 {
		cfg.Player.Volume = 70
	}
	if cfg.Player.VolumeStep == 0 {
		cfg.Player.VolumeStep = 5
	}
	if cfg.Player.SeekSmall == 0 {
		cfg.Player.SeekSmall = 5
	}
	if cfg.Player.SeekLarge == 0 {
		cfg.Player.SeekLarge = 30
	}
	if cfg.Player.SampleRate == 0 {
		cfg.Player.SampleRate = 44100
	}
	if cfg.UI.PageSize == 0 {
		cfg.UI.PageSize = 100
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = "rainbow"
	}
	if cfg.Visualizer.Bars == 0 {
		cfg.Visualizer.Bars = 24
	}
	// Keybinding defaults
	if cfg.Keybindings.PlayPause == "" {
		cfg.Keybindings.PlayPause = "space"
	}
	if cfg.Keybindings.Stop == "" {
		cfg.Keybindings.Stop = "x"
	}
	if cfg.Keybindings.NextTrack == "" {
		cfg.Keybindings.NextTrack = "n"
	}
	if cfg.Keybindings.PrevTrack == "" {
		cfg.Keybindings.PrevTrack = "p"
	}
	if cfg.Keybindings.SeekForward == "" {
		cfg.Keybindings.SeekForward = "l"
	}
	if cfg.Keybindings.SeekBackward == "" {
		cfg.Keybindings.SeekBackward = "h"
	}
	if cfg.Keybindings.VolumeUp == "" {
		cfg.Keybindings.VolumeUp = "+"
	}
	if cfg.Keybindings.VolumeDown == "" {
		cfg.Keybindings.VolumeDown = "-"
	}
	if cfg.Keybindings.Shuffle == "" {
		cfg.Keybindings.Shuffle = "s"
	}
	if cfg.Keybindings.Repeat == "" {
		cfg.Keybindings.Repeat = "r"
	}
	if cfg.Keybindings.Favorite == "" {
		cfg.Keybindings.Favorite = "f"
	}
	if cfg.Keybindings.Visualizer == "" {
		cfg.Keybindings.Visualizer = "v"
	}
	if cfg.Keybindings.Search == "" {
		cfg.Keybindings.Search = "/"
	}
	if cfg.Keybindings.Help == "" {
		cfg.Keybindings.Help = "?"
	}
	if cfg.Keybindings.Quit == "" {
		// ctrl+c quits unconditionally, this binding is the polite one.
		cfg.Keybindings.Quit = "q"
	}
}

// Validate performs semantic validation of config.
func Validate(cfg Config) error {
	if cfg.Player.Volume < 0 || cfg.Player.Volume > 100 {
		return errors.New("player.volume must be 0-100")
	}
	if cfg.Player.SampleRate < 8000 {
		return fmt.Errorf("player.sample_rate too low: %d", cfg.Player.SampleRate)
	}
	switch cfg.Database.Driver {
	case "sqlite":
	case "mysql":
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
	for _, r := range cfg.Library.Roots {
		if r == "" {
			return errors.New("library.roots contains empty path")
		}
		expanded, err := ExpandPath(r)
		if err != nil {
			return fmt.Errorf("library root %s: %w", r, err)
		}
		if _, err := osStat(expanded); err != nil {
			return fmt.Errorf("library root %s: %w", r, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ against the user home directory and
// returns an absolute path.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return filepath.Abs(path)
}

// ExpandedRoots returns library roots with ~ resolved, skipping entries
// that cannot be expanded.
func (c Config) ExpandedRoots() []string {
	out := make([]string, 0, len(c.Library.Roots))
	for _, r := range c.Library.Roots {
		p, err := ExpandPath(r)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// osStat is a test seam.
var osStat = func(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
