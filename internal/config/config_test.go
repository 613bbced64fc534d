package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Library:  LibraryConfig{Roots: []string{root}},
				Database: DatabaseConfig{Driver: "sqlite"},
				Player:   PlayerConfig{Volume: 50, SampleRate: 44100},
			},
			wantErr: false,
		},
		{
			name: "volume out of range",
			cfg: Config{
				Database: DatabaseConfig{Driver: "sqlite"},
				Player:   PlayerConfig{Volume: 150, SampleRate: 44100},
			},
			wantErr: true,
		},
		{
			name: "mysql without dsn",
			cfg: Config{
				Database: DatabaseConfig{Driver: "mysql"},
				Player:   PlayerConfig{Volume: 50, SampleRate: 44100},
			},
			wantErr: true,
		},
		{
			name: "unknown driver",
			cfg: Config{
				Database: DatabaseConfig{Driver: "postgres"},
				Player:   PlayerConfig{Volume: 50, SampleRate: 44100},
			},
			wantErr: true,
		},
		{
			name: "missing root",
			cfg: Config{
				Library:  LibraryConfig{Roots: []string{filepath.Join(root, "nope")}},
				Database: DatabaseConfig{Driver: "sqlite"},
				Player:   PlayerConfig{Volume: 50, SampleRate: 44100},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	body := "[library]\nroots = [" + quote(dir) + "]\n\n[ui]\ntheme = \"mono\"\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, gotPath, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gotPath != cfgPath {
		t.Errorf("path = %s, want %s", gotPath, cfgPath)
	}
	if cfg.UI.Theme != "mono" {
		t.Errorf("theme = %s, want mono", cfg.UI.Theme)
	}
	if cfg.Player.Volume != 70 {
		t.Errorf("default volume = %d, want 70", cfg.Player.Volume)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default driver = %s, want sqlite", cfg.Database.Driver)
	}
	if cfg.Keybindings.PlayPause != "space" {
		t.Errorf("default play_pause = %q, want space", cfg.Keybindings.PlayPause)
	}
	if cfg.Player.SampleRate != 44100 {
		t.Errorf("default sample_rate = %d, want 44100", cfg.Player.SampleRate)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("library = {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(cfgPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got, err := ExpandPath("~/Music")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := filepath.Join(home, "Music")
	if got != want {
		t.Errorf("expand = %s, want %s", got, want)
	}
}

func quote(s string) string {
	return `"` + s + `"`
}
