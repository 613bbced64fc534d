package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/logging"
	"github.com/tonearm/tonearm/internal/store"
	"github.com/tonearm/tonearm/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and dependencies",
	Long:  "Verifies the config file, state directory, database and library roots without starting playback or scanning.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor() error {
	fmt.Println("tonearm doctor")

	cfg, resolvedPath, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Config: ERROR - %v\n", err)
		return nil
	}
	fmt.Printf("Config: OK (%s)\n", resolvedPath)

	if ui.ValidTheme(cfg.UI.Theme) {
		fmt.Printf("Theme: OK (%s)\n", cfg.UI.Theme)
	} else {
		fmt.Printf("Theme: %q unknown, falling back to rainbow (available: %s)\n",
			cfg.UI.Theme, strings.Join(ui.ThemeNames(), ", "))
	}

	checkKeybindings(cfg)

	stateDir, err := logging.StateDir()
	if err != nil {
		fmt.Printf("State dir: ERROR - %v\n", err)
	} else {
		fmt.Printf("State dir: OK (%s)\n", stateDir)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{
		Driver:        cfg.Database.Driver,
		Path:          cfg.Database.Path,
		DSN:           cfg.Database.DSN,
		DefaultVolume: cfg.Player.Volume,
		Logger:        logging.Discard(),
	})
	if err != nil {
		fmt.Printf("Database (%s): ERROR - %v\n", cfg.Database.Driver, err)
	} else {
		idx := library.New(st)
		if err := idx.Load(ctx); err != nil {
			fmt.Printf("Database (%s): ERROR - %v\n", cfg.Database.Driver, err)
		} else {
			fmt.Printf("Database (%s): OK (%s tracks)\n", cfg.Database.Driver, humanize.Comma(int64(idx.Len())))
		}
		st.Close()
	}

	if len(cfg.Library.Roots) == 0 {
		fmt.Println("Library roots: NONE configured (set library.roots in the config)")
		return nil
	}
	for _, root := range cfg.ExpandedRoots() {
		info, err := os.Stat(root)
		switch {
		case err != nil:
			fmt.Printf("Root %s: NOT FOUND\n", root)
		case !info.IsDir():
			fmt.Printf("Root %s: NOT A DIRECTORY\n", root)
		default:
			fmt.Printf("Root %s: OK\n", root)
		}
	}
	return nil
}

// checkKeybindings reports actions bound to the same key.
func checkKeybindings(cfg *config.Config) {
	k := cfg.Keybindings
	actions := []struct {
		name string
		key  string
	}{
		{"play_pause", k.PlayPause},
		{"stop", k.Stop},
		{"next_track", k.NextTrack},
		{"prev_track", k.PrevTrack},
		{"seek_forward", k.SeekForward},
		{"seek_backward", k.SeekBackward},
		{"volume_up", k.VolumeUp},
		{"volume_down", k.VolumeDown},
		{"shuffle", k.Shuffle},
		{"repeat", k.Repeat},
		{"favorite", k.Favorite},
		{"visualizer", k.Visualizer},
		{"search", k.Search},
		{"help", k.Help},
		{"quit", k.Quit},
	}

	seen := make(map[string]string, len(actions))
	conflicts := 0
	for _, a := range actions {
		if prev, dup := seen[a.key]; dup {
			fmt.Printf("Keybindings: CONFLICT - %q bound to both %s and %s\n", a.key, prev, a.name)
			conflicts++
			continue
		}
		seen[a.key] = a.name
	}
	if conflicts == 0 {
		fmt.Println("Keybindings: OK")
	}
}
