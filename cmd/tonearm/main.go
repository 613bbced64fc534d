package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tonearm/tonearm/internal/app"
	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/core"
	"github.com/tonearm/tonearm/internal/logging"
	"github.com/tonearm/tonearm/internal/store"
)

var version = "0.1.0"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:     "tonearm",
	Short:   "Tonearm is a terminal music player",
	Long:    "Tonearm plays your local music collection from the terminal: library browsing, playlists, favorites, a persistent queue and a spectrum visualizer.",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: ~/.config/tonearm/config.toml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runTUI() error {
	cfg, resolvedPath, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, logFile, err := logging.Setup()
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()
	logger.Info("starting tonearm", slog.String("version", version), slog.String("config", resolvedPath))

	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{
		Driver:        cfg.Database.Driver,
		Path:          cfg.Database.Path,
		DSN:           cfg.Database.DSN,
		DefaultVolume: cfg.Player.Volume,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	svc, err := core.New(core.Options{
		Config: cfg,
		Logger: logger,
		Store:  st,
	})
	if err != nil {
		st.Close()
		return err
	}
	if err := svc.Start(ctx); err != nil {
		st.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Close()

	model := app.New(cfg, svc)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("run tui", slog.Any("err", err))
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
