package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/logging"
	"github.com/tonearm/tonearm/internal/scanner"
	"github.com/tonearm/tonearm/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the library roots and update the catalog",
	Long:  "Walks every configured library root, reads tags from new and changed files, and removes tracks whose files are gone. Run it after moving your collection around; the running player rescans on its own.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan() error {
	cfg, _, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	roots := cfg.ExpandedRoots()
	if len(roots) == 0 {
		return fmt.Errorf("no library roots configured; set library.roots in the config")
	}

	logger, logFile, err := logging.Setup()
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

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
	defer st.Close()

	idx := library.New(st)
	if err := idx.Load(ctx); err != nil {
		return fmt.Errorf("load library: %w", err)
	}

	fmt.Printf("Scanning %d root(s)...\n", len(roots))
	sc := scanner.New(scanner.Options{
		Index:   idx,
		Logger:  logger,
		Workers: cfg.Library.ScanWorkers,
		OnProgress: func(p scanner.Progress) {
			display := p.Path
			if len(display) > 60 {
				display = "..." + display[len(display)-57:]
			}
			fmt.Printf("\r\033[K  %d/%d %s", p.Scanned, p.Total, display)
		},
	})
	sum, err := sc.Scan(ctx, roots)
	fmt.Printf("\r\033[K")
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	fmt.Printf("Scan complete in %s\n", sum.Elapsed.Round(time.Millisecond))
	fmt.Printf("  %s added, %s updated, %s unchanged (%s of audio)\n",
		humanize.Comma(int64(sum.Added)), humanize.Comma(int64(sum.Updated)),
		humanize.Comma(int64(sum.Skipped)), humanize.IBytes(uint64(sum.Bytes)))
	if sum.Removed > 0 {
		fmt.Printf("  %s removed (files gone)\n", humanize.Comma(int64(sum.Removed)))
	}
	if sum.Unsupported > 0 {
		fmt.Printf("  %s not recognized as audio\n", humanize.Comma(int64(sum.Unsupported)))
	}
	if sum.Corrupt > 0 {
		fmt.Printf("  %s corrupt\n", humanize.Comma(int64(sum.Corrupt)))
	}
	if sum.Failed > 0 {
		fmt.Printf("  %s failed to read\n", humanize.Comma(int64(sum.Failed)))
	}
	fmt.Printf("  %s tracks in the library\n", humanize.Comma(int64(idx.Len())))
	return nil
}
