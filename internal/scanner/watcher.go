package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Roots    []string
	Debounce time.Duration // defaults to 2s
	Logger   *slog.Logger
	// OnChange fires once per burst of filesystem events, after the
	// debounce window closes.
	OnChange func()
}

// Watcher triggers rescans when files change under the library roots.
// fsnotify is not recursive, so every directory is registered and new
// directories are added as they appear.
type Watcher struct {
	opts WatcherOptions
	fw   *fsnotify.Watcher
}

func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{opts: opts, fw: fw}
	for _, root := range opts.Roots {
		if err := w.addTree(root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return fs.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.opts.Logger.Warn("watch failed", slog.String("path", path), slog.Any("err", err))
		}
		return nil
	})
}

// Run blocks until ctx is cancelled, coalescing event bursts into
// OnChange calls.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.opts.Logger.Warn("watch new dir failed", slog.String("path", ev.Name), slog.Any("err", err))
					}
				}
			}
			w.opts.Logger.Debug("fs event", slog.String("op", ev.Op.String()), slog.String("path", ev.Name))
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.opts.OnChange()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watch error", slog.Any("err", err))
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		}
	}
}
