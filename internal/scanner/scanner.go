// Package scanner walks library roots and reconciles the on-disk files
// with the track index.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/metadata"
)

// ErrBusy is returned when a scan is already running.
var ErrBusy = errors.New("scanner: scan already running")

// Options configures the Scanner.
type Options struct {
	Index   *library.Index
	Logger  *slog.Logger
	Workers int
	// Extract reads tags and duration from a file. Defaults to
	// metadata.Extract.
	Extract    func(path string) (metadata.Meta, error)
	OnProgress func(Progress)
}

// Progress reports one processed file out of the walked total.
type Progress struct {
	Scanned int
	Total   int
	Path    string
}

// Summary tallies one scan. Unsupported and Corrupt split out extractor
// rejections by kind; Failed is everything else that could not be read.
// Bytes is the combined size of the files added, updated, or skipped.
type Summary struct {
	Added       int
	Updated     int
	Skipped     int
	Removed     int
	Unsupported int
	Corrupt     int
	Failed      int
	Bytes       int64
	Elapsed     time.Duration
}

type Scanner struct {
	idx     *library.Index
	log     *slog.Logger
	workers int
	extract func(path string) (metadata.Meta, error)
	onProg  func(Progress)

	mu      sync.Mutex
	running bool
}

func New(opts Options) *Scanner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Extract == nil {
		opts.Extract = metadata.Extract
	}
	return &Scanner{
		idx:     opts.Index,
		log:     opts.Logger,
		workers: opts.Workers,
		extract: opts.Extract,
		onProg:  opts.OnProgress,
	}
}

type walkItem struct {
	path  string
	size  int64
	mtime int64
}

// audioExt is the walk's extension allowlist. Content sniffing at extract
// time still decides what a file really is.
var audioExt = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".wav":  true,
	".wma":  true,
}

// Scan reconciles the index with the files under roots. A file that
// cannot be read is logged and counted, never fatal. Tracks whose files
// have disappeared are removed only when the walk ran to completion
// without cancellation, so an interrupted scan never drops tracks.
func (s *Scanner) Scan(ctx context.Context, roots []string) (Summary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Summary{}, ErrBusy
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	s.log.Info("scan started", slog.Any("roots", roots))

	items, seen, err := s.walk(ctx, roots)
	if err != nil {
		return Summary{Elapsed: time.Since(start)}, err
	}

	var (
		sumMu   sync.Mutex
		sum     Summary
		scanned int
	)
	bump := func(fn func(*Summary)) {
		sumMu.Lock()
		fn(&sum)
		sumMu.Unlock()
	}
	progress := func(path string) {
		if s.onProg == nil {
			return
		}
		sumMu.Lock()
		scanned++
		p := Progress{Scanned: scanned, Total: len(items), Path: path}
		sumMu.Unlock()
		s.onProg(p)
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan walkItem)
	g.Go(func() error {
		defer close(jobs)
		for _, it := range items {
			select {
			case jobs <- it:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for it := range jobs {
				if err := s.processFile(gctx, it, bump); err != nil {
					return err
				}
				progress(it.path)
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sum.Elapsed = time.Since(start)
		return sum, err
	}

	// Removal phase. Guarded again even though g.Wait was clean, since
	// the caller may cancel between phases.
	if ctx.Err() == nil {
		removed, err := s.removeMissing(ctx, roots, seen)
		sum.Removed = removed
		if err != nil {
			sum.Elapsed = time.Since(start)
			return sum, err
		}
	}

	sum.Elapsed = time.Since(start)
	s.log.Info("scan finished",
		slog.Int("added", sum.Added),
		slog.Int("updated", sum.Updated),
		slog.Int("skipped", sum.Skipped),
		slog.Int("removed", sum.Removed),
		slog.Int("unsupported", sum.Unsupported),
		slog.Int("corrupt", sum.Corrupt),
		slog.Int("failed", sum.Failed),
		slog.Duration("elapsed", sum.Elapsed))
	return sum, nil
}

// walk gathers allowlisted files under roots. Dot files and directories
// are skipped. seen records every collected path for the removal phase.
func (s *Scanner) walk(ctx context.Context, roots []string) ([]walkItem, map[string]bool, error) {
	var items []walkItem
	seen := map[string]bool{}
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				s.log.Warn("walk error", slog.String("path", path), slog.Any("err", err))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") && path != root {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !audioExt[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				s.log.Warn("stat failed", slog.String("path", path), slog.Any("err", err))
				return nil
			}
			seen[path] = true
			items = append(items, walkItem{path: path, size: info.Size(), mtime: info.ModTime().Unix()})
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return items, seen, nil
}

// processFile decides whether a file needs extraction and upserts it.
// Only persistence failures propagate; everything else is counted.
func (s *Scanner) processFile(ctx context.Context, it walkItem, bump func(func(*Summary))) error {
	id := library.TrackID(it.path)
	prev, existed := s.idx.Get(id)
	if existed && prev.FileMtime == it.mtime && prev.FileSize == it.size {
		bump(func(sum *Summary) {
			sum.Skipped++
			sum.Bytes += it.size
		})
		return nil
	}

	meta, err := s.extract(it.path)
	switch {
	case errors.Is(err, metadata.ErrUnsupportedFormat):
		s.log.Debug("not recognized as audio", slog.String("path", it.path))
		bump(func(sum *Summary) { sum.Unsupported++ })
		return nil
	case errors.Is(err, metadata.ErrCorruptFile):
		s.log.Warn("corrupt audio file", slog.String("path", it.path), slog.Any("err", err))
		bump(func(sum *Summary) { sum.Corrupt++ })
		return nil
	case err != nil:
		s.log.Warn("metadata extraction failed", slog.String("path", it.path), slog.Any("err", err))
		bump(func(sum *Summary) { sum.Failed++ })
		return nil
	}

	track := library.Track{
		ID:         id,
		Path:       it.path,
		Title:      meta.Title,
		Artist:     meta.Artist,
		Album:      meta.Album,
		Genre:      meta.Genre,
		Year:       meta.Year,
		TrackNo:    meta.TrackNo,
		Format:     string(meta.Format),
		DurationMs: meta.DurationMs,
		FileSize:   it.size,
		FileMtime:  it.mtime,
	}
	if track.Title == "" {
		track.Title = strings.TrimSuffix(filepath.Base(it.path), filepath.Ext(it.path))
	}
	if err := s.idx.UpsertTrack(ctx, track); err != nil {
		if errors.Is(err, library.ErrPersistenceUnavailable) {
			return err
		}
		s.log.Warn("index update failed", slog.String("path", it.path), slog.Any("err", err))
		bump(func(sum *Summary) { sum.Failed++ })
		return nil
	}
	bump(func(sum *Summary) {
		if existed {
			sum.Updated++
		} else {
			sum.Added++
		}
		sum.Bytes += it.size
	})
	return nil
}

func (s *Scanner) removeMissing(ctx context.Context, roots []string, seen map[string]bool) (int, error) {
	removed := 0
	for _, t := range s.idx.Tracks() {
		if seen[t.Path] || !underAnyRoot(t.Path, roots) {
			continue
		}
		if err := s.idx.RemoveTrack(ctx, t.ID); err != nil {
			if errors.Is(err, library.ErrPersistenceUnavailable) {
				return removed, err
			}
			s.log.Warn("remove failed", slog.String("path", t.Path), slog.Any("err", err))
			continue
		}
		s.log.Debug("removed missing track", slog.String("path", t.Path))
		removed++
	}
	return removed, nil
}

func underAnyRoot(path string, roots []string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
