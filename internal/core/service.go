// Package core wires the catalog, queue, playback engine and store
// into the command surface the UI drives.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tonearm/tonearm/internal/config"
	"github.com/tonearm/tonearm/internal/events"
	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/metadata"
	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/queue"
	"github.com/tonearm/tonearm/internal/scanner"
	"github.com/tonearm/tonearm/internal/store"
	"github.com/tonearm/tonearm/internal/visualizer"
)

// Bus payloads published by the service.
type (
	// StateChanged mirrors every engine transition.
	StateChanged struct {
		State player.State
		Track library.Track
		Err   error
	}
	QueueChanged   struct{}
	LibraryChanged struct{}
	VolumeChanged  struct{ Volume int }
	ScanStarted    struct{}
	ScanProgress   scanner.Progress
	ScanFinished   struct {
		Summary scanner.Summary
		Err     error
	}
)

// Options configures New.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *store.Store
	// Output overrides the audio device, for tests.
	Output player.Output
	// Extract overrides metadata extraction during scans, for tests.
	Extract func(path string) (metadata.Meta, error)
}

// Service owns the moving parts and serializes transport commands.
// cmdMu orders explicit user commands against the auto-advance in the
// event pump, so the last command always decides the final state.
type Service struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *store.Store
	index  *library.Index
	queue  *queue.Queue
	engine *player.Engine
	scan   *scanner.Scanner
	vis    *visualizer.Visualizer
	bus    *events.Bus

	cmdMu sync.Mutex

	mu         sync.Mutex
	currentID  string
	scanID     string
	scanCancel context.CancelFunc

	ctx      context.Context
	cancel   context.CancelFunc
	pumpDone chan struct{}
}

func New(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("core: config required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("core: store required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cfg := opts.Config

	s := &Service{
		cfg:      cfg,
		log:      opts.Logger,
		store:    opts.Store,
		bus:      events.NewBus(),
		pumpDone: make(chan struct{}),
	}
	s.index = library.New(opts.Store)
	s.queue = queue.New()
	if cfg.Visualizer.Enabled {
		s.vis = visualizer.New(visualizer.Config{
			BarCount:   cfg.Visualizer.Bars,
			SampleRate: cfg.Player.SampleRate,
		})
	}
	var tap func([][2]float64)
	if s.vis != nil {
		tap = s.vis.Feed
	}
	s.engine = player.New(player.Options{
		Logger:     opts.Logger,
		Output:     opts.Output,
		SampleRate: cfg.Player.SampleRate,
		Tap:        tap,
	})
	s.scan = scanner.New(scanner.Options{
		Index:      s.index,
		Logger:     opts.Logger,
		Workers:    cfg.Library.ScanWorkers,
		Extract:    opts.Extract,
		OnProgress: func(p scanner.Progress) { s.publish(ScanProgress(p)) },
	})

	s.index.OnRemove(s.onTrackRemoved)
	return s, nil
}

// Start loads the catalog, restores the previous session and begins
// pumping engine events. Playback is not resumed automatically.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.index.Load(s.ctx); err != nil {
		return fmt.Errorf("load library: %w", err)
	}
	if err := s.restoreSession(s.ctx); err != nil {
		s.log.Warn("session restore failed", slog.Any("err", err))
	}

	go s.pump()

	if s.vis != nil {
		if err := s.vis.Start(s.ctx); err != nil {
			s.log.Warn("visualizer start failed", slog.Any("err", err))
		}
	}

	roots := s.cfg.ExpandedRoots()
	if s.cfg.Library.Watch && len(roots) > 0 {
		w, err := scanner.NewWatcher(scanner.WatcherOptions{
			Roots:    roots,
			Logger:   s.log,
			OnChange: s.Rescan,
		})
		if err != nil {
			s.log.Warn("watcher unavailable", slog.Any("err", err))
		} else {
			go func() {
				if err := w.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.log.Warn("watcher stopped", slog.Any("err", err))
				}
			}()
		}
	}

	if s.index.Len() == 0 && len(roots) > 0 {
		s.Rescan()
	}
	s.log.Info("service started", slog.Int("tracks", s.index.Len()))
	return nil
}

// Close stops playback, persists the session and releases the store.
func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.pumpDone
	}
	_ = s.engine.Stop()
	if s.vis != nil {
		s.vis.Stop()
	}
	s.saveSession()
	return s.store.Close()
}

// Subscribe returns a channel of bus payloads and a cancel func.
func (s *Service) Subscribe() (<-chan events.Event, func()) {
	return s.bus.Subscribe()
}

// Index exposes the catalog for reads. Mutations go through the
// service so change events reach subscribers.
func (s *Service) Index() *library.Index { return s.index }

func (s *Service) Queue() *queue.Queue { return s.queue }

func (s *Service) Engine() *player.Engine { return s.engine }

// Visualizer returns nil when disabled in the config.
func (s *Service) Visualizer() *visualizer.Visualizer { return s.vis }

// NowPlaying resolves the track loaded in the engine.
func (s *Service) NowPlaying() (library.Track, bool) {
	s.mu.Lock()
	id := s.currentID
	s.mu.Unlock()
	if id == "" {
		return library.Track{}, false
	}
	return s.index.Get(id)
}

func (s *Service) publish(ev events.Event) {
	s.bus.Publish(ev)
}

// pump translates engine events into bus events and drives the
// auto-advance when tracks end naturally.
func (s *Service) pump() {
	defer close(s.pumpDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.engine.Events():
			if ev.Ended {
				s.handleTrackEnd(ev)
				continue
			}
			s.publish(StateChanged{State: ev.State, Track: s.trackByPath(ev.Path), Err: ev.Err})
		}
	}
}

func (s *Service) handleTrackEnd(ev player.Event) {
	s.publish(StateChanged{State: ev.State, Track: s.trackByPath(ev.Path)})

	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if !s.engine.Fresh(ev) {
		// A stop or a new load got there first.
		return
	}

	s.mu.Lock()
	ended := s.currentID
	s.currentID = ""
	s.mu.Unlock()
	if ended != "" {
		if err := s.index.MarkPlayed(s.ctx, ended, time.Now()); err != nil {
			s.log.Warn("mark played failed", slog.String("track", ended), slog.Any("err", err))
		}
	}

	next, err := s.queue.Advance()
	if err != nil {
		// Queue exhausted; the engine already settled in Stopped.
		s.publish(QueueChanged{})
		s.saveSession()
		return
	}
	if err := s.loadTrack(next); err != nil {
		s.log.Error("auto-advance failed", slog.String("track", next), slog.Any("err", err))
		return
	}
	s.publish(QueueChanged{})
	s.saveSession()
}

// loadTrack hands a track to the engine. Callers hold cmdMu.
func (s *Service) loadTrack(id string) error {
	t, ok := s.index.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", library.ErrUnknownTrack, id)
	}
	s.mu.Lock()
	s.currentID = id
	s.mu.Unlock()
	return s.engine.Load(t.Path)
}

func (s *Service) trackByPath(path string) library.Track {
	if path == "" {
		return library.Track{}
	}
	t, _ := s.index.Get(library.TrackID(path))
	return t
}

// onTrackRemoved keeps the queue and engine consistent when a track
// leaves the index, whether by user action or by a scan.
func (s *Service) onTrackRemoved(id string) {
	s.queue.Remove(id)
	s.mu.Lock()
	wasCurrent := s.currentID == id
	if wasCurrent {
		s.currentID = ""
	}
	s.mu.Unlock()
	if wasCurrent {
		_ = s.engine.Stop()
	}
	s.publish(QueueChanged{})
	s.publish(LibraryChanged{})
}

func (s *Service) restoreSession(ctx context.Context) error {
	sess, err := s.store.LoadSession(ctx)
	if err != nil {
		return err
	}
	s.engine.SetVolume(sess.Volume)

	// Drop queue entries whose tracks no longer exist.
	kept := make([]string, 0, len(sess.QueueIDs))
	pos := -1
	for i, id := range sess.QueueIDs {
		if _, ok := s.index.Get(id); !ok {
			continue
		}
		if i == sess.QueuePos {
			pos = len(kept)
		}
		kept = append(kept, id)
	}
	if pos == -1 && sess.QueuePos >= 0 && len(kept) > 0 {
		pos = 0
	}
	s.queue.Restore(kept, pos, queue.RepeatMode(sess.Repeat), sess.Shuffled)
	return nil
}

// saveSession is best effort; a failure is logged, never fatal, and
// uses its own context so it still works during shutdown.
func (s *Service) saveSession() {
	ids, pos, repeat, shuffled := s.queue.Snapshot()
	s.mu.Lock()
	cur := s.currentID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.store.SaveSession(ctx, store.Session{
		Volume:       s.engine.Volume(),
		Repeat:       int(repeat),
		Shuffled:     shuffled,
		QueueIDs:     ids,
		QueuePos:     pos,
		CurrentTrack: cur,
	})
	if err != nil {
		s.log.Warn("session save failed", slog.Any("err", err))
	}
}
