package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/player"
	"github.com/tonearm/tonearm/internal/queue"
	"github.com/tonearm/tonearm/internal/scanner"
)

// Play replaces the queue with ids and starts playback at start. When
// shuffle is on the selected track still plays first.
func (s *Service) Play(ids []string, start int) error {
	if len(ids) == 0 {
		return queue.ErrEmpty
	}
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	s.queue.Reset(ids, start)
	id, err := s.queue.Current()
	if err != nil {
		return err
	}
	if err := s.loadTrack(id); err != nil {
		return err
	}
	s.publish(QueueChanged{})
	s.saveSession()
	return nil
}

// PlayPlaylist replaces the queue with a playlist's tracks and starts
// at the given index.
func (s *Service) PlayPlaylist(name string, start int) error {
	tracks, err := s.index.PlaylistTracks(name)
	if err != nil {
		return err
	}
	ids := lo.Map(tracks, func(t library.Track, _ int) string { return t.ID })
	return s.Play(ids, start)
}

// PlayPause toggles between playing and paused. With nothing loaded it
// starts the track under the queue cursor.
func (s *Service) PlayPause() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	switch s.engine.State() {
	case player.StatePlaying, player.StateLoading:
		return s.engine.Pause(true)
	case player.StatePaused:
		return s.engine.Pause(false)
	default:
		id, err := s.queue.Current()
		if err != nil {
			return err
		}
		return s.loadTrack(id)
	}
}

// Pause suspends playback. Already paused is a no-op.
func (s *Service) Pause() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	return s.engine.Pause(true)
}

// Resume continues paused playback.
func (s *Service) Resume() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	return s.engine.Pause(false)
}

// Stop halts playback and clears the loaded track. The queue cursor
// and volume survive.
func (s *Service) Stop() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	s.mu.Lock()
	s.currentID = ""
	s.mu.Unlock()
	if err := s.engine.Stop(); err != nil {
		return err
	}
	s.saveSession()
	return nil
}

// Next moves to the next queue entry and plays it. At the tail this
// wraps only under repeat-all; otherwise the cursor and playback stay
// where they are and ErrExhausted comes back.
func (s *Service) Next() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	id, err := s.queue.Next()
	if err != nil {
		return err
	}
	if err := s.loadTrack(id); err != nil {
		return err
	}
	s.publish(QueueChanged{})
	s.saveSession()
	return nil
}

// Previous mirrors Next toward the head of the queue.
func (s *Service) Previous() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	id, err := s.queue.Previous()
	if err != nil {
		return err
	}
	if err := s.loadTrack(id); err != nil {
		return err
	}
	s.publish(QueueChanged{})
	s.saveSession()
	return nil
}

// SeekBy moves the play position, clamped to the track bounds.
func (s *Service) SeekBy(delta time.Duration) error {
	return s.engine.Seek(delta)
}

// Seek jumps to an absolute position within the playing track.
func (s *Service) Seek(to time.Duration) error {
	return s.engine.SeekTo(to)
}

func (s *Service) SetVolume(v int) {
	s.engine.SetVolume(v)
	s.publish(VolumeChanged{Volume: s.engine.Volume()})
	s.saveSession()
}

func (s *Service) AdjustVolume(delta int) {
	s.SetVolume(s.engine.Volume() + delta)
}

// Enqueue appends tracks to the end of the play order.
func (s *Service) Enqueue(ids ...string) {
	s.queue.Append(ids...)
	s.publish(QueueChanged{})
	s.saveSession()
}

func (s *Service) RemoveFromQueue(id string) {
	s.queue.Remove(id)
	s.publish(QueueChanged{})
	s.saveSession()
}

func (s *Service) ClearQueue() {
	s.queue.Clear()
	s.publish(QueueChanged{})
	s.saveSession()
}

// ToggleShuffle flips shuffle mode and returns the new state.
func (s *Service) ToggleShuffle() bool {
	on := !s.queue.Shuffled()
	s.queue.SetShuffle(on)
	s.publish(QueueChanged{})
	s.saveSession()
	return on
}

// SetRepeat pins the repeat mode.
func (s *Service) SetRepeat(m queue.RepeatMode) {
	s.queue.SetRepeat(m)
	s.publish(QueueChanged{})
	s.saveSession()
}

// CycleRepeat advances repeat-off -> repeat-all -> repeat-one.
func (s *Service) CycleRepeat() queue.RepeatMode {
	m := s.queue.CycleRepeat()
	s.publish(QueueChanged{})
	s.saveSession()
	return m
}

// ToggleFavorite flips a track's favorite flag.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	fav, err := s.index.ToggleFavorite(ctx, id)
	if err != nil {
		return false, err
	}
	s.publish(LibraryChanged{})
	return fav, nil
}

// RemoveTrack deletes a track from the library. Queue entries and the
// engine follow through the removal hook.
func (s *Service) RemoveTrack(ctx context.Context, id string) error {
	if err := s.index.RemoveTrack(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Service) CreatePlaylist(ctx context.Context, name string) error {
	if err := s.index.CreatePlaylist(ctx, name); err != nil {
		return err
	}
	s.publish(LibraryChanged{})
	return nil
}

func (s *Service) DeletePlaylist(ctx context.Context, name string) error {
	if err := s.index.DeletePlaylist(ctx, name); err != nil {
		return err
	}
	s.publish(LibraryChanged{})
	return nil
}

func (s *Service) AddToPlaylist(ctx context.Context, name, trackID string) error {
	if err := s.index.AddToPlaylist(ctx, name, trackID); err != nil {
		return err
	}
	s.publish(LibraryChanged{})
	return nil
}

func (s *Service) RemoveFromPlaylist(ctx context.Context, name string, index int) error {
	if err := s.index.RemoveFromPlaylist(ctx, name, index); err != nil {
		return err
	}
	s.publish(LibraryChanged{})
	return nil
}

// Rescan kicks off a background scan of the configured roots. Progress
// and the result arrive on the bus; a scan already in flight yields a
// ScanFinished carrying scanner.ErrBusy.
func (s *Service) Rescan() {
	ctx, cancel := context.WithCancel(s.ctx)
	runID := uuid.NewString()
	go func() {
		s.mu.Lock()
		if s.scanCancel == nil {
			s.scanID, s.scanCancel = runID, cancel
		}
		s.mu.Unlock()

		s.publish(ScanStarted{})
		sum, err := s.scan.Scan(ctx, s.cfg.ExpandedRoots())
		s.publish(ScanFinished{Summary: sum, Err: err})
		if err == nil {
			s.publish(LibraryChanged{})
		}

		s.mu.Lock()
		if s.scanID == runID {
			s.scanID, s.scanCancel = "", nil
		}
		s.mu.Unlock()
		cancel()
	}()
}

// CancelScan stops a running scan between files. Upserts already
// applied stay put; the next scan converges.
func (s *Service) CancelScan() {
	s.mu.Lock()
	cancel := s.scanCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ScanOnce runs a scan synchronously, for the scan subcommand.
func (s *Service) ScanOnce(ctx context.Context) (scanner.Summary, error) {
	sum, err := s.scan.Scan(ctx, s.cfg.ExpandedRoots())
	if err == nil {
		s.publish(LibraryChanged{})
	}
	return sum, err
}

// Snapshot is a point-in-time view of the transport and queue for
// callers that do not follow the event stream.
type Snapshot struct {
	State    player.State
	Track    library.Track
	Position time.Duration
	Duration time.Duration
	Volume   int
	QueueLen int
	QueuePos int
	Shuffled bool
	Repeat   queue.RepeatMode
}

func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{
		State:    s.engine.State(),
		Position: s.engine.Position(),
		Duration: s.engine.Duration(),
		Volume:   s.engine.Volume(),
		QueueLen: s.queue.Len(),
		QueuePos: s.queue.Pos(),
		Shuffled: s.queue.Shuffled(),
		Repeat:   s.queue.Repeat(),
	}
	if t, ok := s.NowPlaying(); ok {
		snap.Track = t
	}
	return snap
}
