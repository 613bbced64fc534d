// Package library maintains the in-memory track catalog, playlists and
// favorites, mirrored to a durable store before each change is acknowledged.
package library

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Gateway persists index mutations. The index calls the gateway before
// mutating memory; a gateway failure leaves the index unchanged.
type Gateway interface {
	SaveTrack(ctx context.Context, t Track) error
	// DeleteTrack removes the track row and, through the store's foreign
	// keys, its playlist memberships.
	DeleteTrack(ctx context.Context, id string) error
	SavePlaylist(ctx context.Context, p Playlist) error
	DeletePlaylist(ctx context.Context, name string) error
	SetFavorite(ctx context.Context, id string, favorite bool) error
	RecordPlay(ctx context.Context, id string, count int, at time.Time) error
	LoadTracks(ctx context.Context) ([]Track, error)
	LoadPlaylists(ctx context.Context) ([]Playlist, error)
}

// Index is the authoritative catalog of known tracks. All operations are
// safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	gw        Gateway
	tracks    map[string]Track
	playlists map[string][]string
	onRemove  []func(trackID string)
}

func New(gw Gateway) *Index {
	return &Index{
		gw:        gw,
		tracks:    map[string]Track{},
		playlists: map[string][]string{},
	}
}

// Load populates the index from the store. Called once at startup.
func (ix *Index) Load(ctx context.Context) error {
	tracks, err := ix.gw.LoadTracks(ctx)
	if err != nil {
		return fmt.Errorf("load tracks: %w: %w", ErrPersistenceUnavailable, err)
	}
	playlists, err := ix.gw.LoadPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("load playlists: %w: %w", ErrPersistenceUnavailable, err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tracks = make(map[string]Track, len(tracks))
	for _, t := range tracks {
		ix.tracks[t.ID] = t
	}
	ix.playlists = make(map[string][]string, len(playlists))
	for _, p := range playlists {
		ix.playlists[p.Name] = p.TrackIDs
	}
	return nil
}

// OnRemove registers a hook invoked after a track has been removed from the
// index and playlists. Hooks run before RemoveTrack returns.
func (ix *Index) OnRemove(fn func(trackID string)) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.onRemove = append(ix.onRemove, fn)
}

// UpsertTrack inserts or updates a track. On update, listening history and
// favorite status carry over from the existing record.
func (ix *Index) UpsertTrack(ctx context.Context, t Track) error {
	if t.Path == "" {
		return fmt.Errorf("library: track path required")
	}
	if t.ID == "" {
		t.ID = TrackID(t.Path)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if prev, ok := ix.tracks[t.ID]; ok {
		t.Favorite = prev.Favorite
		t.PlayCount = prev.PlayCount
		t.LastPlayed = prev.LastPlayed
		t.AddedAt = prev.AddedAt
		if t == prev {
			return nil
		}
	} else if t.AddedAt.IsZero() {
		t.AddedAt = time.Now()
	}
	if err := ix.gw.SaveTrack(ctx, t); err != nil {
		return fmt.Errorf("save track %s: %w: %w", t.ID, ErrPersistenceUnavailable, err)
	}
	ix.tracks[t.ID] = t
	return nil
}

// RemoveTrack deletes a track and prunes it from every playlist. Registered
// remove hooks run before the call returns.
func (ix *Index) RemoveTrack(ctx context.Context, id string) error {
	ix.mu.Lock()
	if _, ok := ix.tracks[id]; !ok {
		ix.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}
	if err := ix.gw.DeleteTrack(ctx, id); err != nil {
		ix.mu.Unlock()
		return fmt.Errorf("delete track %s: %w: %w", id, ErrPersistenceUnavailable, err)
	}
	delete(ix.tracks, id)
	for name, ids := range ix.playlists {
		ix.playlists[name] = lo.Reject(ids, func(x string, _ int) bool { return x == id })
	}
	hooks := make([]func(string), len(ix.onRemove))
	copy(hooks, ix.onRemove)
	ix.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	return nil
}

func (ix *Index) CreatePlaylist(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("library: playlist name required")
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.playlists[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePlaylist, name)
	}
	if err := ix.gw.SavePlaylist(ctx, Playlist{Name: name}); err != nil {
		return fmt.Errorf("save playlist %s: %w: %w", name, ErrPersistenceUnavailable, err)
	}
	ix.playlists[name] = nil
	return nil
}

func (ix *Index) DeletePlaylist(ctx context.Context, name string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.playlists[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlaylist, name)
	}
	if err := ix.gw.DeletePlaylist(ctx, name); err != nil {
		return fmt.Errorf("delete playlist %s: %w: %w", name, ErrPersistenceUnavailable, err)
	}
	delete(ix.playlists, name)
	return nil
}

// AddToPlaylist appends a track to the end of a playlist. The same track may
// appear more than once.
func (ix *Index) AddToPlaylist(ctx context.Context, name, trackID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ids, ok := ix.playlists[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlaylist, name)
	}
	if _, ok := ix.tracks[trackID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, trackID)
	}
	next := make([]string, len(ids), len(ids)+1)
	copy(next, ids)
	next = append(next, trackID)
	if err := ix.gw.SavePlaylist(ctx, Playlist{Name: name, TrackIDs: next}); err != nil {
		return fmt.Errorf("save playlist %s: %w: %w", name, ErrPersistenceUnavailable, err)
	}
	ix.playlists[name] = next
	return nil
}

// RemoveFromPlaylist removes the entry at the given position.
func (ix *Index) RemoveFromPlaylist(ctx context.Context, name string, index int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ids, ok := ix.playlists[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlaylist, name)
	}
	if index < 0 || index >= len(ids) {
		return fmt.Errorf("library: playlist index %d out of range", index)
	}
	next := make([]string, 0, len(ids)-1)
	next = append(next, ids[:index]...)
	next = append(next, ids[index+1:]...)
	if err := ix.gw.SavePlaylist(ctx, Playlist{Name: name, TrackIDs: next}); err != nil {
		return fmt.Errorf("save playlist %s: %w: %w", name, ErrPersistenceUnavailable, err)
	}
	ix.playlists[name] = next
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (ix *Index) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t, ok := ix.tracks[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}
	next := !t.Favorite
	if err := ix.gw.SetFavorite(ctx, id, next); err != nil {
		return false, fmt.Errorf("set favorite %s: %w: %w", id, ErrPersistenceUnavailable, err)
	}
	t.Favorite = next
	ix.tracks[id] = t
	return next, nil
}

// MarkPlayed records one completed playback of a track.
func (ix *Index) MarkPlayed(ctx context.Context, id string, at time.Time) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t, ok := ix.tracks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}
	count := t.PlayCount + 1
	if err := ix.gw.RecordPlay(ctx, id, count, at); err != nil {
		return fmt.Errorf("record play %s: %w: %w", id, ErrPersistenceUnavailable, err)
	}
	t.PlayCount = count
	t.LastPlayed = at
	ix.tracks[id] = t
	return nil
}

func (ix *Index) Get(id string) (Track, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tracks[id]
	return t, ok
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.tracks)
}

// Query returns a lazy sequence over tracks matching the filter. The
// sequence reflects the index at call time and can be ranged repeatedly.
func (ix *Index) Query(f Filter) iter.Seq[Track] {
	var snap []Track
	if f.Playlist != "" {
		snap, _ = ix.PlaylistTracks(f.Playlist)
	} else {
		snap = ix.snapshot()
	}
	return func(yield func(Track) bool) {
		for _, t := range snap {
			if !f.matches(t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Tracks returns every track ordered by artist, album, track number, title.
func (ix *Index) Tracks() []Track {
	return ix.snapshot()
}

func (ix *Index) snapshot() []Track {
	ix.mu.RLock()
	out := make([]Track, 0, len(ix.tracks))
	for _, t := range ix.tracks {
		out = append(out, t)
	}
	ix.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Artist != b.Artist {
			return strings.ToLower(a.Artist) < strings.ToLower(b.Artist)
		}
		if a.Album != b.Album {
			return strings.ToLower(a.Album) < strings.ToLower(b.Album)
		}
		if a.TrackNo != b.TrackNo {
			return a.TrackNo < b.TrackNo
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
	return out
}

func (f Filter) matches(t Track) bool {
	if f.FavoritesOnly && !t.Favorite {
		return false
	}
	if f.Artist != "" && !strings.EqualFold(t.Artist, f.Artist) {
		return false
	}
	if f.Album != "" && !strings.EqualFold(t.Album, f.Album) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Artist), q) &&
			!strings.Contains(strings.ToLower(t.Album), q) {
			return false
		}
	}
	return true
}

// PlaylistTracks resolves a playlist to tracks in playlist order.
func (ix *Index) PlaylistTracks(name string) ([]Track, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids, ok := ix.playlists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlaylist, name)
	}
	out := make([]Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := ix.tracks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Playlists returns all playlists sorted by name.
func (ix *Index) Playlists() []Playlist {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Playlist, 0, len(ix.playlists))
	for name, ids := range ix.playlists {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out = append(out, Playlist{Name: name, TrackIDs: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RecentlyPlayed returns up to limit tracks ordered by most recent play.
func (ix *Index) RecentlyPlayed(limit int) []Track {
	played := lo.Filter(ix.snapshot(), func(t Track, _ int) bool { return t.PlayCount > 0 })
	sort.Slice(played, func(i, j int) bool { return played[i].LastPlayed.After(played[j].LastPlayed) })
	if limit > 0 && len(played) > limit {
		played = played[:limit]
	}
	return played
}

// Stats summarizes the index.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	s := Stats{Tracks: len(ix.tracks), Playlists: len(ix.playlists)}
	artists := map[string]struct{}{}
	albums := map[string]struct{}{}
	for _, t := range ix.tracks {
		if t.Artist != "" {
			artists[strings.ToLower(t.Artist)] = struct{}{}
		}
		if t.Album != "" {
			albums[strings.ToLower(t.Artist)+"\x00"+strings.ToLower(t.Album)] = struct{}{}
		}
		if t.Favorite {
			s.Favorites++
		}
		s.TotalDuration += time.Duration(t.DurationMs) * time.Millisecond
		s.TotalBytes += t.FileSize
	}
	s.Artists = len(artists)
	s.Albums = len(albums)
	return s
}
