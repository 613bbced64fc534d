package library

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memGateway struct {
	tracks    map[string]Track
	playlists map[string][]string
	saves     int
	fail      error
}

func newMemGateway() *memGateway {
	return &memGateway{tracks: map[string]Track{}, playlists: map[string][]string{}}
}

func (g *memGateway) SaveTrack(_ context.Context, t Track) error {
	if g.fail != nil {
		return g.fail
	}
	g.saves++
	g.tracks[t.ID] = t
	return nil
}

func (g *memGateway) DeleteTrack(_ context.Context, id string) error {
	if g.fail != nil {
		return g.fail
	}
	delete(g.tracks, id)
	for name, ids := range g.playlists {
		kept := ids[:0:0]
		for _, x := range ids {
			if x != id {
				kept = append(kept, x)
			}
		}
		g.playlists[name] = kept
	}
	return nil
}

func (g *memGateway) SavePlaylist(_ context.Context, p Playlist) error {
	if g.fail != nil {
		return g.fail
	}
	g.playlists[p.Name] = p.TrackIDs
	return nil
}

func (g *memGateway) DeletePlaylist(_ context.Context, name string) error {
	if g.fail != nil {
		return g.fail
	}
	delete(g.playlists, name)
	return nil
}

func (g *memGateway) SetFavorite(_ context.Context, id string, fav bool) error {
	if g.fail != nil {
		return g.fail
	}
	t := g.tracks[id]
	t.Favorite = fav
	g.tracks[id] = t
	return nil
}

func (g *memGateway) RecordPlay(_ context.Context, id string, count int, at time.Time) error {
	if g.fail != nil {
		return g.fail
	}
	t := g.tracks[id]
	t.PlayCount = count
	t.LastPlayed = at
	g.tracks[id] = t
	return nil
}

func (g *memGateway) LoadTracks(_ context.Context) ([]Track, error) {
	if g.fail != nil {
		return nil, g.fail
	}
	out := make([]Track, 0, len(g.tracks))
	for _, t := range g.tracks {
		out = append(out, t)
	}
	return out, nil
}

func (g *memGateway) LoadPlaylists(_ context.Context) ([]Playlist, error) {
	if g.fail != nil {
		return nil, g.fail
	}
	out := make([]Playlist, 0, len(g.playlists))
	for name, ids := range g.playlists {
		out = append(out, Playlist{Name: name, TrackIDs: ids})
	}
	return out, nil
}

func testTrack(path, title string) Track {
	return Track{Path: path, Title: title, Artist: "Artist", Album: "Album", Format: "mp3"}
}

func TestUpsertMergesListeningHistory(t *testing.T) {
	ctx := context.Background()
	ix := New(newMemGateway())

	tr := testTrack("/music/a.mp3", "Original")
	if err := ix.UpsertTrack(ctx, tr); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	id := TrackID("/music/a.mp3")
	if _, err := ix.ToggleFavorite(ctx, id); err != nil {
		t.Fatalf("favorite: %v", err)
	}
	when := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := ix.MarkPlayed(ctx, id, when); err != nil {
		t.Fatalf("mark played: %v", err)
	}

	// Re-extraction with new tags must not erase history.
	if err := ix.UpsertTrack(ctx, testTrack("/music/a.mp3", "Retagged")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, ok := ix.Get(id)
	if !ok {
		t.Fatal("track missing after upsert")
	}
	if got.Title != "Retagged" {
		t.Errorf("title = %q, want Retagged", got.Title)
	}
	if !got.Favorite {
		t.Error("favorite flag lost on upsert")
	}
	if got.PlayCount != 1 || !got.LastPlayed.Equal(when) {
		t.Errorf("history lost: count=%d last=%v", got.PlayCount, got.LastPlayed)
	}
	if ix.Len() != 1 {
		t.Errorf("len = %d, want 1", ix.Len())
	}
}

func TestUpsertUnchangedTrackSkipsWrite(t *testing.T) {
	ctx := context.Background()
	gw := newMemGateway()
	ix := New(gw)

	tr := testTrack("/music/a.mp3", "Same")
	if err := ix.UpsertTrack(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if err := ix.UpsertTrack(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if gw.saves != 1 {
		t.Errorf("saves = %d, want 1", gw.saves)
	}
}

func TestRemoveTrackPrunesPlaylistsAndFiresHook(t *testing.T) {
	ctx := context.Background()
	ix := New(newMemGateway())

	if err := ix.UpsertTrack(ctx, testTrack("/music/a.mp3", "A")); err != nil {
		t.Fatal(err)
	}
	if err := ix.UpsertTrack(ctx, testTrack("/music/b.mp3", "B")); err != nil {
		t.Fatal(err)
	}
	idA := TrackID("/music/a.mp3")
	idB := TrackID("/music/b.mp3")

	if err := ix.CreatePlaylist(ctx, "mix"); err != nil {
		t.Fatal(err)
	}
	if err := ix.AddToPlaylist(ctx, "mix", idA); err != nil {
		t.Fatal(err)
	}
	if err := ix.AddToPlaylist(ctx, "mix", idB); err != nil {
		t.Fatal(err)
	}

	var hookID string
	ix.OnRemove(func(id string) { hookID = id })

	if err := ix.RemoveTrack(ctx, idA); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if hookID != idA {
		t.Errorf("hook got %q, want %q", hookID, idA)
	}
	tracks, err := ix.PlaylistTracks("mix")
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range tracks {
		if tr.ID == idA {
			t.Error("removed track still referenced by playlist")
		}
	}
	if len(tracks) != 1 || tracks[0].ID != idB {
		t.Errorf("playlist = %v, want just %s", tracks, idB)
	}
	if _, ok := ix.Get(idA); ok {
		t.Error("removed track still in index")
	}
}

func TestRemoveUnknownTrack(t *testing.T) {
	ix := New(newMemGateway())
	err := ix.RemoveTrack(context.Background(), "nope")
	if !errors.Is(err, ErrUnknownTrack) {
		t.Fatalf("err = %v, want ErrUnknownTrack", err)
	}
}

func TestCreatePlaylistDuplicate(t *testing.T) {
	ctx := context.Background()
	ix := New(newMemGateway())
	if err := ix.CreatePlaylist(ctx, "mix"); err != nil {
		t.Fatal(err)
	}
	err := ix.CreatePlaylist(ctx, "mix")
	if !errors.Is(err, ErrDuplicatePlaylist) {
		t.Fatalf("err = %v, want ErrDuplicatePlaylist", err)
	}
}

func TestAddToPlaylistValidation(t *testing.T) {
	ctx := context.Background()
	ix := New(newMemGateway())
	if err := ix.UpsertTrack(ctx, testTrack("/music/a.mp3", "A")); err != nil {
		t.Fatal(err)
	}
	id := TrackID("/music/a.mp3")

	if err := ix.AddToPlaylist(ctx, "ghost", id); !errors.Is(err, ErrUnknownPlaylist) {
		t.Errorf("err = %v, want ErrUnknownPlaylist", err)
	}
	if err := ix.CreatePlaylist(ctx, "mix"); err != nil {
		t.Fatal(err)
	}
	if err := ix.AddToPlaylist(ctx, "mix", "nope"); !errors.Is(err, ErrUnknownTrack) {
		t.Errorf("err = %v, want ErrUnknownTrack", err)
	}
}

func TestRemoveFromPlaylistByPosition(t *testing.T) {
	ctx := context.Background()
	ix := New(newMemGateway())
	for _, p := range []string{"/m/a.mp3", "/m/b.mp3", "/m/c.mp3"} {
		if err := ix.UpsertTrack(ctx, testTrack(p, p)); err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.CreatePlaylist(ctx, "mix"); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/m/a.mp3", "/m/b.mp3", "/m/c.mp3"} {
		if err := ix.AddToPlaylist(ctx, "mix", TrackID(p)); err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.RemoveFromPlaylist(ctx, "mix", 1); err != nil {
		t.Fatalf("remove at 1: %v", err)
	}
	tracks, _ := ix.PlaylistTracks("mix")
	if len(tracks) != 2 || tracks[0].ID != TrackID("/m/a.mp3") || tracks[1].ID != TrackID("/m/c.mp3") {
		t.Errorf("unexpected playlist order after removal: %v", tracks)
	}
	if err := ix.RemoveFromPlaylist(ctx, "mix", 5); err == nil {
		t.Error("expected out of range error")
	}
}

func TestQueryIsLazyAndRestartable(t *testing.T) {
	ctx := context.Background()
	ix := New(newMemGateway())
	tracks := []Track{
		{Path: "/m/1.mp3", Title: "Blue Train", Artist: "Coltrane", Album: "Blue Train"},
		{Path: "/m/2.mp3", Title: "Giant Steps", Artist: "Coltrane", Album: "Giant Steps"},
		{Path: "/m/3.mp3", Title: "So What", Artist: "Davis", Album: "Kind of Blue"},
	}
	for _, tr := range tracks {
		if err := ix.UpsertTrack(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	seq := ix.Query(Filter{Search: "blue"})
	first := 0
	for range seq {
		first++
	}
	// Matches "Blue Train" by title/album and "Kind of Blue" by album.
	if first != 2 {
		t.Fatalf("first pass matched %d, want 2", first)
	}
	second := 0
	for range seq {
		second++
		break // early stop must not poison later passes
	}
	third := 0
	for range seq {
		third++
	}
	if third != 2 {
		t.Errorf("restarted pass matched %d, want 2", third)
	}
}

func TestQueryFavoritesOnly(t *testing.T) {
	ctx := context.Background()
	ix := New(newMemGateway())
	if err := ix.UpsertTrack(ctx, testTrack("/m/a.mp3", "A")); err != nil {
		t.Fatal(err)
	}
	if err := ix.UpsertTrack(ctx, testTrack("/m/b.mp3", "B")); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.ToggleFavorite(ctx, TrackID("/m/b.mp3")); err != nil {
		t.Fatal(err)
	}
	var got []string
	for tr := range ix.Query(Filter{FavoritesOnly: true}) {
		got = append(got, tr.Title)
	}
	if len(got) != 1 || got[0] != "B" {
		t.Errorf("favorites = %v, want [B]", got)
	}
}

func TestPersistenceFailureLeavesIndexUnchanged(t *testing.T) {
	ctx := context.Background()
	gw := newMemGateway()
	ix := New(gw)
	if err := ix.UpsertTrack(ctx, testTrack("/m/a.mp3", "A")); err != nil {
		t.Fatal(err)
	}
	id := TrackID("/m/a.mp3")

	gw.fail = errors.New("disk gone")

	err := ix.UpsertTrack(ctx, testTrack("/m/b.mp3", "B"))
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("upsert err = %v, want ErrPersistenceUnavailable", err)
	}
	if ix.Len() != 1 {
		t.Errorf("index mutated despite store failure, len = %d", ix.Len())
	}
	if _, err := ix.ToggleFavorite(ctx, id); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("favorite err = %v, want ErrPersistenceUnavailable", err)
	}
	got, _ := ix.Get(id)
	if got.Favorite {
		t.Error("favorite flag set despite store failure")
	}
	if err := ix.RemoveTrack(ctx, id); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("remove err = %v, want ErrPersistenceUnavailable", err)
	}
	if ix.Len() != 1 {
		t.Error("track removed despite store failure")
	}
}

func TestLoadRestoresState(t *testing.T) {
	ctx := context.Background()
	gw := newMemGateway()
	ix := New(gw)
	if err := ix.UpsertTrack(ctx, testTrack("/m/a.mp3", "A")); err != nil {
		t.Fatal(err)
	}
	if err := ix.CreatePlaylist(ctx, "mix"); err != nil {
		t.Fatal(err)
	}
	if err := ix.AddToPlaylist(ctx, "mix", TrackID("/m/a.mp3")); err != nil {
		t.Fatal(err)
	}

	fresh := New(gw)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if fresh.Len() != 1 {
		t.Errorf("len = %d, want 1", fresh.Len())
	}
	tracks, err := fresh.PlaylistTracks("mix")
	if err != nil || len(tracks) != 1 {
		t.Errorf("playlist not restored: %v %v", tracks, err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	ix := New(newMemGateway())
	a := Track{Path: "/m/1.mp3", Title: "One", Artist: "X", Album: "First", DurationMs: 60000, FileSize: 1000}
	b := Track{Path: "/m/2.mp3", Title: "Two", Artist: "X", Album: "Second", DurationMs: 30000, FileSize: 500}
	c := Track{Path: "/m/3.mp3", Title: "Three", Artist: "Y", Album: "Third", DurationMs: 10000, FileSize: 200}
	for _, tr := range []Track{a, b, c} {
		if err := ix.UpsertTrack(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}
	s := ix.Stats()
	if s.Tracks != 3 || s.Artists != 2 || s.Albums != 3 {
		t.Errorf("stats = %+v", s)
	}
	if s.TotalDuration != 100*time.Second {
		t.Errorf("total duration = %v, want 100s", s.TotalDuration)
	}
	if s.TotalBytes != 1700 {
		t.Errorf("total bytes = %d, want 1700", s.TotalBytes)
	}
}
