package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tonearm/tonearm/internal/library"
)

// SaveTrack writes every column; the index merges listening history
// before calling, so a full upsert is safe.
func (s *Store) SaveTrack(ctx context.Context, t library.Track) error {
	_, err := s.db.ExecContext(ctx, s.dia.upsertTrack,
		t.ID, t.Path, t.Title, t.Artist, t.Album, t.Genre, t.Year, t.TrackNo,
		t.Format, t.DurationMs, t.FileSize, t.FileMtime,
		boolToInt(t.Favorite), t.PlayCount, unixOrZero(t.LastPlayed), unixOrZero(t.AddedAt))
	if err != nil {
		return fmt.Errorf("upsert track: %w", err)
	}
	return nil
}

// DeleteTrack removes the row; playlist and session memberships go with
// it through the ON DELETE CASCADE constraints.
func (s *Store) DeleteTrack(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete track: %w", err)
	}
	return nil
}

func (s *Store) SavePlaylist(ctx context.Context, p library.Playlist) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save playlist: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dia.insertPlaylist, p.Name); err != nil {
		return fmt.Errorf("insert playlist: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_items WHERE playlist_name = ?`, p.Name); err != nil {
		return fmt.Errorf("clear playlist items: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO playlist_items (playlist_name, position, track_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare playlist insert: %w", err)
	}
	defer stmt.Close()
	for i, id := range p.TrackIDs {
		if _, err := stmt.ExecContext(ctx, p.Name, i, id); err != nil {
			return fmt.Errorf("insert playlist item %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit playlist: %w", err)
	}
	return nil
}

func (s *Store) DeletePlaylist(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	return nil
}

func (s *Store) SetFavorite(ctx context.Context, id string, fav bool) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE tracks SET favorite = ? WHERE id = ?`, boolToInt(fav), id); err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	return nil
}

func (s *Store) RecordPlay(ctx context.Context, id string, count int, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE tracks SET play_count = ?, last_played = ? WHERE id = ?`,
		count, at.Unix(), id); err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}

func (s *Store) LoadTracks(ctx context.Context) ([]library.Track, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, path, title, artist, album, genre, year, track_no, format,
		duration_ms, file_size, file_mtime, favorite, play_count, last_played, added_at
		FROM tracks`)
	if err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	defer rows.Close()

	var out []library.Track
	for rows.Next() {
		var (
			t                   library.Track
			fav                 int
			lastPlayed, addedAt int64
		)
		if err := rows.Scan(&t.ID, &t.Path, &t.Title, &t.Artist, &t.Album, &t.Genre,
			&t.Year, &t.TrackNo, &t.Format, &t.DurationMs, &t.FileSize, &t.FileMtime,
			&fav, &t.PlayCount, &lastPlayed, &addedAt); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		t.Favorite = fav != 0
		t.LastPlayed = timeOrZero(lastPlayed)
		t.AddedAt = timeOrZero(addedAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	return out, nil
}

func (s *Store) LoadPlaylists(ctx context.Context) ([]library.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.name, i.track_id
		FROM playlists p
		LEFT JOIN playlist_items i ON i.playlist_name = p.name
		ORDER BY p.name, i.position`)
	if err != nil {
		return nil, fmt.Errorf("load playlists: %w", err)
	}
	defer rows.Close()

	var (
		out []library.Playlist
		cur *library.Playlist
	)
	for rows.Next() {
		var (
			name string
			id   sql.NullString
		)
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		if cur == nil || cur.Name != name {
			out = append(out, library.Playlist{Name: name})
			cur = &out[len(out)-1]
		}
		if id.Valid {
			cur.TrackIDs = append(cur.TrackIDs, id.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load playlists: %w", err)
	}
	return out, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
