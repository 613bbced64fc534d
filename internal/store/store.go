// Package store persists the library catalog and session state through
// database/sql, speaking either sqlite or mysql.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/tonearm/tonearm/internal/logging"
)

// Options configures Open. Driver is "sqlite" (default) or "mysql".
type Options struct {
	Driver string
	Path   string // sqlite database file; defaults to the state dir
	DSN    string // mysql data source name
	// DefaultVolume seeds the session row on first open (default 70).
	// Once a session has been saved the stored value wins.
	DefaultVolume int
	Logger        *slog.Logger
}

type Store struct {
	db  *sql.DB
	dia dialect
	log *slog.Logger
}

type dialect struct {
	name           string
	ddl            []string
	upsertTrack    string
	insertPlaylist string
	insertStateRow string
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var (
		db  *sql.DB
		dia dialect
		err error
	)
	switch opts.Driver {
	case "", "sqlite":
		db, dia, err = openSQLite(opts)
	case "mysql":
		db, dia, err = openMySQL(opts)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.DefaultVolume <= 0 {
		opts.DefaultVolume = 70
	}
	s := &Store{db: db, dia: dia, log: opts.Logger}
	if err := s.ensureSchema(ctx, opts.DefaultVolume); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug("store ready", slog.String("driver", dia.name))
	return s, nil
}

func openSQLite(opts Options) (*sql.DB, dialect, error) {
	path := opts.Path
	if path == "" {
		stateDir, err := logging.StateDir()
		if err != nil {
			return nil, dialect{}, fmt.Errorf("resolve state dir: %w", err)
		}
		path = filepath.Join(stateDir, "library.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, dialect{}, fmt.Errorf("create state dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dialect{}, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer connection sidesteps SQLITE_BUSY under concurrent scans.
	db.SetMaxOpenConns(1)
	return db, sqliteDialect, nil
}

func openMySQL(opts Options) (*sql.DB, dialect, error) {
	db, err := sql.Open("mysql", opts.DSN)
	if err != nil {
		return nil, dialect{}, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, mysqlDialect, nil
}

func (s *Store) ensureSchema(ctx context.Context, defaultVolume int) error {
	for _, stmt := range s.dia.ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, s.dia.insertStateRow, defaultVolume); err != nil {
		return fmt.Errorf("seed session state: %w", err)
	}
	return nil
}

// Ping verifies the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var sqliteDialect = dialect{
	name: "sqlite",
	ddl: []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT NOT NULL,
			genre TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			track_no INTEGER NOT NULL DEFAULT 0,
			format TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			file_size INTEGER NOT NULL DEFAULT 0,
			file_mtime INTEGER NOT NULL DEFAULT 0,
			favorite INTEGER NOT NULL DEFAULT 0,
			play_count INTEGER NOT NULL DEFAULT 0,
			last_played INTEGER NOT NULL DEFAULT 0,
			added_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist, album, track_no);`,
		`CREATE TABLE IF NOT EXISTS playlists (
			name TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS playlist_items (
			playlist_name TEXT NOT NULL REFERENCES playlists(name) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			PRIMARY KEY (playlist_name, position)
		);`,
		`CREATE TABLE IF NOT EXISTS session_queue (
			position INTEGER PRIMARY KEY,
			track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS session_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			volume INTEGER NOT NULL DEFAULT 70,
			repeat_mode INTEGER NOT NULL DEFAULT 0,
			shuffle INTEGER NOT NULL DEFAULT 0,
			queue_pos INTEGER NOT NULL DEFAULT -1,
			current_track TEXT NOT NULL DEFAULT ''
		);`,
	},
	upsertTrack: `INSERT INTO tracks
		(id, path, title, artist, album, genre, year, track_no, format, duration_ms, file_size, file_mtime, favorite, play_count, last_played, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		path=excluded.path, title=excluded.title, artist=excluded.artist, album=excluded.album,
		genre=excluded.genre, year=excluded.year, track_no=excluded.track_no, format=excluded.format,
		duration_ms=excluded.duration_ms, file_size=excluded.file_size, file_mtime=excluded.file_mtime,
		favorite=excluded.favorite, play_count=excluded.play_count, last_played=excluded.last_played,
		added_at=excluded.added_at`,
	insertPlaylist: `INSERT OR IGNORE INTO playlists (name) VALUES (?)`,
	insertStateRow: `INSERT OR IGNORE INTO session_state (id, volume, repeat_mode, shuffle, queue_pos, current_track)
		VALUES (1, ?, 0, 0, -1, '')`,
}

var mysqlDialect = dialect{
	name: "mysql",
	ddl: []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id VARCHAR(40) PRIMARY KEY,
			path VARCHAR(512) NOT NULL UNIQUE,
			title VARCHAR(255) NOT NULL,
			artist VARCHAR(255) NOT NULL,
			album VARCHAR(255) NOT NULL,
			genre VARCHAR(128) NOT NULL DEFAULT '',
			year INT NOT NULL DEFAULT 0,
			track_no INT NOT NULL DEFAULT 0,
			format VARCHAR(8) NOT NULL DEFAULT '',
			duration_ms INT NOT NULL DEFAULT 0,
			file_size BIGINT NOT NULL DEFAULT 0,
			file_mtime BIGINT NOT NULL DEFAULT 0,
			favorite TINYINT NOT NULL DEFAULT 0,
			play_count INT NOT NULL DEFAULT 0,
			last_played BIGINT NOT NULL DEFAULT 0,
			added_at BIGINT NOT NULL DEFAULT 0,
			INDEX idx_tracks_artist (artist, album, track_no)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		`CREATE TABLE IF NOT EXISTS playlists (
			name VARCHAR(255) PRIMARY KEY
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		`CREATE TABLE IF NOT EXISTS playlist_items (
			playlist_name VARCHAR(255) NOT NULL,
			position INT NOT NULL,
			track_id VARCHAR(40) NOT NULL,
			PRIMARY KEY (playlist_name, position),
			FOREIGN KEY (playlist_name) REFERENCES playlists(name) ON DELETE CASCADE,
			FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		`CREATE TABLE IF NOT EXISTS session_queue (
			position INT PRIMARY KEY,
			track_id VARCHAR(40) NOT NULL,
			FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
		`CREATE TABLE IF NOT EXISTS session_state (
			id INT PRIMARY KEY,
			volume INT NOT NULL DEFAULT 70,
			repeat_mode INT NOT NULL DEFAULT 0,
			shuffle TINYINT NOT NULL DEFAULT 0,
			queue_pos INT NOT NULL DEFAULT -1,
			current_track VARCHAR(40) NOT NULL DEFAULT ''
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	},
	upsertTrack: `INSERT INTO tracks
		(id, path, title, artist, album, genre, year, track_no, format, duration_ms, file_size, file_mtime, favorite, play_count, last_played, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		path=VALUES(path), title=VALUES(title), artist=VALUES(artist), album=VALUES(album),
		genre=VALUES(genre), year=VALUES(year), track_no=VALUES(track_no), format=VALUES(format),
		duration_ms=VALUES(duration_ms), file_size=VALUES(file_size), file_mtime=VALUES(file_mtime),
		favorite=VALUES(favorite), play_count=VALUES(play_count), last_played=VALUES(last_played),
		added_at=VALUES(added_at)`,
	insertPlaylist: `INSERT IGNORE INTO playlists (name) VALUES (?)`,
	insertStateRow: `INSERT IGNORE INTO session_state (id, volume, repeat_mode, shuffle, queue_pos, current_track)
		VALUES (1, ?, 0, 0, -1, '')`,
}
