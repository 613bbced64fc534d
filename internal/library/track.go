package library

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Track is one indexed audio file. Identity is derived from the file path,
// so rescanning the same file updates the existing record.
type Track struct {
	ID         string
	Path       string
	Title      string
	Artist     string
	Album      string
	Genre      string
	Year       int
	TrackNo    int
	Format     string
	DurationMs int
	FileSize   int64
	FileMtime  int64
	Favorite   bool
	PlayCount  int
	LastPlayed time.Time
	AddedAt    time.Time
}

// Playlist is a named, ordered list of track ids.
type Playlist struct {
	Name     string
	TrackIDs []string
}

// Stats summarizes the index contents.
type Stats struct {
	Tracks        int
	Artists       int
	Albums        int
	Playlists     int
	Favorites     int
	TotalDuration time.Duration
	TotalBytes    int64
}

// Filter narrows a Query. Zero value matches every track.
type Filter struct {
	Search        string // case-insensitive substring over title, artist, album
	Artist        string
	Album         string
	Playlist      string
	FavoritesOnly bool
}

// TrackID derives the stable id for a file path.
func TrackID(path string) string {
	h := sha1.Sum([]byte(path))
	return hex.EncodeToString(h[:])
}
