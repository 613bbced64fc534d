// Package metadata identifies audio containers by their leading bytes and
// extracts tags and durations.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
)

var (
	ErrUnsupportedFormat = errors.New("metadata: unsupported format")
	ErrCorruptFile       = errors.New("metadata: corrupt file")
)

// Meta holds tags and stream properties extracted from one audio file.
type Meta struct {
	Format     Format
	Title      string
	Artist     string
	Album      string
	Genre      string
	Year       int
	TrackNo    int
	DurationMs int
}

// Extract reads tags and duration from the file at path. The container is
// recognized by content, never by extension. Unknown containers yield
// ErrUnsupportedFormat; recognized but undecodable files yield
// ErrCorruptFile. Missing tags are not an error.
func Extract(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	format, err := Sniff(f)
	if err != nil {
		return Meta{}, err
	}
	m := Meta{Format: format}

	switch format {
	case FormatWAV:
		return extractWAV(f, m)
	case FormatWMA:
		return extractWMA(f, m)
	case FormatM4A:
		return extractM4A(f, m)
	default:
		return extractTagged(f, path, m)
	}
}

func extractWAV(f *os.File, m Meta) (Meta, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return m, err
	}
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return m, fmt.Errorf("%w: %s", ErrCorruptFile, f.Name())
	}
	if dur, err := d.Duration(); err == nil {
		m.DurationMs = int(dur / time.Millisecond)
	}
	d.ReadMetadata()
	if md := d.Metadata; md != nil {
		m.Title = md.Title
		m.Artist = md.Artist
		m.Album = md.Product
		m.Genre = md.Genre
		m.TrackNo = atoiLoose(md.TrackNbr)
		m.Year = yearOf(md.CreationDate)
	}
	return m, nil
}

func extractWMA(f *os.File, m Meta) (Meta, error) {
	info, err := readASF(f)
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	m.Title = info.title
	m.Artist = info.artist
	m.Album = info.album
	m.Genre = info.genre
	m.Year = info.year
	m.TrackNo = info.trackNo
	m.DurationMs = info.durationMs
	return m, nil
}

func extractM4A(f *os.File, m Meta) (Meta, error) {
	ms, err := readMP4Duration(f)
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	m.DurationMs = ms
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return m, err
	}
	if mt, err := tag.ReadFrom(f); err == nil {
		applyTags(&m, mt)
	}
	return m, nil
}

// extractTagged handles the containers beep can decode. The duration probe
// doubles as the corruption check: a stream the decoder rejects outright is
// reported corrupt, with or without readable tags.
func extractTagged(f *os.File, path string, m Meta) (Meta, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return m, err
	}
	if mt, err := tag.ReadFrom(f); err == nil {
		applyTags(&m, mt)
	}
	ms, err := probeDuration(path, m.Format)
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	m.DurationMs = ms
	return m, nil
}

func applyTags(m *Meta, t tag.Metadata) {
	m.Title = t.Title()
	m.Artist = t.Artist()
	m.Album = t.Album()
	m.Genre = t.Genre()
	m.Year = t.Year()
	m.TrackNo, _ = t.Track()
}

func atoiLoose(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// yearOf pulls a leading four digit year out of strings like "2009-04-13".
func yearOf(s string) int {
	if len(s) < 4 {
		return 0
	}
	n, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return n
}
