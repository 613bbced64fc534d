package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

// wavBytes builds a minimal valid PCM WAV file of roughly the given length.
func wavBytes(seconds int) []byte {
	const sampleRate = 8000
	const blockAlign = 2 // mono, 16-bit
	dataLen := seconds * sampleRate * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

func utf16leBytes(s string) []byte {
	u := utf16.Encode([]rune(s + "\x00"))
	b := make([]byte, len(u)*2)
	for i, v := range u {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}

func asfObject(guid, body []byte) []byte {
	var buf bytes.Buffer
	buf.Write(guid)
	binary.Write(&buf, binary.LittleEndian, uint64(24+len(body)))
	buf.Write(body)
	return buf.Bytes()
}

// asfBytes builds an ASF header advertising a 95s stream titled
// "Night Drive" by "Slow Motion" on album "Midnight", track 7.
func asfBytes() []byte {
	fileProps := make([]byte, 80)
	// 98s play duration in 100ns units, 3s preroll.
	binary.LittleEndian.PutUint64(fileProps[40:48], 98000*10000)
	binary.LittleEndian.PutUint64(fileProps[56:64], 3000)

	title := utf16leBytes("Night Drive")
	author := utf16leBytes("Slow Motion")
	var content bytes.Buffer
	binary.Write(&content, binary.LittleEndian, uint16(len(title)))
	binary.Write(&content, binary.LittleEndian, uint16(len(author)))
	binary.Write(&content, binary.LittleEndian, uint16(0)) // copyright
	binary.Write(&content, binary.LittleEndian, uint16(0)) // description
	binary.Write(&content, binary.LittleEndian, uint16(0)) // rating
	content.Write(title)
	content.Write(author)

	var ext bytes.Buffer
	binary.Write(&ext, binary.LittleEndian, uint16(2))
	album := utf16leBytes("Midnight")
	name := utf16leBytes("WM/AlbumTitle")
	binary.Write(&ext, binary.LittleEndian, uint16(len(name)))
	ext.Write(name)
	binary.Write(&ext, binary.LittleEndian, uint16(0)) // string
	binary.Write(&ext, binary.LittleEndian, uint16(len(album)))
	ext.Write(album)
	name = utf16leBytes("WM/TrackNumber")
	binary.Write(&ext, binary.LittleEndian, uint16(len(name)))
	ext.Write(name)
	binary.Write(&ext, binary.LittleEndian, uint16(3)) // dword
	binary.Write(&ext, binary.LittleEndian, uint16(4))
	binary.Write(&ext, binary.LittleEndian, uint32(7))

	objects := [][]byte{
		asfObject(asfFileProps, fileProps),
		asfObject(asfContentDesc, content.Bytes()),
		asfObject(asfExtContentDesc, ext.Bytes()),
	}
	var body bytes.Buffer
	for _, o := range objects {
		body.Write(o)
	}

	var buf bytes.Buffer
	buf.Write(asfHeaderGUID)
	binary.Write(&buf, binary.LittleEndian, uint64(30+body.Len()))
	binary.Write(&buf, binary.LittleEndian, uint32(len(objects)))
	buf.Write([]byte{0x01, 0x02})
	buf.Write(body.Bytes())
	return buf.Bytes()
}

// m4aBytes builds an MP4 skeleton whose mvhd announces 95s.
func m4aBytes() []byte {
	var ftyp bytes.Buffer
	binary.Write(&ftyp, binary.BigEndian, uint32(16))
	ftyp.WriteString("ftyp")
	ftyp.WriteString("M4A ")
	binary.Write(&ftyp, binary.BigEndian, uint32(0))

	mvhdBody := make([]byte, 100)
	binary.BigEndian.PutUint32(mvhdBody[12:16], 600)   // timescale
	binary.BigEndian.PutUint32(mvhdBody[16:20], 57000) // duration

	var moov bytes.Buffer
	binary.Write(&moov, binary.BigEndian, uint32(8+8+len(mvhdBody)))
	moov.WriteString("moov")
	binary.Write(&moov, binary.BigEndian, uint32(8+len(mvhdBody)))
	moov.WriteString("mvhd")
	moov.Write(mvhdBody)

	return append(ftyp.Bytes(), moov.Bytes()...)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want Format
	}{
		{"flac", []byte("fLaC\x00\x00\x00\x22padpadpad"), FormatFLAC},
		{"ogg", []byte("OggS\x00\x02padpadpadpad"), FormatOGG},
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), FormatWAV},
		{"wma", append(append([]byte{}, asfHeaderGUID...), 0, 0), FormatWMA},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00"), FormatM4A},
		{"mp3 id3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00pad"), FormatMP3},
		{"mp3 frame sync", []byte{0xff, 0xfb, 0x90, 0x64, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, FormatMP3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff(bytes.NewReader(tt.head))
			if err != nil {
				t.Fatalf("sniff: %v", err)
			}
			if got != tt.want {
				t.Errorf("format = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := Sniff(bytes.NewReader([]byte("this is not an audio file"))); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractWAV(t *testing.T) {
	path := writeFile(t, "tone.bin", wavBytes(3))
	m, err := Extract(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if m.Format != FormatWAV {
		t.Errorf("format = %s, want wav", m.Format)
	}
	// Duration derives from the RIFF size field, so allow header slack.
	if m.DurationMs < 3000 || m.DurationMs > 3010 {
		t.Errorf("duration = %dms, want ~3000", m.DurationMs)
	}
}

func TestExtractCorruptWAV(t *testing.T) {
	bad := []byte("RIFF\xff\x00\x00\x00WAVEJUNK\xff\xff\xff\x7f")
	path := writeFile(t, "broken.bin", bad)
	_, err := Extract(path)
	if !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("err = %v, want ErrCorruptFile", err)
	}
}

func TestExtractUnsupported(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("track list:\n1. intro\n"))
	_, err := Extract(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractWMA(t *testing.T) {
	path := writeFile(t, "drive.bin", asfBytes())
	m, err := Extract(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if m.Format != FormatWMA {
		t.Errorf("format = %s, want wma", m.Format)
	}
	if m.Title != "Night Drive" || m.Artist != "Slow Motion" || m.Album != "Midnight" {
		t.Errorf("tags = %q / %q / %q", m.Title, m.Artist, m.Album)
	}
	if m.TrackNo != 7 {
		t.Errorf("track = %d, want 7", m.TrackNo)
	}
	if m.DurationMs != 95000 {
		t.Errorf("duration = %dms, want 95000", m.DurationMs)
	}
}

func TestExtractTruncatedWMA(t *testing.T) {
	data := asfBytes()[:40]
	path := writeFile(t, "stub.bin", data)
	_, err := Extract(path)
	if !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("err = %v, want ErrCorruptFile", err)
	}
}

func TestExtractM4ADuration(t *testing.T) {
	path := writeFile(t, "clip.bin", m4aBytes())
	m, err := Extract(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if m.Format != FormatM4A {
		t.Errorf("format = %s, want m4a", m.Format)
	}
	if m.DurationMs != 95000 {
		t.Errorf("duration = %dms, want 95000", m.DurationMs)
	}
}

func TestYearOf(t *testing.T) {
	if got := yearOf("2009-04-13"); got != 2009 {
		t.Errorf("yearOf = %d, want 2009", got)
	}
	if got := yearOf(""); got != 0 {
		t.Errorf("yearOf empty = %d, want 0", got)
	}
	if got := yearOf("19xx"); got != 0 {
		t.Errorf("yearOf junk = %d, want 0", got)
	}
}
