package metadata

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
)

// probeDuration opens a decoder just long enough to learn the stream length.
func probeDuration(path string, format Format) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	var (
		streamer beep.StreamSeekCloser
		bf       beep.Format
	)
	switch format {
	case FormatMP3:
		streamer, bf, err = mp3.Decode(f)
	case FormatFLAC:
		streamer, bf, err = flac.Decode(f)
	case FormatOGG:
		streamer, bf, err = vorbis.Decode(f)
	default:
		f.Close()
		return 0, fmt.Errorf("metadata: no decoder for %s", format)
	}
	if err != nil {
		f.Close()
		return 0, err
	}
	defer streamer.Close()
	n := streamer.Len()
	if n <= 0 {
		return 0, nil
	}
	return int(bf.SampleRate.D(n) / time.Millisecond), nil
}

// readMP4Duration walks top level boxes to moov/mvhd. Returns 0 when the
// file has no movie header.
func readMP4Duration(r io.ReadSeeker) (int, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	for {
		payload, box, err := readBoxHeader(r)
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		if box == "moov" {
			return readMovieHeader(r, payload)
		}
		if _, err := r.Seek(payload, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
}

func readBoxHeader(r io.Reader) (payload int64, box string, err error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, "", err
	}
	size := int64(binary.BigEndian.Uint32(hdr[:4]))
	box = string(hdr[4:8])
	switch {
	case size == 1:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return 0, "", fmt.Errorf("mp4: box %s: %w", box, err)
		}
		size = int64(binary.BigEndian.Uint64(ext[:])) - 8
		if size < 8 {
			return 0, "", fmt.Errorf("mp4: box %s: bad extended size", box)
		}
	case size == 0:
		// Box runs to end of file; nothing indexed lives past it.
		return 0, box, io.EOF
	case size < 8:
		return 0, "", fmt.Errorf("mp4: box %s: bad size %d", box, size)
	}
	return size - 8, box, nil
}

func readMovieHeader(r io.ReadSeeker, payload int64) (int, error) {
	var consumed int64
	for consumed < payload {
		childPayload, box, err := readBoxHeader(r)
		if err != nil {
			return 0, err
		}
		if box == "mvhd" {
			body := make([]byte, childPayload)
			if _, err := io.ReadFull(r, body); err != nil {
				return 0, fmt.Errorf("mp4: mvhd: %w", err)
			}
			return parseMvhd(body)
		}
		if _, err := r.Seek(childPayload, io.SeekCurrent); err != nil {
			return 0, err
		}
		consumed += 8 + childPayload
	}
	return 0, nil
}

func parseMvhd(b []byte) (int, error) {
	if len(b) < 20 {
		return 0, fmt.Errorf("mp4: mvhd truncated")
	}
	if b[0] == 1 {
		if len(b) < 32 {
			return 0, fmt.Errorf("mp4: mvhd truncated")
		}
		timescale := binary.BigEndian.Uint32(b[20:24])
		duration := binary.BigEndian.Uint64(b[24:32])
		if timescale == 0 {
			return 0, nil
		}
		return int(duration * 1000 / uint64(timescale)), nil
	}
	timescale := binary.BigEndian.Uint32(b[12:16])
	duration := binary.BigEndian.Uint32(b[16:20])
	if timescale == 0 {
		return 0, nil
	}
	return int(uint64(duration) * 1000 / uint64(timescale)), nil
}
