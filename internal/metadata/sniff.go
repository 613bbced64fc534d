package metadata

import (
	"bytes"
	"fmt"
	"io"
)

// Format identifies an audio container recognized by its leading bytes.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatM4A  Format = "m4a"
	FormatOGG  Format = "ogg"
	FormatWAV  Format = "wav"
	FormatWMA  Format = "wma"
)

// asfHeaderGUID is the leading GUID of every ASF (WMA) file.
var asfHeaderGUID = []byte{
	0x30, 0x26, 0xb2, 0x75, 0x8e, 0x66, 0xcf, 0x11,
	0xa6, 0xd9, 0x00, 0xaa, 0x00, 0x62, 0xce, 0x6c,
}

// Sniff identifies the container from the first bytes of r. The file
// extension is never consulted. The reader is left at an unspecified
// position.
func Sniff(r io.ReadSeeker) (Format, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek: %w", err)
	}
	head := make([]byte, 16)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, []byte("fLaC")):
		return FormatFLAC, nil
	case bytes.HasPrefix(head, []byte("OggS")):
		return FormatOGG, nil
	case len(head) >= 12 && bytes.HasPrefix(head, []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case bytes.HasPrefix(head, asfHeaderGUID):
		return FormatWMA, nil
	case len(head) >= 8 && bytes.Equal(head[4:8], []byte("ftyp")):
		return FormatM4A, nil
	case bytes.HasPrefix(head, []byte("ID3")):
		return FormatMP3, nil
	// Bare MPEG audio: frame sync is 11 set bits. Checked last because it
	// is the weakest signature.
	case len(head) >= 2 && head[0] == 0xff && head[1]&0xe0 == 0xe0:
		return FormatMP3, nil
	}
	return "", ErrUnsupportedFormat
}
