package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Minimal ASF header reader, enough to pull the play duration and the
// common description fields out of a WMA file.

var (
	asfFileProps = []byte{
		0xa1, 0xdc, 0xab, 0x8c, 0x47, 0xa9, 0xcf, 0x11,
		0x8e, 0xe4, 0x00, 0xc0, 0x0c, 0x20, 0x53, 0x65,
	}
	asfContentDesc = []byte{
		0x33, 0x26, 0xb2, 0x75, 0x8e, 0x66, 0xcf, 0x11,
		0xa6, 0xd9, 0x00, 0xaa, 0x00, 0x62, 0xce, 0x6c,
	}
	asfExtContentDesc = []byte{
		0x40, 0xa4, 0xd0, 0xd2, 0x07, 0xe3, 0xd2, 0x11,
		0x97, 0xf0, 0x00, 0xa0, 0xc9, 0x5e, 0xa8, 0x50,
	}
)

type asfInfo struct {
	title      string
	artist     string
	album      string
	genre      string
	year       int
	trackNo    int
	durationMs int
}

func readASF(r io.ReadSeeker) (asfInfo, error) {
	var info asfInfo
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return info, err
	}
	hdr := make([]byte, 30)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return info, fmt.Errorf("asf header: %w", err)
	}
	if !bytes.Equal(hdr[:16], asfHeaderGUID) {
		return info, fmt.Errorf("asf: bad header guid")
	}
	headerSize := binary.LittleEndian.Uint64(hdr[16:24])
	objects := binary.LittleEndian.Uint32(hdr[24:28])
	if headerSize < 30 || headerSize > 1<<24 {
		return info, fmt.Errorf("asf: implausible header size %d", headerSize)
	}

	for i := uint32(0); i < objects; i++ {
		objHdr := make([]byte, 24)
		if _, err := io.ReadFull(r, objHdr); err != nil {
			return info, fmt.Errorf("asf object %d: %w", i, err)
		}
		guid := objHdr[:16]
		size := binary.LittleEndian.Uint64(objHdr[16:24])
		if size < 24 || size > headerSize {
			return info, fmt.Errorf("asf object %d: implausible size %d", i, size)
		}
		body := make([]byte, size-24)
		if _, err := io.ReadFull(r, body); err != nil {
			return info, fmt.Errorf("asf object %d body: %w", i, err)
		}
		switch {
		case bytes.Equal(guid, asfFileProps):
			if err := parseASFFileProps(body, &info); err != nil {
				return info, err
			}
		case bytes.Equal(guid, asfContentDesc):
			parseASFContentDesc(body, &info)
		case bytes.Equal(guid, asfExtContentDesc):
			parseASFExtContentDesc(body, &info)
		}
	}
	return info, nil
}

func parseASFFileProps(body []byte, info *asfInfo) error {
	// FileID(16) FileSize(8) Created(8) Packets(8) PlayDuration(8) SendDuration(8) Preroll(8)
	if len(body) < 64 {
		return fmt.Errorf("asf: file properties truncated")
	}
	playDuration := binary.LittleEndian.Uint64(body[40:48]) // 100ns units
	preroll := binary.LittleEndian.Uint64(body[56:64])      // ms
	ms := int64(playDuration/10000) - int64(preroll)
	if ms < 0 {
		ms = 0
	}
	info.durationMs = int(ms)
	return nil
}

func parseASFContentDesc(body []byte, info *asfInfo) {
	// Five uint16 lengths, then Title, Author, Copyright, Description, Rating.
	if len(body) < 10 {
		return
	}
	var lengths [5]int
	for i := range lengths {
		lengths[i] = int(binary.LittleEndian.Uint16(body[i*2 : i*2+2]))
	}
	off := 10
	var fields [5]string
	for i, n := range lengths {
		if off+n > len(body) {
			return
		}
		fields[i] = decodeUTF16LE(body[off : off+n])
		off += n
	}
	info.title = fields[0]
	info.artist = fields[1]
}

func parseASFExtContentDesc(body []byte, info *asfInfo) {
	if len(body) < 2 {
		return
	}
	count := int(binary.LittleEndian.Uint16(body[:2]))
	off := 2
	for i := 0; i < count; i++ {
		if off+2 > len(body) {
			return
		}
		nameLen := int(binary.LittleEndian.Uint16(body[off : off+2]))
		off += 2
		if off+nameLen+4 > len(body) {
			return
		}
		name := decodeUTF16LE(body[off : off+nameLen])
		off += nameLen
		valType := int(binary.LittleEndian.Uint16(body[off : off+2]))
		valLen := int(binary.LittleEndian.Uint16(body[off+2 : off+4]))
		off += 4
		if off+valLen > len(body) {
			return
		}
		val := body[off : off+valLen]
		off += valLen

		var str string
		var num int
		switch valType {
		case 0: // UTF-16LE string
			str = decodeUTF16LE(val)
			num, _ = strconv.Atoi(strings.TrimSpace(str))
		case 2, 3: // BOOL, DWORD
			if len(val) >= 4 {
				num = int(binary.LittleEndian.Uint32(val))
			}
		}
		switch name {
		case "WM/AlbumTitle":
			info.album = str
		case "WM/Genre":
			info.genre = str
		case "WM/TrackNumber":
			info.trackNo = num
		case "WM/Year":
			info.year = num
		}
	}
}

func decodeUTF16LE(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, binary.LittleEndian.Uint16(b[i:i+2]))
	}
	return strings.TrimRight(string(utf16.Decode(u)), "\x00")
}
