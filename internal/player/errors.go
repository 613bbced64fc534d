package player

import "errors"

var (
	// ErrNoTrack is returned for transport commands that need a loaded track.
	ErrNoTrack = errors.New("player: no track loaded")
	// ErrDecodeFailure is returned when a file cannot be decoded.
	ErrDecodeFailure = errors.New("player: decode failure")
	// ErrDeviceUnavailable is returned when the audio device cannot be opened.
	ErrDeviceUnavailable = errors.New("player: audio device unavailable")
)
