package library

import "errors"

var (
	ErrUnknownTrack           = errors.New("library: unknown track")
	ErrUnknownPlaylist        = errors.New("library: unknown playlist")
	ErrDuplicatePlaylist      = errors.New("library: playlist already exists")
	ErrPersistenceUnavailable = errors.New("library: persistence unavailable")
)
