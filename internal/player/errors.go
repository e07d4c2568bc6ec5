package player

import (
	"errors"
	"fmt"
)

// ErrorKind groups failures by how the player reacts to them.
type ErrorKind int

const (
	// KindConfig is a rejected request; nothing is retried.
	KindConfig ErrorKind = iota
	// KindTransport covers network and file access failures.
	KindTransport
	// KindDecode covers unreadable media and bad playlists.
	KindDecode
	// KindStarvation is a data shortage that outlasted its budget.
	KindStarvation
	// KindUnstableShutdown marks a decoder that could not be released yet.
	KindUnstableShutdown
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindStarvation:
		return "starvation"
	case KindUnstableShutdown:
		return "unstable shutdown"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyPlaying = errors.New("player is already playing")
	ErrDisabled       = errors.New("player is disabled")
	ErrNeedsCache     = errors.New("profile needs a pcm cache")
	ErrNoOutput       = errors.New("profile needs an output system")
	ErrNoResolver     = errors.New("no playlist resolver configured")
	ErrNoTransport    = errors.New("no network transport configured")
	ErrStartTimeout   = errors.New("can't start playback")
	ErrFormatChanged  = errors.New("format changed mid-stream")
	ErrStarved        = errors.New("stream starved")
)

// Error is what the player reports through OnError and returns from Play.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a player error, or false for other errors.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
