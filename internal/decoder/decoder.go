// Package decoder opens compressed audio and yields interleaved float PCM.
package decoder

import (
	"errors"
	"io"

	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/glebovdev/audiostream/internal/source"
	"github.com/glebovdev/audiostream/internal/tags"
)

// OpenState is the phase of an opened sound.
type OpenState int

const (
	StateLoading OpenState = iota
	StateBuffering
	StateReady
	StatePlaying
	StateError
)

func (s OpenState) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateBuffering:
		return "BUFFERING"
	case StateReady:
		return "READY"
	case StatePlaying:
		return "PLAYING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Opening reports whether the sound is still being set up and must not be
// released yet.
func (s OpenState) Opening() bool {
	return s == StateLoading || s == StateBuffering
}

var (
	// ErrBusy is returned by Release while the sound is still opening.
	ErrBusy        = errors.New("sound is still opening")
	ErrUnsupported = errors.New("unsupported stream type")
)

type Options struct {
	Type source.StreamType
	Raw  source.RawFormat
	// Tags receives metadata found while opening. May be nil.
	Tags *tags.Feed
}

// Decoder opens sounds without blocking; the sound reports progress through
// OpenState.
type Decoder interface {
	Open(r io.ReadSeekCloser, opts Options) Sound
}

// Sound is one opened stream. Read is called from a single worker goroutine;
// the other methods are safe from any goroutine.
type Sound interface {
	OpenState() OpenState
	Format() pcm.Format
	// Read fills dst with interleaved samples. io.EOF marks the end.
	Read(dst []float32) (int, error)
	// Playing stays true until the stream is exhausted or fails.
	Playing() bool
	Err() error
	Release() error
}
