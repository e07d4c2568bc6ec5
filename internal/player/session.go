package player

import (
	"bytes"
	"context"
	"time"

	"github.com/glebovdev/audiostream/internal/cache"
	"github.com/glebovdev/audiostream/internal/decoder"
	"github.com/glebovdev/audiostream/internal/mediabuffer"
	"github.com/glebovdev/audiostream/internal/output"
	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/glebovdev/audiostream/internal/source"
	"github.com/glebovdev/audiostream/internal/tags"
	"github.com/glebovdev/audiostream/internal/transport"
	"github.com/google/uuid"
)

type resolveResult struct {
	url string
	err error
}

// session is one connection attempt and everything it owns. A reconnect
// builds a new session for the same source.
type session struct {
	id      uuid.UUID
	src     source.Source
	url     string
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
	feed    *tags.Feed

	resolved chan resolveResult

	buf      mediabuffer.Buffer
	diskPath string
	stream   transport.Stream
	reader   *mediabuffer.Reader
	target   int

	sound    decoder.Sound
	format   pcm.Format
	nextPoll time.Time
	polls    int

	queue    *pcm.Queue
	voice    *output.Voice
	acquired bool
	worker   *worker
	pcmOut   *cache.PCMWriter
	clipPath string

	starveCount   int
	starvingSince time.Time
	ended         bool

	// A failed start waits until stopAt before the session is stopped.
	stopAt    time.Time
	stopCause error
}

func newSession(parent context.Context, src source.Source, now time.Time) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:      uuid.New(),
		src:     src,
		url:     src.URL,
		ctx:     ctx,
		cancel:  cancel,
		started: now,
		feed:    tags.NewFeed(),
	}
}

// mediaType classifies the resolved URL, which may differ from the
// source's own for playlists.
func (s *session) mediaType() source.MediaType {
	return source.Source{URL: s.url, Data: s.src.Data}.MediaType()
}

// unbounded reports a network stream without a declared length.
func (s *session) unbounded() bool {
	return s.stream != nil && s.stream.ContentLength() < 0
}

// pull is the render callback. It never blocks and always fills dst.
func (s *session) pull(dst []float32) {
	n := s.queue.ReadInto(dst)
	pcm.Pad(dst, n)
}

// drained reports that the decoder is done and nothing is left to play.
func (s *session) drained() bool {
	if s.worker == nil || !s.worker.finished() {
		return false
	}
	return s.queue == nil || s.queue.Available() == 0
}

// memoryFile serves in-memory media to the decoder.
type memoryFile struct {
	*bytes.Reader
}

func (memoryFile) Close() error { return nil }
