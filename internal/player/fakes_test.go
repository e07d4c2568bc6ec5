package player

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/glebovdev/audiostream/internal/cache"
	"github.com/glebovdev/audiostream/internal/decoder"
	"github.com/glebovdev/audiostream/internal/mediabuffer"
	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/glebovdev/audiostream/internal/tags"
	"github.com/glebovdev/audiostream/internal/transport"
	"github.com/gopxl/beep/v2"
)

var testFormat = pcmFormat(8000, 1)

func pcmFormat(rate, channels int) pcm.Format {
	return pcm.Format{SampleRate: rate, Channels: channels, BytesPerSample: 2}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeStream is a download that already wrote its payload.
type fakeStream struct {
	length     int64
	downloaded int64
	complete   bool
	err        error
}

func (s *fakeStream) ContentLength() int64 { return s.length }
func (s *fakeStream) Complete() bool       { return s.complete }
func (s *fakeStream) Downloaded() int64    { return s.downloaded }
func (s *fakeStream) Err() error           { return s.err }
func (s *fakeStream) Close() error         { return nil }

type fakeTransport struct {
	mu       sync.Mutex
	payload  []byte
	length   int64
	complete bool
	err      error
	urls     []string
}

func (f *fakeTransport) Start(ctx context.Context, url string, buf mediabuffer.Buffer, feed *tags.Feed) transport.Stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.err != nil {
		return &fakeStream{length: -1, err: f.err}
	}
	_ = buf.Write(f.payload)
	return &fakeStream{length: f.length, downloaded: int64(len(f.payload)), complete: f.complete}
}

func (f *fakeTransport) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

type fakeResolver struct {
	url string
	err error
}

func (r fakeResolver) Resolve(ctx context.Context, url string) (string, error) {
	return r.url, r.err
}

// fakeSound turns every byte it reads into one sample.
type fakeSound struct {
	r io.ReadSeekCloser

	mu         sync.Mutex
	format     pcm.Format
	readyAfter int
	polls      int
	busy       int
	releases   int
}

func (s *fakeSound) OpenState() decoder.OpenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.polls > s.readyAfter {
		return decoder.StateReady
	}
	return decoder.StateLoading
}

func (s *fakeSound) Format() pcm.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *fakeSound) setFormat(f pcm.Format) {
	s.mu.Lock()
	s.format = f
	s.mu.Unlock()
}

func (s *fakeSound) Read(dst []float32) (int, error) {
	buf := make([]byte, len(dst))
	n, err := s.r.Read(buf)
	for i := 0; i < n; i++ {
		dst[i] = float32(buf[i]) / 255
	}
	return n, err
}

func (s *fakeSound) Playing() bool { return true }
func (s *fakeSound) Err() error    { return nil }

func (s *fakeSound) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	if s.busy > 0 {
		s.busy--
		return decoder.ErrBusy
	}
	return s.r.Close()
}

func (s *fakeSound) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

type fakeDecoder struct {
	mu         sync.Mutex
	readyAfter int
	busy       int
	records    []tags.Record
	sounds     []*fakeSound
	feeds      []*tags.Feed
}

func (d *fakeDecoder) Open(r io.ReadSeekCloser, opts decoder.Options) decoder.Sound {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeSound{r: r, format: testFormat, readyAfter: d.readyAfter, busy: d.busy}
	d.sounds = append(d.sounds, s)
	d.feeds = append(d.feeds, opts.Tags)
	if opts.Tags != nil && len(d.records) > 0 {
		opts.Tags.Push(d.records...)
	}
	return s
}

func (d *fakeDecoder) opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sounds)
}

func (d *fakeDecoder) last() (*fakeSound, *tags.Feed) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.sounds) - 1
	return d.sounds[n], d.feeds[n]
}

type fakeBackend struct {
	mu      sync.Mutex
	inits   []beep.SampleRate
	playing []beep.Streamer
}

func (f *fakeBackend) Init(rate beep.SampleRate, bufferSize int) error {
	f.inits = append(f.inits, rate)
	return nil
}
func (f *fakeBackend) Play(s beep.Streamer) { f.playing = append(f.playing, s) }
func (f *fakeBackend) Lock()                { f.mu.Lock() }
func (f *fakeBackend) Unlock()              { f.mu.Unlock() }
func (f *fakeBackend) Clear()               { f.playing = nil }
func (f *fakeBackend) Close()               {}

type hookLog struct {
	states  []State
	started int
	stopped int
	paused  []bool
	tags    map[string]any
	clips   []*cache.Clip
	errors  []string
}

func (h *hookLog) hooks() Hooks {
	h.tags = map[string]any{}
	return Hooks{
		OnStateChanged:    func(from, to State) { h.states = append(h.states, to) },
		OnPlaybackStarted: func() { h.started++ },
		OnPlaybackPaused:  func(paused bool) { h.paused = append(h.paused, paused) },
		OnPlaybackStopped: func() { h.stopped++ },
		OnTagChanged:      func(name string, value any) { h.tags[name] = value },
		OnClipCreated:     func(clip *cache.Clip) { h.clips = append(h.clips, clip) },
		OnError:           func(op, message string) { h.errors = append(h.errors, message) },
	}
}

func (h *hookLog) saw(st State) bool {
	for _, s := range h.states {
		if s == st {
			return true
		}
	}
	return false
}
