package player

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebovdev/audiostream/internal/cache"
	"github.com/glebovdev/audiostream/internal/config"
	"github.com/glebovdev/audiostream/internal/decoder"
	"github.com/glebovdev/audiostream/internal/output"
	"github.com/glebovdev/audiostream/internal/recorder"
	"github.com/glebovdev/audiostream/internal/source"
	"github.com/glebovdev/audiostream/internal/tags"
	"github.com/glebovdev/audiostream/internal/transport"
)

type testEnv struct {
	clock     *fakeClock
	decoder   *fakeDecoder
	transport *fakeTransport
	backend   *fakeBackend
	system    *output.System
	hooks     *hookLog
}

func testOptions(profile Profile) Options {
	opts := DefaultOptions()
	opts.Profile = profile
	opts.BlockAlign = 1024
	opts.DownloadMultiplier = 2
	opts.StarvingRetryCount = 5
	opts.WorkerInterval = time.Millisecond
	opts.ReaderPoll = time.Millisecond
	return opts
}

func newTestPlayer(t *testing.T, opts Options, tweak func(*Deps)) (*Player, *testEnv) {
	t.Helper()
	env := &testEnv{
		clock:     newFakeClock(),
		decoder:   &fakeDecoder{},
		transport: &fakeTransport{payload: make([]byte, 4096), length: -1},
		backend:   &fakeBackend{},
		hooks:     &hookLog{},
	}
	env.system = output.NewSystem(env.backend)

	deps := Deps{
		Decoder:   env.decoder,
		Transport: env.transport,
		Output:    env.system,
		Now:       env.clock.Now,
	}
	if tweak != nil {
		tweak(&deps)
	}
	p := New(opts, deps, env.hooks.hooks())
	t.Cleanup(func() { p.Close() })
	return p, env
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.NewCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// pump runs Update until cond holds.
func pump(t *testing.T, p *Player, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached, state %s, last error %q", p.State(), p.Info().LastError)
		}
		p.Update()
		time.Sleep(time.Millisecond)
	}
}

func inState(p *Player, st State) func() bool {
	return func() bool { return p.State() == st }
}

func memorySource(n int) source.Source {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return source.Source{URL: "clip-one", CacheID: "a", Data: data, Title: "Clip One"}
}

func countPrefix(msgs []string, prefix string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func TestPlayMemorySource(t *testing.T) {
	p, env := newTestPlayer(t, testOptions(ProfileRealtime), nil)

	if err := p.Play(memorySource(1000)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if p.State() != StateConnecting {
		t.Fatalf("State() = %s, want Connecting", p.State())
	}
	pump(t, p, inState(p, StatePlaying))

	if env.hooks.started != 1 {
		t.Errorf("started = %d, want 1", env.hooks.started)
	}
	if env.system.Voices() != 1 {
		t.Errorf("Voices() = %d, want 1", env.system.Voices())
	}

	info := p.Info()
	if info.Format != testFormat {
		t.Errorf("Info().Format = %v, want %v", info.Format, testFormat)
	}
	if info.Title != "Clip One" {
		t.Errorf("Info().Title = %q, want Clip One", info.Title)
	}
	if !info.Seekable {
		t.Error("memory source should be seekable")
	}

	p.Stop()
	if p.State() != StateStopped {
		t.Errorf("State() after Stop = %s, want Stopped", p.State())
	}
	if env.hooks.stopped != 1 {
		t.Errorf("stopped = %d, want 1", env.hooks.stopped)
	}
	if env.system.Voices() != 0 {
		t.Errorf("Voices() after Stop = %d, want 0", env.system.Voices())
	}
}

func TestPlayRejected(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		tweak   func(*Deps)
		setup   func(*Player)
		src     source.Source
		want    error
	}{
		{
			name:  "disabled",
			setup: func(p *Player) { p.SetEnabled(false) },
			src:   memorySource(10),
			want:  ErrDisabled,
		},
		{
			name:  "already playing",
			setup: func(p *Player) { _ = p.Play(memorySource(10)) },
			src:   memorySource(10),
			want:  ErrAlreadyPlaying,
		},
		{
			name: "empty url",
			src:  source.Source{},
			want: source.ErrEmptyURL,
		},
		{
			name: "raw without format",
			src:  source.Source{URL: "/tmp/a.raw", Type: source.TypeRAW},
			want: source.ErrRawFormat,
		},
		{
			name:    "offline without cache",
			profile: ProfileOffline,
			src:     memorySource(10),
			want:    ErrNeedsCache,
		},
		{
			name:  "render without output",
			tweak: func(d *Deps) { d.Output = nil },
			src:   memorySource(10),
			want:  ErrNoOutput,
		},
		{
			name: "playlist without resolver",
			src:  source.Source{URL: "http://radio.example/list.pls"},
			want: ErrNoResolver,
		},
		{
			name:  "network without transport",
			tweak: func(d *Deps) { d.Transport = nil },
			src:   source.Source{URL: "http://radio.example/live"},
			want:  ErrNoTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(tt.profile)
			env := &testEnv{decoder: &fakeDecoder{readyAfter: 1000}, hooks: &hookLog{}}
			deps := Deps{
				Decoder:   env.decoder,
				Transport: &fakeTransport{},
				Output:    output.NewSystem(&fakeBackend{}),
			}
			if tt.tweak != nil {
				tt.tweak(&deps)
			}
			p := New(opts, deps, env.hooks.hooks())
			defer p.Close()
			if tt.setup != nil {
				tt.setup(p)
			}

			err := p.Play(tt.src)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Play() error = %v, want %v", err, tt.want)
			}
			if kind, ok := KindOf(err); !ok || kind != KindConfig {
				t.Errorf("KindOf() = %v, %v, want config", kind, ok)
			}
			if len(env.hooks.errors) == 0 {
				t.Error("OnError was not called")
			}
		})
	}
}

func TestRealtimeStarvation(t *testing.T) {
	p, env := newTestPlayer(t, testOptions(ProfileRealtime), nil)

	if err := p.Play(source.Source{URL: "http://radio.example/live"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if p.State() != StateBuffering {
		t.Fatalf("State() = %s, want Buffering", p.State())
	}
	pump(t, p, inState(p, StateStarving))

	if n := countPrefix(env.hooks.errors, "starvation"); n != 0 {
		t.Fatalf("starvation reported %d times before the grace period ended", n)
	}

	env.clock.Advance(StarvingGrace)
	pump(t, p, inState(p, StateStopped))

	if n := countPrefix(env.hooks.errors, "starvation"); n != 1 {
		t.Errorf("starvation reported %d times, want 1", n)
	}
	if env.hooks.stopped != 1 {
		t.Errorf("stopped = %d, want 1", env.hooks.stopped)
	}
	if env.transport.starts() != 1 {
		t.Errorf("transport starts = %d, want 1", env.transport.starts())
	}
}

func TestShortageStopsIntolerantProfile(t *testing.T) {
	p, env := newTestPlayer(t, testOptions(ProfileDirect), nil)

	if err := p.Play(source.Source{URL: "http://radio.example/live"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, inState(p, StateStopped))

	if env.hooks.saw(StateStarving) {
		t.Error("direct profile should not enter Starving")
	}
	if n := countPrefix(env.hooks.errors, "starvation"); n != 1 {
		t.Errorf("starvation reported %d times, want 1", n)
	}
	if len(env.backend.inits) == 0 || env.backend.inits[0] != 8000 {
		t.Errorf("device inits = %v, want native 8000 Hz first", env.backend.inits)
	}
}

func TestReconnectAfterShortage(t *testing.T) {
	opts := testOptions(ProfileDirect)
	opts.ContinuousStreaming = true
	opts.MaxReconnects = 2
	p, env := newTestPlayer(t, opts, nil)

	if err := p.Play(source.Source{URL: "http://radio.example/live"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, inState(p, StateReconnecting))

	if got := p.Info().Reconnects; got != 1 {
		t.Errorf("Reconnects = %d, want 1", got)
	}

	env.clock.Advance(RetryDelay)
	pump(t, p, func() bool { return env.transport.starts() == 2 && p.State() == StatePlaying })

	if got := p.Info().Reconnects; got != 0 {
		t.Errorf("Reconnects after a successful start = %d, want 0", got)
	}
	if env.hooks.stopped != 0 {
		t.Errorf("stopped = %d, want 0 while reconnecting", env.hooks.stopped)
	}
	if env.hooks.started != 2 {
		t.Errorf("started = %d, want 2", env.hooks.started)
	}
}

func TestReconnectLimit(t *testing.T) {
	opts := testOptions(ProfileRealtime)
	opts.ContinuousStreaming = true
	opts.MaxReconnects = 2
	p, env := newTestPlayer(t, opts, nil)
	env.transport.err = errors.New("connection reset")

	if err := p.Play(source.Source{URL: "http://radio.example/live"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	for i := 0; i < 20 && p.State() != StateStopped; i++ {
		p.Update()
		env.clock.Advance(RetryDelay)
	}

	if p.State() != StateStopped {
		t.Fatalf("State() = %s, want Stopped", p.State())
	}
	if got := env.transport.starts(); got != 3 {
		t.Errorf("transport starts = %d, want 3", got)
	}
	if n := countPrefix(env.hooks.errors, "transport: reconnect: giving up"); n != 1 {
		t.Errorf("give up reported %d times, want 1: %v", n, env.hooks.errors)
	}
	if env.hooks.stopped != 1 {
		t.Errorf("stopped = %d, want 1", env.hooks.stopped)
	}
}

func TestNonRetryableStatus(t *testing.T) {
	opts := testOptions(ProfileRealtime)
	opts.ContinuousStreaming = true
	p, env := newTestPlayer(t, opts, nil)
	env.transport.err = &transport.StatusError{StatusCode: 404, Status: "404 Not Found"}

	if err := p.Play(source.Source{URL: "http://radio.example/live"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	p.Update()

	if p.State() != StateStopped {
		t.Errorf("State() = %s, want Stopped", p.State())
	}
	if env.hooks.saw(StateReconnecting) {
		t.Error("a 404 should not reconnect")
	}
}

func TestConnectRetriesExhausted(t *testing.T) {
	opts := testOptions(ProfileRealtime)
	opts.ConnectRetries = 3
	p, env := newTestPlayer(t, opts, nil)
	env.decoder.readyAfter = 1000

	if err := p.Play(memorySource(100)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	for i := 0; i < 20 && p.State() != StateStopped; i++ {
		p.Update()
		env.clock.Advance(opts.ConnectPollInterval)
	}

	if p.State() != StateStopped {
		t.Fatalf("State() = %s, want Stopped", p.State())
	}
	if !strings.Contains(p.Info().LastError, ErrStartTimeout.Error()) {
		t.Errorf("LastError = %q, want %q", p.Info().LastError, ErrStartTimeout)
	}
	if env.hooks.started != 0 {
		t.Errorf("started = %d, want 0", env.hooks.started)
	}
}

func TestConnectPollsWaitForInterval(t *testing.T) {
	opts := testOptions(ProfileRealtime)
	opts.ConnectRetries = 3
	p, env := newTestPlayer(t, opts, nil)
	env.decoder.readyAfter = 1000

	if err := p.Play(memorySource(100)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		p.Update()
	}
	if p.State() != StateConnecting {
		t.Errorf("State() = %s, want Connecting without the clock moving", p.State())
	}
	if got := p.Info().ConnectPolls; got != 1 {
		t.Errorf("ConnectPolls = %d, want 1", got)
	}
}

func TestUnstableRelease(t *testing.T) {
	p, env := newTestPlayer(t, testOptions(ProfileRealtime), nil)
	env.decoder.readyAfter = 1000
	env.decoder.busy = 2

	if err := p.Play(memorySource(100)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	p.Update()
	p.Stop()

	snd, _ := env.decoder.last()
	if snd.releaseCount() != 1 {
		t.Fatalf("releases = %d, want 1", snd.releaseCount())
	}
	if n := countPrefix(env.hooks.errors, "unstable shutdown"); n != 1 {
		t.Errorf("unstable shutdown reported %d times, want 1", n)
	}

	p.Update()
	if snd.releaseCount() != 1 {
		t.Errorf("release retried before the delay: %d", snd.releaseCount())
	}

	env.clock.Advance(UnstableRetryDelay)
	p.Update()
	if snd.releaseCount() != 2 {
		t.Errorf("releases = %d, want 2", snd.releaseCount())
	}

	env.clock.Advance(UnstableRetryDelay)
	p.Update()
	if snd.releaseCount() != 3 {
		t.Errorf("releases = %d, want 3", snd.releaseCount())
	}

	p.mu.Lock()
	left := len(p.unstable)
	p.mu.Unlock()
	if left != 0 {
		t.Errorf("unstable sounds = %d, want 0", left)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOfflineClipAndCacheHit(t *testing.T) {
	c := newTestCache(t)
	p, env := newTestPlayer(t, testOptions(ProfileOffline), func(d *Deps) {
		d.Output = nil
		d.Cache = c
	})
	src := memorySource(1000)

	if err := p.Play(src); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, inState(p, StateStopped))

	if len(env.hooks.clips) != 1 {
		t.Fatalf("clips = %d, want 1", len(env.hooks.clips))
	}
	clip := env.hooks.clips[0]
	if len(clip.Samples) != 1000 || clip.SampleRate != 8000 || clip.Channels != 1 {
		t.Errorf("clip = %d samples, %d Hz, %d ch", len(clip.Samples), clip.SampleRate, clip.Channels)
	}
	if clip.Name != "Clip One" {
		t.Errorf("clip.Name = %q, want Clip One", clip.Name)
	}
	if want := float32(10) / 255; clip.Samples[10] != want {
		t.Errorf("clip.Samples[10] = %v, want %v", clip.Samples[10], want)
	}

	if err := p.Play(src); err != nil {
		t.Fatalf("second Play() error = %v", err)
	}
	if env.decoder.opened() != 1 {
		t.Errorf("decoder opened %d times, want 1 after a cache hit", env.decoder.opened())
	}
	if len(env.hooks.clips) != 2 || env.hooks.started != 2 || env.hooks.stopped != 2 {
		t.Errorf("clips, started, stopped = %d, %d, %d, want 2, 2, 2",
			len(env.hooks.clips), env.hooks.started, env.hooks.stopped)
	}
	if p.State() != StateStopped {
		t.Errorf("State() = %s, want Stopped", p.State())
	}
}

func TestOfflineOverwriteIgnoresCache(t *testing.T) {
	c := newTestCache(t)
	opts := testOptions(ProfileOffline)
	opts.Overwrite = true
	p, env := newTestPlayer(t, opts, func(d *Deps) {
		d.Output = nil
		d.Cache = c
	})
	src := memorySource(500)

	for i := 0; i < 2; i++ {
		if err := p.Play(src); err != nil {
			t.Fatalf("Play() #%d error = %v", i, err)
		}
		pump(t, p, inState(p, StateStopped))
	}
	if env.decoder.opened() != 2 {
		t.Errorf("decoder opened %d times, want 2", env.decoder.opened())
	}
}

func TestPictureAndTextTags(t *testing.T) {
	c := newTestCache(t)

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var png64 bytes.Buffer
	if err := png.Encode(&png64, img); err != nil {
		t.Fatal(err)
	}
	apic := append([]byte{0}, []byte("image/png\x00")...)
	apic = append(apic, 3, 0)
	apic = append(apic, png64.Bytes()...)

	p, env := newTestPlayer(t, testOptions(ProfileRealtime), func(d *Deps) { d.Cache = c })
	env.decoder.records = []tags.Record{
		{Type: tags.TypeID3v2, Name: "APIC", DataType: tags.DataBinary, Data: apic},
		{Type: tags.TypeID3v2, Name: "PRIV", DataType: tags.DataBinary, Data: []byte{1, 2}},
		tags.StringRecord(tags.TypeID3v2, "TITLE", "Night Drive"),
	}
	src := memorySource(1000)

	if err := p.Play(src); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, func() bool { return env.hooks.tags["APIC_3"] != nil })

	if _, ok := env.hooks.tags["APIC_3"].(image.Image); !ok {
		t.Errorf("APIC_3 = %T, want image.Image", env.hooks.tags["APIC_3"])
	}
	if got := env.hooks.tags["TITLE"]; got != "Night Drive" {
		t.Errorf("TITLE = %v, want Night Drive", got)
	}
	if _, ok := env.hooks.tags["PRIV"]; ok {
		t.Error("binary PRIV frame should not reach the tag store")
	}
	if p.Info().Title != "Night Drive" {
		t.Errorf("Info().Title = %q", p.Info().Title)
	}
	if p.Artwork() == nil {
		t.Error("Artwork() = nil")
	}
	if c.GetImage(src.CacheKey()+"APIC_3") == nil {
		t.Error("artwork was not cached")
	}
}

func TestSampleRateChangeKeepsQueuedAudio(t *testing.T) {
	opts := testOptions(ProfileRealtime)
	opts.StarvingRetryCount = 1000
	p, env := newTestPlayer(t, opts, nil)

	if err := p.Play(source.Source{URL: "http://radio.example/live"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, func() bool { return p.State() == StatePlaying && p.Info().Queued == 4096 })

	snd, feed := env.decoder.last()
	snd.setFormat(pcmFormat(16000, 1))
	feed.Push(tags.FloatRecord(tags.TypeInternal, tags.SampleRateChange, 16000))
	p.Update()

	info := p.Info()
	if info.Format.SampleRate != 16000 {
		t.Errorf("Format.SampleRate = %d, want 16000", info.Format.SampleRate)
	}
	// 4096 samples at 8 kHz are half a second, 8192 samples at 16 kHz.
	if info.Queued < 7900 || info.Queued > 8300 {
		t.Errorf("Queued = %d after the rate change, want about 8192", info.Queued)
	}
	if env.system.Voices() != 1 {
		t.Errorf("Voices() = %d, want 1", env.system.Voices())
	}
	env.backend.mu.Lock()
	played := len(env.backend.playing)
	env.backend.mu.Unlock()
	if played != 2 {
		t.Errorf("voices started = %d, want 2", played)
	}
	if p.State() != StatePlaying {
		t.Errorf("State() = %s, want Playing", p.State())
	}
}

func TestClipFormatChangeDropsCache(t *testing.T) {
	c := newTestCache(t)
	opts := testOptions(ProfileClip)
	opts.StarvingRetryCount = 1000
	p, env := newTestPlayer(t, opts, func(d *Deps) {
		d.Output = nil
		d.Cache = c
	})
	src := source.Source{URL: "http://radio.example/live"}

	if err := p.Play(src); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, inState(p, StatePlaying))

	snd, feed := env.decoder.last()
	snd.setFormat(pcmFormat(16000, 1))
	feed.Push(tags.FloatRecord(tags.TypeInternal, tags.SampleRateChange, 16000))
	p.Update()
	p.Update()

	p.mu.Lock()
	workerFormat := p.sess.worker.currentFormat()
	caching := p.sess.worker.caching()
	p.mu.Unlock()
	if workerFormat.SampleRate != 16000 {
		t.Errorf("worker format = %s, want 16000 Hz", workerFormat)
	}
	if caching {
		t.Error("pcm cache should stop receiving samples after a format change")
	}
	if n := countPrefix(env.hooks.errors, "decode: pcm cache"); n != 1 {
		t.Errorf("pcm cache drop reported %d times, want 1: %v", n, env.hooks.errors)
	}

	p.Stop()
	if len(env.hooks.clips) != 0 {
		t.Errorf("clips = %d, want none with mixed sample rates", len(env.hooks.clips))
	}
	if _, ok := c.Lookup(context.Background(), src.URL, src.CacheID, cache.ExtPCM); ok {
		t.Error("a mixed-rate pcm file was committed to the cache")
	}
}

func TestStopWAVFileReportsNoErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	rec := recorder.NewWAV()
	if err := rec.Start(path, 2, 22050); err != nil {
		t.Fatal(err)
	}
	samples := make([]float32, 4410)
	for i := range samples {
		samples[i] = 0.25
	}
	if err := rec.Add(samples); err != nil {
		t.Fatal(err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatal(err)
	}

	opts := testOptions(ProfileRealtime)
	opts.ConnectRetries = 1000
	p, env := newTestPlayer(t, opts, func(d *Deps) { d.Decoder = decoder.New() })

	if err := p.Play(source.Source{URL: path}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for p.State() != StatePlaying {
		if time.Now().After(deadline) {
			t.Fatalf("state %s, last error %q", p.State(), p.Info().LastError)
		}
		p.Update()
		env.clock.Advance(opts.ConnectPollInterval)
		time.Sleep(time.Millisecond)
	}
	if got := p.Info().Format.SampleRate; got != 22050 {
		t.Errorf("Format.SampleRate = %d, want 22050", got)
	}

	p.Stop()
	if len(env.hooks.errors) != 0 {
		t.Errorf("errors after stopping a wav file: %q", env.hooks.errors)
	}
	if got := p.Info().LastError; got != "" {
		t.Errorf("LastError = %q, want none", got)
	}
}

func TestCloseReportsUnreleasedSounds(t *testing.T) {
	opts := testOptions(ProfileRealtime)
	opts.UnstableRetryDelay = time.Millisecond
	p, env := newTestPlayer(t, opts, nil)
	env.decoder.readyAfter = 1000
	env.decoder.busy = 1000

	if err := p.Play(memorySource(100)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	p.Update()

	err := p.Close()
	if err == nil || !strings.HasPrefix(err.Error(), "1 sounds") {
		t.Errorf("Close() = %v, want one unreleased sound", err)
	}
}

func TestPauseResume(t *testing.T) {
	p, env := newTestPlayer(t, testOptions(ProfileRealtime), nil)

	p.Pause(true)
	if len(env.hooks.paused) != 0 {
		t.Fatal("Pause on an idle player should do nothing")
	}

	if err := p.Play(memorySource(1000)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, inState(p, StatePlaying))

	p.Pause(true)
	if p.State() != StatePaused || !p.Info().Paused {
		t.Errorf("State() = %s, want Paused", p.State())
	}
	p.mu.Lock()
	voicePaused := p.sess.voice.Paused()
	p.mu.Unlock()
	if !voicePaused {
		t.Error("voice was not paused")
	}

	p.TogglePause()
	if p.State() != StatePlaying {
		t.Errorf("State() = %s, want Playing", p.State())
	}
	if len(env.hooks.paused) != 2 || !env.hooks.paused[0] || env.hooks.paused[1] {
		t.Errorf("paused hooks = %v, want [true false]", env.hooks.paused)
	}
}

func TestPlaylistResolve(t *testing.T) {
	p, env := newTestPlayer(t, testOptions(ProfileRealtime), func(d *Deps) {
		d.Resolver = fakeResolver{url: "http://radio.example/live"}
	})

	if err := p.Play(source.Source{URL: "http://radio.example/list.pls"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if p.State() != StateResolving {
		t.Fatalf("State() = %s, want Resolving", p.State())
	}
	pump(t, p, func() bool { return env.transport.starts() == 1 })

	env.transport.mu.Lock()
	url := env.transport.urls[0]
	env.transport.mu.Unlock()
	if url != "http://radio.example/live" {
		t.Errorf("transport url = %q", url)
	}
	if got := p.Info().URL; got != "http://radio.example/live" {
		t.Errorf("Info().URL = %q", got)
	}
}

func TestPlaylistResolveFailure(t *testing.T) {
	p, env := newTestPlayer(t, testOptions(ProfileRealtime), func(d *Deps) {
		d.Resolver = fakeResolver{err: errors.New("no entries")}
	})

	if err := p.Play(source.Source{URL: "http://radio.example/list.m3u"}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, func() bool { return p.Info().LastError != "" })

	if n := countPrefix(env.hooks.errors, "decode: resolve playlist"); n != 1 {
		t.Errorf("resolve failure reported %d times: %v", n, env.hooks.errors)
	}
	p.Update()
	if p.State() == StateStopped {
		t.Fatal("stopped before the retry delay passed")
	}

	env.clock.Advance(RetryDelay)
	p.Update()
	if p.State() != StateStopped {
		t.Errorf("State() = %s, want Stopped after the retry delay", p.State())
	}
	if env.hooks.stopped != 1 {
		t.Errorf("stopped = %d, want 1", env.hooks.stopped)
	}
}

func TestSetEnabledStopsPlayback(t *testing.T) {
	p, env := newTestPlayer(t, testOptions(ProfileRealtime), nil)

	if err := p.Play(memorySource(1000)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	pump(t, p, inState(p, StatePlaying))

	p.SetEnabled(false)
	if p.State() != StateStopped {
		t.Errorf("State() = %s, want Stopped", p.State())
	}
	if env.hooks.stopped != 1 {
		t.Errorf("stopped = %d, want 1", env.hooks.stopped)
	}
}

func TestSetVolume(t *testing.T) {
	p, _ := newTestPlayer(t, testOptions(ProfileRealtime), nil)

	tests := []struct {
		in, want int
	}{
		{50, 50},
		{-5, 0},
		{150, 100},
	}
	for _, tt := range tests {
		p.SetVolume(tt.in)
		if got := p.Volume(); got != tt.want {
			t.Errorf("SetVolume(%d): Volume() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ProfileDirect.String(), "direct"},
		{ProfileOffline.String(), "offline"},
		{Profile(9).String(), "unknown"},
		{StateStarving.String(), "Starving"},
		{StateReconnecting.String(), "Reconnecting"},
		{State(99).String(), "Unknown"},
		{KindUnstableShutdown.String(), "unstable shutdown"},
		{ErrorKind(9).String(), "unknown"},
		{StopUser.String(), "user"},
		{StopErrorOrEOF.String(), "error/eof"},
		{BufferDisk.String(), "disk"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		in      string
		want    Profile
		wantErr bool
	}{
		{"direct", ProfileDirect, false},
		{"Realtime", ProfileRealtime, false},
		{"CLIP", ProfileClip, false},
		{"offline", ProfileOffline, false},
		{"bogus", ProfileRealtime, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProfile(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProfile(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseProfile(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stream.Profile = "offline"
	cfg.Stream.MediaBuffer = "disk"
	cfg.Stream.ConnectRetries = 7
	cfg.Stream.ContinuousStreaming = true
	cfg.LogLevel = "debug"
	cfg.Volume = 40

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig() error = %v", err)
	}
	if opts.Profile != ProfileOffline || opts.MediaBuffer != BufferDisk {
		t.Errorf("profile, buffer = %s, %s", opts.Profile, opts.MediaBuffer)
	}
	if opts.ConnectRetries != 7 || !opts.ContinuousStreaming || opts.Volume != 40 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.BlockAlign != config.DefaultBlockAlign {
		t.Errorf("BlockAlign = %d, want %d", opts.BlockAlign, config.DefaultBlockAlign)
	}

	cfg.Stream.MediaBuffer = "tape"
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("expected an error for an unknown media buffer")
	}
}
