// Package player drives a stream from connection to playback. The state
// machine advances one step per Update call; decoding and downloading run on
// their own goroutines.
package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/glebovdev/audiostream/internal/cache"
	"github.com/glebovdev/audiostream/internal/decoder"
	"github.com/glebovdev/audiostream/internal/mediabuffer"
	"github.com/glebovdev/audiostream/internal/output"
	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/glebovdev/audiostream/internal/recorder"
	"github.com/glebovdev/audiostream/internal/source"
	"github.com/glebovdev/audiostream/internal/tags"
	"github.com/glebovdev/audiostream/internal/transport"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transport downloads network media into a buffer.
type Transport interface {
	Start(ctx context.Context, url string, buf mediabuffer.Buffer, feed *tags.Feed) transport.Stream
}

// Resolver turns a playlist URL into the stream URL it names.
type Resolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// Hooks are called without the player lock held, from whichever goroutine
// called the method that caused them (usually Update).
type Hooks struct {
	OnStateChanged    func(from, to State)
	OnPlaybackStarted func()
	OnPlaybackPaused  func(paused bool)
	OnPlaybackStopped func()
	OnTagChanged      func(name string, value any)
	OnClipCreated     func(clip *cache.Clip)
	OnError           func(op, message string)
}

// Deps are the collaborators a player works with. Output may be nil for the
// offline profile and Cache may be nil for the rendering profiles.
type Deps struct {
	Decoder   decoder.Decoder
	Transport Transport
	Resolver  Resolver
	Output    *output.System
	Cache     *cache.Cache
	Recorder  *recorder.WAV
	Now       func() time.Time
}

// closeAttempts bounds how often Close retries a deferred release.
const closeAttempts = 50

type Player struct {
	opts  Options
	deps  Deps
	hooks Hooks
	log   zerolog.Logger
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	enabled     bool
	volume      int
	paused      bool
	src         source.Source
	sess        *session
	reconnects  int
	reconnectAt time.Time
	lastError   string
	tags        *tags.Store
	actions     []func()
	pending     []func()
	unstable    []decoder.Sound
	unstableAt  time.Time
}

func New(opts Options, deps Deps, hooks Hooks) *Player {
	opts.fill()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		opts:    opts,
		deps:    deps,
		hooks:   hooks,
		log:     log.Logger.Level(opts.LogLevel),
		now:     deps.Now,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
		enabled: true,
		volume:  opts.Volume,
		tags:    tags.NewStore(),
	}
}

// Play validates src and starts connecting. Rejections are returned as
// *Error with KindConfig; later failures are reported through OnError.
func (p *Player) Play(src source.Source) error {
	p.mu.Lock()
	err := p.play(src)
	fire := p.takePending()
	p.mu.Unlock()
	run(fire)
	return err
}

func (p *Player) play(src source.Source) error {
	if !p.enabled {
		return p.check(KindConfig, "play", ErrDisabled, true)
	}
	if p.state.Active() {
		return p.check(KindConfig, "play", ErrAlreadyPlaying, true)
	}
	if err := src.Validate(); err != nil {
		return p.check(KindConfig, "play", err, true)
	}

	profile := p.opts.Profile
	switch {
	case profile.caches() && p.deps.Cache == nil:
		return p.check(KindConfig, "play", ErrNeedsCache, true)
	case profile.renders(p.opts.PlayWhileDownloading) && p.deps.Output == nil:
		return p.check(KindConfig, "play", ErrNoOutput, true)
	case src.Playlist() != source.PlaylistNone && p.deps.Resolver == nil:
		return p.check(KindConfig, "play", ErrNoResolver, true)
	case src.MediaType() == source.MediaNetwork && p.deps.Transport == nil:
		return p.check(KindConfig, "play", ErrNoTransport, true)
	}

	p.src = src
	p.reconnects = 0
	p.lastError = ""
	p.paused = false

	if profile.caches() && !p.opts.Overwrite {
		if path, ok := p.deps.Cache.Lookup(p.ctx, src.URL, src.CacheID, cache.ExtPCM); ok {
			if p.playFromCache(path) {
				return nil
			}
		}
	}

	p.connect()
	return nil
}

// playFromCache reports a previously decoded clip without touching the
// network.
func (p *Player) playFromCache(path string) bool {
	clip, err := cache.LoadClip(path)
	if err != nil {
		p.check(KindDecode, "load cached clip", err, false)
		_ = p.deps.Cache.Remove(p.ctx, path)
		return false
	}
	clip.Name = p.src.Name()

	p.log.Info().Str("file", path).Dur("duration", clip.Duration()).Msg("Playing from cache")
	p.emit(p.hooks.OnPlaybackStarted)
	if fn := p.hooks.OnClipCreated; fn != nil {
		p.pending = append(p.pending, func() { fn(clip) })
	}
	p.setState(StateStopped)
	p.emit(p.hooks.OnPlaybackStopped)
	return true
}

// connect starts a new session for the current source.
func (p *Player) connect() {
	s := newSession(p.ctx, p.src, p.now())
	p.sess = s
	p.log.Debug().Str("session", s.id.String()).Str("url", s.url).Msg("Session started")

	if p.src.Playlist() != source.PlaylistNone {
		s.resolved = make(chan resolveResult, 1)
		resolver := p.deps.Resolver
		go func() {
			url, err := resolver.Resolve(s.ctx, s.src.URL)
			s.resolved <- resolveResult{url: url, err: err}
		}()
		p.setState(StateResolving)
		return
	}
	p.open(s)
}

func (p *Player) open(s *session) {
	switch s.mediaType() {
	case source.MediaMemory:
		p.openSound(s, memoryFile{bytes.NewReader(s.src.Data)})
	case source.MediaFileSystem:
		f, err := os.Open(source.Source{URL: s.url}.Path())
		if err != nil {
			p.fail(KindTransport, "open file", err)
			return
		}
		p.openSound(s, f)
	default:
		p.beginTransfer(s)
	}
}

func (p *Player) beginTransfer(s *session) {
	if p.deps.Transport == nil {
		p.fail(KindConfig, "connect", ErrNoTransport)
		return
	}
	buf, err := p.newBuffer(s)
	if err != nil {
		p.fail(KindTransport, "media buffer", err)
		return
	}
	s.buf = buf
	s.stream = p.deps.Transport.Start(s.ctx, s.url, buf, s.feed)
	s.reader = mediabuffer.NewReader(s.ctx, buf, s.stream)
	if p.opts.ReaderPoll > 0 {
		s.reader.SetPollInterval(p.opts.ReaderPoll)
	}
	s.target = mediabuffer.InitialSize(p.opts.BlockAlign, p.opts.DownloadMultiplier)
	p.log.Info().Str("url", s.url).Int("initial", s.target).Msg("Connecting to stream")
	p.setState(StateBuffering)
}

func (p *Player) newBuffer(s *session) (mediabuffer.Buffer, error) {
	if p.opts.MediaBuffer == BufferMemory {
		return mediabuffer.NewMemory(p.opts.BlockAlign), nil
	}
	if c := p.deps.Cache; c != nil {
		s.diskPath = c.Path(s.src.URL, s.src.CacheID, cache.ExtCompressed)
		return mediabuffer.NewDisk(s.diskPath, p.opts.BlockAlign, false)
	}
	path := filepath.Join(os.TempDir(), "audiostream-"+s.id.String()+cache.ExtCompressed)
	return mediabuffer.NewDisk(path, p.opts.BlockAlign, true)
}

func (p *Player) openSound(s *session, r io.ReadSeekCloser) {
	s.sound = p.deps.Decoder.Open(r, decoder.Options{
		Type: s.src.Type,
		Raw:  s.src.Raw,
		Tags: s.feed,
	})
	s.polls = 0
	s.nextPoll = p.now()
	p.setState(StateConnecting)
}

// Update advances the state machine by one step. It runs at most one queued
// main-thread action and then fires the hooks collected during the step.
func (p *Player) Update() {
	p.mu.Lock()
	p.tick(p.now())
	var action func()
	if len(p.actions) > 0 {
		action = p.actions[0]
		p.actions = p.actions[1:]
	}
	fire := p.takePending()
	p.mu.Unlock()

	if action != nil {
		action()
	}
	run(fire)
}

// Run calls Update every interval until ctx is done.
func (p *Player) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Update()
		}
	}
}

func (p *Player) tick(now time.Time) {
	p.retryUnstable(now)

	s := p.sess
	if s != nil && !s.stopAt.IsZero() {
		if !now.Before(s.stopAt) {
			p.stop(StopErrorOrEOF, s.stopCause)
		}
		p.flushTags()
		return
	}
	switch p.state {
	case StateResolving:
		p.stepResolve(s)
	case StateBuffering:
		p.stepBuffering(s)
	case StateConnecting:
		p.stepConnect(s, now)
	case StatePlaying, StateStarving:
		p.stepPlaying(s, now)
	case StatePaused:
		p.transportFailed(s)
	case StateReconnecting:
		if !now.Before(p.reconnectAt) {
			p.log.Info().Int("attempt", p.reconnects).Int("max", p.opts.MaxReconnects).Msg("Reconnecting")
			p.connect()
		}
	}

	p.flushTags()
}

func (p *Player) stepResolve(s *session) {
	select {
	case r := <-s.resolved:
		if r.err != nil {
			p.failAfterDelay(KindDecode, "resolve playlist", r.err)
			return
		}
		s.url = r.url
		p.open(s)
	default:
	}
}

func (p *Player) stepBuffering(s *session) {
	if p.transportFailed(s) {
		return
	}
	if s.stream.Downloaded() >= int64(s.target) || s.stream.Complete() {
		p.log.Debug().Int64("downloaded", s.stream.Downloaded()).Msg("Initial buffer filled")
		p.openSound(s, s.reader)
	}
}

func (p *Player) stepConnect(s *session, now time.Time) {
	if p.transportFailed(s) {
		return
	}
	if now.Before(s.nextPoll) {
		return
	}
	s.nextPoll = now.Add(p.opts.ConnectPollInterval)

	st := s.sound.OpenState()
	switch {
	case st == decoder.StateError:
		p.fail(KindDecode, "open sound", s.sound.Err())
		return
	case (st == decoder.StateReady || st == decoder.StatePlaying) && s.sound.Format().Valid():
		if err := p.startPlayback(s); err != nil {
			p.fail(KindConfig, "start playback", err)
		}
		return
	}

	s.polls++
	if s.polls >= p.opts.ConnectRetries {
		p.failAfterDelay(KindTransport, "connect", fmt.Errorf("%w after %d polls (%s)", ErrStartTimeout, s.polls, st))
	}
}

// transportFailed stops the session when the download reported an error.
func (p *Player) transportFailed(s *session) bool {
	if s == nil || s.stream == nil {
		return false
	}
	if err := s.stream.Err(); err != nil {
		p.fail(KindTransport, "download", err)
		return true
	}
	return false
}

func (p *Player) startPlayback(s *session) error {
	s.format = s.sound.Format()
	profile := p.opts.Profile

	w := &worker{
		sound:    s.sound,
		format:   s.format,
		interval: p.opts.WorkerInterval,
	}

	if profile.renders(p.opts.PlayWhileDownloading) {
		s.queue = pcm.NewQueue(s.format.Samples(RealtimeBacklog.Seconds()))
		w.queue = s.queue
		w.backlog = s.format.Samples(RealtimeBacklog.Seconds())
		if err := p.startVoice(s); err != nil {
			return err
		}
	}

	if profile.caches() {
		out, err := p.deps.Cache.CreatePCM(s.src.URL, s.src.CacheID, s.format)
		if err != nil {
			p.check(KindTransport, "pcm cache", err, false)
		} else {
			s.pcmOut = out
			w.pcmOut = out
		}
		w.pace = profile == ProfileClip && !p.opts.PlayWhileDownloading
	}

	if rec := p.deps.Recorder; rec != nil && p.opts.RecordPath != "" {
		if !rec.Recording() {
			if err := rec.Start(p.opts.RecordPath, s.format.Channels, s.format.SampleRate); err != nil {
				p.check(KindTransport, "record", err, false)
			}
		}
		if rec.Recording() {
			w.rec = rec
		}
	}

	s.worker = w
	w.start()

	p.reconnects = 0
	p.log.Info().Str("format", s.format.String()).Str("profile", profile.String()).Msgf("Now playing: %s", s.src.Name())
	p.setState(StatePlaying)
	p.emit(p.hooks.OnPlaybackStarted)
	return nil
}

func (p *Player) startVoice(s *session) error {
	out := p.deps.Output
	direct := p.opts.Profile == ProfileDirect
	if !s.acquired {
		rate := output.DefaultSampleRate
		if direct {
			rate = s.format.SampleRate
		}
		if err := out.Acquire(rate); err != nil {
			return err
		}
		s.acquired = true
	}
	v, err := out.Start(s.format, direct, s.pull, p.volume)
	if err != nil {
		return err
	}
	s.voice = v
	return nil
}

func (p *Player) stepPlaying(s *session, now time.Time) {
	if p.transportFailed(s) {
		return
	}
	if p.opts.ReadTags && p.state != StateStarving {
		p.readTags(s)
		if p.sess != s {
			return
		}
	}
	if s.worker.currentFormat() != s.format {
		p.rebuildRender(s)
		if p.sess != s {
			return
		}
	}
	if s.worker.finished() {
		if err := s.worker.Err(); err != nil {
			p.fail(KindDecode, "decode", err)
			return
		}
	}

	shortage := false
	if s.unbounded() {
		hungry := s.queue == nil || s.queue.Available() < s.worker.backlogSize()
		if hungry && s.reader.LastResult() == mediabuffer.ResultEOF {
			s.starveCount++
		} else {
			s.starveCount = 0
		}
		shortage = s.starveCount >= p.opts.StarvingRetryCount && s.buf.Available() < int64(p.opts.BlockAlign)
	}
	ended := s.drained()

	if !shortage && !ended {
		if p.state == StateStarving {
			p.log.Info().Msg("Stream recovered")
			s.starvingSince = time.Time{}
			p.setState(StatePlaying)
		}
		return
	}

	if ended {
		s.ended = true
		p.log.Info().Str("url", s.url).Msg("End of stream")
		p.stop(StopErrorOrEOF, nil)
		return
	}

	if !p.opts.Profile.tolerant() {
		p.check(KindStarvation, "stream", ErrStarved, false)
		p.stop(StopErrorOrEOF, ErrStarved)
		return
	}
	if p.state != StateStarving {
		s.starvingSince = now
		p.log.Warn().Int("polls", s.starveCount).Msg("Stream is starving")
		p.setState(StateStarving)
		return
	}
	if now.Sub(s.starvingSince) >= p.opts.StarvingGrace {
		p.check(KindStarvation, "stream", fmt.Errorf("%w for %v", ErrStarved, now.Sub(s.starvingSince)), false)
		p.stop(StopErrorOrEOF, ErrStarved)
	}
}

// readTags drains the session feed into the tag store.
func (p *Player) readTags(s *session) {
	for {
		rec, ok := s.feed.Next()
		if !ok {
			return
		}
		switch {
		case rec.Name == tags.SampleRateChange:
			p.rebuildRender(s)
			if p.sess != s {
				return
			}
		case tags.IsPicture(rec):
			pic, ok := tags.DecodePicture(rec)
			if !ok {
				continue
			}
			key := s.src.CacheKey()
			p.actions = append(p.actions, func() { p.applyPicture(key, pic) })
		case rec.DataType == tags.DataBinary:
		default:
			p.tags.Set(rec.Name, rec.Value())
		}
	}
}

// applyPicture runs as a main-thread action, outside the player lock.
func (p *Player) applyPicture(key string, pic tags.Picture) {
	img, err := pic.Image()
	if err != nil {
		p.log.Debug().Err(err).Msg("Dropping attached picture")
		return
	}
	p.tags.Set(pic.TagName(), img)
	if c := p.deps.Cache; c != nil {
		if err := c.SaveImage(key+pic.TagName(), img); err != nil {
			p.log.Debug().Err(err).Msg("Failed to cache artwork")
		}
	}
}

// rebuildRender follows a decoder format change. The worker converts what is
// already queued, so the render path is reopened without dropping audio.
func (p *Player) rebuildRender(s *session) {
	f := s.sound.Format()
	if !f.Valid() || f == s.format {
		return
	}
	p.log.Info().Msgf("Sample rate changed: %d Hz -> %d Hz", s.format.SampleRate, f.SampleRate)
	old := s.format
	s.format = f
	s.worker.adopt(f)
	if s.pcmOut != nil && s.worker.takeCacheDrop() {
		p.check(KindDecode, "pcm cache", fmt.Errorf("%w: %s -> %s", ErrFormatChanged, old, f), false)
	}
	if s.voice == nil {
		return
	}
	s.voice.Stop()
	s.voice = nil
	if err := p.startVoice(s); err != nil {
		p.fail(KindConfig, "rebuild render", err)
		return
	}
	if p.paused {
		s.voice.SetPaused(true)
	}
}

func (p *Player) flushTags() {
	dirty := p.tags.TakeDirty()
	if len(dirty) == 0 || p.hooks.OnTagChanged == nil {
		return
	}
	names := make([]string, 0, len(dirty))
	for name := range dirty {
		names = append(names, name)
	}
	sort.Strings(names)

	fn := p.hooks.OnTagChanged
	for _, name := range names {
		name, value := name, dirty[name]
		p.pending = append(p.pending, func() { fn(name, value) })
	}
}

// fail reports err and stops the session on the error path.
func (p *Player) fail(kind ErrorKind, op string, err error) {
	p.check(kind, op, err, false)
	p.stop(StopErrorOrEOF, err)
}

// failAfterDelay reports err now and stops the session once RetryDelay has
// passed.
func (p *Player) failAfterDelay(kind ErrorKind, op string, err error) {
	p.check(kind, op, err, false)
	s := p.sess
	if s == nil || p.opts.RetryDelay <= 0 {
		p.stop(StopErrorOrEOF, err)
		return
	}
	s.stopAt = p.now().Add(p.opts.RetryDelay)
	s.stopCause = err
	p.log.Debug().Dur("delay", p.opts.RetryDelay).Msg("Stopping after retry delay")
}

// stop tears the session down. On the error path it schedules a reconnect
// when continuous streaming allows one.
func (p *Player) stop(reason StopReason, cause error) {
	s := p.sess
	if s == nil {
		if reason == StopUser && p.state == StateReconnecting {
			p.finish()
		}
		return
	}
	p.sess = nil
	p.teardown(s)

	if reason == StopUser {
		p.finish()
		return
	}

	if p.opts.ContinuousStreaming && !transport.IsNonRetryable(cause) {
		if p.opts.MaxReconnects == 0 || p.reconnects < p.opts.MaxReconnects {
			p.reconnects++
			p.reconnectAt = p.now().Add(p.opts.RetryDelay)
			p.setState(StateReconnecting)
			return
		}
		p.check(KindTransport, "reconnect", fmt.Errorf("giving up after %d reconnects", p.reconnects), false)
	}
	p.finish()
}

func (p *Player) finish() {
	if rec := p.deps.Recorder; rec != nil && rec.Recording() {
		if err := rec.Stop(); err != nil {
			p.check(KindTransport, "record", err, false)
		}
	}
	p.paused = false
	p.setState(StateStopped)
	p.emit(p.hooks.OnPlaybackStopped)
}

func (p *Player) teardown(s *session) {
	var result *multierror.Error
	ctx := context.Background()

	s.cancel()
	if s.voice != nil {
		s.voice.Stop()
	}
	if s.worker != nil {
		s.worker.stop()
	}
	if s.acquired {
		p.deps.Output.Release()
	}

	if s.sound != nil {
		err := s.sound.Release()
		switch {
		case errors.Is(err, decoder.ErrBusy):
			p.check(KindUnstableShutdown, "release sound", err, false)
			p.unstable = append(p.unstable, s.sound)
			p.unstableAt = p.now().Add(p.opts.UnstableRetryDelay)
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("release sound: %w", err))
		}
	}

	complete := false
	if s.stream != nil {
		complete = s.stream.Complete()
		if err := s.stream.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close transport: %w", err))
		}
	}
	if s.buf != nil {
		if err := s.buf.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close media buffer: %w", err))
		}
	}
	if s.diskPath != "" {
		if complete {
			if err := p.deps.Cache.Track(ctx, s.diskPath); err != nil {
				result = multierror.Append(result, fmt.Errorf("track download: %w", err))
			}
		} else {
			_ = p.deps.Cache.Remove(ctx, s.diskPath)
		}
	}

	if s.pcmOut != nil {
		if s.worker != nil && !s.worker.caching() {
			s.pcmOut.Abort()
		} else if err := p.commitClip(ctx, s); err != nil {
			result = multierror.Append(result, err)
		}
	}

	s.feed.Reset()
	p.tags.Reset()

	if err := result.ErrorOrNil(); err != nil {
		p.check(KindTransport, "teardown", err, false)
	}
	p.log.Debug().Str("session", s.id.String()).Dur("duration", p.now().Sub(s.started)).Msg("Session closed")
}

func (p *Player) commitClip(ctx context.Context, s *session) error {
	path, err := s.pcmOut.Commit(ctx)
	if err != nil {
		return fmt.Errorf("commit pcm cache: %w", err)
	}
	if path == "" {
		return nil
	}
	clip, err := cache.LoadClip(path)
	if err != nil {
		return fmt.Errorf("load clip: %w", err)
	}
	clip.Name = s.src.Name()
	s.clipPath = path
	p.log.Info().Str("file", path).Dur("duration", clip.Duration()).Msg("Clip created")
	if fn := p.hooks.OnClipCreated; fn != nil {
		p.pending = append(p.pending, func() { fn(clip) })
	}
	return nil
}

// retryUnstable releases sounds whose teardown was deferred.
func (p *Player) retryUnstable(now time.Time) {
	if len(p.unstable) == 0 || now.Before(p.unstableAt) {
		return
	}
	keep := p.unstable[:0]
	for _, snd := range p.unstable {
		err := snd.Release()
		if errors.Is(err, decoder.ErrBusy) {
			keep = append(keep, snd)
			continue
		}
		if err != nil {
			log.Warn().Err(err).Msg("Deferred sound release failed")
		} else {
			p.log.Debug().Msg("Deferred sound released")
		}
	}
	clear(p.unstable[len(keep):])
	p.unstable = keep
	p.unstableAt = now.Add(p.opts.UnstableRetryDelay)
}

// check is the single place errors are logged and reported. It returns the
// wrapped error only when fatal is set.
func (p *Player) check(kind ErrorKind, op string, err error, fatal bool) error {
	if err == nil {
		return nil
	}
	e := &Error{Kind: kind, Op: op, Err: err}
	p.lastError = e.Error()

	ev := log.Error()
	if kind == KindStarvation || kind == KindUnstableShutdown {
		ev = log.Warn()
	}
	ev.Str("kind", kind.String()).Str("op", op).Err(err).Msg("Player error")

	if fn := p.hooks.OnError; fn != nil {
		msg := e.Error()
		p.pending = append(p.pending, func() { fn(op, msg) })
	}
	if fatal {
		return e
	}
	return nil
}

func (p *Player) setState(st State) {
	if p.state == st {
		return
	}
	from := p.state
	p.state = st
	p.log.Debug().Msgf("Player state: %s -> %s", from, st)
	if fn := p.hooks.OnStateChanged; fn != nil {
		p.pending = append(p.pending, func() { fn(from, st) })
	}
}

func (p *Player) emit(fn func()) {
	if fn != nil {
		p.pending = append(p.pending, fn)
	}
}

func (p *Player) takePending() []func() {
	fire := p.pending
	p.pending = nil
	return fire
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// Stop ends playback without reconnecting.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.state.Active() {
		p.stop(StopUser, nil)
	}
	fire := p.takePending()
	p.mu.Unlock()
	run(fire)
}

// Pause holds or resumes the render path. The download and decoder keep
// running until the exchange queue is full.
func (p *Player) Pause(paused bool) {
	p.mu.Lock()
	defer func() {
		fire := p.takePending()
		p.mu.Unlock()
		run(fire)
	}()

	s := p.sess
	if s == nil || s.voice == nil || p.paused == paused {
		return
	}
	if paused && p.state != StatePlaying && p.state != StateStarving {
		return
	}
	if !paused && p.state != StatePaused {
		return
	}

	s.voice.SetPaused(paused)
	p.paused = paused
	if paused {
		p.setState(StatePaused)
	} else {
		s.starveCount = 0
		p.setState(StatePlaying)
	}
	p.log.Debug().Bool("paused", paused).Msg("Playback pause toggled")
	if fn := p.hooks.OnPlaybackPaused; fn != nil {
		p.pending = append(p.pending, func() { fn(paused) })
	}
}

func (p *Player) TogglePause() {
	p.mu.Lock()
	paused := p.paused
	p.mu.Unlock()
	p.Pause(!paused)
}

func (p *Player) SetVolume(volume int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	p.volume = volume
	if p.sess != nil && p.sess.voice != nil {
		p.sess.voice.SetVolume(volume)
	}
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetEnabled gates Play. Disabling stops a running session.
func (p *Player) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	if !enabled && p.state.Active() {
		p.stop(StopUser, nil)
	}
	fire := p.takePending()
	p.mu.Unlock()
	run(fire)
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Tags() map[string]any {
	return p.tags.Snapshot()
}

// Artwork returns the first attached picture seen, if any.
func (p *Player) Artwork() image.Image {
	for _, v := range p.tags.Snapshot() {
		if img, ok := v.(image.Image); ok {
			return img
		}
	}
	return nil
}

// Close stops playback and waits for deferred releases to finish.
func (p *Player) Close() error {
	p.Stop()
	for i := 0; i < closeAttempts; i++ {
		p.mu.Lock()
		p.unstableAt = time.Time{}
		p.retryUnstable(p.now())
		left := len(p.unstable)
		p.mu.Unlock()
		if left == 0 {
			p.cancel()
			return nil
		}
		time.Sleep(p.opts.UnstableRetryDelay)
	}
	p.mu.Lock()
	left := len(p.unstable)
	p.mu.Unlock()
	p.cancel()
	return fmt.Errorf("%d sounds could not be released", left)
}
