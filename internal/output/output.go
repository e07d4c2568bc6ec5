// Package output renders pulled PCM to the speaker.
package output

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/audiostream/internal/handle"
	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSampleRate   = 44100
	SpeakerBufferSize   = 250 * time.Millisecond
	ResampleQuality     = 4
	VolumeCurveExponent = 0.5
	MinVolumeDB         = -10.0
)

var ErrNotAcquired = errors.New("output system not acquired")

// PullFunc fills dst completely with interleaved samples, padding with
// silence when nothing is available. It runs on the audio goroutine and must
// not block.
type PullFunc func(dst []float32)

// Backend is the device the mixed stream is played on.
type Backend interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Clear()
	Close()
}

type speakerBackend struct{}

func (speakerBackend) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}
func (speakerBackend) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerBackend) Lock()                { speaker.Lock() }
func (speakerBackend) Unlock()              { speaker.Unlock() }
func (speakerBackend) Clear()               { speaker.Clear() }
func (speakerBackend) Close()               { speaker.Close() }

// System owns the output device. Players acquire it before starting voices
// and release it when done; the device closes with the last release.
type System struct {
	backend Backend
	voices  *handle.Registry[*Voice]

	mu   sync.Mutex
	refs int
	rate beep.SampleRate
}

func NewSystem(b Backend) *System {
	return &System{
		backend: b,
		voices:  handle.NewRegistry[*Voice](),
	}
}

// NewSpeakerSystem plays through the default audio device.
func NewSpeakerSystem() *System {
	return NewSystem(speakerBackend{})
}

// Acquire opens the device at rate on first use. Later callers share the
// already running rate.
func (s *System) Acquire(rate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if s.refs == 0 {
		if err := s.init(beep.SampleRate(rate)); err != nil {
			return err
		}
	}
	s.refs++
	return nil
}

func (s *System) init(rate beep.SampleRate) error {
	if err := s.backend.Init(rate, rate.N(SpeakerBufferSize)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	s.rate = rate
	log.Debug().Msgf("Speaker initialized with sample rate: %d Hz, buffer: %v", rate, SpeakerBufferSize)
	return nil
}

func (s *System) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	s.voices.Each(func(_ handle.ID, v *Voice) { v.stopped.Store(true) })
	s.backend.Clear()
	s.backend.Close()
	s.rate = 0
	log.Debug().Msg("Speaker closed")
}

func (s *System) Rate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.rate)
}

func (s *System) Voices() int { return s.voices.Len() }

func (s *System) Voice(id handle.ID) (*Voice, bool) { return s.voices.Get(id) }

// Start plays pull through a new voice. With native set and no other voice
// running, the device is reopened at the stream's own rate; otherwise the
// stream is resampled to the device rate.
func (s *System) Start(format pcm.Format, native bool, pull PullFunc, volume int) (*Voice, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("invalid output format %s", format)
	}

	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return nil, ErrNotAcquired
	}
	rate := beep.SampleRate(format.SampleRate)
	if native && rate != s.rate && s.refs == 1 && s.voices.Len() == 0 {
		if err := s.init(rate); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	deviceRate := s.rate
	s.mu.Unlock()

	var stream beep.Streamer = &pullStreamer{pull: pull, channels: format.Channels}
	if rate != deviceRate {
		stream = beep.Resample(ResampleQuality, rate, deviceRate, stream)
		log.Debug().Msgf("Resampling %d Hz -> %d Hz", rate, deviceRate)
	}

	v := &Voice{system: s}
	v.volume = &effects.Volume{
		Streamer: stream,
		Base:     2,
		Volume:   percentToExponent(float64(volume)),
		Silent:   volume <= 0,
	}
	v.ctrl = &beep.Ctrl{Streamer: v.volume}
	v.id = s.voices.Add(v)

	s.backend.Play(v)
	return v, nil
}

// Voice is one stream mixed into the output.
type Voice struct {
	system  *System
	id      handle.ID
	volume  *effects.Volume
	ctrl    *beep.Ctrl
	stopped atomic.Bool
}

func (v *Voice) ID() handle.ID { return v.id }

func (v *Voice) Stream(samples [][2]float64) (int, bool) {
	if v.stopped.Load() {
		return 0, false
	}
	return v.ctrl.Stream(samples)
}

func (v *Voice) Err() error { return nil }

func (v *Voice) SetPaused(paused bool) {
	v.system.backend.Lock()
	v.ctrl.Paused = paused
	v.system.backend.Unlock()
}

func (v *Voice) Paused() bool {
	v.system.backend.Lock()
	defer v.system.backend.Unlock()
	return v.ctrl.Paused
}

func (v *Voice) SetVolume(percent int) {
	level := percentToExponent(float64(percent))
	v.system.backend.Lock()
	v.volume.Volume = level
	v.volume.Silent = percent <= 0
	v.system.backend.Unlock()
	log.Debug().Msgf("Volume set to %d%% (%.2f dB)", percent, level)
}

// Stop detaches the voice. The mixer drops it on its next pass.
func (v *Voice) Stop() {
	if v.stopped.Swap(true) {
		return
	}
	v.system.voices.Remove(v.id)
}

func percentToExponent(p float64) float64 {
	if p <= 0 {
		return MinVolumeDB
	}
	if p >= 100 {
		return 0
	}

	normalized := p / 100.0
	adjusted := math.Pow(normalized, VolumeCurveExponent)
	return (1.0 - adjusted) * MinVolumeDB
}

// pullStreamer converts pulled interleaved float32 into beep's stereo frames.
type pullStreamer struct {
	pull     PullFunc
	channels int
	buf      []float32
}

func (p *pullStreamer) Stream(samples [][2]float64) (int, bool) {
	need := len(samples) * p.channels
	if cap(p.buf) < need {
		p.buf = make([]float32, need)
	}
	buf := p.buf[:need]
	p.pull(buf)

	for i := range samples {
		frame := buf[i*p.channels : (i+1)*p.channels]
		left := float64(frame[0])
		right := left
		if p.channels > 1 {
			right = float64(frame[1])
		}
		samples[i] = [2]float64{left, right}
	}
	return len(samples), true
}

func (p *pullStreamer) Err() error { return nil }

// Convert resamples interleaved samples from one format to another. Only the
// first two channels of the input are kept.
func Convert(samples []float32, from, to pcm.Format) []float32 {
	if !from.Valid() || !to.Valid() || len(samples) == 0 {
		return samples
	}
	if from.SampleRate == to.SampleRate && from.Channels == to.Channels {
		return samples
	}

	var stream beep.Streamer = &sliceStreamer{samples: samples, channels: from.Channels}
	if from.SampleRate != to.SampleRate {
		stream = beep.Resample(ResampleQuality, beep.SampleRate(from.SampleRate), beep.SampleRate(to.SampleRate), stream)
	}

	frames := len(samples) / from.Channels
	out := make([]float32, 0, frames*to.SampleRate/from.SampleRate*to.Channels+to.Channels)
	chunk := make([][2]float64, 512)
	for {
		n, ok := stream.Stream(chunk)
		for _, f := range chunk[:n] {
			out = appendFrame(out, f, to.Channels)
		}
		if !ok || n == 0 {
			return out
		}
	}
}

func appendFrame(out []float32, f [2]float64, channels int) []float32 {
	if channels == 1 {
		return append(out, float32((f[0]+f[1])/2))
	}
	out = append(out, float32(f[0]), float32(f[1]))
	for c := 2; c < channels; c++ {
		out = append(out, 0)
	}
	return out
}

// sliceStreamer plays a fixed interleaved buffer as stereo frames.
type sliceStreamer struct {
	samples  []float32
	channels int
}

func (s *sliceStreamer) Stream(frames [][2]float64) (int, bool) {
	n := 0
	for n < len(frames) && len(s.samples) >= s.channels {
		left := float64(s.samples[0])
		right := left
		if s.channels > 1 {
			right = float64(s.samples[1])
		}
		frames[n] = [2]float64{left, right}
		s.samples = s.samples[s.channels:]
		n++
	}
	if n == 0 {
		return 0, false
	}
	return n, true
}

func (s *sliceStreamer) Err() error { return nil }
