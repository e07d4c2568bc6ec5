// Package recorder writes decoded audio to WAV files.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"
)

const BitDepth = 16

var ErrNotRecording = errors.New("recorder is not running")

// WAV records interleaved float samples as 16-bit PCM. Add may be called
// from the decode worker while Start/Stop run elsewhere.
type WAV struct {
	mu      sync.Mutex
	f       *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	path    string
	samples int64
}

func NewWAV() *WAV { return &WAV{} }

func (r *WAV) Start(path string, channels, rate int) error {
	if channels <= 0 || rate <= 0 {
		return fmt.Errorf("invalid recording format: %d ch, %d Hz", channels, rate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc != nil {
		return fmt.Errorf("already recording to %s", r.path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	r.f = f
	r.enc = wav.NewEncoder(f, rate, BitDepth, channels, 1)
	r.buf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: BitDepth,
	}
	r.path = path
	r.samples = 0

	log.Info().Str("file", path).Int("channels", channels).Int("rate", rate).Msg("Recording started")
	return nil
}

func (r *WAV) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc != nil
}

// Add appends samples. It is a no-op while not recording.
func (r *WAV) Add(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil || len(samples) == 0 {
		return nil
	}

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		r.buf.Data[i] = toInt16(s)
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("error writing recording: %w", err)
	}
	r.samples += int64(len(samples))
	return nil
}

// Stop finalizes the header and closes the file.
func (r *WAV) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return ErrNotRecording
	}

	err := r.enc.Close()
	if cerr := r.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	log.Info().Str("file", r.path).Int64("samples", r.samples).Msg("Recording stopped")

	r.enc, r.f, r.buf = nil, nil, nil
	if err != nil {
		return fmt.Errorf("error closing recording: %w", err)
	}
	return nil
}

func toInt16(s float32) int {
	switch {
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	return int(s * 32767)
}
