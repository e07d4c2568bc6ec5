package cache

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// PCMHeaderSize covers the int32 sample rate and int32 channel count that
// precede the float32 samples.
const PCMHeaderSize = 8

var ErrBadPCM = errors.New("malformed pcm cache file")

// PCMWriter appends decoded samples to a temp file that becomes visible
// under its cache name on Commit.
type PCMWriter struct {
	cache   *Cache
	name    string
	tmp     string
	f       *os.File
	w       *bufio.Writer
	scratch []byte
	samples int64
	done    bool
}

func (c *Cache) CreatePCM(url, id string, format pcm.Format) (*PCMWriter, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("invalid pcm format %s", format)
	}
	name := Name(url, id, ExtPCM)
	f, tmp, err := c.createTemp(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcm cache file: %w", err)
	}

	w := &PCMWriter{cache: c, name: name, tmp: tmp, f: f, w: bufio.NewWriter(f)}

	header := make([]byte, PCMHeaderSize)
	binary.LittleEndian.PutUint32(header[0:], uint32(int32(format.SampleRate)))
	binary.LittleEndian.PutUint32(header[4:], uint32(int32(format.Channels)))
	if _, err := w.w.Write(header); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

func (w *PCMWriter) Write(samples []float32) error {
	need := 4 * len(samples)
	if cap(w.scratch) < need {
		w.scratch = make([]byte, need)
	}
	b := w.scratch[:need]
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(s))
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	w.samples += int64(len(samples))
	return nil
}

func (w *PCMWriter) Samples() int64 { return w.samples }

// Commit flushes the file and moves it into the cache. It returns the final
// path, or "" when nothing was written.
func (w *PCMWriter) Commit(ctx context.Context) (string, error) {
	if w.done {
		return "", nil
	}
	w.done = true

	if err := w.w.Flush(); err != nil {
		w.f.Close()
		_ = os.Remove(w.tmp)
		return "", err
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmp)
		return "", err
	}
	if w.samples == 0 {
		_ = os.Remove(w.tmp)
		return "", nil
	}
	return w.cache.commit(ctx, w.tmp, w.name)
}

// Abort discards the partial file.
func (w *PCMWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.f.Close()
	_ = os.Remove(w.tmp)
}

// Clip is a fully decoded sound held in memory.
type Clip struct {
	Name       string
	SampleRate int
	Channels   int
	Samples    []float32
}

func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

func (c *Clip) Format() pcm.Format {
	return pcm.Format{SampleRate: c.SampleRate, Channels: c.Channels, BytesPerSample: 4}
}

// LoadClip reads a PCM cache file.
func LoadClip(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, PCMHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPCM, err)
	}
	rate := int(int32(binary.LittleEndian.Uint32(header[0:])))
	channels := int(int32(binary.LittleEndian.Uint32(header[4:])))
	if rate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: rate %d, channels %d", ErrBadPCM, rate, channels)
	}

	data, err := io.ReadAll(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}

	return &Clip{
		Name:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SampleRate: rate,
		Channels:   channels,
		Samples:    samples,
	}, nil
}

// SaveWAV exports the clip as 16-bit WAV.
func (c *Clip) SaveWAV(path string) error {
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("wav export supports 1 or 2 channels, got %d", c.Channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	pos := 0
	s := beep.StreamerFunc(func(frames [][2]float64) (int, bool) {
		if pos >= len(c.Samples) {
			return 0, false
		}
		n := 0
		for n < len(frames) && pos < len(c.Samples) {
			left := float64(c.Samples[pos])
			right := left
			if c.Channels == 2 && pos+1 < len(c.Samples) {
				right = float64(c.Samples[pos+1])
			}
			frames[n] = [2]float64{left, right}
			pos += c.Channels
			n++
		}
		return n, true
	})

	format := beep.Format{SampleRate: beep.SampleRate(c.SampleRate), NumChannels: c.Channels, Precision: 2}
	if err := wav.Encode(f, s, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return f.Close()
}
