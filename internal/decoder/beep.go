package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/glebovdev/audiostream/internal/source"
	"github.com/glebovdev/audiostream/internal/tags"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog/log"
)

const sniffSize = 12

// Beep decodes MPEG, Ogg Vorbis and WAV through beep, AIFF through go-audio
// and headerless PCM directly.
type Beep struct{}

func New() *Beep { return &Beep{} }

func (*Beep) Open(r io.ReadSeekCloser, opts Options) Sound {
	s := &sound{r: r, state: StateLoading}
	go s.open(opts)
	return s
}

// codec is a decoded stream producing interleaved float samples.
type codec interface {
	format() pcm.Format
	read(dst []float32) (int, error)
	close() error
}

type sound struct {
	r io.ReadSeekCloser

	mu      sync.Mutex
	state   OpenState
	codec   codec
	playing bool
	err     error

	// Guards codec reads against Release.
	readMu sync.Mutex
}

func (s *sound) open(opts Options) {
	kind, err := s.probe(opts)
	if err != nil {
		s.failOpen(err)
		return
	}

	s.setState(StateBuffering)

	c, err := openCodec(kind, s.r, opts.Raw)
	if err != nil {
		s.failOpen(err)
		return
	}

	log.Debug().Str("type", kind.String()).Str("format", c.format().String()).Msg("Sound opened")

	s.mu.Lock()
	s.codec = c
	s.state = StateReady
	s.playing = true
	s.mu.Unlock()
}

// probe reads leading tags and works out the container type. The reader is
// left at the first audio byte.
func (s *sound) probe(opts Options) (source.StreamType, error) {
	if f, ok := s.r.(*os.File); ok {
		readTrailer(f, opts.Tags)
	}

	head, err := peek(s.r)
	if err != nil {
		return 0, err
	}

	var start int64
	if tags.HasID3v2(head) {
		recs, size, err := tags.ReadID3v2(s.r)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read ID3v2 tag")
		} else if opts.Tags != nil {
			opts.Tags.Push(recs...)
		}
		start = size
		if _, err := s.r.Seek(start, io.SeekStart); err != nil {
			return 0, fmt.Errorf("failed to skip id3 tag: %w", err)
		}
		if head, err = peek(s.r); err != nil {
			return 0, err
		}
	}

	kind := opts.Type
	if kind == source.TypeAutodetect {
		kind = Sniff(head)
	}
	if kind == source.TypeOggVorbis && !isOgg(head) {
		return 0, source.ErrOggMismatch
	}

	// beep's MPEG decoder scans for frame sync itself, so the tag is only
	// skipped for the other containers.
	if kind == source.TypeMPEG {
		start = 0
	}
	if _, err := s.r.Seek(start, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind stream: %w", err)
	}
	return kind, nil
}

func peek(r io.ReadSeeker) ([]byte, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	head := make([]byte, sniffSize)
	n, err := io.ReadFull(r, head)
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, fmt.Errorf("failed to read stream header: %w", err)
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return nil, err
	}
	return head[:n], nil
}

// readTrailer pushes an ID3v1 trailer when the file has one.
func readTrailer(f *os.File, feed *tags.Feed) {
	if feed == nil {
		return
	}
	info, err := f.Stat()
	if err != nil || info.Size() < tags.ID3v1Size {
		return
	}
	block := make([]byte, tags.ID3v1Size)
	if _, err := f.ReadAt(block, info.Size()-tags.ID3v1Size); err != nil {
		return
	}
	if recs, ok := tags.ReadID3v1(block); ok {
		feed.Push(recs...)
	}
}

func isOgg(head []byte) bool {
	return len(head) >= 4 && string(head[:4]) == "OggS"
}

// Sniff guesses the container from the first bytes of a stream. Unknown data
// is treated as MPEG, which is what most radio streams carry.
func Sniff(head []byte) source.StreamType {
	switch {
	case isOgg(head):
		return source.TypeOggVorbis
	case len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return source.TypeWAV
	case len(head) >= 12 && string(head[:4]) == "FORM" && (string(head[8:12]) == "AIFF" || string(head[8:12]) == "AIFC"):
		return source.TypeAIFF
	case len(head) >= 4 && string(head[:4]) == "fLaC":
		return source.TypeFLAC
	case tags.HasID3v2(head):
		return source.TypeMPEG
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return source.TypeMPEG
	}
	return source.TypeMPEG
}

func openCodec(kind source.StreamType, r io.ReadSeekCloser, raw source.RawFormat) (codec, error) {
	switch kind {
	case source.TypeMPEG:
		s, f, err := mp3.Decode(io.NopCloser(r))
		if err != nil {
			return nil, fmt.Errorf("failed to decode mp3: %w", err)
		}
		return newBeepCodec(s, f), nil
	case source.TypeOggVorbis, source.TypeVorbis:
		s, f, err := vorbis.Decode(io.NopCloser(r))
		if err != nil {
			return nil, fmt.Errorf("failed to decode vorbis: %w", err)
		}
		return newBeepCodec(s, f), nil
	case source.TypeWAV:
		s, f, err := wav.Decode(keepOpen{r})
		if err != nil {
			return nil, fmt.Errorf("failed to decode wav: %w", err)
		}
		return newBeepCodec(s, f), nil
	case source.TypeAIFF:
		return newAIFFCodec(r)
	case source.TypeRAW:
		return newRawCodec(r, raw)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
}

// keepOpen hides Close from codecs that close their input. The sound owns r
// and closes it once in Release.
type keepOpen struct{ io.ReadSeeker }

func (s *sound) setState(st OpenState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *sound) failOpen(err error) {
	log.Debug().Err(err).Msg("Sound open failed")
	s.mu.Lock()
	s.state = StateError
	s.err = err
	s.mu.Unlock()
}

func (s *sound) OpenState() OpenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *sound) Format() pcm.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codec == nil {
		return pcm.Format{}
	}
	return s.codec.format()
}

func (s *sound) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *sound) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Read returns 0, nil while the sound is still opening.
func (s *sound) Read(dst []float32) (int, error) {
	s.mu.Lock()
	c, st := s.codec, s.state
	s.mu.Unlock()

	switch {
	case st == StateError:
		return 0, s.Err()
	case c == nil:
		return 0, nil
	}

	s.readMu.Lock()
	n, err := c.read(dst)
	s.readMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 && s.state == StateReady {
		s.state = StatePlaying
	}
	if err != nil {
		s.playing = false
		if !errors.Is(err, io.EOF) && s.err == nil {
			s.err = err
		}
	}
	return n, err
}

func (s *sound) Release() error {
	s.mu.Lock()
	if s.state.Opening() {
		s.mu.Unlock()
		return ErrBusy
	}
	c := s.codec
	s.codec = nil
	s.playing = false
	s.mu.Unlock()

	s.readMu.Lock()
	defer s.readMu.Unlock()

	var err error
	if c != nil {
		err = c.close()
	}
	if cerr := s.r.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// beepCodec adapts a beep streamer. Mono sources keep one channel.
type beepCodec struct {
	s      beep.StreamSeekCloser
	f      pcm.Format
	frames [][2]float64
}

func newBeepCodec(s beep.StreamSeekCloser, f beep.Format) *beepCodec {
	channels := f.NumChannels
	if channels < 1 || channels > 2 {
		channels = 2
	}
	return &beepCodec{
		s: s,
		f: pcm.Format{
			SampleRate:     int(f.SampleRate),
			Channels:       channels,
			BytesPerSample: f.Precision,
		},
	}
}

func (c *beepCodec) format() pcm.Format { return c.f }

func (c *beepCodec) read(dst []float32) (int, error) {
	want := len(dst) / c.f.Channels
	if want == 0 {
		return 0, nil
	}
	if cap(c.frames) < want {
		c.frames = make([][2]float64, want)
	}
	frames := c.frames[:want]

	n, ok := c.s.Stream(frames)
	for i := 0; i < n; i++ {
		if c.f.Channels == 1 {
			dst[i] = float32(frames[i][0])
			continue
		}
		dst[2*i] = float32(frames[i][0])
		dst[2*i+1] = float32(frames[i][1])
	}
	if !ok {
		if err := c.s.Err(); err != nil {
			return n * c.f.Channels, err
		}
		return n * c.f.Channels, io.EOF
	}
	return n * c.f.Channels, nil
}

func (c *beepCodec) close() error { return c.s.Close() }
