package decoder

import (
	"errors"
	"io"

	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

var ErrNotAIFF = errors.New("not a valid aiff stream")

// aiffReader is the part of aiff.Decoder used here.
type aiffReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

type aiffCodec struct {
	dec  aiffReader
	f    pcm.Format
	ints *goaudio.IntBuffer
	full float32
}

func newAIFFCodec(r io.ReadSeeker) (*aiffCodec, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotAIFF
	}
	dec.ReadInfo()
	format := dec.Format()
	if format == nil || format.NumChannels == 0 {
		return nil, ErrNotAIFF
	}
	return newAIFFReaderCodec(dec, format, int(dec.BitDepth)), nil
}

func newAIFFReaderCodec(dec aiffReader, format *goaudio.Format, bitDepth int) *aiffCodec {
	return &aiffCodec{
		dec: dec,
		f: pcm.Format{
			SampleRate:     format.SampleRate,
			Channels:       format.NumChannels,
			BytesPerSample: bitDepth / 8,
		},
		full: fullScale(bitDepth),
	}
}

func fullScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128
	case 24:
		return 8388608
	case 32:
		return 2147483648
	default:
		return 32768
	}
}

func (c *aiffCodec) format() pcm.Format { return c.f }

func (c *aiffCodec) read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if c.ints == nil || cap(c.ints.Data) < len(dst) {
		c.ints = &goaudio.IntBuffer{
			Data:   make([]int, len(dst)),
			Format: c.dec.Format(),
		}
	}
	c.ints.Data = c.ints.Data[:len(dst)]

	n, err := c.dec.PCMBuffer(c.ints)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(c.ints.Data[i]) / c.full
	}
	if n < len(dst) && err == nil {
		return n, io.EOF
	}
	return n, err
}

func (c *aiffCodec) close() error { return nil }
