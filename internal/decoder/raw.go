package decoder

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/glebovdev/audiostream/internal/source"
)

// rawCodec decodes little-endian headerless PCM.
type rawCodec struct {
	r   io.Reader
	enc source.Encoding
	f   pcm.Format
	buf []byte
}

func newRawCodec(r io.Reader, raw source.RawFormat) (*rawCodec, error) {
	if raw.Channels <= 0 || raw.SampleRate <= 0 {
		return nil, source.ErrRawFormat
	}
	return &rawCodec{
		r:   r,
		enc: raw.Encoding,
		f: pcm.Format{
			SampleRate:     raw.SampleRate,
			Channels:       raw.Channels,
			BytesPerSample: raw.Encoding.BytesPerSample(),
		},
	}, nil
}

func (c *rawCodec) format() pcm.Format { return c.f }

func (c *rawCodec) read(dst []float32) (int, error) {
	size := c.f.BytesPerSample
	need := len(dst) * size
	if cap(c.buf) < need {
		c.buf = make([]byte, need)
	}
	b := c.buf[:need]

	n, err := io.ReadFull(c.r, b)
	samples := n / size
	for i := 0; i < samples; i++ {
		dst[i] = decodeSample(c.enc, b[i*size:(i+1)*size])
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return samples, err
}

func decodeSample(enc source.Encoding, b []byte) float32 {
	switch enc {
	case source.PCM8:
		return float32(int8(b[0])) / 128
	case source.PCM24:
		v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
		return float32(v) / 8388608
	case source.PCM32:
		return float32(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	case source.PCMFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	default:
		return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
	}
}

func (c *rawCodec) close() error { return nil }
