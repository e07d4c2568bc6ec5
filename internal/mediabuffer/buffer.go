// Package mediabuffer stores downloaded bytes between the network receiver
// and the decoder.
package mediabuffer

import (
	"math"

	"github.com/rs/zerolog/log"
)

const (
	// DiscardThreshold is how far the consumer must advance before the
	// sliding window drops the consumed prefix.
	DiscardThreshold = 100000

	// UnboundedLength is the length reported for streams without a
	// declared content length.
	UnboundedLength int64 = math.MaxUint32

	// MinInitialBuffer is the floor for the bytes downloaded before the
	// decoder is opened.
	MinInitialBuffer = 2048
)

// Buffer is the byte store fed by a transport and read by the decoder.
// Implementations are safe for one writer and one reader on different
// goroutines.
type Buffer interface {
	Write(p []byte) error
	// Read copies out up to length bytes starting at the absolute offset.
	// An empty result means nothing is available there (yet).
	Read(offset int64, length int) []byte
	// Available is the byte count that was addressable at the last Read.
	Available() int64
	// Capacity is the storage currently held.
	Capacity() int64
	Close() error
}

// InitialSize returns how many bytes should be downloaded before decoding
// starts.
func InitialSize(blockAlign, multiplier int) int {
	return max(MinInitialBuffer, blockAlign*multiplier)
}

func warnUnderflow(kind string, offset int64, length, blockSize int) {
	if UnboundedLength-offset <= int64(2*blockSize) {
		return
	}
	log.Warn().
		Str("buffer", kind).
		Int64("offset", offset).
		Int("length", length).
		Msg("Media buffer underflow")
}
