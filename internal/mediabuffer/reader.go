package mediabuffer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how long a Reader waits before asking an empty
// buffer again.
const DefaultPollInterval = 10 * time.Millisecond

// ErrDiskEjected is returned by a Reader whose context was cancelled or that
// was closed. The decoder must stop reading when it sees it.
var ErrDiskEjected = errors.New("media reader cancelled")

// Result of the most recent read request.
type Result int32

const (
	ResultOK Result = iota
	// ResultEOF means fewer bytes than requested were returned.
	ResultEOF
)

func (r Result) String() string {
	if r == ResultEOF {
		return "eof"
	}
	return "ok"
}

// Progress reports the state of the download feeding a buffer.
type Progress interface {
	ContentLength() int64
	Complete() bool
}

// Reader turns offset-addressed buffer reads into an io.ReadSeekCloser for
// decoders.
type Reader struct {
	ctx      context.Context
	buf      Buffer
	progress Progress
	poll     time.Duration
	offset   atomic.Int64
	last     atomic.Int32
	closed   atomic.Bool
}

func NewReader(ctx context.Context, buf Buffer, progress Progress) *Reader {
	return &Reader{
		ctx:      ctx,
		buf:      buf,
		progress: progress,
		poll:     DefaultPollInterval,
	}
}

// SetPollInterval changes the empty-buffer wait.
func (r *Reader) SetPollInterval(d time.Duration) {
	if d > 0 {
		r.poll = d
	}
}

// LastResult is safe to call from any goroutine.
func (r *Reader) LastResult() Result {
	return Result(r.last.Load())
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if r.closed.Load() || r.ctx.Err() != nil {
			return 0, ErrDiskEjected
		}

		complete := r.progress.Complete()
		offset := r.offset.Load()
		data := r.buf.Read(offset, len(p))
		if len(data) > 0 {
			n := copy(p, data)
			r.offset.Store(offset + int64(n))
			if n < len(p) {
				r.last.Store(int32(ResultEOF))
			} else {
				r.last.Store(int32(ResultOK))
			}
			return n, nil
		}

		r.last.Store(int32(ResultEOF))
		if complete {
			return 0, io.EOF
		}

		select {
		case <-r.ctx.Done():
			return 0, ErrDiskEjected
		case <-time.After(r.poll):
		}
	}
}

func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	cur := r.offset.Load()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = cur + offset
	case io.SeekEnd:
		length := r.progress.ContentLength()
		if length < 0 {
			return cur, fmt.Errorf("seek from end of a stream without length")
		}
		abs = length + offset
	default:
		return cur, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return cur, fmt.Errorf("negative seek position %d", abs)
	}
	r.offset.Store(abs)
	return abs, nil
}

// Offset is the next byte the reader will request.
func (r *Reader) Offset() int64 {
	return r.offset.Load()
}

// Close makes further reads fail with ErrDiskEjected. The buffer is owned by
// the caller and stays open.
func (r *Reader) Close() error {
	r.closed.Store(true)
	return nil
}
