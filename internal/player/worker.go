package player

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/audiostream/internal/cache"
	"github.com/glebovdev/audiostream/internal/decoder"
	"github.com/glebovdev/audiostream/internal/mediabuffer"
	"github.com/glebovdev/audiostream/internal/output"
	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/glebovdev/audiostream/internal/recorder"
	"github.com/rs/zerolog/log"
)

// worker pulls decoded samples off the sound and fans them out to the
// exchange queue, the PCM cache and the recorder.
type worker struct {
	sound    decoder.Sound
	interval time.Duration
	queue    *pcm.Queue // nil without render
	// pace limits decoding to roughly the playback speed.
	pace bool

	running atomic.Bool
	done    atomic.Bool
	eof     atomic.Bool
	decoded atomic.Int64
	wg      sync.WaitGroup

	// mu guards the outputs and the format they are written in.
	mu           sync.Mutex
	err          error
	format       pcm.Format
	backlog      int
	pcmOut       *cache.PCMWriter
	rec          *recorder.WAV
	paceStart    time.Time
	paceBase     int64
	cacheDropped bool
}

func (w *worker) start() {
	w.running.Store(true)
	w.wg.Add(1)
	go w.run()
}

// stop clears the running flag and joins the goroutine. The caller must
// first unblock any pending media read.
func (w *worker) stop() {
	w.running.Store(false)
	w.wg.Wait()
}

// finished reports whether the worker exited on its own.
func (w *worker) finished() bool { return w.done.Load() }

func (w *worker) reachedEOF() bool { return w.eof.Load() }

func (w *worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *worker) currentFormat() pcm.Format {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.format
}

func (w *worker) backlogSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backlog
}

// caching reports whether samples still reach the PCM cache.
func (w *worker) caching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pcmOut != nil
}

// takeCacheDrop reports once that a format change cut off the PCM cache.
func (w *worker) takeCacheDrop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	dropped := w.cacheDropped
	w.cacheDropped = false
	return dropped
}

// adopt switches the worker to f after a mid-stream format change. Queued
// samples are converted so the rebuilt render path still plays them. The PCM
// cache and the recorder carry a fixed header and stop receiving samples.
func (w *worker) adopt(f pcm.Format) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !f.Valid() || f == w.format {
		return false
	}
	old := w.format
	w.format = f
	if w.queue != nil {
		w.queue.Transform(func(samples []float32) []float32 {
			return output.Convert(samples, old, f)
		})
		w.backlog = f.Samples(RealtimeBacklog.Seconds())
	}
	if w.pcmOut != nil {
		log.Error().Str("from", old.String()).Str("to", f.String()).Msg("Format changed mid-stream, dropping pcm cache")
		w.pcmOut = nil
		w.cacheDropped = true
	}
	if w.rec != nil {
		log.Warn().Str("from", old.String()).Str("to", f.String()).Msg("Format changed mid-stream, recording stopped")
		w.rec = nil
	}
	w.paceStart = time.Now()
	w.paceBase = w.decoded.Load()
	return true
}

func (w *worker) full() bool {
	if w.queue == nil {
		return false
	}
	backlog := w.backlogSize()
	return backlog > 0 && w.queue.Available() >= backlog
}

// ahead reports whether paced decoding is more than the backlog ahead of
// the wall clock.
func (w *worker) ahead() bool {
	if !w.pace {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	perSecond := float64(w.format.SampleRate * w.format.Channels)
	if perSecond <= 0 {
		return false
	}
	decoded := float64(w.decoded.Load() - w.paceBase)
	return time.Duration(decoded/perSecond*float64(time.Second))-time.Since(w.paceStart) > RealtimeBacklog
}

func (w *worker) run() {
	defer w.wg.Done()
	defer w.done.Store(true)

	buf := make([]float32, DecodeChunk)
	w.mu.Lock()
	w.paceStart = time.Now()
	w.mu.Unlock()

	for w.running.Load() {
		if w.full() || w.ahead() {
			time.Sleep(w.interval)
			continue
		}

		n, err := w.sound.Read(buf)
		if n > 0 {
			w.adopt(w.sound.Format())
			w.deliver(buf[:n])
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				w.eof.Store(true)
				log.Debug().Int64("samples", w.decoded.Load()).Msg("Decoder reached end of stream")
			case errors.Is(err, mediabuffer.ErrDiskEjected):
			default:
				w.mu.Lock()
				w.err = err
				w.mu.Unlock()
				log.Warn().Err(err).Msg("Decode worker stopped")
			}
			return
		}
		if n == 0 {
			time.Sleep(w.interval)
		}
	}
}

func (w *worker) deliver(samples []float32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.decoded.Add(int64(len(samples)))
	if w.queue != nil {
		w.queue.Write(samples)
	}
	if w.pcmOut != nil {
		if err := w.pcmOut.Write(samples); err != nil {
			log.Error().Err(err).Msg("Failed to write pcm cache")
			w.pcmOut = nil
		}
	}
	if w.rec != nil {
		if err := w.rec.Add(samples); err != nil {
			log.Error().Err(err).Msg("Failed to write recording")
			w.rec = nil
		}
	}
}
