// Package pcm holds the interleaved float sample exchange between the decode
// worker and the render callback.
package pcm

import (
	"fmt"
	"sync"
)

// Format of an interleaved PCM stream.
type Format struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d bit", f.SampleRate, f.Channels, f.BytesPerSample*8)
}

// Samples returns the interleaved sample count covering seconds of audio.
func (f Format) Samples(seconds float64) int {
	return int(seconds * float64(f.SampleRate*f.Channels))
}

// Queue is an unbounded FIFO of interleaved samples. One lock guards every
// operation; reads compact the backing slice.
type Queue struct {
	mu  sync.Mutex
	buf []float32
}

func NewQueue(capacity int) *Queue {
	return &Queue{buf: make([]float32, 0, capacity)}
}

// Write appends all samples.
func (q *Queue) Write(samples []float32) {
	q.mu.Lock()
	q.buf = append(q.buf, samples...)
	q.mu.Unlock()
}

// Read removes up to max samples from the front. It never blocks and never
// pads: a short or empty result means the queue ran dry.
func (q *Queue) Read(max int) []float32 {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(max, len(q.buf))
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	copy(out, q.buf[:n])
	q.consume(n)
	return out
}

// ReadInto is Read without the allocation, for the render path.
func (q *Queue) ReadInto(dst []float32) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := copy(dst, q.buf)
	q.consume(n)
	return n
}

func (q *Queue) consume(n int) {
	rest := copy(q.buf, q.buf[n:])
	q.buf = q.buf[:rest]
}

func (q *Queue) Available() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *Queue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cap(q.buf)
}

// Transform replaces the queued samples with fn's result. fn runs under the
// queue lock, so the render path waits for it.
func (q *Queue) Transform(fn func(samples []float32) []float32) {
	q.mu.Lock()
	q.buf = fn(q.buf)
	q.mu.Unlock()
}

func (q *Queue) Reset() {
	q.mu.Lock()
	q.buf = q.buf[:0]
	q.mu.Unlock()
}

// Pad zero-fills dst from index n on.
func Pad(dst []float32, n int) {
	clear(dst[n:])
}
