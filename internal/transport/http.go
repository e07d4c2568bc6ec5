// Package transport downloads network streams into a media buffer.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/audiostream/internal/mediabuffer"
	"github.com/glebovdev/audiostream/internal/tags"
	"github.com/rs/zerolog/log"
)

const (
	NetworkReadSize = 4096
	ReadTimeout     = 5 * time.Second
)

// Stream is a running download.
type Stream interface {
	mediabuffer.Progress
	Downloaded() int64
	// Err reports a transport failure. A clean end of stream is not an error.
	Err() error
	Close() error
}

type Options struct {
	UserAgent   string
	Proxy       string
	ReadTimeout time.Duration
}

// HTTP performs GET downloads with ICY metadata demultiplexing.
type HTTP struct {
	client  *http.Client
	options Options
}

func NewHTTP(opts Options) (*HTTP, error) {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = ReadTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &HTTP{
		client: &http.Client{
			Timeout:   0, // No overall timeout, streams are long-lived
			Transport: transport,
		},
		options: opts,
	}, nil
}

// Start begins downloading url into buf on its own goroutine. Metadata found
// in the stream is pushed to feed (which may be nil).
func (h *HTTP) Start(ctx context.Context, rawURL string, buf mediabuffer.Buffer, feed *tags.Feed) Stream {
	ctx, cancel := context.WithCancel(ctx)
	d := &download{
		cancel:        cancel,
		done:          make(chan struct{}),
		contentLength: -1,
	}
	go d.run(ctx, h, rawURL, buf, feed)
	return d
}

type download struct {
	cancel context.CancelFunc
	done   chan struct{}

	downloaded atomic.Int64
	complete   atomic.Bool

	mu            sync.Mutex
	contentLength int64
	err           error
}

func (d *download) Downloaded() int64 { return d.downloaded.Load() }
func (d *download) Complete() bool    { return d.complete.Load() }

// ContentLength is -1 until the response arrives and for streams without a
// declared length.
func (d *download) ContentLength() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contentLength
}

func (d *download) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *download) fail(err error) {
	d.mu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.mu.Unlock()
}

// Close stops the download and waits for the receive goroutine.
func (d *download) Close() error {
	d.cancel()
	<-d.done
	return nil
}

func (d *download) run(ctx context.Context, h *HTTP, rawURL string, buf mediabuffer.Buffer, feed *tags.Feed) {
	defer close(d.done)

	log.Debug().Msgf("Connecting to stream: %s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		d.fail(fmt.Errorf("failed to create request: %w", err))
		return
	}
	if h.options.UserAgent != "" {
		req.Header.Set("User-Agent", h.options.UserAgent)
	}
	req.Header.Set("Icy-MetaData", "1")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			d.fail(fmt.Errorf("failed to fetch stream: %w", err))
		}
		return
	}
	defer resp.Body.Close()

	log.Debug().Msgf("Stream response status: %d, Content-Type: %s", resp.StatusCode, resp.Header.Get("Content-Type"))

	if resp.StatusCode != http.StatusOK {
		d.fail(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
		return
	}

	var metaint int
	if val := resp.Header.Get("icy-metaint"); val != "" {
		metaint, _ = strconv.Atoi(val)
		log.Debug().Msgf("ICY metadata interval: %d bytes", metaint)
	}

	d.mu.Lock()
	if metaint == 0 && resp.ContentLength > 0 {
		d.contentLength = resp.ContentLength
	}
	d.mu.Unlock()

	if feed != nil {
		feed.Push(tags.HeaderRecords(resp.Header.Get)...)
	}

	body := bufio.NewReader(&contextReader{
		reader:  resp.Body,
		ctx:     ctx,
		timeout: h.options.ReadTimeout,
	})

	if err := d.receive(ctx, body, buf, feed, metaint); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("Error reading audio data from stream")
		d.fail(err)
		return
	}

	d.complete.Store(true)
	log.Debug().Int64("bytes", d.Downloaded()).Msg("Stream download complete")
}

// receive copies audio bytes into buf, pulling ICY metadata blocks out of
// the byte stream every metaint bytes.
func (d *download) receive(ctx context.Context, body *bufio.Reader, buf mediabuffer.Buffer, feed *tags.Feed, metaint int) error {
	chunkSize := metaint
	if chunkSize <= 0 {
		chunkSize = NetworkReadSize
	}
	chunk := make([]byte, NetworkReadSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		remaining := chunkSize
		for remaining > 0 {
			n, err := body.Read(chunk[:min(remaining, len(chunk))])
			if n > 0 {
				if werr := buf.Write(chunk[:n]); werr != nil {
					return fmt.Errorf("media buffer write error: %w", werr)
				}
				d.downloaded.Add(int64(n))
				remaining -= n
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("network read error: %w", err)
			}
		}

		if metaint <= 0 {
			continue
		}

		metaLenByte, err := body.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("metadata read error: %w", err)
		}

		metaLen := int(metaLenByte) * 16
		if metaLen == 0 {
			continue
		}
		if metaLen > tags.MaxICYMetadata {
			log.Warn().Int("metaLen", metaLen).Msg("ICY metadata too large, skipping")
			if _, err := io.CopyN(io.Discard, body, int64(metaLen)); err != nil {
				return fmt.Errorf("metadata content error: %w", err)
			}
			continue
		}

		meta := make([]byte, metaLen)
		if _, err := io.ReadFull(body, meta); err != nil {
			return fmt.Errorf("metadata content error: %w", err)
		}
		if feed != nil {
			feed.Push(tags.ParseICY(string(meta))...)
		}
	}
}

// StatusError is a non-200 response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream returned status %d: %s", e.StatusCode, e.Status)
}

// IsNonRetryable reports errors that reconnecting will not fix.
func IsNonRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 401, 403, 404, 410:
			return true
		}
	}
	return false
}

// Relies on context cancellation to clean up the spawned read goroutine.
type contextReader struct {
	reader  io.Reader
	ctx     context.Context
	timeout time.Duration
}

func (cr *contextReader) Read(p []byte) (n int, err error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}

	timer := time.NewTimer(cr.timeout)
	defer timer.Stop()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := cr.reader.Read(p)
		select {
		case done <- result{n, err}:
		case <-cr.ctx.Done():
		}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, fmt.Errorf("read timeout: no data received for %v", cr.timeout)
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	}
}
