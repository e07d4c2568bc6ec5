package mediabuffer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Disk keeps the whole download in an append-only file so every offset stays
// addressable.
type Disk struct {
	mu           sync.Mutex
	f            *os.File
	path         string
	length       int64
	available    int64
	blockSize    int
	removeOnDone bool
}

// NewDisk truncates or creates path. With removeOnClose the file is deleted
// by Close.
func NewDisk(path string, blockSize int, removeOnClose bool) (*Disk, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create buffer directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer file: %w", err)
	}
	return &Disk{
		f:            f,
		path:         path,
		blockSize:    blockSize,
		removeOnDone: removeOnClose,
	}, nil
}

func (d *Disk) Path() string { return d.path }

func (d *Disk) Write(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return os.ErrClosed
	}
	if _, err := d.f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek buffer file: %w", err)
	}
	n, err := d.f.Write(p)
	d.length += int64(n)
	if err != nil {
		return fmt.Errorf("failed to append to buffer file: %w", err)
	}
	return nil
}

func (d *Disk) Read(offset int64, length int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	avail := d.length - offset
	if d.f == nil || offset < 0 || avail < 1 || length <= 0 {
		if length > 0 {
			warnUnderflow("disk", offset, length, d.blockSize)
		}
		d.available = 0
		return nil
	}

	n := int64(length)
	if n > avail {
		n = avail
	}
	d.available = 0
	if _, err := d.f.Seek(offset, io.SeekStart); err != nil {
		log.Warn().Err(err).Str("file", d.path).Msg("Disk buffer seek failed")
		return nil
	}
	out := make([]byte, n)
	read, err := io.ReadFull(d.f, out)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		log.Warn().Err(err).Str("file", d.path).Msg("Disk buffer read failed")
		return nil
	}
	d.available = avail
	return out[:read]
}

func (d *Disk) Available() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.available
}

func (d *Disk) Capacity() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.length
}

// Close flushes and releases the file.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return nil
	}
	syncErr := d.f.Sync()
	closeErr := d.f.Close()
	d.f = nil
	if d.removeOnDone {
		if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return errors.Join(syncErr, closeErr)
}
