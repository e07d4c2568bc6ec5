// Package cache stores complete downloads, decoded PCM and artwork on disk.
package cache

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultExpiry is how long cached images are valid (7 days).
	DefaultExpiry = 7 * 24 * time.Hour
	ImageSubdir   = "images"
	TempSubdir    = "tmp"
	AppName       = "audiostream"

	// ExtPCM marks decoded audio, ExtCompressed the raw download.
	ExtPCM        = ".raw"
	ExtCompressed = ".compressedaudio"
)

// Cache manages the cache directory. Files named by Path are tracked in the
// index and evicted least recently used first once Limit is exceeded.
type Cache struct {
	baseDir string
	expiry  time.Duration
	limit   int64
	index   *Index

	mu sync.Mutex
}

// NewCache opens the cache at dir (the user cache dir when empty). A limit of
// zero disables eviction.
func NewCache(dir string, limit int64) (*Cache, error) {
	if dir == "" {
		var err error
		if dir, err = GetCacheDir(); err != nil {
			return nil, err
		}
	}
	for _, d := range []string{dir, filepath.Join(dir, TempSubdir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	index, err := OpenIndex(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	return &Cache{
		baseDir: dir,
		expiry:  DefaultExpiry,
		limit:   limit,
		index:   index,
	}, nil
}

// GetCacheDir returns the platform-specific cache directory for the application.
func GetCacheDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}

	return filepath.Join(userCacheDir, AppName), nil
}

func (c *Cache) Dir() string { return c.baseDir }

func (c *Cache) Close() error { return c.index.Close() }

func hashURL(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}

// Name is the file name for url with the unique id appended to the hashed
// string.
func Name(url, id, ext string) string {
	return hashURL(url+id) + ext
}

func (c *Cache) Path(url, id, ext string) string {
	return filepath.Join(c.baseDir, Name(url, id, ext))
}

// Lookup reports whether the file exists and refreshes its access time.
func (c *Cache) Lookup(ctx context.Context, url, id, ext string) (string, bool) {
	name := Name(url, id, ext)
	p := filepath.Join(c.baseDir, name)
	if _, err := os.Stat(p); err == nil {
		if err := c.index.Touch(ctx, name, 0, false); err != nil {
			log.Debug().Err(err).Str("file", name).Msg("Failed to touch cache entry")
		}
		return p, true
	}
	_ = c.index.Remove(ctx, name)
	return "", false
}

// Track registers a file written straight to its final path.
func (c *Cache) Track(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := c.index.Touch(ctx, filepath.Base(path), info.Size(), true); err != nil {
		return err
	}
	return c.evictIfNeeded(ctx)
}

// Remove deletes a cached file and its index entry.
func (c *Cache) Remove(ctx context.Context, path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if ierr := c.index.Remove(ctx, filepath.Base(path)); ierr != nil && err == nil {
		err = ierr
	}
	return err
}

func (c *Cache) createTemp(name string) (*os.File, string, error) {
	tmp := filepath.Join(c.baseDir, TempSubdir, name)
	f, err := os.Create(tmp)
	return f, tmp, err
}

// commit moves a finished temp file into place. Empty files are dropped.
func (c *Cache) commit(ctx context.Context, tmp, name string) (string, error) {
	info, err := os.Stat(tmp)
	if err != nil {
		return "", err
	}
	if info.Size() == 0 {
		_ = os.Remove(tmp)
		return "", nil
	}
	final := filepath.Join(c.baseDir, name)
	if err := os.Rename(tmp, final); err != nil {
		return "", err
	}
	if err := c.index.Touch(ctx, name, info.Size(), true); err != nil {
		return final, err
	}
	log.Debug().Str("file", name).Str("size", humanize.Bytes(uint64(info.Size()))).Msg("Cache entry committed")
	return final, c.evictIfNeeded(ctx)
}

func (c *Cache) evictIfNeeded(ctx context.Context) error {
	if c.limit <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	total, err := c.index.TotalBytes(ctx)
	if err != nil {
		return err
	}
	for total > c.limit {
		oldest, err := c.index.Oldest(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		_ = os.Remove(filepath.Join(c.baseDir, oldest))
		_ = c.index.Remove(ctx, oldest)
		log.Debug().Str("file", oldest).Msg("Evicted cache entry")

		total, err = c.index.TotalBytes(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetImage retrieves a cached image by key. Returns nil if not found or expired.
func (c *Cache) GetImage(key string) image.Image {
	imagePath := filepath.Join(c.baseDir, ImageSubdir, hashURL(key)+".png")

	info, err := os.Stat(imagePath)
	if err != nil {
		return nil
	}

	if time.Since(info.ModTime()) > c.expiry {
		if err := os.Remove(imagePath); err != nil {
			log.Debug().Err(err).Str("file", imagePath).Msg("Failed to remove expired cache file")
		}
		return nil
	}

	file, err := os.Open(imagePath)
	if err != nil {
		return nil
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		log.Debug().Err(err).Str("file", imagePath).Msg("Failed to decode cached image")
		return nil
	}

	return img
}

// SaveImage stores an image as PNG under key.
func (c *Cache) SaveImage(key string, img image.Image) error {
	imageDir := filepath.Join(c.baseDir, ImageSubdir)
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	file, err := os.Create(filepath.Join(imageDir, hashURL(key)+".png"))
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// CleanExpired removes images older than the expiry duration and leftover
// temp files.
func (c *Cache) CleanExpired() error {
	now := time.Now()
	var removed, failed int

	for _, sub := range []string{ImageSubdir, TempSubdir} {
		dir := filepath.Join(c.baseDir, sub)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read cache directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) <= c.expiry {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				failed++
			} else {
				removed++
			}
		}
	}

	if removed > 0 || failed > 0 {
		log.Debug().Int("removed", removed).Int("failed", failed).Msg("Cache cleanup completed")
	}
	return nil
}
