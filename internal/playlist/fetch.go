package playlist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebovdev/audiostream/internal/source"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 10 * time.Second

var (
	ErrNotPlaylist   = errors.New("url is not a playlist")
	ErrEmptyPlaylist = errors.New("no stream url found in playlist")
)

// Fetcher downloads playlist text over HTTP or from the local file system.
type Fetcher struct {
	client *resty.Client
}

func NewFetcher(userAgent string) *Fetcher {
	return &Fetcher{
		client: resty.New().
			SetTimeout(requestTimeout).
			SetHeader("User-Agent", userAgent),
	}
}

// Fetch returns the playlist body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		data, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return "", fmt.Errorf("failed to read playlist: %w", err)
		}
		return string(data), nil
	}

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch playlist: %w", err)
	}

	if !resp.IsSuccess() {
		return "", fmt.Errorf("playlist returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	return resp.String(), nil
}

// Resolve fetches a playlist URL and returns the playable stream URL it
// names.
func (f *Fetcher) Resolve(ctx context.Context, url string) (string, error) {
	kind := source.DetectPlaylist(url)
	if kind == source.PlaylistNone {
		return "", fmt.Errorf("%w: %s", ErrNotPlaylist, url)
	}

	text, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	target := Parse(kind, text)
	if target == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyPlaylist, url)
	}

	resolved := Normalize(target)
	log.Debug().Str("playlist", url).Str("kind", kind.String()).Msgf("Playlist resolved to %s", resolved)
	return resolved, nil
}
