package player

import (
	"time"

	"github.com/glebovdev/audiostream/internal/pcm"
)

// Info is a point-in-time view of the player for status displays.
type Info struct {
	State           State
	Profile         Profile
	URL             string
	Title           string
	Session         string
	SessionDuration time.Duration

	Format      pcm.Format
	MediaLength int64
	Downloaded  int64
	Available   int64
	Capacity    int64
	Queued      int

	Reconnects     int
	MaxReconnects  int
	ConnectPolls   int
	ConnectRetries int
	StarveCount    int

	Paused    bool
	Seekable  bool
	Recording bool
	Volume    int
	LastError string
	Tags      map[string]any
}

func (p *Player) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := Info{
		State:          p.state,
		Profile:        p.opts.Profile,
		URL:            p.src.URL,
		Reconnects:     p.reconnects,
		MaxReconnects:  p.opts.MaxReconnects,
		ConnectRetries: p.opts.ConnectRetries,
		Paused:         p.paused,
		Volume:         p.volume,
		LastError:      p.lastError,
		Tags:           p.tags.Snapshot(),
		MediaLength:    -1,
	}
	if rec := p.deps.Recorder; rec != nil {
		info.Recording = rec.Recording()
	}

	info.Title = p.tags.String("StreamTitle", "TITLE", "icy-name")
	if info.Title == "" && info.State.Active() {
		info.Title = p.src.Name()
	}

	s := p.sess
	if s == nil {
		return info
	}
	info.URL = s.url
	info.Session = s.id.String()
	info.SessionDuration = p.now().Sub(s.started)
	info.Format = s.format
	info.ConnectPolls = s.polls
	info.StarveCount = s.starveCount
	info.Seekable = s.stream == nil

	if s.stream != nil {
		info.MediaLength = s.stream.ContentLength()
		info.Downloaded = s.stream.Downloaded()
		info.Seekable = s.stream.ContentLength() >= 0 && s.stream.Complete()
	}
	if s.buf != nil {
		info.Available = s.buf.Available()
		info.Capacity = s.buf.Capacity()
	}
	if s.queue != nil {
		info.Queued = s.queue.Available()
	}
	return info
}
