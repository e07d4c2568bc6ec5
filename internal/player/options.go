package player

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebovdev/audiostream/internal/config"
	"github.com/rs/zerolog"
)

const (
	RetryDelay         = 500 * time.Millisecond
	StarvingGrace      = 2 * time.Second
	UnstableRetryDelay = 100 * time.Millisecond
	WorkerInterval     = 10 * time.Millisecond
	RealtimeBacklog    = time.Second
	DecodeChunk        = 4096
)

// BufferKind selects the media buffer behind network streams.
type BufferKind int

const (
	BufferMemory BufferKind = iota
	BufferDisk
)

func (b BufferKind) String() string {
	if b == BufferDisk {
		return "disk"
	}
	return "memory"
}

func ParseBufferKind(s string) (BufferKind, error) {
	switch strings.ToLower(s) {
	case "", "memory":
		return BufferMemory, nil
	case "disk":
		return BufferDisk, nil
	}
	return BufferMemory, fmt.Errorf("unknown media buffer %q", s)
}

type Options struct {
	Profile     Profile
	MediaBuffer BufferKind

	// ContinuousStreaming reconnects after errors and the end of stream.
	ContinuousStreaming bool
	// MaxReconnects bounds consecutive reconnects. Zero means unlimited.
	MaxReconnects int

	BlockAlign          int
	DownloadMultiplier  int
	StarvingRetryCount  int
	ConnectRetries      int
	ConnectPollInterval time.Duration

	ReadTags             bool
	PlayWhileDownloading bool
	// Overwrite ignores a cached clip and downloads again.
	Overwrite bool

	Volume   int
	LogLevel zerolog.Level

	// RecordPath, when set, records every session to this WAV file.
	RecordPath string

	RetryDelay         time.Duration
	StarvingGrace      time.Duration
	UnstableRetryDelay time.Duration
	WorkerInterval     time.Duration
	ReaderPoll         time.Duration
}

func DefaultOptions() Options {
	return Options{
		Profile:             ProfileRealtime,
		MediaBuffer:         BufferMemory,
		BlockAlign:          config.DefaultBlockAlign,
		DownloadMultiplier:  config.DefaultDownloadMultiplier,
		StarvingRetryCount:  config.DefaultStarvingRetryCount,
		ConnectRetries:      config.DefaultConnectRetries,
		ConnectPollInterval: config.DefaultConnectPollInterval,
		ReadTags:            true,
		Volume:              config.DefaultVolume,
		LogLevel:            zerolog.WarnLevel,
		RetryDelay:          RetryDelay,
		StarvingGrace:       StarvingGrace,
		UnstableRetryDelay:  UnstableRetryDelay,
		WorkerInterval:      WorkerInterval,
	}
}

// OptionsFromConfig maps the stream section of cfg onto player options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	s := cfg.Stream

	profile, err := ParseProfile(s.Profile)
	if err != nil {
		return opts, err
	}
	buffer, err := ParseBufferKind(s.MediaBuffer)
	if err != nil {
		return opts, err
	}

	opts.Profile = profile
	opts.MediaBuffer = buffer
	opts.ContinuousStreaming = s.ContinuousStreaming
	opts.MaxReconnects = s.MaxReconnects
	opts.ReadTags = s.ReadTags
	opts.PlayWhileDownloading = s.PlayWhileDownloading
	opts.Overwrite = s.Overwrite
	opts.Volume = config.ClampVolume(cfg.Volume)
	opts.LogLevel = cfg.Level()
	if s.BlockAlign > 0 {
		opts.BlockAlign = s.BlockAlign
	}
	if s.DownloadMultiplier > 0 {
		opts.DownloadMultiplier = s.DownloadMultiplier
	}
	if s.StarvingRetryCount > 0 {
		opts.StarvingRetryCount = s.StarvingRetryCount
	}
	if s.ConnectRetries > 0 {
		opts.ConnectRetries = s.ConnectRetries
	}
	if s.ConnectPollInterval > 0 {
		opts.ConnectPollInterval = s.ConnectPollInterval
	}
	return opts, nil
}

func (o *Options) fill() {
	d := DefaultOptions()
	if o.BlockAlign <= 0 {
		o.BlockAlign = d.BlockAlign
	}
	if o.DownloadMultiplier <= 0 {
		o.DownloadMultiplier = d.DownloadMultiplier
	}
	if o.StarvingRetryCount <= 0 {
		o.StarvingRetryCount = d.StarvingRetryCount
	}
	if o.ConnectRetries <= 0 {
		o.ConnectRetries = d.ConnectRetries
	}
	if o.ConnectPollInterval <= 0 {
		o.ConnectPollInterval = d.ConnectPollInterval
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.StarvingGrace <= 0 {
		o.StarvingGrace = d.StarvingGrace
	}
	if o.UnstableRetryDelay <= 0 {
		o.UnstableRetryDelay = d.UnstableRetryDelay
	}
	if o.WorkerInterval <= 0 {
		o.WorkerInterval = d.WorkerInterval
	}
	o.Volume = config.ClampVolume(o.Volume)
}
