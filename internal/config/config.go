package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "audiostream"
	AppDescription = "A terminal audio stream player with recording and download caching"
	AppProjectURL  = "https://github.com/glebovdev/audiostream"

	ConfigDir      = ".config/audiostream"
	ConfigFileName = "config.yml"
	DefaultVolume  = 70
	MinVolume      = 0
	MaxVolume      = 100

	DefaultBlockAlign          = 16 * 1024
	DefaultDownloadMultiplier  = 2
	DefaultStarvingRetryCount  = 60
	DefaultConnectRetries      = 30
	DefaultConnectPollInterval = 100 * time.Millisecond
	DefaultCacheLimit          = "512 MB"
	DefaultProfile             = "realtime"
	DefaultMediaBuffer         = "memory"
	DefaultLogLevel            = "warning"
)

// ClampVolume ensures volume is within the valid range [0, 100].
func ClampVolume(volume int) int {
	if volume < MinVolume {
		return MinVolume
	}
	if volume > MaxVolume {
		return MaxVolume
	}
	return volume
}

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/glebovdev/audiostream/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

type Theme struct {
	Background       string `yaml:"background"`
	Foreground       string `yaml:"foreground"`
	Borders          string `yaml:"borders"`
	Highlight        string `yaml:"highlight"`
	MutedVolume      string `yaml:"muted_volume"`
	HeaderBackground string `yaml:"header_background"`
	HelpBackground   string `yaml:"help_background"`
	HelpForeground   string `yaml:"help_foreground"`
	HelpHotkey       string `yaml:"help_hotkey"`
}

// Raw describes headerless PCM input.
type Raw struct {
	Encoding   string `yaml:"encoding"`
	Channels   int    `yaml:"channels"`
	SampleRate int    `yaml:"sample_rate"`
}

// Stream holds the playback tuning knobs. Zero values are replaced by
// defaults on Load.
type Stream struct {
	Type                 string        `yaml:"type"`
	Profile              string        `yaml:"profile"`
	MediaBuffer          string        `yaml:"media_buffer"`
	ContinuousStreaming  bool          `yaml:"continuous_streaming"`
	BlockAlign           int           `yaml:"blockalign"`
	DownloadMultiplier   int           `yaml:"blockalign_download_multiplier"`
	StarvingRetryCount   int           `yaml:"starving_retry_count"`
	ConnectRetries       int           `yaml:"connect_retries"`
	ConnectPollInterval  time.Duration `yaml:"connect_poll_interval"`
	MaxReconnects        int           `yaml:"max_reconnects"`
	ReadTags             bool          `yaml:"read_tags"`
	PlayWhileDownloading bool          `yaml:"play_while_downloading"`
	Overwrite            bool          `yaml:"overwrite"`
	UniqueCacheID        string        `yaml:"unique_cache_id"`
	Proxy                string        `yaml:"proxy"`
	Raw                  Raw           `yaml:"raw"`
}

type Config struct {
	Volume     int    `yaml:"volume"`
	LastURL    string `yaml:"last_url"`
	LogLevel   string `yaml:"log_level"`
	CacheDir   string `yaml:"cache_dir"`
	CacheLimit string `yaml:"cache_limit"`
	Stream     Stream `yaml:"stream"`
	Theme      Theme  `yaml:"theme"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(home, ConfigDir, ConfigFileName)
	return configPath, nil
}

// Load reads the config from the default location.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFile(configPath)
}

// LoadFile reads the config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()

	return cfg, nil
}

func (c *Config) normalize() {
	c.Volume = ClampVolume(c.Volume)

	s := &c.Stream
	if s.BlockAlign <= 0 {
		s.BlockAlign = DefaultBlockAlign
	}
	if s.DownloadMultiplier <= 0 {
		s.DownloadMultiplier = DefaultDownloadMultiplier
	}
	if s.StarvingRetryCount <= 0 {
		s.StarvingRetryCount = DefaultStarvingRetryCount
	}
	if s.ConnectRetries <= 0 {
		s.ConnectRetries = DefaultConnectRetries
	}
	if s.ConnectPollInterval <= 0 {
		s.ConnectPollInterval = DefaultConnectPollInterval
	}
	if s.MaxReconnects < 0 {
		s.MaxReconnects = 0
	}
	if s.Profile == "" {
		s.Profile = DefaultProfile
	}
	if s.MediaBuffer == "" {
		s.MediaBuffer = DefaultMediaBuffer
	}
	if c.CacheLimit == "" {
		c.CacheLimit = DefaultCacheLimit
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Save writes the configuration to the default location.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(configPath)
}

// SaveFile writes the configuration to disk atomically using temp file + rename.
func (c *Config) SaveFile(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp(configDir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Volume:     DefaultVolume,
		LogLevel:   DefaultLogLevel,
		CacheLimit: DefaultCacheLimit,
		Stream: Stream{
			Type:                "autodetect",
			Profile:             DefaultProfile,
			MediaBuffer:         DefaultMediaBuffer,
			BlockAlign:          DefaultBlockAlign,
			DownloadMultiplier:  DefaultDownloadMultiplier,
			StarvingRetryCount:  DefaultStarvingRetryCount,
			ConnectRetries:      DefaultConnectRetries,
			ConnectPollInterval: DefaultConnectPollInterval,
			ReadTags:            true,
			Raw: Raw{
				Encoding:   "pcm16",
				Channels:   2,
				SampleRate: 44100,
			},
		},
		Theme: Theme{
			Background:       "#1a1b25",
			Foreground:       "#a3aacb",
			Borders:          "#40445b",
			Highlight:        "#ff9d65",
			MutedVolume:      "#fe0702",
			HeaderBackground: "#473533",
			HelpBackground:   "#322f45",
			HelpForeground:   "#9aa3c6",
			HelpHotkey:       "#ff9d65",
		},
	}
}

// CacheLimitBytes parses CacheLimit ("512 MB", "2GiB", ...).
func (c *Config) CacheLimitBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.CacheLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid cache limit %q: %w", c.CacheLimit, err)
	}
	return int64(n), nil
}

// Level maps the configured log level onto zerolog. Unknown names fall back
// to warning.
func (c *Config) Level() zerolog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

func GetColor(colorStr string) tcell.Color {
	if colorStr == "" || colorStr == "default" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(colorStr)
}
