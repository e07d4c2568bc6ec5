// Package source describes what a player is asked to play.
package source

import (
	"errors"
	"fmt"
	"strings"
)

type StreamType int

const (
	TypeAutodetect StreamType = iota
	TypeAIFF
	TypeASF
	TypeDLS
	TypeFLAC
	TypeFSB
	TypeIT
	TypeMIDI
	TypeMOD
	TypeMPEG
	TypeOggVorbis
	TypePlaylist
	TypeRAW
	TypeS3M
	TypeUser
	TypeWAV
	TypeXM
	TypeXMA
	TypeAudioQueue
	TypeAT9
	TypeVorbis
	TypeMediaFoundation
	TypeMediaCodec
	TypeFADPCM
	TypeOpus
)

var typeNames = map[StreamType]string{
	TypeAutodetect:      "autodetect",
	TypeAIFF:            "aiff",
	TypeASF:             "asf",
	TypeDLS:             "dls",
	TypeFLAC:            "flac",
	TypeFSB:             "fsb",
	TypeIT:              "it",
	TypeMIDI:            "midi",
	TypeMOD:             "mod",
	TypeMPEG:            "mpeg",
	TypeOggVorbis:       "oggvorbis",
	TypePlaylist:        "playlist",
	TypeRAW:             "raw",
	TypeS3M:             "s3m",
	TypeUser:            "user",
	TypeWAV:             "wav",
	TypeXM:              "xm",
	TypeXMA:             "xma",
	TypeAudioQueue:      "audioqueue",
	TypeAT9:             "at9",
	TypeVorbis:          "vorbis",
	TypeMediaFoundation: "mediafoundation",
	TypeMediaCodec:      "mediacodec",
	TypeFADPCM:          "fadpcm",
	TypeOpus:            "opus",
}

func (t StreamType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseStreamType accepts the lower-case names produced by String. "mp3" and
// "ogg" are accepted as aliases.
func ParseStreamType(s string) (StreamType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "auto":
		return TypeAutodetect, nil
	case "mp3":
		return TypeMPEG, nil
	case "ogg":
		return TypeOggVorbis, nil
	}
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeAutodetect, fmt.Errorf("unknown stream type %q", s)
}

type MediaType int

const (
	MediaNetwork MediaType = iota
	MediaFileSystem
	MediaMemory
)

func (m MediaType) String() string {
	switch m {
	case MediaNetwork:
		return "network"
	case MediaFileSystem:
		return "filesystem"
	case MediaMemory:
		return "memory"
	default:
		return "unknown"
	}
}

type PlaylistType int

const (
	PlaylistNone PlaylistType = iota
	PlaylistPLS
	PlaylistM3U
	PlaylistM3U8
)

func (p PlaylistType) String() string {
	switch p {
	case PlaylistPLS:
		return "pls"
	case PlaylistM3U:
		return "m3u"
	case PlaylistM3U8:
		return "m3u8"
	default:
		return "none"
	}
}

// DetectPlaylist looks at the URL suffix only, ignoring any query string.
func DetectPlaylist(url string) PlaylistType {
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch {
	case strings.HasSuffix(u, ".pls"):
		return PlaylistPLS
	case strings.HasSuffix(u, ".m3u8"):
		return PlaylistM3U8
	case strings.HasSuffix(u, ".m3u"):
		return PlaylistM3U
	default:
		return PlaylistNone
	}
}

// Encoding of headerless PCM.
type Encoding int

const (
	PCM16 Encoding = iota
	PCM8
	PCM24
	PCM32
	PCMFloat
)

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "", "pcm16":
		return PCM16, nil
	case "pcm8":
		return PCM8, nil
	case "pcm24":
		return PCM24, nil
	case "pcm32":
		return PCM32, nil
	case "pcmfloat", "float":
		return PCMFloat, nil
	}
	return PCM16, fmt.Errorf("unknown raw encoding %q", s)
}

func (e Encoding) BytesPerSample() int {
	switch e {
	case PCM8:
		return 1
	case PCM24:
		return 3
	case PCM32, PCMFloat:
		return 4
	default:
		return 2
	}
}

// RawFormat is required when the stream type is TypeRAW.
type RawFormat struct {
	Encoding   Encoding
	Channels   int
	SampleRate int
}

var (
	ErrUnsupportedType = errors.New("stream type is not supported for streaming")
	ErrEmptyURL        = errors.New("stream url is empty")
	ErrOggMismatch     = errors.New("wrong stream type set for ogg stream")
	ErrNoData          = errors.New("memory source has no data")
	ErrRawFormat       = errors.New("raw stream needs channels and sample rate")
)

// Source is one playable item.
type Source struct {
	URL     string
	Type    StreamType
	Data    []byte
	CacheID string
	Raw     RawFormat
	Title   string
}

func (s Source) MediaType() MediaType {
	if s.Data != nil {
		return MediaMemory
	}
	u := strings.ToLower(s.URL)
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return MediaNetwork
	}
	return MediaFileSystem
}

// Playlist reports the playlist kind of a network or file URL.
func (s Source) Playlist() PlaylistType {
	if s.Data != nil {
		return PlaylistNone
	}
	return DetectPlaylist(s.URL)
}

// Path strips a file:// prefix.
func (s Source) Path() string {
	return strings.TrimPrefix(s.URL, "file://")
}

// CacheKey identifies downloads of this source in the disk cache.
func (s Source) CacheKey() string {
	return s.URL + s.CacheID
}

// Name is what logs and clips call this source.
func (s Source) Name() string {
	if s.Title != "" {
		return s.Title
	}
	if s.URL != "" {
		return s.URL
	}
	return "memory"
}

// Validate performs the checks that must pass before any I/O starts.
func (s Source) Validate() error {
	switch s.Type {
	case TypePlaylist, TypeUser:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, s.Type)
	}

	if s.MediaType() == MediaMemory {
		if len(s.Data) == 0 {
			return ErrNoData
		}
	} else {
		if strings.TrimSpace(s.URL) == "" {
			return ErrEmptyURL
		}
		if strings.HasSuffix(strings.ToLower(s.URL), ".ogg") && s.Type != TypeOggVorbis && s.Type != TypeAutodetect {
			return fmt.Errorf("%w: %s", ErrOggMismatch, s.Type)
		}
	}

	if s.Type == TypeRAW && (s.Raw.Channels <= 0 || s.Raw.SampleRate <= 0) {
		return ErrRawFormat
	}
	return nil
}
