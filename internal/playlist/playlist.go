// Package playlist resolves PLS and M3U playlists to the stream they point at.
package playlist

import (
	"bufio"
	"strings"

	"github.com/glebovdev/audiostream/internal/source"
)

// Entry is one stream listed in a PLS playlist.
type Entry struct {
	URL   string
	Title string
}

// ParseM3U returns the first line that is neither empty nor a comment.
func ParseM3U(text string) string {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

// ParsePLS returns the value of the first FileN entry.
func ParsePLS(text string) string {
	entries := ParsePLSEntries(text)
	if len(entries) == 0 {
		return ""
	}
	return entries[0].URL
}

// ParsePLSEntries returns every FileN entry in order of appearance, paired
// with its TitleN value when present.
func ParsePLSEntries(text string) []Entry {
	var entries []Entry
	index := map[string]int{}
	titles := map[string]string{}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) <= 4 {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch {
		case strings.HasPrefix(key, "FILE"):
			if value == "" {
				continue
			}
			n := strings.TrimPrefix(key, "FILE")
			index[n] = len(entries)
			entries = append(entries, Entry{URL: value, Title: titles[n]})
		case strings.HasPrefix(key, "TITLE"):
			n := strings.TrimPrefix(key, "TITLE")
			titles[n] = value
			if i, ok := index[n]; ok {
				entries[i].Title = value
			}
		}
	}
	return entries
}

// Parse picks the parser for kind.
func Parse(kind source.PlaylistType, text string) string {
	switch kind {
	case source.PlaylistPLS:
		return ParsePLS(text)
	case source.PlaylistM3U, source.PlaylistM3U8:
		return ParseM3U(text)
	default:
		return ""
	}
}

// Normalize turns a playlist target into a playable URL: anything that is
// not http(s) or file is treated as a local path.
func Normalize(target string) string {
	lower := strings.ToLower(target)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "file://") {
		return target
	}
	return "file://" + target
}
