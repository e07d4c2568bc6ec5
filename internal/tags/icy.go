package tags

import "strings"

// MaxICYMetadata is the largest metadata block a server can announce
// (255 blocks of 16 bytes).
const MaxICYMetadata = 4080

// ParseICY splits a Shoutcast metadata block such as
// "StreamTitle='Artist - Song';StreamUrl='';" into records.
func ParseICY(meta string) []Record {
	meta = strings.TrimRight(meta, "\x00")

	var recs []Record
	for len(meta) > 0 {
		eq := strings.Index(meta, "='")
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(strings.TrimLeft(meta[:eq], ";"))
		rest := meta[eq+2:]

		end := strings.Index(rest, "';")
		if end < 0 {
			end = strings.LastIndex(rest, "'")
			if end < 0 {
				break
			}
		}
		value := rest[:end]
		if key != "" {
			recs = append(recs, StringRecord(TypeShoutcast, key, value))
		}

		meta = rest[end+1:]
	}
	return recs
}

// HeaderRecords turns interesting icy-* response headers into records.
func HeaderRecords(get func(string) string) []Record {
	var recs []Record
	for _, h := range []string{"icy-name", "icy-genre", "icy-description", "icy-url", "icy-br"} {
		if v := strings.TrimSpace(get(h)); v != "" {
			recs = append(recs, StringRecord(TypeShoutcast, h, v))
		}
	}
	return recs
}
