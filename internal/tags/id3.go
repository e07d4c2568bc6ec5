package tags

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoID3 is returned when the input does not start with an ID3v2 header.
var ErrNoID3 = errors.New("no id3v2 header")

const id3HeaderSize = 10

var frameNames = map[string]string{
	"TIT2": "TITLE", "TT2": "TITLE",
	"TPE1": "ARTIST", "TP1": "ARTIST",
	"TALB": "ALBUM", "TAL": "ALBUM",
	"TYER": "YEAR", "TYE": "YEAR", "TDRC": "YEAR",
	"TCON": "GENRE", "TCO": "GENRE",
	"TRCK": "TRACK", "TRK": "TRACK",
	"COMM": "COMMENT", "COM": "COMMENT",
}

// NormalizeName maps well known frame ids onto common names. Unknown names
// are returned unchanged.
func NormalizeName(name string) string {
	if n, ok := frameNames[name]; ok {
		return n
	}
	return name
}

// HasID3v2 checks the first bytes of a stream.
func HasID3v2(head []byte) bool {
	return len(head) >= 3 && string(head[:3]) == "ID3"
}

// ReadID3v2 reads an ID3v2.2, 2.3 or 2.4 tag from the start of r and returns
// its frames together with the total tag size in bytes.
func ReadID3v2(r io.Reader) ([]Record, int64, error) {
	header := make([]byte, id3HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, fmt.Errorf("failed to read id3 header: %w", err)
	}
	if !HasID3v2(header) {
		return nil, 0, ErrNoID3
	}

	major := header[3]
	flags := header[5]
	size := synchsafe(header[6:10])
	total := int64(id3HeaderSize) + int64(size)
	if major >= 4 && flags&0x10 != 0 {
		total += id3HeaderSize
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, total, fmt.Errorf("failed to read id3 body: %w", err)
	}
	if flags&0x80 != 0 && major < 4 {
		body = bytes.ReplaceAll(body, []byte{0xFF, 0x00}, []byte{0xFF})
	}

	pos := 0
	if flags&0x40 != 0 && major >= 3 && len(body) >= 4 {
		if major == 3 {
			pos = 4 + int(binary.BigEndian.Uint32(body[:4]))
		} else {
			pos = int(synchsafe(body[:4]))
		}
	}

	var recs []Record
	for pos < len(body) {
		id, frameSize, hdr := frameHeader(major, body[pos:])
		if hdr == 0 || id[0] == 0 {
			break
		}
		start := pos + hdr
		end := start + frameSize
		if frameSize < 0 || end > len(body) {
			break
		}
		if rec, ok := frameRecord(id, body[start:end]); ok {
			recs = append(recs, rec)
		}
		pos = end
	}
	return recs, total, nil
}

func frameHeader(major byte, b []byte) (string, int, int) {
	if major == 2 {
		if len(b) < 6 {
			return "", 0, 0
		}
		size := int(b[3])<<16 | int(b[4])<<8 | int(b[5])
		return string(b[:3]), size, 6
	}
	if len(b) < 10 {
		return "", 0, 0
	}
	var size int
	if major >= 4 {
		size = int(synchsafe(b[4:8]))
	} else {
		size = int(binary.BigEndian.Uint32(b[4:8]))
	}
	return string(b[:4]), size, 10
}

func frameRecord(id string, data []byte) (Record, bool) {
	if len(data) == 0 {
		return Record{}, false
	}
	switch {
	case id == "TXXX" || id == "TXX":
		desc, n, ok := terminated(data[0], data[1:])
		if !ok {
			return Record{}, false
		}
		return StringRecord(TypeID3v2, desc, decodeText(data[0], data[1+n:])), true
	case strings.HasPrefix(id, "T"):
		return StringRecord(TypeID3v2, NormalizeName(id), decodeText(data[0], data[1:])), true
	case id == "COMM" || id == "COM":
		if len(data) < 4 {
			return Record{}, false
		}
		_, n, ok := terminated(data[0], data[4:])
		if !ok {
			return Record{}, false
		}
		return StringRecord(TypeID3v2, NormalizeName(id), decodeText(data[0], data[4+n:])), true
	default:
		return Record{Type: TypeID3v2, Name: id, DataType: DataBinary, Data: data}, true
	}
}

func synchsafe(b []byte) uint32 {
	return uint32(b[0]&0x7F)<<21 | uint32(b[1]&0x7F)<<14 | uint32(b[2]&0x7F)<<7 | uint32(b[3]&0x7F)
}

// ID3v1Size is the fixed size of an ID3v1 trailer.
const ID3v1Size = 128

// ReadID3v1 parses a 128 byte ID3v1 (or v1.1) trailer.
func ReadID3v1(block []byte) ([]Record, bool) {
	if len(block) != ID3v1Size || string(block[:3]) != "TAG" {
		return nil, false
	}
	field := func(b []byte) string {
		return strings.TrimSpace(Record{DataType: DataString, Data: b}.String())
	}

	var recs []Record
	add := func(name, value string) {
		if value != "" {
			recs = append(recs, StringRecord(TypeID3v1, name, value))
		}
	}
	add("TITLE", field(block[3:33]))
	add("ARTIST", field(block[33:63]))
	add("ALBUM", field(block[63:93]))
	add("YEAR", field(block[93:97]))

	comment := block[97:127]
	if comment[28] == 0 && comment[29] != 0 {
		recs = append(recs, Record{Type: TypeID3v1, Name: "TRACK", DataType: DataInt, Data: []byte{comment[29]}})
		comment = comment[:28]
	}
	add("COMMENT", field(comment))
	recs = append(recs, Record{Type: TypeID3v1, Name: "GENRE", DataType: DataInt, Data: []byte{block[127]}})
	return recs, true
}
