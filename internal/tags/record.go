// Package tags extracts stream metadata: ID3 frames, ICY titles and attached
// pictures.
package tags

import (
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// SampleRateChange is the tag name announcing a mid-stream format change.
// Its payload is the new rate as a float.
const SampleRateChange = "Sample Rate Change"

type Type int

const (
	TypeUnknown Type = iota
	TypeID3v1
	TypeID3v2
	TypeVorbisComment
	TypeShoutcast
	TypeIcecast
	TypeInternal
)

func (t Type) String() string {
	switch t {
	case TypeID3v1:
		return "id3v1"
	case TypeID3v2:
		return "id3v2"
	case TypeVorbisComment:
		return "vorbis"
	case TypeShoutcast:
		return "shoutcast"
	case TypeIcecast:
		return "icecast"
	case TypeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

type DataType int

const (
	DataBinary DataType = iota
	DataInt
	DataFloat
	DataString
	DataStringUTF16
	DataStringUTF16BE
	DataStringUTF8
)

// Record is one raw tag as produced by a decoder or transport.
type Record struct {
	Type     Type
	Name     string
	DataType DataType
	Data     []byte
}

// StringRecord builds a UTF-8 string record.
func StringRecord(t Type, name, value string) Record {
	return Record{Type: t, Name: name, DataType: DataStringUTF8, Data: []byte(value)}
}

// FloatRecord builds a float32 record.
func FloatRecord(t Type, name string, v float32) Record {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, math.Float32bits(v))
	return Record{Type: t, Name: name, DataType: DataFloat, Data: data}
}

// Value converts the payload: string, int64, float32 or []byte.
func (r Record) Value() any {
	switch r.DataType {
	case DataInt:
		v, _ := r.Int()
		return v
	case DataFloat:
		v, _ := r.Float()
		return v
	case DataString, DataStringUTF16, DataStringUTF16BE, DataStringUTF8:
		return r.String()
	default:
		return r.Data
	}
}

// Int decodes a little-endian integer of 1, 2, 4 or 8 bytes.
func (r Record) Int() (int64, bool) {
	d := r.Data
	switch len(d) {
	case 1:
		return int64(d[0]), true
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(d))), true
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(d))), true
	case 8:
		return int64(binary.LittleEndian.Uint64(d)), true
	}
	return 0, false
}

// Float decodes a little-endian float32 (or float64 narrowed).
func (r Record) Float() (float32, bool) {
	d := r.Data
	switch len(d) {
	case 4:
		return math.Float32frombits(binary.LittleEndian.Uint32(d)), true
	case 8:
		return float32(math.Float64frombits(binary.LittleEndian.Uint64(d))), true
	}
	return 0, false
}

func (r Record) String() string {
	switch r.DataType {
	case DataStringUTF16:
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), r.Data)
	case DataStringUTF16BE:
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), r.Data)
	case DataString:
		return decodeWith(charmap.ISO8859_1, r.Data)
	default:
		return strings.TrimRight(string(r.Data), "\x00")
	}
}

func decodeWith(enc encoding.Encoding, b []byte) string {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

// decodeText decodes an ID3 text payload for the given encoding byte.
func decodeText(enc byte, b []byte) string {
	switch enc {
	case 1:
		return Record{DataType: DataStringUTF16, Data: b}.String()
	case 2:
		return Record{DataType: DataStringUTF16BE, Data: b}.String()
	case 3:
		return Record{DataType: DataStringUTF8, Data: b}.String()
	default:
		return Record{DataType: DataString, Data: b}.String()
	}
}

// Feed is the FIFO between tag producers and the player.
type Feed struct {
	mu   sync.Mutex
	recs []Record
}

func NewFeed() *Feed {
	return &Feed{}
}

func (f *Feed) Push(recs ...Record) {
	f.mu.Lock()
	f.recs = append(f.recs, recs...)
	f.mu.Unlock()
}

// Next pops the oldest record.
func (f *Feed) Next() (Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recs) == 0 {
		return Record{}, false
	}
	r := f.recs[0]
	f.recs[0] = Record{}
	f.recs = f.recs[1:]
	return r, true
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

func (f *Feed) Reset() {
	f.mu.Lock()
	f.recs = nil
	f.mu.Unlock()
}
