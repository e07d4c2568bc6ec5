package tags

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

// Frame names carrying an attached picture.
const (
	FramePicture    = "APIC"
	FramePictureV22 = "PIC"
)

// Picture is a decoded attached-picture frame.
type Picture struct {
	MIME        string
	Type        byte
	Description string
	Data        []byte
}

// TagName is the store key for this picture.
func (p Picture) TagName() string {
	return fmt.Sprintf("APIC_%d", p.Type)
}

func (p Picture) Image() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s picture: %w", p.MIME, err)
	}
	return img, nil
}

// IsPicture reports whether the record is an attached picture frame.
func IsPicture(r Record) bool {
	return r.DataType == DataBinary && (r.Name == FramePicture || r.Name == FramePictureV22)
}

// DecodeAPIC parses an APIC frame body:
//
//	encoding byte | MIME type NUL | picture type | description NUL(s) | data
//
// Only JPEG and PNG pictures are accepted.
func DecodeAPIC(data []byte) (Picture, bool) {
	if len(data) < 2 {
		return Picture{}, false
	}
	enc := data[0]
	pos := 1

	end := bytes.IndexByte(data[pos:], 0)
	if end < 0 {
		return Picture{}, false
	}
	mime := string(data[pos : pos+end])
	pos += end + 1

	if pos >= len(data) {
		return Picture{}, false
	}
	picType := data[pos]
	pos++

	desc, n, ok := terminated(enc, data[pos:])
	if !ok {
		return Picture{}, false
	}
	pos += n

	if !acceptedMIME(mime) {
		return Picture{}, false
	}
	return Picture{
		MIME:        mime,
		Type:        picType,
		Description: desc,
		Data:        data[pos:],
	}, true
}

// DecodePIC parses the ID3v2.2 PIC frame, which carries a three letter
// image format instead of a MIME type.
func DecodePIC(data []byte) (Picture, bool) {
	if len(data) < 5 {
		return Picture{}, false
	}
	enc := data[0]
	var mime string
	switch strings.ToUpper(string(data[1:4])) {
	case "JPG":
		mime = "image/jpeg"
	case "PNG":
		mime = "image/png"
	default:
		return Picture{}, false
	}
	picType := data[4]
	desc, n, ok := terminated(enc, data[5:])
	if !ok {
		return Picture{}, false
	}
	return Picture{MIME: mime, Type: picType, Description: desc, Data: data[5+n:]}, true
}

// DecodePicture dispatches on the record name.
func DecodePicture(r Record) (Picture, bool) {
	if r.Name == FramePictureV22 {
		return DecodePIC(r.Data)
	}
	return DecodeAPIC(r.Data)
}

func acceptedMIME(mime string) bool {
	m := strings.ToLower(mime)
	return strings.HasSuffix(m, "jpeg") || strings.HasSuffix(m, "jpg") || strings.HasSuffix(m, "png")
}

// terminated reads a string ended by one NUL, or two for the UTF-16
// encodings, and returns it with the byte count consumed.
func terminated(enc byte, b []byte) (string, int, bool) {
	if enc == 1 || enc == 2 {
		for i := 0; i+1 < len(b); i += 2 {
			if b[i] == 0 && b[i+1] == 0 {
				return decodeText(enc, b[:i]), i + 2, true
			}
		}
		return "", 0, false
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", 0, false
	}
	return decodeText(enc, b[:i]), i + 1, true
}
