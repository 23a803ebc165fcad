package meta

import (
	"bytes"
	"encoding/base64"
)

// Artwork is an embedded cover image, base64-encoded for transport.
type Artwork struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// ExtractArtwork returns the embedded cover of path, or nil when the file
// carries no picture. The tag layer prefers the front cover when the
// container distinguishes picture kinds.
func ExtractArtwork(path string) (*Artwork, error) {
	t, err := readTags(path)
	if err != nil {
		// No readable tags means no artwork, not a failure.
		return nil, nil
	}

	pic := t.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, nil
	}

	mime := pic.MIMEType
	if mime == "" {
		mime = sniffImageMIME(pic.Data)
	}

	return &Artwork{
		Data:     base64.StdEncoding.EncodeToString(pic.Data),
		MIMEType: mime,
	}, nil
}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
)

// sniffImageMIME guesses an image MIME type from its magic bytes.
func sniffImageMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg"
	case bytes.HasPrefix(data, pngMagic):
		return "image/png"
	default:
		return "image/unknown"
	}
}
