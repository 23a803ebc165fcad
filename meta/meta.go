// Package meta probes audio files for tag metadata, technical stream
// information and embedded album artwork. It is a synchronous collaborator
// of the playback engine: Play consults it once, up front, for the track
// duration.
package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"tonearm/decode"
)

// TrackMetadata describes one audio file.
type TrackMetadata struct {
	Title         string  `json:"title"`
	Artist        string  `json:"artist,omitempty"`
	Album         string  `json:"album,omitempty"`
	TrackNumber   int     `json:"track_number,omitempty"`
	Year          int     `json:"year,omitempty"`
	Genre         string  `json:"genre,omitempty"`
	Duration      float64 `json:"duration"`
	Codec         string  `json:"codec"`
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	BitsPerSample int     `json:"bits_per_sample,omitempty"`
	HasArtwork    bool    `json:"has_artwork"`
}

// Extract probes path and returns its metadata. Tag reading is tolerant:
// files without any tags still produce technical info, with the title
// falling back to the filename stem.
func Extract(path string) (*TrackMetadata, error) {
	src, err := decode.Open(path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	defer src.Close()

	m := &TrackMetadata{
		Duration:      src.Duration(),
		Codec:         src.Codec(),
		SampleRate:    src.SampleRate(),
		Channels:      src.Channels(),
		BitsPerSample: src.BitDepth(),
	}

	if t, err := readTags(path); err == nil {
		m.Title = t.Title()
		m.Artist = t.Artist()
		m.Album = t.Album()
		m.TrackNumber, _ = t.Track()
		m.Year = t.Year()
		m.Genre = t.Genre()
		m.HasArtwork = t.Picture() != nil
	}

	if m.Title == "" {
		m.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return m, nil
}

// Duration returns the declared duration of path in seconds.
func Duration(path string) (float64, error) {
	src, err := decode.Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return src.Duration(), nil
}

func readTags(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tag.ReadFrom(f)
}
