package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

type vorbisSource struct {
	dec      *oggvorbis.Reader
	duration float64
}

func (s *vorbisSource) SampleRate() int   { return s.dec.SampleRate() }
func (s *vorbisSource) Channels() int     { return s.dec.Channels() }
func (s *vorbisSource) BitDepth() int     { return 0 } // float codec
func (s *vorbisSource) Codec() string     { return "vorbis" }
func (s *vorbisSource) Duration() float64 { return s.duration }
func (s *vorbisSource) Close() error      { return nil }

func (s *vorbisSource) ReadSamples(dst []float32) (int, error) {
	// The vorbis reader already yields normalized interleaved float32.
	n, err := s.dec.Read(dst)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func (s *vorbisSource) SeekFrame(frame int64) error {
	if err := s.dec.SetPosition(frame); err != nil {
		return fmt.Errorf("vorbis seek: %w", err)
	}
	return nil
}

type VorbisDecoder struct{}

func (VorbisDecoder) Name() string { return "vorbis" }

func (VorbisDecoder) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, []byte("OggS"))
}

func (VorbisDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}

	src := &vorbisSource{dec: dec}
	if frames := dec.Length(); frames > 0 {
		src.duration = float64(frames) / float64(dec.SampleRate())
	}
	return src, nil
}
