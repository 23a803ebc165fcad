package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
)

// flacSource adapts the beep FLAC streamer. beep renders every stream as
// stereo pairs, so the source always reports two channels.
type flacSource struct {
	s        beep.StreamSeekCloser
	format   beep.Format
	frameBuf [][2]float64
}

func (s *flacSource) SampleRate() int { return int(s.format.SampleRate) }
func (s *flacSource) Channels() int   { return 2 }
func (s *flacSource) BitDepth() int   { return s.format.Precision * 8 }
func (s *flacSource) Codec() string   { return "flac" }
func (s *flacSource) Close() error    { return s.s.Close() }

func (s *flacSource) Duration() float64 {
	return float64(s.s.Len()) / float64(s.format.SampleRate)
}

func (s *flacSource) ReadSamples(dst []float32) (int, error) {
	frames := len(dst) / 2
	if frames == 0 {
		return 0, nil
	}
	if cap(s.frameBuf) < frames {
		s.frameBuf = make([][2]float64, frames)
	}

	n, ok := s.s.Stream(s.frameBuf[:frames])
	if n == 0 && !ok {
		if err := s.s.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		dst[2*i] = float32(s.frameBuf[i][0])
		dst[2*i+1] = float32(s.frameBuf[i][1])
	}
	return n * 2, nil
}

func (s *flacSource) SeekFrame(frame int64) error {
	if err := s.s.Seek(int(frame)); err != nil {
		return fmt.Errorf("flac seek: %w", err)
	}
	return nil
}

type FLACDecoder struct{}

func (FLACDecoder) Name() string { return "flac" }

func (FLACDecoder) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, []byte("fLaC"))
}

func (FLACDecoder) Decode(r io.ReadSeeker) (Source, error) {
	streamer, format, err := flac.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	return &flacSource{s: streamer, format: format}, nil
}
