package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

type aiffSource struct {
	r          io.ReadSeeker
	dec        *aiff.Decoder
	intBuf     *goaudio.IntBuffer
	sampleRate int
	channels   int
	bitDepth   int
	duration   float64
}

func (s *aiffSource) SampleRate() int   { return s.sampleRate }
func (s *aiffSource) Channels() int     { return s.channels }
func (s *aiffSource) BitDepth() int     { return s.bitDepth }
func (s *aiffSource) Codec() string     { return "aiff" }
func (s *aiffSource) Duration() float64 { return s.duration }
func (s *aiffSource) Close() error      { return nil }

func (s *aiffSource) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	if s.intBuf == nil || cap(s.intBuf.Data) < len(dst) {
		s.intBuf = &goaudio.IntBuffer{
			Data:   make([]int, len(dst)),
			Format: s.dec.Format(),
		}
	} else {
		s.intBuf.Data = s.intBuf.Data[:len(dst)]
	}

	n, err := s.dec.PCMBuffer(s.intBuf)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	maxVal := pcmScale(s.bitDepth)
	for i := 0; i < n; i++ {
		dst[i] = float32(s.intBuf.Data[i]) / maxVal
	}

	if n < len(dst) && err == nil {
		return n, io.EOF
	}
	return n, err
}

func (s *aiffSource) SeekFrame(frame int64) error {
	if _, err := s.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("aiff seek: %w", err)
	}
	dec := aiff.NewDecoder(s.r)
	if !dec.IsValidFile() {
		return fmt.Errorf("aiff seek: %w", ErrUnrecognizedFormat)
	}
	dec.ReadInfo()
	s.dec = dec
	s.intBuf = nil
	return skipFrames(s, frame)
}

type AIFFDecoder struct{}

func (AIFFDecoder) Name() string { return "aiff" }

func (AIFFDecoder) Sniff(header []byte) bool {
	return len(header) >= 12 &&
		bytes.Equal(header[0:4], []byte("FORM")) &&
		(bytes.Equal(header[8:12], []byte("AIFF")) || bytes.Equal(header[8:12], []byte("AIFC")))
}

func (AIFFDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("aiff: %w", ErrUnrecognizedFormat)
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil {
		return nil, fmt.Errorf("aiff: %w", ErrNoUsableTrack)
	}

	src := &aiffSource{
		r:          r,
		dec:        dec,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		bitDepth:   int(dec.BitDepth),
	}
	if d, err := dec.Duration(); err == nil {
		src.duration = d.Seconds()
	}
	return src, nil
}
