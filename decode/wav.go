package decode

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type wavSource struct {
	r          io.ReadSeeker
	dec        *wav.Decoder
	intBuf     *goaudio.IntBuffer
	sampleRate int
	channels   int
	bitDepth   int
	duration   float64
}

func (s *wavSource) SampleRate() int   { return s.sampleRate }
func (s *wavSource) Channels() int     { return s.channels }
func (s *wavSource) BitDepth() int     { return s.bitDepth }
func (s *wavSource) Codec() string     { return "wav" }
func (s *wavSource) Duration() float64 { return s.duration }
func (s *wavSource) Close() error      { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
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

	if s.bitDepth == 8 {
		// 8-bit WAV is unsigned PCM with midpoint 0x80.
		for i := 0; i < n; i++ {
			dst[i] = (float32(s.intBuf.Data[i]) - 128) / 128
		}
	} else {
		maxVal := pcmScale(s.bitDepth)
		for i := 0; i < n; i++ {
			dst[i] = float32(s.intBuf.Data[i]) / maxVal
		}
	}

	if n < len(dst) && err == nil {
		return n, io.EOF
	}
	return n, err
}

// SeekFrame restarts the decoder from the top of the file and discards
// frames up to the target. PCM data is cheap to skip, so this stays
// accurate without needing chunk offsets.
func (s *wavSource) SeekFrame(frame int64) error {
	if _, err := s.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav seek: %w", err)
	}
	dec := wav.NewDecoder(s.r)
	if !dec.IsValidFile() {
		return fmt.Errorf("wav seek: %w", ErrUnrecognizedFormat)
	}
	s.dec = dec
	s.intBuf = nil
	return skipFrames(s, frame)
}

// pcmScale returns the normalization divisor for a signed PCM bit depth.
// 8-bit WAV is unsigned and converted separately; 8-bit AIFF is signed
// and uses this table.
func pcmScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128.0
	case 16:
		return 32768.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

type WAVDecoder struct{}

func (WAVDecoder) Name() string { return "wav" }

func (WAVDecoder) Sniff(header []byte) bool {
	return len(header) >= 12 &&
		bytes.Equal(header[0:4], []byte("RIFF")) &&
		bytes.Equal(header[8:12], []byte("WAVE"))
}

func (WAVDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav: %w", ErrUnrecognizedFormat)
	}

	src := &wavSource{
		r:          r,
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
	}
	if d, err := dec.Duration(); err == nil {
		src.duration = d.Seconds()
	}
	return src, nil
}
