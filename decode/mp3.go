package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always emits 16-bit little-endian stereo, 4 bytes per frame.
const mp3BytesPerFrame = 4

type mp3Source struct {
	dec      *gomp3.Decoder
	buf      []byte
	duration float64
}

func (s *mp3Source) SampleRate() int   { return s.dec.SampleRate() }
func (s *mp3Source) Channels() int     { return 2 }
func (s *mp3Source) BitDepth() int     { return 16 }
func (s *mp3Source) Codec() string     { return "mp3" }
func (s *mp3Source) Duration() float64 { return s.duration }
func (s *mp3Source) Close() error      { return nil }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	bytesNeeded := len(dst) * 2
	if cap(s.buf) < bytesNeeded {
		s.buf = make([]byte, bytesNeeded)
	}
	s.buf = s.buf[:bytesNeeded]

	n, err := s.dec.Read(s.buf)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, nil
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(binary.LittleEndian.Uint16(s.buf[2*i : 2*i+2]))
		dst[i] = float32(v) / 32768.0
	}

	return samples, err
}

func (s *mp3Source) SeekFrame(frame int64) error {
	if _, err := s.dec.Seek(frame*mp3BytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek: %w", err)
	}
	return nil
}

type MP3Decoder struct{}

func (MP3Decoder) Name() string { return "mp3" }

func (MP3Decoder) Sniff(header []byte) bool {
	if bytes.HasPrefix(header, []byte("ID3")) {
		return true
	}
	// Bare frame sync: 11 set bits.
	return len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0
}

func (MP3Decoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	src := &mp3Source{
		dec: dec,
		buf: make([]byte, 8192),
	}
	if total := dec.Length(); total > 0 {
		src.duration = float64(total/mp3BytesPerFrame) / float64(dec.SampleRate())
	}
	return src, nil
}
