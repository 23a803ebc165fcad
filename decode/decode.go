// Package decode turns compressed or container audio files into streams of
// normalized interleaved float32 PCM. A file is probed by its extension
// hint first, then by content sniffing, and the first decoder that accepts
// the stream provides the samples.
package decode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source is a stream of interleaved float32 samples in [-1, 1].
type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels count (1=mono, 2=stereo).
	Channels() int
	// BitDepth of the source material, 0 when not applicable.
	BitDepth() int
	// Codec is the format key of the decoder serving this source.
	Codec() string
	// Duration in seconds, 0 when the container does not declare it.
	Duration() float64
	// ReadSamples fills dst with interleaved samples and returns the number
	// of float32 values written. io.EOF marks the end of the stream.
	ReadSamples(dst []float32) (int, error)
	// Close releases any decoder resources. The underlying file is closed
	// by the pipeline, not the source.
	Close() error
}

// FrameSeeker is implemented by sources that can reposition to an exact
// frame. Sources without it are seeked by the skip fallback in Seek.
type FrameSeeker interface {
	SeekFrame(frame int64) error
}

// Decoder probes and decodes one container format.
type Decoder interface {
	// Name is the format key, e.g. "mp3".
	Name() string
	// Sniff reports whether the header bytes look like this format.
	Sniff(header []byte) bool
	// Decode constructs a Source reading from r.
	Decode(r io.ReadSeeker) (Source, error)
}

// Probe order matters: sniffing runs down this list until a decoder
// accepts the stream.
var decoders = []Decoder{
	WAVDecoder{},
	MP3Decoder{},
	VorbisDecoder{},
	FLACDecoder{},
	AIFFDecoder{},
}

var extFormats = map[string]string{
	".wav":  "wav",
	".mp3":  "mp3",
	".ogg":  "vorbis",
	".oga":  "vorbis",
	".flac": "flac",
	".aiff": "aiff",
	".aif":  "aiff",
	".aifc": "aiff",
}

// fileSource owns the open file backing a Source.
type fileSource struct {
	Source
	f *os.File
}

func (s *fileSource) Close() error {
	err := s.Source.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open probes path and returns a decoding Source for its audio stream.
// The extension supplies the format hint; when the hinted decoder rejects
// the stream the header is sniffed against every known format.
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	src, err := probe(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{Source: src, f: f}, nil
}

func probe(r io.ReadSeeker, ext string) (Source, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	tried := map[string]bool{}

	// Extension hint first.
	if name, ok := extFormats[strings.ToLower(ext)]; ok {
		for _, d := range decoders {
			if d.Name() != name {
				continue
			}
			if _, err := r.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
			src, err := d.Decode(r)
			if err == nil {
				return src, nil
			}
			tried[name] = true
		}
	}

	// Hint failed or unknown extension: sniff the header.
	for _, d := range decoders {
		if tried[d.Name()] || !d.Sniff(header) {
			continue
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		src, err := d.Decode(r)
		if err == nil {
			return src, nil
		}
	}

	return nil, ErrNoUsableTrack
}

// Seek repositions src to the given time. Sources implementing FrameSeeker
// jump directly; the caller is expected to rebase its frame counter to
// seconds × sample rate afterwards.
func Seek(src Source, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("%w: negative position %.3f", ErrSeekUnsupported, seconds)
	}
	fs, ok := src.(FrameSeeker)
	if !ok {
		return ErrSeekUnsupported
	}
	frame := int64(seconds * float64(src.SampleRate()))
	if err := fs.SeekFrame(frame); err != nil {
		return fmt.Errorf("seek to %.3fs: %w", seconds, err)
	}
	return nil
}

// skipFrames discards n frames from src by reading into a scratch buffer.
// Shared by the sources whose underlying decoder can only restart from the
// beginning of the stream.
func skipFrames(src Source, n int64) error {
	if n <= 0 {
		return nil
	}
	scratch := make([]float32, 4096)
	remaining := n * int64(src.Channels())
	for remaining > 0 {
		want := int64(len(scratch))
		if want > remaining {
			want = remaining
		}
		read, err := src.ReadSamples(scratch[:want])
		remaining -= int64(read)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if read == 0 {
			return nil
		}
	}
	return nil
}
