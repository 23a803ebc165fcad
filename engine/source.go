package engine

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"

	"tonearm/decode"
	"tonearm/output"
	"tonearm/ring"
)

const (
	decodeChunk = 4096
	// A source is abandoned after this many decode errors in a row.
	maxDecodeErrors = 5
	// How long the decode loop waits for the device callback to consume a
	// seek flush before writing post-seek samples anyway.
	flushWait = 200 * time.Millisecond
)

// activeSource is one playing track: the decoder, its ring, its sink and
// the goroutine pumping samples between them.
type activeSource struct {
	path     string
	duration float64
	rate     int
	channels int

	src  decode.Source
	rb   *ring.Buffer
	sink *output.Sink
	log  *slog.Logger

	frames atomic.Int64  // frames written to the ring since the last rebase
	base   atomic.Uint64 // rebase offset in seconds, as Float64bits

	seekMu  sync.Mutex
	pending *float64

	paused  atomic.Bool
	stopped atomic.Bool
	failed  atomic.Bool
	done    chan struct{}
}

// startSource opens path and launches its decode loop. bufferSeconds sizes
// the ring in seconds of audio at the source's own rate.
func startSource(path string, duration float64, bufferSeconds int, log *slog.Logger) (*activeSource, error) {
	src, err := decode.Open(path)
	if err != nil {
		return nil, classify(err)
	}

	rate := src.SampleRate()
	channels := src.Channels()
	rb := ring.New(rate * channels * bufferSeconds)
	s := &activeSource{
		path:     path,
		duration: duration,
		rate:     rate,
		channels: channels,
		src:      src,
		rb:       rb,
		sink:     output.NewSink(rb, channels, beep.SampleRate(rate)),
		log:      log,
		done:     make(chan struct{}),
	}

	log.Debug("source started",
		slog.String("path", path),
		slog.String("codec", src.Codec()),
		slog.Int("rate", rate),
		slog.Int("channels", channels),
		slog.Float64("duration", duration))

	go s.decodeLoop()
	return s, nil
}

// position returns the playback position in seconds, discounting samples
// still sitting in the ring ahead of the device.
func (s *activeSource) position() float64 {
	frames := s.frames.Load() - int64(s.rb.Len()/s.channels)
	if frames < 0 {
		frames = 0
	}
	return s.baseSeconds() + float64(frames)/float64(s.rate)
}

func (s *activeSource) baseSeconds() float64 {
	return math.Float64frombits(s.base.Load())
}

// requestSeek records a seek target for the decode loop to apply.
func (s *activeSource) requestSeek(seconds float64) {
	s.seekMu.Lock()
	s.pending = &seconds
	s.seekMu.Unlock()
}

func (s *activeSource) takeSeek() (float64, bool) {
	s.seekMu.Lock()
	defer s.seekMu.Unlock()
	if s.pending == nil {
		return 0, false
	}
	sec := *s.pending
	s.pending = nil
	return sec, true
}

func (s *activeSource) setPaused(paused bool) {
	s.paused.Store(paused)
	s.sink.SetPaused(paused)
}

// stopNow tears the source down immediately, discarding buffered audio.
func (s *activeSource) stopNow() {
	s.stopped.Store(true)
	s.sink.Close()
}

// finished reports whether the sink has fully ended, either by stop or by
// playing out the ring after the stream's end.
func (s *activeSource) finished() bool {
	select {
	case <-s.done:
		return s.sink.Closed()
	default:
		return false
	}
}

func (s *activeSource) decodeLoop() {
	defer close(s.done)
	defer s.src.Close()

	buf := make([]float32, decodeChunk*s.channels)
	errStreak := 0

	for {
		if s.stopped.Load() {
			s.sink.Close()
			return
		}

		if sec, ok := s.takeSeek(); ok {
			s.applySeek(sec)
			continue
		}

		if s.paused.Load() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		n, err := s.src.ReadSamples(buf)
		if n > 0 {
			if !s.writeAll(buf[:n]) {
				s.sink.Close()
				return
			}
			s.frames.Add(int64(n / s.channels))
		}

		switch {
		case err == nil:
			errStreak = 0
		case errors.Is(err, io.EOF):
			s.log.Debug("stream ended", slog.String("path", s.path))
			s.sink.Drain()
			return
		default:
			errStreak++
			s.log.Warn("decode error",
				slog.String("path", s.path),
				slog.Int("streak", errStreak),
				slog.String("error", err.Error()))
			if errStreak >= maxDecodeErrors {
				s.failed.Store(true)
				s.sink.Drain()
				return
			}
		}
	}
}

// writeAll pushes samples into the ring, waiting out a full ring. It
// reports false when the source was stopped while waiting.
func (s *activeSource) writeAll(samples []float32) bool {
	wrote := 0
	for wrote < len(samples) {
		wrote += s.rb.Write(samples[wrote:])
		if wrote < len(samples) {
			if s.stopped.Load() {
				return false
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	return true
}

func (s *activeSource) applySeek(seconds float64) {
	if err := decode.Seek(s.src, seconds); err != nil {
		s.log.Warn("seek failed",
			slog.String("path", s.path),
			slog.Float64("seconds", seconds),
			slog.String("error", err.Error()))
		return
	}

	// Discard pre-seek samples. The flush runs on the device callback, so
	// wait for it before writing audio from the new position.
	s.sink.Flush()
	deadline := time.Now().Add(flushWait)
	for s.sink.FlushPending() && time.Now().Before(deadline) {
		if s.stopped.Load() {
			return
		}
		time.Sleep(time.Millisecond)
	}

	s.base.Store(math.Float64bits(seconds))
	s.frames.Store(0)
	s.log.Debug("seek applied", slog.String("path", s.path), slog.Float64("seconds", seconds))
}
