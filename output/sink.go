package output

import (
	"sync"

	"github.com/gopxl/beep/v2"

	"tonearm/ring"
)

// Sink drains a decode ring buffer from the audio driver's callback. It
// implements beep.Streamer: the speaker pulls at the device's own cadence,
// the sink applies the current gain under a short-held lock and pads with
// silence when the producer falls behind. It never blocks and never
// reports an error; underrun is silent degradation.
type Sink struct {
	rb       *ring.Buffer
	channels int
	rate     beep.SampleRate
	frame    []float32

	mu       sync.Mutex
	gain     float64
	paused   bool
	draining bool
	flush    bool
	closed   bool
}

// NewSink creates a sink reading interleaved samples for the given channel
// count at the given rate.
func NewSink(rb *ring.Buffer, channels int, rate beep.SampleRate) *Sink {
	if channels < 1 {
		channels = 1
	}
	return &Sink{
		rb:       rb,
		channels: channels,
		rate:     rate,
		frame:    make([]float32, channels),
		gain:     1.0,
	}
}

// Rate returns the sink's sample rate.
func (s *Sink) Rate() beep.SampleRate { return s.rate }

// SetGain sets the gain multiplier applied in the driver callback.
func (s *Sink) SetGain(gain float64) {
	s.mu.Lock()
	s.gain = gain
	s.mu.Unlock()
}

// Gain returns the current gain multiplier.
func (s *Sink) Gain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

// SetPaused makes the sink emit silence without consuming the ring.
func (s *Sink) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

// Flush discards everything buffered in the ring on the next device
// callback. The ring can only be drained safely from its consumer side,
// so the discard is deferred to Stream; FlushPending reports whether it
// has happened yet.
func (s *Sink) Flush() {
	s.mu.Lock()
	s.flush = true
	s.mu.Unlock()
}

// FlushPending reports whether a requested flush is still outstanding.
func (s *Sink) FlushPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush
}

// Drain marks the end of the producer stream: the sink plays out whatever
// remains in the ring and then ends.
func (s *Sink) Drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
}

// Close ends the sink immediately, discarding buffered samples.
func (s *Sink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the sink has ended.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sink) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	gain, paused, draining, closed := s.gain, s.paused, s.draining, s.closed
	flush := s.flush
	s.mu.Unlock()

	if closed {
		return 0, false
	}

	if flush {
		for {
			if _, ok := s.rb.Pop(); !ok {
				break
			}
		}
		// Cleared only after the drain so the producer can wait for the
		// flush to complete before writing post-seek samples.
		s.mu.Lock()
		s.flush = false
		s.mu.Unlock()
	}

	if paused {
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return len(samples), true
	}

	for i := range samples {
		if s.rb.Len() >= s.channels {
			s.rb.Read(s.frame)
			switch {
			case s.channels == 1:
				v := float64(s.frame[0]) * gain
				samples[i][0], samples[i][1] = v, v
			case s.channels == 2:
				samples[i][0] = float64(s.frame[0]) * gain
				samples[i][1] = float64(s.frame[1]) * gain
			default:
				// Downmix: even-indexed channels average into the left
				// output, odd-indexed into the right.
				var left, right float64
				for c := 0; c < s.channels; c++ {
					if c%2 == 0 {
						left += float64(s.frame[c])
					} else {
						right += float64(s.frame[c])
					}
				}
				samples[i][0] = left / float64((s.channels+1)/2) * gain
				samples[i][1] = right / float64(s.channels/2) * gain
			}
		} else {
			samples[i] = [2]float64{}
		}
	}

	if draining && s.rb.Len() < s.channels {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}
	return len(samples), true
}

func (s *Sink) Err() error { return nil }
