// Package output plays decoded PCM through the hardware device. The
// speaker owns the real-time callback; sinks attached to it are mixed and
// resampled to the device rate.
package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

var ErrDeviceClosed = errors.New("output device closed")

// Device abstracts the hardware output so the engine can be exercised
// without real audio hardware.
type Device interface {
	// Start opens the driver.
	Start() error
	// Play attaches a sink to the device mixer, resampling if the sink's
	// rate differs from the device rate.
	Play(s *Sink) error
	// Close tears the driver down.
	Close() error
}

// Speaker is the default Device backed by the beep speaker (oto driver).
type Speaker struct {
	rate    beep.SampleRate
	started bool
	closed  bool
}

// NewSpeaker creates a speaker device running at the given sample rate.
func NewSpeaker(rate int) *Speaker {
	return &Speaker{rate: beep.SampleRate(rate)}
}

func (d *Speaker) Start() error {
	if d.closed {
		return ErrDeviceClosed
	}
	if d.started {
		return nil
	}
	if err := speaker.Init(d.rate, d.rate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	d.started = true
	return nil
}

func (d *Speaker) Play(s *Sink) error {
	if !d.started || d.closed {
		return ErrDeviceClosed
	}
	var st beep.Streamer = s
	if s.Rate() != d.rate {
		st = beep.Resample(4, s.Rate(), d.rate, s)
	}
	speaker.Play(st)
	return nil
}

func (d *Speaker) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.started {
		speaker.Clear()
		speaker.Close()
	}
	return nil
}
