package engine

import (
	"errors"

	"tonearm/decode"
	"tonearm/output"
)

// Category sentinels for playback failures. Callers match with errors.Is;
// the concrete cause stays wrapped underneath.
var (
	ErrIO     = errors.New("i/o failure")
	ErrFormat = errors.New("unsupported format")
	ErrCodec  = errors.New("decode failure")
	ErrDevice = errors.New("output device failure")
	ErrSeek   = errors.New("seek failure")
)

var (
	ErrClosed         = errors.New("engine is closed")
	ErrNoTrack        = errors.New("no track is playing")
	ErrSeekOutOfRange = errors.New("seek position out of range")
)

type categorized struct {
	kind error
	err  error
}

func (e *categorized) Error() string   { return e.kind.Error() + ": " + e.err.Error() }
func (e *categorized) Unwrap() []error { return []error{e.kind, e.err} }

// classify wraps err under its playback category so callers can branch on
// what went wrong without inspecting the lower layers.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrIO), errors.Is(err, ErrFormat), errors.Is(err, ErrCodec),
		errors.Is(err, ErrDevice), errors.Is(err, ErrSeek):
		return err
	case errors.Is(err, decode.ErrUnrecognizedFormat), errors.Is(err, decode.ErrNoUsableTrack):
		return &categorized{kind: ErrFormat, err: err}
	case errors.Is(err, decode.ErrSeekUnsupported):
		return &categorized{kind: ErrSeek, err: err}
	case errors.Is(err, output.ErrDeviceClosed):
		return &categorized{kind: ErrDevice, err: err}
	default:
		return &categorized{kind: ErrIO, err: err}
	}
}
