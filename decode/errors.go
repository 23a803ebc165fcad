package decode

import "errors"

var (
	ErrUnrecognizedFormat = errors.New("unrecognized container format")
	ErrNoUsableTrack      = errors.New("no usable audio track")
	ErrSeekUnsupported    = errors.New("seek unsupported by source")
)
