package engine

// PlaybackState is a point-in-time snapshot of the engine, safe to hand
// to callers on any goroutine.
type PlaybackState struct {
	CurrentTrack    string  `json:"current_track"`
	Duration        float64 `json:"duration"`
	CurrentTime     float64 `json:"current_time"`
	IsPlaying       bool    `json:"is_playing"`
	Paused          bool    `json:"paused"`
	Volume          float64 `json:"volume"`
	CrossfadeActive bool    `json:"crossfade_active"`
}

// CrossfadeTrackInfo is the transition mixer's read-model, recomputed per
// request. Progress holds at 1 after a completed transition until the
// next one starts.
type CrossfadeTrackInfo struct {
	Duration          float64 `json:"duration"`
	CurrentTime       float64 `json:"current_time"`
	IsPlaying         bool    `json:"is_playing"`
	CrossfadeActive   bool    `json:"crossfade_active"`
	CrossfadeProgress float64 `json:"crossfade_progress"`
	CurrentTrack      string  `json:"current_track"`
	NextTrack         string  `json:"next_track,omitempty"`
}

// CrossfadeSettings configures the transition mixer.
type CrossfadeSettings struct {
	Enabled  bool
	Duration float64 // seconds
	Curve    Curve
}
