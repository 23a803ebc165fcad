package engine

import (
	"fmt"
	"log/slog"
)

// Ten-band ISO octave centers, in Hz.
var eqBands = [10]int{32, 64, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// eqPresets are band gains in dB, low to high.
var eqPresets = map[string][10]float64{
	"flat":       {},
	"rock":       {5, 4, 3, 1, -1, -1, 1, 3, 4, 5},
	"pop":        {-1, 1, 3, 4, 3, 1, -1, -1, 1, 2},
	"jazz":       {3, 2, 1, 2, -1, -1, 0, 1, 2, 3},
	"classical":  {4, 3, 2, 1, -1, -1, 0, 2, 3, 4},
	"bass-boost": {6, 5, 4, 2, 0, 0, 0, 0, 0, 0},
}

// equalizerState holds the requested equalizer settings. The gains are
// recorded and reported but not yet applied to the signal path; the
// filter stage lands in a later revision of the sink.
type equalizerState struct {
	enabled bool
	gains   [10]float64
	preset  string
}

func newEqualizerState() equalizerState {
	return equalizerState{preset: "flat"}
}

// EqualizerBand is one band's settings in a snapshot.
type EqualizerBand struct {
	Frequency int     `json:"frequency"`
	Gain      float64 `json:"gain"`
}

// SetEqualizerBand sets the gain of one band, in dB within [-12, 12].
// Band indexes run 0 (32 Hz) through 9 (16 kHz).
func (e *Engine) SetEqualizerBand(band int, gain float64) error {
	if band < 0 || band >= len(eqBands) {
		return fmt.Errorf("equalizer band %d out of range [0, %d]", band, len(eqBands)-1)
	}
	if gain < -12 || gain > 12 {
		return fmt.Errorf("equalizer gain %.1f out of range [-12, 12] dB", gain)
	}
	e.mu.Lock()
	e.eq.gains[band] = gain
	e.eq.preset = ""
	e.mu.Unlock()
	e.log.Debug("equalizer band set",
		slog.Int("frequency", eqBands[band]),
		slog.Float64("gain", gain))
	return nil
}

// SetEqualizerPreset applies a named preset across all bands.
func (e *Engine) SetEqualizerPreset(name string) error {
	gains, ok := eqPresets[name]
	if !ok {
		return fmt.Errorf("unknown equalizer preset %q", name)
	}
	e.mu.Lock()
	e.eq.gains = gains
	e.eq.preset = name
	e.mu.Unlock()
	e.log.Info("equalizer preset set", slog.String("preset", name))
	return nil
}

// EnableEqualizer toggles the equalizer stage.
func (e *Engine) EnableEqualizer(enabled bool) {
	e.mu.Lock()
	e.eq.enabled = enabled
	e.mu.Unlock()
	e.log.Info("equalizer toggled", slog.Bool("enabled", enabled))
}

// EqualizerBands returns the configured bands, low to high.
func (e *Engine) EqualizerBands() []EqualizerBand {
	e.mu.Lock()
	defer e.mu.Unlock()
	bands := make([]EqualizerBand, len(eqBands))
	for i, f := range eqBands {
		bands[i] = EqualizerBand{Frequency: f, Gain: e.eq.gains[i]}
	}
	return bands
}

// EqualizerEnabled reports whether the equalizer stage is on.
func (e *Engine) EqualizerEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eq.enabled
}
