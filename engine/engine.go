// Package engine drives file playback: it decodes tracks into ring
// buffers, feeds them to the output device and serializes all lifecycle
// changes through a single control loop. Callers enqueue commands and read
// snapshots; nothing they do can block the audio path.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"tonearm/config"
	"tonearm/logger"
	"tonearm/meta"
	"tonearm/output"
)

// The control loop cadence. Command application, crossfade gain updates
// and finished-source reaping all happen on this tick.
const tickInterval = 10 * time.Millisecond

// Options configures a new Engine.
type Options struct {
	// DeviceRate is the output device sample rate in Hz.
	DeviceRate int
	// BufferSeconds sizes each track's decode ring, in seconds of audio.
	BufferSeconds int
	// Volume is the initial master volume in [0, 2].
	Volume float64
	// Crossfade configures the transition mixer.
	Crossfade CrossfadeSettings
}

// OptionsFromConfig maps the loaded configuration onto engine Options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	curve, err := ParseCurve(cfg.Crossfade.Curve)
	if err != nil {
		return Options{}, err
	}
	return Options{
		DeviceRate:    cfg.Engine.DeviceRate,
		BufferSeconds: cfg.Engine.BufferSeconds,
		Volume:        cfg.Engine.Volume,
		Crossfade: CrossfadeSettings{
			Enabled:  cfg.Crossfade.Enabled,
			Duration: cfg.Crossfade.Duration,
			Curve:    curve,
		},
	}, nil
}

// Engine is the playback engine. All methods are safe for concurrent use.
type Engine struct {
	log  *slog.Logger
	dev  output.Device
	opts Options
	cmds commandQueue

	mu      sync.Mutex
	started bool
	closed  bool
	volume  float64
	// Volume requested during an active crossfade, applied when it ends so
	// the gain ramp is not disturbed mid-transition.
	pendingVolume *float64
	paused        bool
	current       *activeSource
	next          *activeSource
	xfade         CrossfadeSettings
	fadeActive    bool
	fadeStart     time.Time
	fadeDuration  float64
	fadeCurve     Curve
	fadeProgress  float64
	eq            equalizerState

	quit chan struct{}
	done chan struct{}
}

// New creates an engine playing through dev. Call Start before use.
func New(opts Options, dev output.Device) *Engine {
	if opts.DeviceRate <= 0 {
		opts.DeviceRate = 48000
	}
	if opts.BufferSeconds < 1 {
		opts.BufferSeconds = 2
	}
	if opts.Crossfade.Duration <= 0 {
		opts.Crossfade.Duration = 3.0
	}
	return &Engine{
		log:    logger.WithComponent("engine"),
		dev:    dev,
		opts:   opts,
		volume: clampVolume(opts.Volume),
		xfade:  opts.Crossfade,
		eq:     newEqualizerState(),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start opens the output device and launches the control loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}
	if err := e.dev.Start(); err != nil {
		return classify(err)
	}
	e.started = true
	go e.run()
	e.log.Info("engine started",
		slog.Int("device_rate", e.opts.DeviceRate),
		slog.Float64("volume", e.volume),
		slog.Bool("crossfade", e.xfade.Enabled))
	return nil
}

// Close stops playback and tears the device down.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if started {
		close(e.quit)
		<-e.done
	}
	err := e.dev.Close()
	e.log.Info("engine closed")
	return err
}

func (e *Engine) run() {
	defer close(e.done)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.quit:
			e.teardown()
			return
		case <-ticker.C:
			e.step()
		}
	}
}

// step is one control-loop tick: apply at most one command, advance an
// active crossfade and reap finished sources. Source lifecycle is mutated
// only here, so e.mu is taken per field access, never across file opens,
// device calls or goroutine joins.
func (e *Engine) step() {
	if cmd, ok := e.cmds.pop(); ok {
		e.apply(cmd)
	}

	e.mu.Lock()
	e.advanceCrossfadeLocked()
	e.reapLocked()
	e.mu.Unlock()
}

func (e *Engine) apply(cmd command) {
	e.log.Debug("applying command", slog.String("kind", cmd.kind.String()), slog.String("path", cmd.path))

	switch cmd.kind {
	case cmdPlay:
		e.startTrack(cmd.path, cmd.duration)

	case cmdPlayCrossfade:
		e.mu.Lock()
		fading := e.current != nil && !e.current.finished() && e.xfade.Enabled
		e.mu.Unlock()
		if !fading {
			e.startTrack(cmd.path, cmd.duration)
			return
		}
		e.startCrossfade(cmd.path, cmd.duration, cmd.fadeSeconds)

	case cmdPause:
		e.mu.Lock()
		e.paused = true
		cur, next := e.current, e.next
		e.mu.Unlock()
		if cur != nil {
			cur.setPaused(true)
		}
		if next != nil {
			next.setPaused(true)
		}

	case cmdResume:
		e.mu.Lock()
		e.paused = false
		cur, next := e.current, e.next
		e.mu.Unlock()
		if cur != nil {
			cur.setPaused(false)
		}
		if next != nil {
			next.setPaused(false)
		}

	case cmdStop:
		e.teardown()
	}
}

// startTrack replaces whatever is playing with path.
func (e *Engine) startTrack(path string, duration float64) {
	e.teardown()

	src, err := startSource(path, duration, e.opts.BufferSeconds, e.log)
	if err != nil {
		e.log.Error("failed to start track", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	e.mu.Lock()
	volume := e.volume
	e.mu.Unlock()

	src.sink.SetGain(volume)
	if err := e.dev.Play(src.sink); err != nil {
		e.log.Error("failed to attach sink", slog.String("path", path), slog.String("error", err.Error()))
		src.stopNow()
		return
	}

	e.mu.Lock()
	e.current = src
	e.paused = false
	e.fadeProgress = 0
	e.mu.Unlock()
	e.log.Info("playing", slog.String("path", path), slog.Float64("duration", duration))
}

// startCrossfade brings up path alongside the current track and begins
// ramping gains. The incoming track is promoted when the ramp completes.
// A positive fadeSeconds overrides the configured duration for this one
// transition.
func (e *Engine) startCrossfade(path string, duration, fadeSeconds float64) {
	e.mu.Lock()
	if e.next != nil {
		// A transition is already running; the old outgoing track is cut
		// and the one fading in becomes the new outgoing side.
		e.current.stopNow()
		e.current = e.next
		e.next = nil
	}
	from := e.current
	volume := e.volume
	curve := e.xfade.Curve
	fadeDuration := e.xfade.Duration
	if fadeSeconds > 0 {
		fadeDuration = fadeSeconds
	}
	e.mu.Unlock()

	src, err := startSource(path, duration, e.opts.BufferSeconds, e.log)
	if err != nil {
		e.log.Error("failed to start crossfade track", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	fadeOut, fadeIn := curve.Apply(0)
	src.sink.SetGain(fadeIn * volume)
	if err := e.dev.Play(src.sink); err != nil {
		e.log.Error("failed to attach sink", slog.String("path", path), slog.String("error", err.Error()))
		src.stopNow()
		return
	}
	from.sink.SetGain(fadeOut * volume)
	from.setPaused(false)

	e.mu.Lock()
	e.paused = false
	e.next = src
	e.fadeActive = true
	e.fadeStart = time.Now()
	e.fadeDuration = fadeDuration
	e.fadeCurve = curve
	e.fadeProgress = 0
	e.mu.Unlock()

	e.log.Info("crossfade started",
		slog.String("from", from.path),
		slog.String("to", path),
		slog.Float64("fade_duration", fadeDuration),
		slog.String("curve", curve.String()))
}

func (e *Engine) advanceCrossfadeLocked() {
	if !e.fadeActive {
		return
	}

	p := time.Since(e.fadeStart).Seconds() / e.fadeDuration
	fadeOut, fadeIn := e.fadeCurve.Apply(p)
	e.current.sink.SetGain(fadeOut * e.volume)
	e.next.sink.SetGain(fadeIn * e.volume)
	e.fadeProgress = p
	if e.fadeProgress > 1 {
		e.fadeProgress = 1
	}

	if p >= 1 {
		e.current.stopNow()
		e.current = e.next
		e.next = nil
		e.fadeActive = false
		e.fadeProgress = 1
		if e.pendingVolume != nil {
			e.volume = *e.pendingVolume
			e.pendingVolume = nil
		}
		e.current.sink.SetGain(e.volume)
		e.log.Info("crossfade complete", slog.String("path", e.current.path))
	}
}

// reapLocked clears sources that ended on their own.
func (e *Engine) reapLocked() {
	if e.current == nil || !e.current.finished() {
		return
	}
	if e.current.failed.Load() {
		e.log.Warn("track abandoned after repeated decode errors", slog.String("path", e.current.path))
	} else {
		e.log.Info("track finished", slog.String("path", e.current.path))
	}
	if e.fadeActive && e.next != nil {
		// The outgoing track ran out before the ramp finished; promote the
		// incoming one straight to full gain.
		e.current = e.next
		e.next = nil
		e.fadeActive = false
		e.fadeProgress = 1
		if e.pendingVolume != nil {
			e.volume = *e.pendingVolume
			e.pendingVolume = nil
		}
		e.current.sink.SetGain(e.volume)
		return
	}
	e.current = nil
	e.paused = false
}

// teardown stops all sources. State is cleared first under the lock; the
// joins happen outside it so readers are never stalled behind them.
func (e *Engine) teardown() {
	e.mu.Lock()
	sources := []*activeSource{e.current, e.next}
	e.current = nil
	e.next = nil
	e.fadeActive = false
	e.fadeProgress = 0
	if e.pendingVolume != nil {
		e.volume = *e.pendingVolume
		e.pendingVolume = nil
	}
	e.paused = false
	e.mu.Unlock()

	for _, s := range sources {
		if s == nil {
			continue
		}
		s.stopNow()
		// The decode goroutine is cooperative; it notices the stop flag
		// within one of its sleep intervals.
		select {
		case <-s.done:
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Play starts playback of path, replacing the current track. It returns
// the track duration in seconds, resolved before playback begins. When
// the duration lookup fails the error is returned but the play is still
// attempted, with the duration recorded as 0.
func (e *Engine) Play(path string) (float64, error) {
	if err := e.checkRunning(); err != nil {
		return 0, err
	}
	duration, err := meta.Duration(path)
	e.cmds.push(command{kind: cmdPlay, path: path, duration: duration})
	if err != nil {
		return 0, classify(err)
	}
	return duration, nil
}

// PlayWithCrossfade starts path through the transition mixer, fading the
// current track out underneath it. A positive fadeSeconds overrides the
// configured crossfade duration for this transition. When crossfade is
// disabled or nothing is playing it behaves exactly like Play.
func (e *Engine) PlayWithCrossfade(path string, fadeSeconds float64) (float64, error) {
	if err := e.checkRunning(); err != nil {
		return 0, err
	}
	duration, err := meta.Duration(path)
	e.cmds.push(command{kind: cmdPlayCrossfade, path: path, duration: duration, fadeSeconds: fadeSeconds})
	if err != nil {
		return 0, classify(err)
	}
	return duration, nil
}

// Pause silences playback without losing the position.
func (e *Engine) Pause() error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	e.cmds.push(command{kind: cmdPause})
	return nil
}

// Resume continues playback after a pause.
func (e *Engine) Resume() error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	e.cmds.push(command{kind: cmdResume})
	return nil
}

// Stop ends playback and discards buffered audio. The position resets to
// zero. Like every command it takes its place in the queue, so commands
// sent before it are still applied first.
func (e *Engine) Stop() error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	e.cmds.push(command{kind: cmdStop})
	return nil
}

// Seek repositions the current track to seconds. The target must lie
// within the track's declared duration.
func (e *Engine) Seek(seconds float64) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return ErrNoTrack
	}
	if seconds < 0 || (e.current.duration > 0 && seconds > e.current.duration) {
		return ErrSeekOutOfRange
	}
	e.current.requestSeek(seconds)
	return nil
}

// SetVolume sets the master volume, clamped to [0, 2]. During an active
// crossfade the change is held back until the transition completes.
func (e *Engine) SetVolume(volume float64) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	volume = clampVolume(volume)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fadeActive {
		e.pendingVolume = &volume
		return nil
	}
	e.volume = volume
	if e.current != nil {
		e.current.sink.SetGain(volume)
	}
	return nil
}

// EnableCrossfade toggles the transition mixer for subsequent plays.
func (e *Engine) EnableCrossfade(enabled bool) {
	e.mu.Lock()
	e.xfade.Enabled = enabled
	e.mu.Unlock()
	e.log.Info("crossfade toggled", slog.Bool("enabled", enabled))
}

// SetCrossfadeDuration sets the transition length in seconds.
func (e *Engine) SetCrossfadeDuration(seconds float64) error {
	if seconds <= 0 || seconds > 30 {
		return &config.ConfigError{Field: "crossfade.duration", Message: "crossfade duration must be between 0 and 30 seconds"}
	}
	e.mu.Lock()
	e.xfade.Duration = seconds
	e.mu.Unlock()
	return nil
}

// SetCrossfadeCurve selects the gain curve by its configuration name.
func (e *Engine) SetCrossfadeCurve(name string) error {
	curve, err := ParseCurve(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.xfade.Curve = curve
	e.mu.Unlock()
	return nil
}

// CrossfadeSettings returns the current transition configuration.
func (e *Engine) CrossfadeSettings() CrossfadeSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.xfade
}

// CrossfadeTrackInfo returns the transition mixer's read-model. Progress
// is computed live during a transition, so it can run slightly ahead of
// the gains applied on the last tick.
func (e *Engine) CrossfadeTrackInfo() CrossfadeTrackInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := CrossfadeTrackInfo{
		CrossfadeActive:   e.fadeActive,
		CrossfadeProgress: e.fadeProgress,
	}
	if e.fadeActive {
		p := time.Since(e.fadeStart).Seconds() / e.fadeDuration
		if p > 1 {
			p = 1
		}
		info.CrossfadeProgress = p
	}
	if e.current != nil && !e.current.finished() {
		info.CurrentTrack = e.current.path
		info.Duration = e.current.duration
		info.CurrentTime = e.current.position()
		info.IsPlaying = !e.paused
	}
	if e.next != nil {
		info.NextTrack = e.next.path
	}
	return info
}

// State returns a snapshot of the engine.
func (e *Engine) State() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := PlaybackState{
		Volume:          e.requestedVolumeLocked(),
		CrossfadeActive: e.fadeActive,
	}
	if e.current != nil && !e.current.finished() {
		st.CurrentTrack = e.current.path
		st.Duration = e.current.duration
		st.CurrentTime = e.current.position()
		st.IsPlaying = !e.paused
		st.Paused = e.paused
	}
	return st
}

// CurrentTime returns the playback position in seconds, 0 when idle.
func (e *Engine) CurrentTime() float64 { return e.State().CurrentTime }

// Duration returns the current track's duration in seconds, 0 when idle.
func (e *Engine) Duration() float64 { return e.State().Duration }

// IsPlaying reports whether a track is loaded and not paused.
func (e *Engine) IsPlaying() bool { return e.State().IsPlaying }

// Volume returns the master volume, including one deferred by an active
// crossfade.
func (e *Engine) Volume() float64 { return e.State().Volume }

func (e *Engine) requestedVolumeLocked() float64 {
	if e.pendingVolume != nil {
		return *e.pendingVolume
	}
	return e.volume
}

func (e *Engine) checkRunning() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if !e.started {
		return ErrClosed
	}
	return nil
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 2 {
		return 2
	}
	return v
}
