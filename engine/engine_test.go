package engine

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonearm/output"
)

// stubDevice stands in for the speaker. Each attached sink gets a pump
// goroutine that consumes it the way the real driver callback would.
type stubDevice struct {
	mu      sync.Mutex
	started bool
	closed  bool
	played  []*output.Sink
}

func (d *stubDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return output.ErrDeviceClosed
	}
	d.started = true
	return nil
}

func (d *stubDevice) Play(s *output.Sink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.closed {
		return output.ErrDeviceClosed
	}
	d.played = append(d.played, s)
	go func() {
		buf := make([][2]float64, 64)
		for {
			if _, ok := s.Stream(buf); !ok {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
	return nil
}

func (d *stubDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *stubDevice) sinkCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.played)
}

// stallingDevice delays sink attachment until released, for asserting
// what the engine keeps responsive while a track start is in flight.
type stallingDevice struct {
	stubDevice
	entered chan struct{}
	release chan struct{}
}

func (d *stallingDevice) Play(s *output.Sink) error {
	d.entered <- struct{}{}
	<-d.release
	return d.stubDevice.Play(s)
}

// writeWAV writes a 16-bit PCM mono WAV file with seconds of near-silent
// audio at 8 kHz.
func writeWAV(t *testing.T, path string, seconds float64) {
	t.Helper()

	const rate = 8000
	samples := make([]int16, int(float64(rate)*seconds))
	for i := range samples {
		samples[i] = int16(i % 64)
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	dataSize := uint32(len(samples) * 2)
	_, err = f.WriteString("RIFF")
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(36+dataSize)))
	_, err = f.WriteString("WAVEfmt ")
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint16(1)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint16(1)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(rate)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint32(rate*2)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint16(2)))
	require.NoError(t, binary.Write(f, binary.LittleEndian, uint16(16)))
	_, err = f.WriteString("data")
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, dataSize))
	require.NoError(t, binary.Write(f, binary.LittleEndian, samples))
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *stubDevice) {
	t.Helper()
	dev := &stubDevice{}
	eng := New(opts, dev)
	require.NoError(t, eng.Start())
	t.Cleanup(func() { eng.Close() })
	return eng, dev
}

func waitForTrack(t *testing.T, eng *Engine, path string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return eng.State().CurrentTrack == path
	}, 2*time.Second, 10*time.Millisecond, "track %s never started", path)
}

func TestPlayReturnsDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "five.wav")
	writeWAV(t, path, 5)

	eng, _ := newTestEngine(t, Options{Volume: 1.0})
	duration, err := eng.Play(path)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, duration, 0.05)

	waitForTrack(t, eng, path)
	st := eng.State()
	assert.True(t, st.IsPlaying)
	assert.False(t, st.Paused)
	assert.InDelta(t, 5.0, st.Duration, 0.05)
}

func TestPlayMissingFile(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})
	_, err := eng.Play("/no/such/file.wav")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
}

func TestPlayGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not audio content"), 0o644))

	eng, _ := newTestEngine(t, Options{})
	_, err := eng.Play(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestTrackFinishesAndClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blip.wav")
	writeWAV(t, path, 0.2)

	eng, _ := newTestEngine(t, Options{})
	_, err := eng.Play(path)
	require.NoError(t, err)

	waitForTrack(t, eng, path)
	require.Eventually(t, func() bool {
		return eng.State().CurrentTrack == ""
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, eng.CurrentTime())
	assert.False(t, eng.IsPlaying())
}

func TestPauseResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "five.wav")
	writeWAV(t, path, 5)

	eng, _ := newTestEngine(t, Options{})
	_, err := eng.Play(path)
	require.NoError(t, err)
	waitForTrack(t, eng, path)

	require.NoError(t, eng.Pause())
	require.Eventually(t, func() bool {
		st := eng.State()
		return st.Paused && !st.IsPlaying
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, path, eng.State().CurrentTrack, "pause keeps the track loaded")

	require.NoError(t, eng.Resume())
	require.Eventually(t, func() bool {
		return eng.State().IsPlaying
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopResetsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "five.wav")
	writeWAV(t, path, 5)

	eng, _ := newTestEngine(t, Options{})
	_, err := eng.Play(path)
	require.NoError(t, err)
	waitForTrack(t, eng, path)

	require.NoError(t, eng.Stop())
	require.Eventually(t, func() bool {
		return eng.State().CurrentTrack == ""
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, eng.CurrentTime())
	assert.Zero(t, eng.Duration())
}

func TestSeek(t *testing.T) {
	path := filepath.Join(t.TempDir(), "five.wav")
	writeWAV(t, path, 5)

	eng, _ := newTestEngine(t, Options{})
	_, err := eng.Play(path)
	require.NoError(t, err)
	waitForTrack(t, eng, path)

	require.NoError(t, eng.Seek(3.0))
	var first float64
	require.Eventually(t, func() bool {
		first = eng.CurrentTime()
		return first >= 3.0
	}, 2*time.Second, time.Millisecond)
	assert.Less(t, first, 3.5, "the position must land near the seek target, not far past it")
	require.Eventually(t, func() bool {
		return eng.CurrentTime() > first
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopPreservesQueuedCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.wav")
	writeWAV(t, path, 1)

	eng, dev := newTestEngine(t, Options{})
	_, err := eng.Play(path)
	require.NoError(t, err)
	require.NoError(t, eng.Stop())

	// The play was sent first, so it still attaches a sink before the
	// stop tears it down.
	require.Eventually(t, func() bool {
		return dev.sinkCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return eng.State().CurrentTrack == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStateReadsDoNotBlockOnTrackStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.wav")
	writeWAV(t, path, 1)

	dev := &stallingDevice{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	eng := New(Options{}, dev)
	require.NoError(t, eng.Start())
	_, err := eng.Play(path)
	require.NoError(t, err)

	select {
	case <-dev.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("track start never reached the device")
	}

	done := make(chan struct{})
	go func() {
		eng.State()
		eng.CurrentTime()
		eng.Volume()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("state reads blocked behind the track start")
	}

	close(dev.release)
	require.NoError(t, eng.Close())
}

func TestSeekValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "five.wav")
	writeWAV(t, path, 5)

	eng, _ := newTestEngine(t, Options{})
	assert.ErrorIs(t, eng.Seek(1.0), ErrNoTrack)

	_, err := eng.Play(path)
	require.NoError(t, err)
	waitForTrack(t, eng, path)

	assert.ErrorIs(t, eng.Seek(-1), ErrSeekOutOfRange)
	assert.ErrorIs(t, eng.Seek(100), ErrSeekOutOfRange)
}

func TestSetVolumeClamps(t *testing.T) {
	eng, _ := newTestEngine(t, Options{Volume: 1.0})

	require.NoError(t, eng.SetVolume(5.0))
	assert.Equal(t, 2.0, eng.Volume())

	require.NoError(t, eng.SetVolume(-3.0))
	assert.Zero(t, eng.Volume())

	require.NoError(t, eng.SetVolume(0.7))
	assert.InDelta(t, 0.7, eng.Volume(), 1e-9)
}

func TestCrossfadeDisabledFallsBackToPlay(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeWAV(t, first, 5)
	writeWAV(t, second, 5)

	eng, dev := newTestEngine(t, Options{})
	_, err := eng.Play(first)
	require.NoError(t, err)
	waitForTrack(t, eng, first)

	_, err = eng.PlayWithCrossfade(second, 3.0)
	require.NoError(t, err)
	waitForTrack(t, eng, second)

	assert.False(t, eng.State().CrossfadeActive)
	assert.Equal(t, 2, dev.sinkCount())
}

func TestCrossfadePromotesIncomingTrack(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeWAV(t, first, 5)
	writeWAV(t, second, 5)

	eng, _ := newTestEngine(t, Options{
		Volume: 1.0,
		Crossfade: CrossfadeSettings{
			Enabled:  true,
			Duration: 0.3,
			Curve:    EqualPower,
		},
	})

	_, err := eng.Play(first)
	require.NoError(t, err)
	waitForTrack(t, eng, first)

	_, err = eng.PlayWithCrossfade(second, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return eng.CrossfadeTrackInfo().CrossfadeActive
	}, 2*time.Second, 5*time.Millisecond)

	info := eng.CrossfadeTrackInfo()
	if info.CrossfadeActive {
		assert.Equal(t, first, info.CurrentTrack)
		assert.Equal(t, second, info.NextTrack)
	}

	require.Eventually(t, func() bool {
		st := eng.State()
		return st.CurrentTrack == second && !st.CrossfadeActive
	}, 5*time.Second, 10*time.Millisecond)

	info = eng.CrossfadeTrackInfo()
	assert.False(t, info.CrossfadeActive)
	assert.Equal(t, 1.0, info.CrossfadeProgress, "progress holds at 1 after completion")
	assert.Empty(t, info.NextTrack)
}

func TestCrossfadeDurationOverride(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeWAV(t, first, 5)
	writeWAV(t, second, 5)

	// Configured with a long fade; the per-call override shortens it.
	eng, _ := newTestEngine(t, Options{
		Crossfade: CrossfadeSettings{
			Enabled:  true,
			Duration: 20,
			Curve:    Linear,
		},
	})

	_, err := eng.Play(first)
	require.NoError(t, err)
	waitForTrack(t, eng, first)

	_, err = eng.PlayWithCrossfade(second, 0.2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st := eng.State()
		return st.CurrentTrack == second && !st.CrossfadeActive
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSetVolumeDeferredDuringCrossfade(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeWAV(t, first, 5)
	writeWAV(t, second, 5)

	eng, _ := newTestEngine(t, Options{
		Volume: 1.0,
		Crossfade: CrossfadeSettings{
			Enabled:  true,
			Duration: 0.5,
			Curve:    Linear,
		},
	})

	_, err := eng.Play(first)
	require.NoError(t, err)
	waitForTrack(t, eng, first)

	_, err = eng.PlayWithCrossfade(second, 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return eng.CrossfadeTrackInfo().CrossfadeActive
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, eng.SetVolume(0.5))
	assert.InDelta(t, 0.5, eng.Volume(), 1e-9, "requested volume is visible immediately")

	require.Eventually(t, func() bool {
		return !eng.State().CrossfadeActive
	}, 5*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 0.5, eng.Volume(), 1e-9)
}

func TestCrossfadeSettings(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})

	assert.Error(t, eng.SetCrossfadeDuration(0))
	assert.Error(t, eng.SetCrossfadeDuration(60))
	require.NoError(t, eng.SetCrossfadeDuration(4.5))

	assert.Error(t, eng.SetCrossfadeCurve("exponential"))
	require.NoError(t, eng.SetCrossfadeCurve("s-curve"))

	eng.EnableCrossfade(true)
	cfg := eng.CrossfadeSettings()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 4.5, cfg.Duration)
	assert.Equal(t, SCurve, cfg.Curve)
}

func TestClosedEngineRejectsCommands(t *testing.T) {
	eng := New(Options{}, &stubDevice{})
	require.NoError(t, eng.Start())
	require.NoError(t, eng.Close())

	_, err := eng.Play("whatever.wav")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, eng.Pause(), ErrClosed)
	assert.ErrorIs(t, eng.Stop(), ErrClosed)
}
