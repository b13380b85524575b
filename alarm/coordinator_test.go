package alarm

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSound struct{}

func (fakeSound) Name() string { return "fake.wav" }

// fakeDevice simulates an asynchronous player whose sound lasts for duration.
type fakeDevice struct {
	mu        sync.Mutex
	duration  time.Duration
	plays     int
	busyUntil time.Time
	err       error
	// block, when set, makes Play hang until it is closed.
	block chan struct{}
	// entered, when set, receives a value each time Play is called.
	entered chan struct{}
}

func (d *fakeDevice) Play(Sound) error {
	if d.entered != nil {
		select {
		case d.entered <- struct{}{}:
		default:
		}
	}
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.plays++
	d.busyUntil = time.Now().Add(d.duration)
	return nil
}

func (d *fakeDevice) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Now().Before(d.busyUntil)
}

func (d *fakeDevice) Plays() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plays
}

func (d *fakeDevice) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func newTestCoordinator(t *testing.T, dev Device, sound Sound, cfg Config) *Coordinator {
	t.Helper()
	c, err := New(dev, sound, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func fastConfig() Config {
	return Config{PollInterval: 5 * time.Millisecond, StopTimeout: time.Second}
}

func TestStartIsIdempotent(t *testing.T) {
	dev := &fakeDevice{duration: time.Second}
	c := newTestCoordinator(t, dev, fakeSound{}, fastConfig())

	c.Start()
	c.Start()
	c.Update(true)

	assert.True(t, c.Playing())
	assert.Equal(t, 1, c.Active())
	assert.Equal(t, uint64(1), c.Generation())
	require.Eventually(t, func() bool { return dev.Plays() == 1 }, time.Second, time.Millisecond)

	// The sound is still busy, so a repeated start must not restart it.
	c.Start()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dev.Plays())

	require.NoError(t, c.Stop())
	assert.False(t, c.Playing())
	assert.Equal(t, 0, c.Active())
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	c := newTestCoordinator(t, &fakeDevice{}, fakeSound{}, DefaultConfig())

	start := time.Now()
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())
	c.Update(false)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.False(t, c.Playing())
	assert.Equal(t, uint64(0), c.Generation())
}

func TestStopReturnsWithinTimeout(t *testing.T) {
	dev := &fakeDevice{duration: time.Minute}
	c := newTestCoordinator(t, dev, fakeSound{}, DefaultConfig())

	c.Update(true)
	require.Eventually(t, func() bool { return dev.Plays() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	require.NoError(t, c.Stop())
	assert.Less(t, time.Since(start), DefaultStopTimeout)
	assert.Equal(t, 0, c.Active())
}

func TestSoundLoopsUntilStopped(t *testing.T) {
	dev := &fakeDevice{duration: 10 * time.Millisecond}
	c := newTestCoordinator(t, dev, fakeSound{}, fastConfig())

	c.Start()
	require.Eventually(t, func() bool { return dev.Plays() >= 3 }, 2*time.Second, time.Millisecond)
	require.NoError(t, c.Stop())

	plays := dev.Plays()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, plays, dev.Plays())
}

func TestUnavailableSoundIsSilentNoop(t *testing.T) {
	dev := &fakeDevice{duration: time.Second}
	c := newTestCoordinator(t, dev, nil, fastConfig())

	c.Update(true)
	c.Start()

	assert.False(t, c.Playing())
	assert.Equal(t, 0, c.Active())
	assert.Equal(t, 0, dev.Plays())
	assert.NoError(t, c.Stop())
	c.Update(false)
}

func TestStopTimeoutLeavesStaleWorkerHarmless(t *testing.T) {
	block := make(chan struct{})
	dev := &fakeDevice{duration: time.Minute, block: block, entered: make(chan struct{}, 4)}
	c := newTestCoordinator(t, dev, fakeSound{}, Config{
		PollInterval: 5 * time.Millisecond,
		StopTimeout:  50 * time.Millisecond,
	})

	c.Start()
	// Wait until the worker is stuck inside Play.
	select {
	case <-dev.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never called Play")
	}
	err := c.Stop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStopTimeout))
	assert.False(t, c.Playing())
	assert.Equal(t, 1, c.Active())

	// A fresh start is allowed while the stale worker is still stuck.
	c.Start()
	assert.True(t, c.Playing())
	assert.Equal(t, uint64(2), c.Generation())
	assert.Equal(t, 2, c.Active())

	close(block)
	require.Eventually(t, func() bool { return c.Active() == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.Playing())
	assert.Equal(t, uint64(2), c.Generation())

	require.NoError(t, c.Stop())
	assert.Equal(t, 0, c.Active())
}

func TestPlaybackFailureReturnsToIdle(t *testing.T) {
	dev := &fakeDevice{duration: time.Second, err: errors.New("device unplugged")}
	c := newTestCoordinator(t, dev, fakeSound{}, fastConfig())

	c.Start()
	require.Eventually(t, func() bool { return !c.Playing() && c.Active() == 0 }, time.Second, time.Millisecond)

	dev.setErr(nil)
	c.Start()
	assert.True(t, c.Playing())
	assert.Equal(t, uint64(2), c.Generation())
	require.Eventually(t, func() bool { return dev.Plays() == 1 }, time.Second, time.Millisecond)
}

// syncBuffer is a bytes.Buffer safe for the worker goroutine to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRepeatedPlaybackFailuresLoggedOnce(t *testing.T) {
	var out syncBuffer
	dev := &fakeDevice{duration: time.Second, err: errors.New("device unplugged")}
	c, err := New(dev, fakeSound{}, fastConfig(), zerolog.New(&out).Level(zerolog.InfoLevel))
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Update(true)
		require.Eventually(t, func() bool { return !c.Playing() && c.Active() == 0 }, time.Second, time.Millisecond)
	}
	assert.Equal(t, uint64(5), c.Generation())
	assert.Equal(t, 1, strings.Count(out.String(), "alarm playback failed"))
	assert.Contains(t, out.String(), `"component":"alarm"`)

	dev.setErr(nil)
	c.Update(true)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "alarm playback recovered") }, time.Second, time.Millisecond)

	dev.setErr(errors.New("device unplugged again"))
	require.NoError(t, c.Stop())
	c.Update(true)
	require.Eventually(t, func() bool { return strings.Count(out.String(), "alarm playback failed") == 2 }, time.Second, time.Millisecond)
}

func TestUpdateFollowsVerdicts(t *testing.T) {
	dev := &fakeDevice{duration: time.Second}
	c := newTestCoordinator(t, dev, fakeSound{}, fastConfig())

	verdicts := []bool{false, true, true, false, false, true, false}
	playing := []bool{false, true, true, false, false, true, false}
	generations := []uint64{0, 1, 1, 1, 1, 2, 2}

	for i, v := range verdicts {
		c.Update(v)
		assert.Equal(t, playing[i], c.Playing(), "frame %d", i)
		assert.Equal(t, generations[i], c.Generation(), "frame %d", i)
		assert.LessOrEqual(t, c.Active(), 1, "frame %d", i)
	}
}

func TestCloseDisablesStart(t *testing.T) {
	dev := &fakeDevice{duration: time.Second}
	c := newTestCoordinator(t, dev, fakeSound{}, fastConfig())

	c.Start()
	require.NoError(t, c.Close())
	assert.False(t, c.Playing())

	c.Start()
	assert.False(t, c.Playing())
	assert.Equal(t, 0, c.Active())
}

func TestConcurrentUpdatesKeepSingleWorker(t *testing.T) {
	dev := &fakeDevice{duration: time.Second}
	c := newTestCoordinator(t, dev, fakeSound{}, fastConfig())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(true)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Active())
	assert.Equal(t, uint64(1), c.Generation())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{PollInterval: 0, StopTimeout: time.Second}.Validate())
	assert.Error(t, Config{PollInterval: time.Millisecond, StopTimeout: -1}.Validate())

	_, err := New(&fakeDevice{}, fakeSound{}, Config{}, zerolog.Nop())
	assert.Error(t, err)
}
