// Package alarm drives a looping audio cue from the per-frame fire verdict.
//
// A Coordinator is Idle or Playing. While Playing it owns exactly one background worker
// that plays the sound, polls the device until the sound finishes, and repeats until its
// stop signal is set. Start and Stop are idempotent and mutually exclusive; Stop waits for
// the worker for a bounded time and never hangs the frame loop.
package alarm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nvr-ai/go-fire/logging"
)

// ErrStopTimeout is returned by Stop when the playback worker did not exit in time.
// The coordinator is Idle regardless.
var ErrStopTimeout = errors.New("alarm worker did not stop in time")

// Sound is a loaded alarm asset.
type Sound interface {
	Name() string
}

// Device is the audio output the coordinator depends on.
type Device interface {
	// Play starts playback of s and returns without waiting for it to finish.
	Play(s Sound) error
	// Busy reports whether a sound is still playing.
	Busy() bool
}

// worker is one spawned playback loop.
type worker struct {
	generation uint64
	stop       atomic.Bool
	done       chan struct{}
}

// Coordinator owns the alarm state. Construct one per process and share it by pointer.
type Coordinator struct {
	config Config
	device Device
	sound  Sound
	logger zerolog.Logger

	mu         sync.Mutex
	playing    bool
	closed     bool
	generation uint64
	current    *worker

	active atomic.Int64
	// failures counts consecutive failed plays; only the first is logged as an error.
	failures atomic.Int64
}

// New creates a coordinator. A nil sound or device means the alarm asset is unavailable:
// the coordinator then never plays, which is logged here once.
//
// Arguments:
//   - device: Audio output
//   - sound: Loaded asset, or nil when it could not be loaded
//   - config: Poll interval and stop timeout
//   - logger: Destination for alarm logs
//
// Returns:
//   - *Coordinator: An Idle coordinator
//   - error: When config is invalid
func New(device Device, sound Sound, config Config, logger zerolog.Logger) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		config: config,
		device: device,
		sound:  sound,
		logger: logging.Component(logger, "alarm"),
	}
	if !c.available() {
		c.logger.Warn().Msg("alarm sound unavailable, audio alerts disabled")
	} else {
		c.logger.Info().Str("sound", sound.Name()).Msg("alarm ready")
	}
	return c, nil
}

func (c *Coordinator) available() bool {
	return c.device != nil && c.sound != nil
}

// Update applies one frame's verdict: true starts the alarm, false stops it.
// Errors are logged, never returned, so the frame loop is unaffected.
func (c *Coordinator) Update(detected bool) {
	if detected {
		c.Start()
		return
	}
	if err := c.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("alarm stop incomplete")
	}
}

// Start moves Idle to Playing and spawns the playback worker. It is a no-op while
// Playing, after Close, and when the sound is unavailable.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing || c.closed || !c.available() {
		return
	}

	c.generation++
	w := &worker{
		generation: c.generation,
		done:       make(chan struct{}),
	}
	c.current = w
	c.playing = true
	c.active.Add(1)

	c.logger.Info().Uint64("generation", w.generation).Msg("alarm started")
	go c.loop(w)
}

// Stop moves Playing to Idle, signals the worker and waits up to StopTimeout for it to
// exit. The state is Idle on return even when ErrStopTimeout is returned. Stopping an
// Idle coordinator is a no-op.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopLocked()
}

func (c *Coordinator) stopLocked() error {
	if !c.playing {
		return nil
	}

	w := c.current
	c.playing = false
	c.current = nil
	w.stop.Store(true)

	timer := time.NewTimer(c.config.StopTimeout)
	defer timer.Stop()

	select {
	case <-w.done:
		c.logger.Info().Uint64("generation", w.generation).Msg("alarm stopped")
		return nil
	case <-timer.C:
		return errors.Wrapf(ErrStopTimeout, "generation %d after %v", w.generation, c.config.StopTimeout)
	}
}

// Close stops playback and disables further starts.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return c.stopLocked()
}

// Playing reports whether the coordinator is in the Playing state.
func (c *Coordinator) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Generation returns the generation of the most recently spawned worker.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Active returns the number of playback workers that have not exited yet. It can exceed
// one only after a Stop timed out.
func (c *Coordinator) Active() int {
	return int(c.active.Load())
}

// loop plays the sound until the worker's stop signal is set. The only suspension point
// is the poll sleep.
func (c *Coordinator) loop(w *worker) {
	var failed bool
	defer func() {
		c.active.Add(-1)
		close(w.done)
		if failed {
			c.release(w)
		}
	}()

	for !w.stop.Load() {
		if err := c.device.Play(c.sound); err != nil {
			if c.failures.Add(1) == 1 {
				c.logger.Error().Err(err).Uint64("generation", w.generation).Msg("alarm playback failed")
			} else {
				c.logger.Debug().Err(err).Uint64("generation", w.generation).Msg("alarm playback still failing")
			}
			failed = true
			return
		}
		if n := c.failures.Swap(0); n > 0 {
			c.logger.Info().Int64("failed_plays", n).Msg("alarm playback recovered")
		}
		// At least one poll per cycle, even if the device never reports busy.
		for {
			time.Sleep(c.config.PollInterval)
			if w.stop.Load() || !c.device.Busy() {
				break
			}
		}
	}
}

// release returns the coordinator to Idle after a worker gave up on its own. A worker
// from an older generation leaves the state alone.
func (c *Coordinator) release(w *worker) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != w {
		return
	}
	c.current = nil
	c.playing = false
}
