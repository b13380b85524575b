package alarm

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultPollInterval is how often the playback worker checks the device and stop signal.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultStopTimeout bounds how long Stop waits for the playback worker to exit.
	DefaultStopTimeout = time.Second
)

// Config holds the alarm timing parameters.
type Config struct {
	// PollInterval is the sleep between busy/stop checks in the playback worker.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	// StopTimeout is the longest Stop blocks the frame loop.
	StopTimeout time.Duration `json:"stop_timeout" yaml:"stop_timeout"`
}

// DefaultConfig returns the reference timings.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		StopTimeout:  DefaultStopTimeout,
	}
}

// Validate checks that both durations are positive.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.Errorf("alarm poll interval must be positive, got %v", c.PollInterval)
	}
	if c.StopTimeout <= 0 {
		return errors.Errorf("alarm stop timeout must be positive, got %v", c.StopTimeout)
	}
	return nil
}
