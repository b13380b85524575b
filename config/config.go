// Package config composes every tunable of the fire watcher. Values come from the
// defaults, then an optional YAML file, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-fire/alarm"
	"github.com/nvr-ai/go-fire/audio"
	"github.com/nvr-ai/go-fire/events"
	"github.com/nvr-ai/go-fire/fire"
	"github.com/nvr-ai/go-fire/logging"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// maxFileSize caps config files.
const maxFileSize = 1 << 20

// Input selects the frame source. At most one of Video, Image and Directory may be set;
// when none is, the camera at Device is used.
type Input struct {
	Device    int    `yaml:"device"`
	Video     string `yaml:"video"`
	Image     string `yaml:"image"`
	Directory string `yaml:"directory"`
}

// Sound locates the alarm asset.
type Sound struct {
	Dir   string   `yaml:"dir"`
	Names []string `yaml:"names"`
}

// Journal configures episode persistence. Empty paths disable the feature.
type Journal struct {
	Path          string `yaml:"path"`
	SnapshotDir   string `yaml:"snapshot_dir"`
	SnapshotWidth uint   `yaml:"snapshot_width"`
	// SnapshotFormat is "jpeg" (default) or "webp".
	SnapshotFormat string `yaml:"snapshot_format"`
}

// Profiler configures runtime reports. A zero interval disables them.
type Profiler struct {
	ReportInterval time.Duration `yaml:"report_interval"`
}

// Config is the root configuration.
type Config struct {
	Detection  fire.Config     `yaml:"detection"`
	Alarm      alarm.Config    `yaml:"alarm"`
	Input      Input           `yaml:"input"`
	Sound      Sound           `yaml:"sound"`
	Journal    Journal         `yaml:"journal"`
	Profiler   Profiler        `yaml:"profiler"`
	Log        logging.Options `yaml:"log"`
	ShowWindow bool            `yaml:"show_window"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Detection: fire.DefaultConfig(),
		Alarm:     alarm.DefaultConfig(),
		Sound: Sound{
			Dir:   audio.DefaultSoundDir,
			Names: append([]string(nil), audio.DefaultSoundNames...),
		},
		Journal: Journal{
			SnapshotWidth:  events.DefaultSnapshotWidth,
			SnapshotFormat: string(events.SnapshotJPEG),
		},
		Profiler: Profiler{
			ReportInterval: 10 * time.Second,
		},
		Log: logging.Options{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file keep their
// default values; durations are written as "100ms", "1s".
//
// Arguments:
//   - path: YAML file with a .yaml or .yml extension
//
// Returns:
//   - Config: Merged and validated configuration
//   - error: When the file cannot be read or the result is invalid
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".yaml", ".yml":
	default:
		return cfg, errors.Wrapf(ErrInvalid, "config file must be YAML, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "stat config file")
	}
	if info.Size() > maxFileSize {
		return cfg, errors.Wrapf(ErrInvalid, "config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(ErrInvalid, "parse %s: %v", cleanPath, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if err := c.Alarm.Validate(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}

	sources := 0
	for _, s := range []string{c.Input.Video, c.Input.Image, c.Input.Directory} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return errors.Wrap(ErrInvalid, "only one of video, image and directory may be set")
	}
	if c.Input.Device < 0 {
		return errors.Wrapf(ErrInvalid, "device id must not be negative, got %d", c.Input.Device)
	}
	if len(c.Sound.Names) == 0 {
		return errors.Wrap(ErrInvalid, "at least one sound name is required")
	}
	if _, err := events.ParseSnapshotFormat(c.Journal.SnapshotFormat); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	if c.Profiler.ReportInterval < 0 {
		return errors.Wrap(ErrInvalid, "profiler report interval must not be negative")
	}
	return nil
}
