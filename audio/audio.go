// Package audio plays the alarm sound through the default output device.
package audio

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-fire/alarm"
)

const (
	// DefaultSoundDir is where alarm assets are looked up.
	DefaultSoundDir = "sounds"
	// resampleQuality is the beep resampler quality used when a file's rate differs
	// from the speaker's.
	resampleQuality = 4
)

// DefaultSoundNames lists the asset names tried in order.
var DefaultSoundNames = []string{"alarm.mp3", "alert.mp3"}

// ErrAssetUnavailable is returned when no alarm sound can be found or decoded.
var ErrAssetUnavailable = errors.New("alarm sound unavailable")

// ResolveSound returns the first of names that exists as a regular file under dir.
//
// Arguments:
//   - dir: Directory holding the assets
//   - names: Candidate file names, most preferred first
//
// Returns:
//   - string: Path of the first existing asset
//   - error: ErrAssetUnavailable when none exists
func ResolveSound(dir string, names ...string) (string, error) {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrAssetUnavailable, "none of %v found in %s", names, dir)
}

// Sound is a fully decoded asset held in memory so it can be replayed from the start.
type Sound struct {
	name   string
	buffer *beep.Buffer
}

// Name returns the asset's file name.
func (s *Sound) Name() string {
	return s.name
}

// Duration returns the playback length.
func (s *Sound) Duration() time.Duration {
	return s.buffer.Format().SampleRate.D(s.buffer.Len())
}

// Device wraps the beep speaker. The speaker is initialized on the first Load with that
// file's sample rate; later sounds are resampled to it.
type Device struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	ready      bool
	// pending counts queued plays that have not finished mixing.
	pending atomic.Int64
}

// NewDevice returns an uninitialized device.
func NewDevice() *Device {
	return &Device{}
}

// Load decodes an .mp3 or .wav file into memory.
func (d *Device) Load(path string) (*Sound, error) {
	streamer, format, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	rate, err := d.init(format.SampleRate)
	if err != nil {
		return nil, errors.Wrapf(ErrAssetUnavailable, "init speaker: %v", err)
	}

	var source beep.Streamer = streamer
	if format.SampleRate != rate {
		source = beep.Resample(resampleQuality, format.SampleRate, rate, streamer)
		format.SampleRate = rate
	}

	buffer := beep.NewBuffer(format)
	buffer.Append(source)

	return &Sound{name: filepath.Base(path), buffer: buffer}, nil
}

// decodeFile opens and decodes path. On success the returned streamer owns the file.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(ErrAssetUnavailable, err.Error())
	}

	streamer, format, err := decode(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(ErrAssetUnavailable, "decode %s: %v", path, err)
	}
	return streamer, format, nil
}

func decode(r io.ReadCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(ext) {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	default:
		return nil, beep.Format{}, errors.Errorf("unsupported sound format %q", ext)
	}
}

func (d *Device) init(rate beep.SampleRate) (beep.SampleRate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ready {
		return d.sampleRate, nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return 0, err
	}
	d.sampleRate = rate
	d.ready = true
	return rate, nil
}

// Play queues s on the speaker and returns immediately. Busy reports true until the
// sound has been fully mixed.
func (d *Device) Play(s alarm.Sound) error {
	snd, ok := s.(*Sound)
	if !ok {
		return errors.Errorf("unsupported sound type %T", s)
	}

	d.mu.Lock()
	ready := d.ready
	d.mu.Unlock()
	if !ready {
		return errors.New("speaker not initialized")
	}

	speaker.Play(beep.Seq(
		snd.buffer.Streamer(0, snd.buffer.Len()),
		beep.Callback(d.begin()),
	))
	return nil
}

// begin marks one play as pending and returns the function that finishes it.
// Each play is finished once, so an older play ending never clears a newer one.
func (d *Device) begin() func() {
	d.pending.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { d.pending.Add(-1) })
	}
}

// Busy reports whether any queued sound is still playing.
func (d *Device) Busy() bool {
	return d.pending.Load() > 0
}

// Close releases the output device.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ready {
		speaker.Close()
		d.ready = false
	}
}
