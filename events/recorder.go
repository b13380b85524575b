package events

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nvr-ai/go-fire/logging"
)

// saveTimeout bounds a journal write from the frame loop.
const saveTimeout = 2 * time.Second

// Saver persists closed episodes. *Store implements it.
type Saver interface {
	Save(ctx context.Context, e Episode) error
}

// FrameFunc lazily produces the image to snapshot. It is only called on the first frame
// of an episode.
type FrameFunc func() (image.Image, error)

// Recorder turns the per-frame verdict stream into episodes. Failures are logged and
// never reach the caller.
type Recorder struct {
	saver     Saver
	snapshots *SnapshotWriter
	logger    zerolog.Logger

	mu      sync.Mutex
	current *Episode
}

// NewRecorder creates a recorder. saver and snapshots may be nil to disable persistence
// or thumbnails.
func NewRecorder(saver Saver, snapshots *SnapshotWriter, logger zerolog.Logger) *Recorder {
	return &Recorder{
		saver:     saver,
		snapshots: snapshots,
		logger:    logging.Component(logger, "events"),
	}
}

// Observe feeds one frame's verdict.
//
// Arguments:
//   - ts: Frame timestamp
//   - detected: The frame verdict
//   - totalArea: Sum of accepted fire region areas
//   - regions: Number of accepted fire regions
//   - frame: Source of the snapshot image, may be nil
func (r *Recorder) Observe(ts time.Time, detected bool, totalArea float64, regions int, frame FrameFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !detected {
		r.closeLocked(ts)
		return
	}

	if r.current == nil {
		r.current = &Episode{ID: uuid.New(), StartedAt: ts}
		r.current.Snapshot = r.snapshot(r.current.ID, frame)
		r.logger.Warn().
			Str("episode", r.current.ID.String()).
			Float64("area", totalArea).
			Int("regions", regions).
			Msg("fire episode started")
	}

	e := r.current
	e.Frames++
	if totalArea > e.PeakArea {
		e.PeakArea = totalArea
	}
	if regions > e.PeakRegions {
		e.PeakRegions = regions
	}
}

// Flush closes an open episode, typically at shutdown.
func (r *Recorder) Flush(ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked(ts)
}

// Current returns a copy of the open episode, if any.
func (r *Recorder) Current() (Episode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return Episode{}, false
	}
	return *r.current, true
}

func (r *Recorder) closeLocked(ts time.Time) {
	if r.current == nil {
		return
	}
	e := *r.current
	r.current = nil
	e.EndedAt = ts

	r.logger.Info().
		Str("episode", e.ID.String()).
		Dur("duration", e.Duration()).
		Int("frames", e.Frames).
		Float64("peak_area", e.PeakArea).
		Msg("fire episode ended")

	if r.saver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.saver.Save(ctx, e); err != nil {
		r.logger.Error().Err(err).Str("episode", e.ID.String()).Msg("journal write failed")
	}
}

func (r *Recorder) snapshot(id uuid.UUID, frame FrameFunc) string {
	if r.snapshots == nil || frame == nil {
		return ""
	}
	img, err := frame()
	if err != nil {
		r.logger.Error().Err(err).Msg("snapshot conversion failed")
		return ""
	}
	path, err := r.snapshots.Write(id.String(), img)
	if err != nil {
		r.logger.Error().Err(err).Msg("snapshot write failed")
		return ""
	}
	return path
}
