// Package events journals fire episodes: maximal runs of frames with a positive verdict.
package events

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Episode is one fire event from the first positive frame to the first negative one.
type Episode struct {
	ID          uuid.UUID
	StartedAt   time.Time
	EndedAt     time.Time
	Frames      int
	PeakArea    float64
	PeakRegions int
	// Snapshot is the path of the thumbnail taken at the first frame, if any.
	Snapshot string
}

// Duration returns how long the episode lasted; zero while it is still open.
func (e Episode) Duration() time.Duration {
	if e.EndedAt.IsZero() {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}

// Store persists episodes in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS episodes (
			id                TEXT PRIMARY KEY,
			started_at        BIGINT NOT NULL,
			ended_at          BIGINT NOT NULL,
			frames            INTEGER NOT NULL,
			peak_area         DOUBLE NOT NULL,
			peak_regions      INTEGER NOT NULL,
			snapshot          TEXT
		);
		CREATE INDEX IF NOT EXISTS episodes_started_at ON episodes (started_at);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create journal schema")
	}

	return &Store{db: db}, nil
}

// Save inserts or replaces an episode.
func (s *Store) Save(ctx context.Context, e Episode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO episodes (id, started_at, ended_at, frames, peak_area, peak_regions, snapshot)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.StartedAt.UnixNano(), e.EndedAt.UnixNano(), e.Frames, e.PeakArea, e.PeakRegions, e.Snapshot)
	return errors.Wrapf(err, "save episode %s", e.ID)
}

// Recent returns up to limit episodes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, frames, peak_area, peak_regions, COALESCE(snapshot, '')
		 FROM episodes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query episodes")
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var (
			e              Episode
			id             string
			started, ended int64
		)
		if err := rows.Scan(&id, &started, &ended, &e.Frames, &e.PeakArea, &e.PeakRegions, &e.Snapshot); err != nil {
			return nil, errors.Wrap(err, "scan episode")
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "episode id %q", id)
		}
		e.StartedAt = time.Unix(0, started)
		e.EndedAt = time.Unix(0, ended)
		episodes = append(episodes, e)
	}
	return episodes, errors.Wrap(rows.Err(), "iterate episodes")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
