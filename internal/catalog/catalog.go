// Package catalog is the persistent store behind the recorder: it registers
// video sample entries (codec parameters) and the metadata row for every
// finished segment. It is shared by all camera goroutines and serializes
// access internally; callers treat it as an opaque synchronized service.
package catalog

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/openvigil/vigil/internal/media"
)

const schema = `
CREATE TABLE IF NOT EXISTS video_sample_entry (
	id     INTEGER PRIMARY KEY,
	width  INTEGER NOT NULL,
	height INTEGER NOT NULL,
	data   BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS recording (
	id                    INTEGER PRIMARY KEY,
	camera_id             INTEGER NOT NULL,
	start_time_90k        INTEGER NOT NULL,
	duration_90k          INTEGER NOT NULL,
	sample_count          INTEGER NOT NULL,
	video_sample_entry_id INTEGER NOT NULL REFERENCES video_sample_entry (id),
	video_index           BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS recording_camera_start
	ON recording (camera_id, start_time_90k);
`

// Recording is the catalog row describing one finished segment.
type Recording struct {
	ID            int64
	CameraID      int64
	Start         media.Time
	Duration90k   int64
	SampleCount   int
	SampleEntryID int64
	VideoIndex    []byte
}

// DB is a handle to the catalog database.
type DB struct {
	mu  sync.Mutex
	sql *sql.DB
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string) (*DB, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// The catalog serializes statements itself; one connection avoids
	// SQLITE_BUSY from concurrent writers.
	sdb.SetMaxOpenConns(1)
	if _, err := sdb.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("catalog: set journal mode: %w", err)
	}
	if _, err := sdb.Exec(schema); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{sql: sdb}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sql.Close()
}

// InsertVideoSampleEntry registers codec parameters and returns a stable id.
// Registration is idempotent by value: repeating an identical registration
// returns the existing id. A dimension mismatch against an existing entry
// with the same data is rejected.
func (d *DB) InsertVideoSampleEntry(width, height int, data []byte) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		id     int64
		w, h   int
		exData []byte
	)
	err := d.sql.QueryRow(
		"SELECT id, width, height, data FROM video_sample_entry WHERE data = ?", data).
		Scan(&id, &w, &h, &exData)
	switch {
	case err == nil:
		if w != width || h != height || !bytes.Equal(exData, data) {
			return 0, fmt.Errorf("catalog: sample entry conflict for %dx%d", width, height)
		}
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return 0, fmt.Errorf("catalog: look up sample entry: %w", err)
	}

	res, err := d.sql.Exec(
		"INSERT INTO video_sample_entry (width, height, data) VALUES (?, ?, ?)",
		width, height, data)
	if err != nil {
		return 0, fmt.Errorf("catalog: insert sample entry: %w", err)
	}
	return res.LastInsertId()
}

// InsertRecording registers a finished segment and returns its id.
func (d *DB) InsertRecording(r *Recording) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.sql.Exec(`
		INSERT INTO recording
			(camera_id, start_time_90k, duration_90k, sample_count,
			 video_sample_entry_id, video_index)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.CameraID, int64(r.Start), r.Duration90k, r.SampleCount,
		r.SampleEntryID, r.VideoIndex)
	if err != nil {
		return 0, fmt.Errorf("catalog: insert recording: %w", err)
	}
	return res.LastInsertId()
}

// RecordingsByCamera returns a camera's recordings ordered by start time.
func (d *DB) RecordingsByCamera(cameraID int64) ([]Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.sql.Query(`
		SELECT id, camera_id, start_time_90k, duration_90k, sample_count,
		       video_sample_entry_id, video_index
		FROM recording WHERE camera_id = ? ORDER BY start_time_90k`,
		cameraID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list recordings: %w", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		var r Recording
		var start int64
		if err := rows.Scan(&r.ID, &r.CameraID, &start, &r.Duration90k,
			&r.SampleCount, &r.SampleEntryID, &r.VideoIndex); err != nil {
			return nil, fmt.Errorf("catalog: scan recording: %w", err)
		}
		r.Start = media.Time(start)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
