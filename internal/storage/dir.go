// Package storage persists segment sample files. A Dir owns one on-disk
// sample directory; Writers append samples to a segment file and register
// the finished segment with the catalog; a background Syncer makes segment
// bytes durable without blocking the recording loop.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openvigil/vigil/internal/catalog"
	"github.com/openvigil/vigil/internal/media"
)

// Dir is a sample file directory shared by all cameras. Creation of writers
// is safe for concurrent use; each returned Writer is owned by one camera
// goroutine.
type Dir struct {
	log     *slog.Logger
	path    string
	dirFile *os.File
	db      *catalog.DB
}

// NewDir opens (creating if necessary) a sample file directory. The
// directory file handle is kept open so the syncer can fsync directory
// metadata after each segment.
func NewDir(path string, db *catalog.DB, log *slog.Logger) (*Dir, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create sample dir: %w", err)
	}
	dirFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sample dir: %w", err)
	}
	return &Dir{
		log:     log.With("component", "storage"),
		path:    path,
		dirFile: dirFile,
		db:      db,
	}, nil
}

// Close releases the directory handle. Writers and the syncer must be
// finished first.
func (d *Dir) Close() error {
	return d.dirFile.Close()
}

// NewWriter opens a segment for recording. start is where the segment
// begins on the camera's recorded timeline — the prior segment's continuity
// timestamp when one exists. localStart is the wall-clock open time and
// names the sample file. The writer hands its finished file to the syncer
// over ch when closed.
func (d *Dir) NewWriter(ch SyncerChannel, start, localStart media.Time,
	cameraID, sampleEntryID int64) (*Writer, error) {

	name := fmt.Sprintf("%d-%016x.vse", cameraID, uint64(localStart))
	f, err := os.OpenFile(filepath.Join(d.path, name),
		os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: create segment file: %w", err)
	}
	d.log.Debug("segment file opened", "file", name, "camera_id", cameraID)
	return &Writer{
		f:             f,
		db:            d.db,
		syncer:        ch,
		cameraID:      cameraID,
		sampleEntryID: sampleEntryID,
		start:         start,
	}, nil
}
