package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/openvigil/vigil/internal/catalog"
	"github.com/openvigil/vigil/internal/media"
)

var errClosed = errors.New("storage: writer is closed")

// Writer records one open segment. Samples must be written in
// non-decreasing timestamp order; each sample's real duration is derived
// from the next sample's timestamp, so a sample is committed to the index
// only once its successor (or the close boundary) is known.
type Writer struct {
	f             *os.File
	db            *catalog.DB
	syncer        SyncerChannel
	cameraID      int64
	sampleEntryID int64
	start         media.Time

	index       []byte
	sampleCount int
	firstPTS    int64
	prevPTS     int64
	prevBytes   int
	prevKey     bool
	havePrev    bool
	closed      bool
}

// Write appends one sample to the segment.
func (w *Writer) Write(data []byte, pts int64, isKey bool) error {
	if w.closed {
		return errClosed
	}
	if w.havePrev && pts < w.prevPTS {
		return fmt.Errorf("storage: out-of-order pts %d after %d", pts, w.prevPTS)
	}

	if _, err := w.f.Write(data); err != nil {
		return fmt.Errorf("storage: write sample: %w", err)
	}

	// The previous sample is committed only once its successor's bytes are
	// in the file; a failed write leaves it pending, and Close commits it
	// exactly once.
	if w.havePrev {
		w.commitPrev(pts - w.prevPTS)
	} else {
		w.firstPTS = pts
	}

	w.prevPTS = pts
	w.prevBytes = len(data)
	w.prevKey = isKey
	w.havePrev = true
	return nil
}

func (w *Writer) commitPrev(duration90k int64) {
	w.index = appendIndexEntry(w.index, duration90k, w.prevBytes, w.prevKey)
	w.sampleCount++
}

// Close finalizes the segment and returns the timestamp at which the next
// segment begins, preserving continuity of the recorded timeline. With a
// boundary timestamp (a rotation), the final sample's duration runs up to
// the boundary; without one (end of stream, shutdown, or an error), the
// final sample is recorded with duration zero and the segment ends at the
// last known timestamp. A segment with no samples is discarded rather than
// registered. Close consumes the writer.
func (w *Writer) Close(boundary *int64) (media.Time, error) {
	if w.closed {
		return 0, errClosed
	}
	w.closed = true

	if !w.havePrev {
		// Nothing was written; drop the empty file rather than registering
		// a zero-sample recording.
		name := w.f.Name()
		w.discard()
		os.Remove(name)
		return w.start, nil
	}

	var lastDuration int64
	if boundary != nil {
		lastDuration = *boundary - w.prevPTS
		if lastDuration < 0 {
			w.discard()
			return 0, fmt.Errorf("storage: close boundary %d precedes last pts %d",
				*boundary, w.prevPTS)
		}
	}
	w.commitPrev(lastDuration)
	elapsed := w.prevPTS + lastDuration - w.firstPTS

	if _, err := w.db.InsertRecording(&catalog.Recording{
		CameraID:      w.cameraID,
		Start:         w.start,
		Duration90k:   elapsed,
		SampleCount:   w.sampleCount,
		SampleEntryID: w.sampleEntryID,
		VideoIndex:    w.index,
	}); err != nil {
		w.discard()
		return 0, err
	}

	w.syncer.submit(w.f)
	w.f = nil
	return w.start + media.Time(elapsed), nil
}

// discard closes the file handle directly when the segment cannot be
// registered; the orphaned file is harmless and reclaimable offline.
func (w *Writer) discard() {
	w.f.Close()
	w.f = nil
}
