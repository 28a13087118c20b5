package storage

import (
	"log/slog"
	"os"
)

type syncJob struct {
	f    *os.File
	done chan struct{}
}

// SyncerChannel is the handle each camera's writers use to hand finished
// segment files to the background syncer. It is cheap to copy.
type SyncerChannel struct {
	jobs chan syncJob
}

func (c SyncerChannel) submit(f *os.File) {
	c.jobs <- syncJob{f: f}
}

// Flush blocks until every segment file submitted before the call has been
// synced to disk.
func (c SyncerChannel) Flush() {
	done := make(chan struct{})
	c.jobs <- syncJob{done: done}
	<-done
}

// Syncer makes finished segment files durable off the recording path: it
// fsyncs each submitted file, closes it, and fsyncs the sample directory so
// the new entry itself is durable.
type Syncer struct {
	log  *slog.Logger
	dir  *Dir
	jobs chan syncJob
}

// NewSyncer creates a Syncer for dir. Call Run in its own goroutine, then
// Close once all writers are finished. If log is nil, slog.Default() is used.
func NewSyncer(dir *Dir, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		log:  log.With("component", "syncer"),
		dir:  dir,
		jobs: make(chan syncJob, 16),
	}
}

// Channel returns the submission handle for writers.
func (s *Syncer) Channel() SyncerChannel {
	return SyncerChannel{jobs: s.jobs}
}

// Run processes sync jobs until Close is called.
func (s *Syncer) Run() {
	for job := range s.jobs {
		if job.done != nil {
			close(job.done)
			continue
		}
		if err := job.f.Sync(); err != nil {
			s.log.Error("fsync segment file", "error", err)
		}
		if err := job.f.Close(); err != nil {
			s.log.Error("close segment file", "error", err)
		}
		if err := s.dir.dirFile.Sync(); err != nil {
			s.log.Error("fsync sample dir", "error", err)
		}
	}
}

// Close stops the syncer once queued jobs drain. No submissions may follow.
func (s *Syncer) Close() {
	close(s.jobs)
}
