// Package recorder owns the per-camera recording control loop: it pulls
// compressed packets from a stream source, decides when segments start and
// end, routes samples to segment writers, and retries failed connections
// until shutdown. Segment rotation follows wall-clock time but never splits
// a segment anywhere but a key frame, so every segment is independently
// decodable from its first sample.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/openvigil/vigil/internal/catalog"
	"github.com/openvigil/vigil/internal/clock"
	"github.com/openvigil/vigil/internal/config"
	"github.com/openvigil/vigil/internal/h264"
	"github.com/openvigil/vigil/internal/media"
	"github.com/openvigil/vigil/internal/source"
	"github.com/openvigil/vigil/internal/storage"
)

// retryBackoff is the fixed pause between failed connection cycles, keeping
// the loop from spinning against an unreachable camera.
const retryBackoff = time.Second

// Environment is the shared read-only bundle referenced by every Streamer:
// the clock, the stream opener, the catalog, the sample directory, and the
// process shutdown flag. It is constructed once per process.
type Environment struct {
	Clock    clock.Clock
	Opener   source.Opener
	DB       *catalog.DB
	Dir      *storage.Dir
	Shutdown *atomic.Bool
}

// StatsRecorder receives telemetry callbacks from the recording loop.
type StatsRecorder interface {
	RecordCycleError()
	RecordSegmentOpened()
	RecordSegmentClosed()
	RecordRotation()
	RecordWrite(bytes int)
}

// Streamer keeps one camera continuously recorded. It owns no goroutines
// itself; the caller runs Run on a dedicated goroutine per camera.
type Streamer struct {
	log      *slog.Logger
	shutdown *atomic.Bool

	rotateOffsetSec   int64
	rotateIntervalSec int64

	db       *catalog.DB
	dir      *storage.Dir
	syncerCh storage.SyncerChannel
	clk      clock.Clock
	opener   source.Opener

	cameraID    int64
	shortName   string
	url         string
	redactedURL string

	stats StatsRecorder

	// transformed is the scratch buffer reused by the sample transform to
	// avoid a per-packet allocation. It carries no cross-call state.
	transformed []byte
}

// NewStreamer creates a Streamer for cam using the shared environment and
// the camera's writer-coordination channel.
func NewStreamer(env *Environment, syncerCh storage.SyncerChannel, cam *config.Camera) *Streamer {
	url := source.StreamURL(cam.Address, cam.StreamID, cam.Token)
	return &Streamer{
		log:               slog.With("camera", cam.ShortName),
		shutdown:          env.Shutdown,
		rotateOffsetSec:   cam.RotateOffsetSec,
		rotateIntervalSec: cam.RotateIntervalSec,
		db:                env.DB,
		dir:               env.Dir,
		syncerCh:          syncerCh,
		clk:               env.Clock,
		opener:            env.Opener,
		cameraID:          cam.ID,
		shortName:         cam.ShortName,
		url:               url,
		redactedURL:       source.RedactURL(url),
	}
}

// ShortName returns the camera's display name.
func (s *Streamer) ShortName() string { return s.shortName }

// SetStats attaches a StatsRecorder receiving recording-loop telemetry.
func (s *Streamer) SetStats(stats StatsRecorder) { s.stats = stats }

// Run records the camera until the shutdown flag is set. Failures never
// propagate: every error ends the current connection cycle, is logged, and
// is followed by a fixed backoff before reconnecting. A camera that is
// temporarily unreachable must not stop the recorder process.
func (s *Streamer) Run() {
	for !s.shutdown.Load() {
		if err := s.runOnce(); err != nil {
			if s.stats != nil {
				s.stats.RecordCycleError()
			}
			s.log.Warn("sleeping after error", "error", err, "backoff", retryBackoff)
			s.clk.Sleep(retryBackoff)
		}
	}
	s.log.Info("shutting down")
}

// cycle is the state scoped to one connection attempt. It is discarded,
// with any open writer closed, whenever the connection ends.
type cycle struct {
	stream  source.Stream
	extra   *media.ExtraData
	entryID int64

	seenKey bool
	w       *storage.Writer
	// rotate, when set, is the wall-clock second at or after which the
	// segment closes on the next key frame.
	rotate *int64
	// nextStart carries the prior segment's continuity timestamp so
	// back-to-back segments meet with no gap or overlap.
	nextStart *media.Time
}

// runOnce performs one full connection-and-record cycle: connect, register
// codec parameters, then consume packets until shutdown or an error. The
// open writer, if any, is always closed before the cycle ends.
func (s *Streamer) runOnce() error {
	s.log.Info("opening input", "url", s.redactedURL)

	strm, err := s.opener.Open(source.Live(s.url))
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer strm.Close()

	extra, err := strm.ExtraData()
	if err != nil {
		return fmt.Errorf("get extra data: %w", err)
	}
	entryID, err := s.db.InsertVideoSampleEntry(extra.Width, extra.Height, extra.SampleEntry)
	if err != nil {
		return fmt.Errorf("register sample entry: %w", err)
	}
	s.log.Debug("registered sample entry",
		"id", entryID, "width", extra.Width, "height", extra.Height)

	c := &cycle{stream: strm, extra: extra, entryID: entryID}
	runErr := s.record(c)

	if c.w != nil {
		// End of cycle: close at end of available data, no forced boundary.
		if _, cerr := c.w.Close(nil); cerr != nil {
			if runErr == nil {
				runErr = fmt.Errorf("close segment: %w", cerr)
			} else {
				s.log.Warn("closing segment after error", "error", cerr)
			}
		}
		c.w = nil
		if s.stats != nil {
			s.stats.RecordSegmentClosed()
		}
	}
	return runErr
}

// record drives the packet loop for one connection. It returns nil only
// when shutdown is signaled; any other exit is a cycle error.
func (s *Streamer) record(c *cycle) error {
	for !s.shutdown.Load() {
		pkt, err := c.stream.Next()
		if err != nil {
			return fmt.Errorf("next packet: %w", err)
		}
		if pkt.PTS == nil {
			return errors.New("packet has no pts")
		}
		pts := *pkt.PTS

		// Discard everything before the first key frame; a segment must
		// not begin with undecodable leading frames.
		if !c.seenKey {
			if !pkt.IsKey {
				continue
			}
			c.seenKey = true
			s.log.Debug("have first key frame")
		}

		frameRealtime := s.clk.Now()

		if c.rotate != nil && frameRealtime.Unix() >= *c.rotate && pkt.IsKey {
			w := c.w
			c.w = nil
			next, err := w.Close(&pts)
			// The segment is consumed either way; the closed count must
			// balance the opened count even when Close fails.
			if s.stats != nil {
				s.stats.RecordSegmentClosed()
			}
			if err != nil {
				return fmt.Errorf("close segment on rotation: %w", err)
			}
			s.log.Debug("rotated segment", "pts", pts)
			c.nextStart = &next
			c.rotate = nil
			if s.stats != nil {
				s.stats.RecordRotation()
			}
		}

		if c.w == nil {
			boundary := nextRotation(frameRealtime.Unix(), s.rotateIntervalSec, s.rotateOffsetSec)
			c.rotate = &boundary

			localStart := media.TimeFromReal(frameRealtime)
			start := localStart
			if c.nextStart != nil {
				start = *c.nextStart
			}
			w, err := s.dir.NewWriter(s.syncerCh, start, localStart, s.cameraID, c.entryID)
			if err != nil {
				return fmt.Errorf("create segment writer: %w", err)
			}
			c.w = w
			if s.stats != nil {
				s.stats.RecordSegmentOpened()
			}
		}

		if len(pkt.Data) == 0 {
			return errors.New("packet has no data")
		}
		data := pkt.Data
		if c.extra.NeedTransform {
			if err := h264.TransformSampleData(pkt.Data, &s.transformed); err != nil {
				return fmt.Errorf("transform sample: %w", err)
			}
			data = s.transformed
		}
		if err := c.w.Write(data, pts, pkt.IsKey); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
		if s.stats != nil {
			s.stats.RecordWrite(len(data))
		}
	}
	return nil
}

// nextRotation computes the schedule-aligned boundary for a segment opened
// at nowSec: the next instant strictly in the future that is congruent to
// offsetSec modulo intervalSec. Rotation fires on the first key frame whose
// arrival time is at or after the boundary. If the wall clock later jumps
// backward, the stored boundary stays valid and rotation is simply deferred
// until real time passes it again.
func nextRotation(nowSec, intervalSec, offsetSec int64) int64 {
	r := nowSec - nowSec%intervalSec + offsetSec
	if r <= nowSec {
		r += intervalSec
	}
	return r
}
