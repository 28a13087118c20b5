// Package media defines the core types that flow through the Vigil recording
// pipeline: compressed video packets pulled from a camera, codec parameters
// registered with the catalog, and the 90 kHz time base used for all
// recorded timestamps.
package media

import "time"

// TimeUnitsPerSec is the tick rate of the recording time base. All sample
// timestamps and durations are expressed in 90 kHz ticks, matching the
// MPEG-TS PTS clock so stream timestamps convert without rounding.
const TimeUnitsPerSec = 90000

// Time is a wall-clock instant in 90 kHz ticks since the Unix epoch.
// Recording start times and segment continuity timestamps use this type.
type Time int64

// TimeFromReal converts a wall-clock time to the 90 kHz time base.
func TimeFromReal(t time.Time) Time {
	return Time(t.Unix()*TimeUnitsPerSec + int64(t.Nanosecond())*TimeUnitsPerSec/1e9)
}

// Real converts t back to a wall-clock time, truncated to tick precision.
func (t Time) Real() time.Time {
	return time.Unix(int64(t)/TimeUnitsPerSec,
		int64(t)%TimeUnitsPerSec*1e9/TimeUnitsPerSec)
}

// Packet is one compressed video access unit pulled from a stream source.
type Packet struct {
	// PTS is the presentation timestamp in 90 kHz ticks. Sources that omit
	// it leave PTS nil; the recorder treats that as a fatal stream error.
	PTS *int64

	// IsKey reports whether this packet is a key frame, decodable without
	// reference to prior packets. Segments must begin on a key frame.
	IsKey bool

	// Data is the compressed payload. An empty payload is a fatal stream
	// error.
	Data []byte

	// Duration is the codec-reported duration in 90 kHz ticks. It is an
	// unreliable estimate and is never used for segment timing; real
	// durations are derived from successive PTS values.
	Duration int64
}

// ExtraData carries the codec parameters reported by a stream source when a
// connection is established. It is registered once per connection with the
// catalog, and the resulting sample entry id is reused for every segment
// written on that connection.
type ExtraData struct {
	Width  int
	Height int

	// SampleEntry is the opaque decoder configuration registered with the
	// catalog (an AVCDecoderConfigurationRecord for H.264 sources).
	SampleEntry []byte

	// NeedTransform reports whether packet payloads must be rewritten from
	// Annex B to the length-prefixed storage layout before being written.
	NeedTransform bool
}
