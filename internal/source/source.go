// Package source opens compressed video streams for the recorder. A live
// source dials an SRT endpoint; a file source replays a local MPEG-TS
// capture. Both feed the same transport-stream demux path and present the
// recorder with timestamped H.264 packets through the Stream interface.
package source

import (
	"net/url"

	"github.com/openvigil/vigil/internal/media"
)

// Kind distinguishes live network sources from local file sources.
type Kind int

// Source kinds.
const (
	KindLive Kind = iota
	KindFile
)

// Source describes where a stream comes from: an SRT URL for live cameras
// or a local MPEG-TS file path for deterministic replay.
type Source struct {
	Kind Kind
	Name string
}

// Live returns a Source for an SRT URL.
func Live(url string) Source { return Source{Kind: KindLive, Name: url} }

// File returns a Source for a local MPEG-TS file.
func File(path string) Source { return Source{Kind: KindFile, Name: path} }

// Opener opens a Source. Implementations must be safe for use from
// multiple camera goroutines.
type Opener interface {
	Open(src Source) (Stream, error)
}

// Stream is an open video stream. ExtraData reports the codec parameters of
// the connection; Next blocks until the next packet is available and returns
// io.EOF on clean end of stream. Streams are owned by a single goroutine.
type Stream interface {
	ExtraData() (*media.ExtraData, error)
	Next() (*media.Packet, error)
	Close() error
}

// StreamURL builds the connection URL for a live camera. The access token
// is a credential and must never be logged; use RedactURL for log output.
func StreamURL(address, streamID, token string) string {
	q := url.Values{}
	q.Set("streamid", streamID)
	if token != "" {
		q.Set("token", token)
	}
	u := url.URL{Scheme: "srt", Host: address, RawQuery: q.Encode()}
	return u.String()
}

// RedactURL returns rawURL with its access token masked, suitable for logs.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "(unparseable url)"
	}
	q := u.Query()
	if q.Get("token") != "" {
		q.Set("token", "redacted")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
