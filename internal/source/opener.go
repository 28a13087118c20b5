package source

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	srtgo "github.com/zsiec/srtgo"
)

// srtLatencyNs is the SRT receive latency (120ms), matching the jitter
// budget of a LAN camera link.
const srtLatencyNs = 120_000_000

// srtDialTimeout bounds how long a connection attempt may block. The
// recorder's retry loop handles the resulting error.
const srtDialTimeout = 10 * time.Second

var errShuttingDown = errors.New("source: shutting down")

// TSOpener opens MPEG-TS sources: live cameras over SRT and local capture
// files. It observes the process shutdown flag so open attempts fail fast
// once shutdown begins instead of blocking the retry loop.
type TSOpener struct {
	log      *slog.Logger
	shutdown *atomic.Bool
}

// NewTSOpener creates a TSOpener. If log is nil, slog.Default() is used.
func NewTSOpener(shutdown *atomic.Bool, log *slog.Logger) *TSOpener {
	if log == nil {
		log = slog.Default()
	}
	return &TSOpener{
		log:      log.With("component", "source"),
		shutdown: shutdown,
	}
}

// Open opens the given source and returns a demuxing Stream over it.
func (o *TSOpener) Open(src Source) (Stream, error) {
	if o.shutdown != nil && o.shutdown.Load() {
		return nil, errShuttingDown
	}

	switch src.Kind {
	case KindLive:
		conn, err := o.dial(src.Name)
		if err != nil {
			return nil, err
		}
		return newDemuxStream(conn), nil
	case KindFile:
		f, err := os.Open(src.Name)
		if err != nil {
			return nil, fmt.Errorf("open capture file: %w", err)
		}
		return newDemuxStream(f), nil
	default:
		return nil, fmt.Errorf("unknown source kind %d", src.Kind)
	}
}

// dial connects to an SRT endpoint described by an srt:// URL with streamid
// and token query parameters. The token rides in the SRT stream id, where
// the far end's access control inspects it.
func (o *TSOpener) dial(rawURL string) (*srtgo.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if u.Scheme != "srt" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs
	cfg.StreamID = q.Get("streamid")
	if token := q.Get("token"); token != "" {
		cfg.StreamID += "?token=" + token
	}

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(u.Host, cfg)
		ch <- dialResult{conn, err}
	}()

	timer := time.NewTimer(srtDialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("SRT dial failed: %w", res.err)
		}
		return res.conn, nil
	case <-timer.C:
		// Drain the dial result in the background and close any leaked
		// connection.
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("SRT dial timed out after %s", srtDialTimeout)
	}
}
