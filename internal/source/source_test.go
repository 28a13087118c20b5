package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openvigil/vigil/internal/mpegts"
)

func TestStreamURL(t *testing.T) {
	t.Parallel()

	got := StreamURL("cam1.local:6000", "live/front", "s3cret")
	want := "srt://cam1.local:6000?streamid=live%2Ffront&token=s3cret"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got = StreamURL("cam1.local:6000", "live/front", "")
	if strings.Contains(got, "token") {
		t.Errorf("empty token leaked into url: %q", got)
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	url := StreamURL("cam1.local:6000", "live/front", "s3cret")
	redacted := RedactURL(url)
	if strings.Contains(redacted, "s3cret") {
		t.Fatalf("token visible in redacted url: %q", redacted)
	}
	if !strings.Contains(redacted, "cam1.local:6000") {
		t.Errorf("host missing from redacted url: %q", redacted)
	}

	// URLs without a token pass through unchanged.
	plain := StreamURL("cam1.local:6000", "live/front", "")
	if got := RedactURL(plain); got != plain {
		t.Errorf("tokenless url altered: got %q, want %q", got, plain)
	}
}

func TestOpenFailsFastDuringShutdown(t *testing.T) {
	t.Parallel()

	var shutdown atomic.Bool
	shutdown.Store(true)
	o := NewTSOpener(&shutdown, nil)
	if _, err := o.Open(Live("srt://cam:6000")); err == nil {
		t.Error("expected error opening during shutdown")
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	o := NewTSOpener(nil, nil)
	if _, err := o.Open(Live("rtsp://cam:554/stream")); err == nil {
		t.Error("expected error for non-SRT url")
	}
}

// testSPS is a baseline-profile 704x480 sequence parameter set.
var testSPS = []byte{0x67, 0x42, 0x00, 0x1E, 0xDA, 0x02, 0xC0, 0xF6, 0x40}

var testPPS = []byte{0x68, 0xCE, 0x38, 0x80}

const (
	tsPMTPID   = 0x0100
	tsVideoPID = 0x0101
)

// The fixture builders below produce the minimal valid transport stream a
// demuxing Stream consumes: one PAT, one PMT, then single-packet video PES.

func tsPacket(pid uint16, pusi bool, cc byte, payload []byte) []byte {
	pkt := []byte{0x47, byte(pid >> 8), byte(pid), 0x30 | cc&0x0F}
	if pusi {
		pkt[1] |= 0x40
	}
	afLen := 183 - len(payload)
	pkt = append(pkt, byte(afLen))
	if afLen > 0 {
		pkt = append(pkt, 0x00)
		pkt = append(pkt, bytes.Repeat([]byte{0xFF}, afLen-1)...)
	}
	return append(pkt, payload...)
}

func psiPacket(pid uint16, section []byte) []byte {
	crc := mpegts.ComputeCRC32(section)
	section = append(section, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	return tsPacket(pid, true, 0, append([]byte{0x00}, section...))
}

func patPacket() []byte {
	return psiPacket(0, []byte{
		0x00, 0xB0, 0x0D,
		0x00, 0x01,
		0xC1, 0x00, 0x00,
		0x00, 0x01, 0xE0 | tsPMTPID>>8, tsPMTPID & 0xFF,
	})
}

func pmtPacket() []byte {
	return psiPacket(tsPMTPID, []byte{
		0x02, 0xB0, 0x12,
		0x00, 0x01,
		0xC1, 0x00, 0x00,
		0xE0 | tsVideoPID>>8, tsVideoPID & 0xFF,
		0xF0, 0x00,
		0x1B, 0xE0 | tsVideoPID>>8, tsVideoPID & 0xFF, 0xF0, 0x00,
	})
}

func videoPacket(cc byte, pts int64, es []byte) []byte {
	header := []byte{
		0x00, 0x00, 0x01, 0xE0, 0x00, 0x00, 0x80, 0x80, 0x05,
		0x20 | byte(pts>>30&0x07)<<1 | 1,
		byte(pts >> 22),
		byte(pts>>15&0x7F)<<1 | 1,
		byte(pts >> 7),
		byte(pts&0x7F)<<1 | 1,
	}
	return tsPacket(tsVideoPID, true, cc, append(header, es...))
}

func annexB(units ...[]byte) []byte {
	var out []byte
	for _, u := range units {
		out = append(out, 0, 0, 0, 1)
		out = append(out, u...)
	}
	return out
}

func writeCapture(t *testing.T) string {
	t.Helper()

	var stream []byte
	stream = append(stream, patPacket()...)
	stream = append(stream, pmtPacket()...)
	// IDR access unit carrying the parameter sets, then a non-key slice.
	stream = append(stream, videoPacket(0, 180000,
		annexB(testSPS, testPPS, []byte{0x65, 0x11, 0x22}))...)
	stream = append(stream, videoPacket(1, 270000,
		annexB([]byte{0x41, 0x33, 0x44}))...)

	path := filepath.Join(t.TempDir(), "capture.ts")
	if err := os.WriteFile(path, stream, 0o644); err != nil {
		t.Fatalf("write capture: %v", err)
	}
	return path
}

func TestOpenFileSource(t *testing.T) {
	t.Parallel()

	o := NewTSOpener(nil, nil)
	s, err := o.Open(File(writeCapture(t)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	extra, err := s.ExtraData()
	if err != nil {
		t.Fatalf("extra data: %v", err)
	}
	if extra.Width != 704 || extra.Height != 480 {
		t.Errorf("resolution: got %dx%d, want 704x480", extra.Width, extra.Height)
	}
	if !extra.NeedTransform {
		t.Error("transport stream payloads must need the storage transform")
	}
	if len(extra.SampleEntry) == 0 || extra.SampleEntry[0] != 1 {
		t.Errorf("sample entry: got % x", extra.SampleEntry)
	}

	// Packets consumed while scanning for parameter sets must still be
	// delivered, in order.
	pkt, err := s.Next()
	if err != nil {
		t.Fatalf("first packet: %v", err)
	}
	if pkt.PTS == nil || *pkt.PTS != 180000 {
		t.Errorf("first pts: got %v, want 180000", pkt.PTS)
	}
	if !pkt.IsKey {
		t.Error("first packet should be a key frame")
	}

	pkt, err = s.Next()
	if err != nil {
		t.Fatalf("second packet: %v", err)
	}
	if pkt.PTS == nil || *pkt.PTS != 270000 {
		t.Errorf("second pts: got %v, want 270000", pkt.PTS)
	}
	if pkt.IsKey {
		t.Error("second packet should not be a key frame")
	}

	if _, err := s.Next(); err != io.EOF {
		t.Errorf("after last packet: got %v, want io.EOF", err)
	}
}

func TestExtraDataWithoutParameterSets(t *testing.T) {
	t.Parallel()

	var stream []byte
	stream = append(stream, patPacket()...)
	stream = append(stream, pmtPacket()...)
	stream = append(stream, videoPacket(0, 1000, annexB([]byte{0x41, 0x33}))...)

	path := filepath.Join(t.TempDir(), "nopsets.ts")
	if err := os.WriteFile(path, stream, 0o644); err != nil {
		t.Fatalf("write capture: %v", err)
	}

	o := NewTSOpener(nil, nil)
	s, err := o.Open(File(path))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.ExtraData(); err == nil {
		t.Error("expected error for stream with no parameter sets")
	}
}
