package h264

import (
	"bytes"
	"testing"
)

func TestParseAnnexB(t *testing.T) {
	t.Parallel()

	data := []byte{
		0, 0, 0, 1, 0x67, 0xAA, 0xBB, // SPS, 4-byte start code
		0, 0, 1, 0x68, 0xCC, // PPS, 3-byte start code
		0, 0, 0, 1, 0x65, 0x11, 0x22, 0x33, // IDR slice
	}
	units := ParseAnnexB(data)
	if len(units) != 3 {
		t.Fatalf("units: got %d, want 3", len(units))
	}
	wantTypes := []byte{NALTypeSPS, NALTypePPS, NALTypeIDR}
	wantLens := []int{3, 2, 4}
	for i, u := range units {
		if u.Type != wantTypes[i] {
			t.Errorf("unit %d type: got %d, want %d", i, u.Type, wantTypes[i])
		}
		if len(u.Data) != wantLens[i] {
			t.Errorf("unit %d length: got %d, want %d", i, len(u.Data), wantLens[i])
		}
	}
	if !bytes.Equal(units[2].Data, []byte{0x65, 0x11, 0x22, 0x33}) {
		t.Errorf("IDR data: got % x", units[2].Data)
	}
}

func TestParseAnnexBNoStartCode(t *testing.T) {
	t.Parallel()
	if units := ParseAnnexB([]byte{0x65, 0x11, 0x22, 0x33, 0x44}); units != nil {
		t.Errorf("expected no units, got %d", len(units))
	}
}

func TestTransformSampleData(t *testing.T) {
	t.Parallel()

	data := []byte{
		0, 0, 0, 1, 0x09, 0xF0, // AUD, dropped
		0, 0, 0, 1, 0x65, 0x11, 0x22, // IDR
		0, 0, 1, 0x0C, 0xFF, 0xFF, // filler, dropped
		0, 0, 1, 0x06, 0x55, // SEI, kept
	}
	var out []byte
	if err := TransformSampleData(data, &out); err != nil {
		t.Fatalf("transform: %v", err)
	}
	want := []byte{
		0, 0, 0, 3, 0x65, 0x11, 0x22,
		0, 0, 0, 2, 0x06, 0x55,
	}
	if !bytes.Equal(out, want) {
		t.Errorf("transformed: got % x, want % x", out, want)
	}

	// The scratch buffer is reused: a second, smaller access unit must not
	// leave stale bytes behind.
	if err := TransformSampleData([]byte{0, 0, 0, 1, 0x41, 0xAA}, &out); err != nil {
		t.Fatalf("second transform: %v", err)
	}
	want = []byte{0, 0, 0, 2, 0x41, 0xAA}
	if !bytes.Equal(out, want) {
		t.Errorf("second transform: got % x, want % x", out, want)
	}
}

func TestTransformSampleDataErrors(t *testing.T) {
	t.Parallel()

	var out []byte
	if err := TransformSampleData([]byte{1, 2, 3, 4}, &out); err == nil {
		t.Error("expected error for data without start codes")
	}
	// Only discardable NAL units is as useless as none.
	if err := TransformSampleData([]byte{0, 0, 0, 1, 0x09, 0xF0}, &out); err == nil {
		t.Error("expected error for AUD-only access unit")
	}
}

func TestBuildSampleEntry(t *testing.T) {
	t.Parallel()

	sps := []byte{0x67, 0x64, 0x00, 0x1F, 0xAC, 0xD9}
	pps := []byte{0x68, 0xEB, 0xE3, 0xCB}
	entry, err := BuildSampleEntry(sps, pps)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if entry[0] != 1 {
		t.Errorf("configurationVersion: got %d", entry[0])
	}
	if entry[1] != 0x64 || entry[2] != 0x00 || entry[3] != 0x1F {
		t.Errorf("profile/compat/level: got % x", entry[1:4])
	}
	if entry[4] != 0xFF || entry[5] != 0xE1 {
		t.Errorf("length size / sps count: got % x", entry[4:6])
	}
	if got := int(entry[6])<<8 | int(entry[7]); got != len(sps) {
		t.Errorf("sps length: got %d, want %d", got, len(sps))
	}
	if !bytes.Equal(entry[8:8+len(sps)], sps) {
		t.Errorf("sps bytes: got % x", entry[8:8+len(sps)])
	}
	rest := entry[8+len(sps):]
	if rest[0] != 1 {
		t.Errorf("pps count: got %d", rest[0])
	}
	if got := int(rest[1])<<8 | int(rest[2]); got != len(pps) {
		t.Errorf("pps length: got %d, want %d", got, len(pps))
	}
	if !bytes.Equal(rest[3:], pps) {
		t.Errorf("pps bytes: got % x", rest[3:])
	}

	if _, err := BuildSampleEntry([]byte{0x67, 0x64}, pps); err == nil {
		t.Error("expected error for truncated sps")
	}
	if _, err := BuildSampleEntry(sps, nil); err == nil {
		t.Error("expected error for missing pps")
	}
}

func TestRemoveEmulationPrevention(t *testing.T) {
	t.Parallel()

	got := removeEmulationPrevention([]byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x00})
	want := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}

	plain := []byte{0x40, 0x00, 0x03, 0x20}
	if got := removeEmulationPrevention(plain); !bytes.Equal(got, plain) {
		t.Errorf("0x03 without two leading zeros stripped: got % x", got)
	}
}
