package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCameras(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cameras.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write cameras file: %v", err)
	}
	return path
}

func TestLoadCameras(t *testing.T) {
	t.Parallel()

	path := writeCameras(t, `
cameras:
  - id: 1
    short_name: front
    address: cam-front.local:6000
    stream_id: live/front
    token: s3cret
    rotate_interval_sec: 60
    rotate_offset_sec: 15
  - id: 2
    short_name: back
    address: cam-back.local:6000
`)
	cams, err := LoadCameras(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cams) != 2 {
		t.Fatalf("cameras: got %d, want 2", len(cams))
	}

	front := cams[0]
	if front.ID != 1 || front.ShortName != "front" || front.Token != "s3cret" {
		t.Errorf("front camera fields: %+v", front)
	}
	if front.RotateIntervalSec != 60 || front.RotateOffsetSec != 15 {
		t.Errorf("front schedule: interval %d offset %d", front.RotateIntervalSec, front.RotateOffsetSec)
	}

	// Unspecified schedule falls back to the default interval.
	if cams[1].RotateIntervalSec != defaultRotateIntervalSec {
		t.Errorf("default interval: got %d, want %d", cams[1].RotateIntervalSec, defaultRotateIntervalSec)
	}
}

func TestLoadCamerasValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "empty list",
			body: "cameras: []\n",
			want: "no cameras",
		},
		{
			name: "missing id",
			body: "cameras:\n  - short_name: x\n    address: a:1\n",
			want: "id must be positive",
		},
		{
			name: "missing short name",
			body: "cameras:\n  - id: 1\n    address: a:1\n",
			want: "short_name is required",
		},
		{
			name: "missing address",
			body: "cameras:\n  - id: 1\n    short_name: x\n",
			want: "address is required",
		},
		{
			name: "offset at interval",
			body: "cameras:\n  - id: 1\n    short_name: x\n    address: a:1\n    rotate_interval_sec: 60\n    rotate_offset_sec: 60\n",
			want: "rotate_offset_sec",
		},
		{
			name: "negative offset",
			body: "cameras:\n  - id: 1\n    short_name: x\n    address: a:1\n    rotate_offset_sec: -1\n",
			want: "rotate_offset_sec",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadCameras(writeCameras(t, tc.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.DBPath == "" || cfg.SampleDir == "" || cfg.StatusAddr == "" {
		t.Errorf("missing defaults: %+v", cfg)
	}
}
