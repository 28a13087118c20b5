// Package config loads process settings from the environment (with optional
// .env file) and the camera list from a YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// defaultRotateIntervalSec is the segment length target used when a camera
// does not specify one.
const defaultRotateIntervalSec = 60

// Config holds process-level settings.
type Config struct {
	DBPath      string
	SampleDir   string
	CamerasPath string
	StatusAddr  string
	LogLevel    string
	LogFormat   string
}

// Load reads an optional .env file from the working directory, then resolves
// settings from the environment with defaults.
func Load() *Config {
	_ = godotenv.Load() // missing .env is fine; env and defaults apply

	return &Config{
		DBPath:      getEnv("VIGIL_DB", "vigil.db"),
		SampleDir:   getEnv("VIGIL_SAMPLE_DIR", "samples"),
		CamerasPath: getEnv("VIGIL_CAMERAS", "cameras.yaml"),
		StatusAddr:  getEnv("VIGIL_STATUS_ADDR", ":4440"),
		LogLevel:    getEnv("VIGIL_LOG_LEVEL", "info"),
		LogFormat:   getEnv("VIGIL_LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// Camera describes one camera to record: its identity, how to reach it, and
// its rotation schedule. The token is a credential and must never be logged.
type Camera struct {
	ID        int64  `yaml:"id"`
	ShortName string `yaml:"short_name"`
	Address   string `yaml:"address"`
	StreamID  string `yaml:"stream_id"`
	Token     string `yaml:"token"`

	// RotateIntervalSec is the segment length target; RotateOffsetSec
	// staggers rotation phases across cameras.
	RotateIntervalSec int64 `yaml:"rotate_interval_sec"`
	RotateOffsetSec   int64 `yaml:"rotate_offset_sec"`
}

type cameraFile struct {
	Cameras []Camera `yaml:"cameras"`
}

// LoadCameras parses and validates the camera list at path.
func LoadCameras(path string) ([]Camera, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read cameras: %w", err)
	}
	var cf cameraFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("config: parse cameras: %w", err)
	}
	if len(cf.Cameras) == 0 {
		return nil, fmt.Errorf("config: no cameras defined in %s", path)
	}
	for i := range cf.Cameras {
		if err := cf.Cameras[i].validate(); err != nil {
			return nil, err
		}
	}
	return cf.Cameras, nil
}

func (c *Camera) validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("config: camera %q: id must be positive", c.ShortName)
	}
	if c.ShortName == "" {
		return fmt.Errorf("config: camera id %d: short_name is required", c.ID)
	}
	if c.Address == "" {
		return fmt.Errorf("config: camera %q: address is required", c.ShortName)
	}
	if c.RotateIntervalSec == 0 {
		c.RotateIntervalSec = defaultRotateIntervalSec
	}
	if c.RotateIntervalSec < 0 {
		return fmt.Errorf("config: camera %q: rotate_interval_sec must be positive", c.ShortName)
	}
	if c.RotateOffsetSec < 0 || c.RotateOffsetSec >= c.RotateIntervalSec {
		return fmt.Errorf("config: camera %q: rotate_offset_sec %d outside [0, %d)",
			c.ShortName, c.RotateOffsetSec, c.RotateIntervalSec)
	}
	return nil
}
