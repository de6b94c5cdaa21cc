// Package config loads the glow configuration from YAML, the environment
// and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/glow/pkg/emotion"
	"github.com/teslashibe/glow/pkg/ledstrip"
	"github.com/teslashibe/glow/pkg/light"
	"github.com/teslashibe/glow/pkg/mpr121"
	"github.com/teslashibe/glow/pkg/store"
	"github.com/teslashibe/glow/pkg/touch"
	"github.com/teslashibe/glow/pkg/web"
)

// Environment overrides.
const (
	EnvDB       = "GLOW_DB"
	EnvLogLevel = "GLOW_LOG_LEVEL"
	EnvWebPort  = "GLOW_WEB_PORT"
)

// Touch sensor backends.
const (
	TouchMPR121 = "mpr121"
	TouchMock   = "mock"
)

// Config is the whole installation.
type Config struct {
	LED     ledstrip.Config `yaml:"led"`
	Touch   TouchConfig     `yaml:"touch"`
	Camera  CameraConfig    `yaml:"camera"`
	Store   StoreConfig     `yaml:"store"`
	Web     web.Config      `yaml:"web"`
	Emotion emotion.Config  `yaml:"emotion"`
	Light   light.Config    `yaml:"light"`
	Log     LogConfig       `yaml:"log"`
}

// TouchConfig selects the touch sensor.
type TouchConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"` // mpr121 or mock
	PollInterval time.Duration `yaml:"poll_interval"`
	MPR121       mpr121.Config `yaml:"mpr121"`
}

// CameraConfig selects the camera and models.
type CameraConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Device       int     `yaml:"device"`
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	FaceModel    string  `yaml:"face_model"`    // YuNet ONNX
	EmotionModel string  `yaml:"emotion_model"` // FER+ ONNX
	FaceScore    float64 `yaml:"face_score"`
}

// StoreConfig selects the event store.
type StoreConfig struct {
	Backend store.Backend `yaml:"backend"`
	Path    string        `yaml:"path"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the installation defaults.
func Default() Config {
	return Config{
		LED: ledstrip.DefaultConfig(),
		Touch: TouchConfig{
			Enabled:      true,
			Backend:      TouchMPR121,
			PollInterval: touch.DefaultPollInterval,
			MPR121:       mpr121.DefaultConfig(),
		},
		Camera: CameraConfig{
			Enabled:      true,
			Device:       0,
			Width:        640,
			Height:       480,
			FaceModel:    "models/face_detection_yunet.onnx",
			EmotionModel: "models/emotion-ferplus-8.onnx",
			FaceScore:    0.6,
		},
		Store: StoreConfig{
			Backend: store.BackendSQLite,
			Path:    "emotion_data.db",
		},
		Web:     web.DefaultConfig(),
		Emotion: emotion.DefaultConfig(),
		Light:   light.DefaultConfig(),
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GLOW_* variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvDB); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvWebPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWebPort, err)
		}
		c.Web.Port = port
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.LED.Validate(); err != nil {
		return fmt.Errorf("led: %w", err)
	}
	if err := c.Emotion.Validate(); err != nil {
		return fmt.Errorf("emotion: %w", err)
	}
	if err := c.Light.Validate(); err != nil {
		return fmt.Errorf("light: %w", err)
	}

	switch c.Touch.Backend {
	case TouchMPR121, TouchMock:
	default:
		return fmt.Errorf("touch: unsupported backend %q", c.Touch.Backend)
	}
	if c.Touch.PollInterval <= 0 {
		return fmt.Errorf("touch: poll interval must be positive")
	}

	switch c.Store.Backend {
	case store.BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store: path is required for sqlite")
		}
	case store.BackendMemory:
	default:
		return fmt.Errorf("store: unsupported backend %q", c.Store.Backend)
	}

	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web: port %d out of range", c.Web.Port)
	}
	return nil
}
