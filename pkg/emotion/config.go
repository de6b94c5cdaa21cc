package emotion

import (
	"fmt"
	"time"
)

// Config holds the stabilizer and poll loop tunables
type Config struct {
	// Stabilization
	HistorySize       int     `yaml:"history_size"`         // Raw labels kept for frequency voting
	RollingSize       int     `yaml:"rolling_size"`         // Confidence samples kept per label
	ChangeThreshold   float64 `yaml:"change_threshold"`     // Score margin a candidate needs over the current emotion
	ForceConfidence   float64 `yaml:"force_confidence"`     // A different label above this commits immediately
	NoFaceThreshold   int     `yaml:"no_face_threshold"`    // Consecutive empty polls before no_face
	MinFaceFraction   float64 `yaml:"min_face_fraction"`    // Faces smaller than this fraction of the frame's short side are ignored
	LogNoFaceDuration bool    `yaml:"log_no_face_duration"` // Record time spent in no_face as an emotion event

	// Timing
	MinDuration       time.Duration `yaml:"min_duration"`       // Cooldown between significant changes
	MaxDuration       time.Duration `yaml:"max_duration"`       // Force a re-evaluation after this long
	DetectionInterval time.Duration `yaml:"detection_interval"` // How often the camera is classified
}

// DefaultConfig returns the tuned installation defaults
func DefaultConfig() Config {
	return Config{
		HistorySize:     10,
		RollingSize:     4,
		ChangeThreshold: 0.2,
		ForceConfidence: 0.7,
		NoFaceThreshold: 3,
		MinFaceFraction: 0.15, // ~72px on a 640x480 frame

		MinDuration:       1 * time.Second,
		MaxDuration:       5 * time.Second,
		DetectionInterval: 200 * time.Millisecond, // 5 classifications per second
	}
}

// Validate reports the first out-of-range tunable.
func (c Config) Validate() error {
	switch {
	case c.HistorySize < 1:
		return fmt.Errorf("%w: history size %d", ErrInvalidConfig, c.HistorySize)
	case c.RollingSize < 1:
		return fmt.Errorf("%w: rolling size %d", ErrInvalidConfig, c.RollingSize)
	case c.NoFaceThreshold < 1:
		return fmt.Errorf("%w: no-face threshold %d", ErrInvalidConfig, c.NoFaceThreshold)
	case c.ChangeThreshold < 0:
		return fmt.Errorf("%w: change threshold %v", ErrInvalidConfig, c.ChangeThreshold)
	case c.ForceConfidence < 0 || c.ForceConfidence > 1:
		return fmt.Errorf("%w: force confidence %v", ErrInvalidConfig, c.ForceConfidence)
	case c.MinFaceFraction < 0 || c.MinFaceFraction >= 1:
		return fmt.Errorf("%w: min face fraction %v", ErrInvalidConfig, c.MinFaceFraction)
	case c.MinDuration < 0 || c.MaxDuration < c.MinDuration:
		return fmt.Errorf("%w: durations min %v max %v", ErrInvalidConfig, c.MinDuration, c.MaxDuration)
	case c.DetectionInterval <= 0:
		return fmt.Errorf("%w: detection interval %v", ErrInvalidConfig, c.DetectionInterval)
	}
	return nil
}
