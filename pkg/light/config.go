package light

import (
	"errors"
	"fmt"
	"time"
)

// Config holds transition and effect tunables
type Config struct {
	Intensity float64 `yaml:"intensity"` // Initial brightness, 0-1

	// Transitions
	EmotionSteps int           `yaml:"emotion_steps"` // Steps for an emotion color change
	TouchSteps   int           `yaml:"touch_steps"`   // Steps to white when a touch starts
	ReturnSteps  int           `yaml:"return_steps"`  // Steps back to the emotion color after a touch
	StepDelay    time.Duration `yaml:"step_delay"`    // Pause between transition steps

	// Effects
	ShimmerInterval  time.Duration `yaml:"shimmer_interval"`  // Cadence of the no_face shimmer
	ShimmerAmount    float64       `yaml:"shimmer_amount"`    // Max per-channel perturbation, as a fraction
	StandbyIntensity float64       `yaml:"standby_intensity"` // Brightness reached by FadeToStandby
	StandbyRate      int           `yaml:"standby_rate"`      // FadeToStandby steps per second
}

// DefaultConfig returns the installation defaults
func DefaultConfig() Config {
	return Config{
		Intensity: 0.5,

		EmotionSteps: 20, // ~200ms
		TouchSteps:   15,
		ReturnSteps:  10,
		StepDelay:    10 * time.Millisecond,

		ShimmerInterval:  100 * time.Millisecond,
		ShimmerAmount:    0.1,
		StandbyIntensity: 0.1,
		StandbyRate:      10,
	}
}

// Validate reports the first out-of-range tunable.
func (c Config) Validate() error {
	switch {
	case c.Intensity < 0 || c.Intensity > 1:
		return fmt.Errorf("light intensity %v out of range [0,1]", c.Intensity)
	case c.EmotionSteps < 1 || c.TouchSteps < 1 || c.ReturnSteps < 1:
		return errors.New("light transition steps must be positive")
	case c.StepDelay < 0 || c.ShimmerInterval <= 0:
		return errors.New("light delays must be positive")
	case c.ShimmerAmount < 0 || c.ShimmerAmount > 1:
		return fmt.Errorf("light shimmer amount %v out of range [0,1]", c.ShimmerAmount)
	case c.StandbyIntensity < 0 || c.StandbyIntensity > 1:
		return fmt.Errorf("light standby intensity %v out of range [0,1]", c.StandbyIntensity)
	case c.StandbyRate < 1:
		return errors.New("light standby rate must be positive")
	}
	return nil
}
