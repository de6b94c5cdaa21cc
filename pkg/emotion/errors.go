package emotion

import "errors"

var (
	// ErrInvalidConfig is returned when a tunable is out of range.
	ErrInvalidConfig = errors.New("invalid emotion config")

	// ErrNoDetector is returned when starting a tracker without a face detector.
	ErrNoDetector = errors.New("no face detector")
)
