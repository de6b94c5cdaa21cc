package web

import "errors"

var (
	// ErrNoLight is returned when intensity is changed without an LED strip.
	ErrNoLight = errors.New("led strip not available")

	// ErrInvalidIntensity is returned for intensities that are not finite numbers.
	ErrInvalidIntensity = errors.New("intensity must be a number between 0 and 1")
)
