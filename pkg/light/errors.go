package light

import "errors"

var (
	// ErrClosed is returned by effects requested after Close.
	ErrClosed = errors.New("light controller closed")

	// ErrSuperseded is returned when a newer command interrupted an effect.
	ErrSuperseded = errors.New("effect superseded")
)
