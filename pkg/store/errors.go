package store

import "errors"

var (
	// ErrClosed is returned when using a store or recorder after Close.
	ErrClosed = errors.New("store closed")

	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidEvent is returned for events that cannot be recorded.
	ErrInvalidEvent = errors.New("invalid event")
)
