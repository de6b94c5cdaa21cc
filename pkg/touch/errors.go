package touch

import "errors"

// ErrNoSensor is returned when starting a tracker without a sensor.
var ErrNoSensor = errors.New("no touch sensor")
