package touch

import (
	"context"
	"time"
)

// Disabled stands in for a Tracker when the touch chip is absent. It
// reports zeroed statistics.
type Disabled struct{}

func (Disabled) Start(context.Context) error { return nil }
func (Disabled) Stop(time.Duration) bool     { return true }
func (Disabled) Statistics() Statistics      { return Statistics{} }
func (Disabled) ResetDaily()                 {}
func (Disabled) Seed(DailyCache)             {}

var _ Service = Disabled{}
