// Package status composes read-only snapshots of the installation for the
// web layer.
package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/emotion"
	"github.com/teslashibe/glow/pkg/light"
	"github.com/teslashibe/glow/pkg/store"
	"github.com/teslashibe/glow/pkg/touch"
)

// statsTimeout bounds store reads made for one snapshot.
const statsTimeout = 2 * time.Second

// EmotionSource reports the stable emotion.
type EmotionSource interface {
	Current() (emotion.Label, float64)
}

// TouchSource reports touch statistics.
type TouchSource interface {
	Statistics() touch.Statistics
}

// LightSource reports the LED state.
type LightSource interface {
	State() light.State
}

// StatsSource is the read side of the event store.
type StatsSource interface {
	DailyStats(ctx context.Context, date string) (store.DailyStats, error)
	History(ctx context.Context, end time.Time, days int) ([]store.DailyStats, error)
	TotalStats(ctx context.Context) (store.TotalStats, error)
}

// EmotionStatus is the current emotion and today's per-emotion counts.
type EmotionStatus struct {
	Current    emotion.Label  `json:"current"`
	Confidence float64        `json:"confidence"`
	Counts     map[string]int `json:"counts"`
}

// TouchStatus is live touch activity and today's aggregates in seconds.
type TouchStatus struct {
	Active       int           `json:"active"`
	Electrodes   touch.Bitmask `json:"electrodes"`
	TodayTouches int           `json:"today_touches"`
	TodayAvg     float64       `json:"today_avg_duration"`
	TodayMax     float64       `json:"today_max_duration"`
	TodayTotal   float64       `json:"today_total_duration"`
	TotalPresses int           `json:"total_presses"`
}

// Snapshot is everything the dashboard shows.
type Snapshot struct {
	Time       time.Time         `json:"time"`
	Emotion    EmotionStatus     `json:"emotion"`
	Touch      TouchStatus       `json:"touch"`
	Light      *light.State      `json:"light,omitempty"`
	DailyStats store.DailyStats  `json:"daily_stats"`
	TotalStats *store.TotalStats `json:"total_stats,omitempty"`
}

// Aggregator merges live component state with stored statistics. It only
// reads, so any number of goroutines may use it.
type Aggregator struct {
	emotion EmotionSource
	touch   TouchSource
	light   LightSource
	stats   StatsSource
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an aggregator. A nil emotion source reports no_face, a nil
// touch source reports zeroes and a nil light source is omitted.
func New(em EmotionSource, tc TouchSource, lt LightSource, stats StatsSource, logger *slog.Logger) *Aggregator {
	if em == nil {
		em = noFace{}
	}
	if tc == nil {
		tc = touch.Disabled{}
	}
	return &Aggregator{
		emotion: em,
		touch:   tc,
		light:   lt,
		stats:   stats,
		logger:  log.Component(logger, "status"),
		now:     time.Now,
	}
}

// Snapshot composes the full status. Store failures are logged and replaced
// by defaults.
func (a *Aggregator) Snapshot(ctx context.Context, withTotals bool) Snapshot {
	now := a.now()
	daily := a.DailyStats(ctx, store.DateOf(now))

	snap := Snapshot{
		Time:       now,
		Emotion:    a.Emotion(),
		Touch:      a.Touch(),
		DailyStats: daily,
	}
	snap.Emotion.Counts = daily.EmotionCounts

	if a.light != nil {
		st := a.light.State()
		snap.Light = &st
	}
	if withTotals {
		totals := a.TotalStats(ctx)
		snap.TotalStats = &totals
	}
	return snap
}

// Emotion returns the stable emotion without counts.
func (a *Aggregator) Emotion() EmotionStatus {
	label, conf := a.emotion.Current()
	return EmotionStatus{Current: label, Confidence: conf, Counts: map[string]int{}}
}

// Touch returns live and today's touch statistics.
func (a *Aggregator) Touch() TouchStatus {
	s := a.touch.Statistics()
	return TouchStatus{
		Active:       s.ActiveTouches,
		Electrodes:   s.Active,
		TodayTouches: s.TodayTouches,
		TodayAvg:     s.TodayAvgDuration,
		TodayMax:     s.TodayMaxDuration,
		TodayTotal:   s.TodayTotalDuration,
		TotalPresses: s.TotalPresses,
	}
}

// DailyStats returns the stored row for date, or defaults.
func (a *Aggregator) DailyStats(ctx context.Context, date string) store.DailyStats {
	if a.stats == nil {
		return store.EmptyDailyStats(date)
	}
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	stats, err := a.stats.DailyStats(ctx, date)
	if err != nil {
		a.logger.Warn("daily stats unavailable", "date", date, "error", err)
		return store.EmptyDailyStats(date)
	}
	return stats
}

// History returns the last days of stored rows ending today, oldest first.
func (a *Aggregator) History(ctx context.Context, days int) []store.DailyStats {
	if a.stats == nil || days <= 0 {
		return []store.DailyStats{}
	}
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	history, err := a.stats.History(ctx, a.now(), days)
	if err != nil {
		a.logger.Warn("history unavailable", "days", days, "error", err)
		return []store.DailyStats{}
	}
	return history
}

// TotalStats returns all-time aggregates, or defaults.
func (a *Aggregator) TotalStats(ctx context.Context) store.TotalStats {
	if a.stats == nil {
		return store.EmptyTotalStats()
	}
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	totals, err := a.stats.TotalStats(ctx)
	if err != nil {
		a.logger.Warn("total stats unavailable", "error", err)
		return store.EmptyTotalStats()
	}
	return totals
}

type noFace struct{}

func (noFace) Current() (emotion.Label, float64) { return emotion.NoFace, 0 }
