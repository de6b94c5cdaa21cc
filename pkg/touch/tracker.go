// Package touch turns raw capacitive electrode readings into touch events,
// today's touch statistics and touch-feedback commands for the light.
package touch

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/internal/worker"
	"github.com/teslashibe/glow/pkg/metrics"
	"github.com/teslashibe/glow/pkg/store"
)

// DefaultPollInterval processes touches at 10 Hz.
const DefaultPollInterval = 100 * time.Millisecond

// Sensor reads the current electrode state.
type Sensor interface {
	ReadBitmask() (Bitmask, error)
}

// Light shows touch feedback.
type Light interface {
	EnterTouchFeedback()
	ReturnFromTouch()
}

// EventLogger records completed touches. Implementations must not block the
// caller.
type EventLogger interface {
	LogTouch(electrode int, d time.Duration)
}

// Service is what the installation needs from touch sensing. Tracker and
// Disabled implement it.
type Service interface {
	Start(ctx context.Context) error
	Stop(timeout time.Duration) bool
	Statistics() Statistics
	ResetDaily()
	Seed(cache DailyCache)
}

// Statistics is a snapshot of live and today's touch activity. Durations
// are in seconds.
type Statistics struct {
	ActiveTouches      int     `json:"active_touches"`
	Active             Bitmask `json:"active"`
	TodayTouches       int     `json:"today_touches"`
	TodayTotalDuration float64 `json:"today_total_duration"`
	TodayAvgDuration   float64 `json:"today_avg_duration"`
	TodayMaxDuration   float64 `json:"today_max_duration"`
	TotalPresses       int     `json:"total_presses"`
}

// DailyCache mirrors today's touch aggregates held by the event store.
type DailyCache struct {
	Date  string
	Count int
	Total time.Duration
	Max   time.Duration
}

// ElectrodeState tracks one electrode.
type ElectrodeState struct {
	Touched   bool
	StartedAt time.Time
	Completed []time.Duration
}

type release struct {
	electrode int
	duration  time.Duration
}

// Tracker detects press and release edges. Observe must only be called from
// one goroutine at a time; Run does that for a Sensor.
type Tracker struct {
	sensor   Sensor
	light    Light
	events   EventLogger
	interval time.Duration
	logger   *slog.Logger
	loop     *worker.Loop
	now      func() time.Time

	mu         sync.Mutex
	electrodes [Electrodes]ElectrodeState
	previous   Bitmask
	presses    int
	daily      DailyCache
}

// NewTracker creates a tracker. light and events may be nil; interval <= 0
// uses DefaultPollInterval.
func NewTracker(sensor Sensor, light Light, events EventLogger, interval time.Duration, logger *slog.Logger) *Tracker {
	if light == nil {
		light = nopLight{}
	}
	if events == nil {
		events = nopEvents{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger = log.Component(logger, "touch")
	t := &Tracker{
		sensor:   sensor,
		light:    light,
		events:   events,
		interval: interval,
		logger:   logger,
		loop:     worker.New("touch-tracker", logger),
		now:      time.Now,
	}
	t.daily.Date = store.DateOf(t.now())
	return t
}

// Observe processes one reading: releases are logged and folded into
// today's statistics, the first touch after an idle poll enters touch
// feedback, and releasing the last touch returns the light to emotion mode.
func (t *Tracker) Observe(mask Bitmask) {
	t.mu.Lock()
	now := t.now()
	t.rollDay(now)

	wasActive := t.previous.Count()
	var released []release
	for i, touched := range mask {
		e := &t.electrodes[i]
		switch {
		case touched && !t.previous[i]:
			e.Touched = true
			e.StartedAt = now
			t.presses++
		case !touched && t.previous[i]:
			d := now.Sub(e.StartedAt)
			e.Touched = false
			e.Completed = append(e.Completed, d)
			released = append(released, release{electrode: i, duration: d})

			t.daily.Count++
			t.daily.Total += d
			t.daily.Max = max(t.daily.Max, d)
		}
	}
	t.previous = mask
	active := mask.Count()
	t.mu.Unlock()

	for _, r := range released {
		metrics.TouchEvents.Inc()
		metrics.TouchDuration.Observe(r.duration.Seconds())
		t.logger.Debug("touch released", "electrode", r.electrode, "duration", r.duration)
		t.events.LogTouch(r.electrode, r.duration)
	}

	switch {
	case len(released) > 0 && active == 0:
		t.light.ReturnFromTouch()
	case wasActive == 0 && active > 0:
		t.logger.Debug("touch started", "electrodes", mask.Touched())
		t.light.EnterTouchFeedback()
	}
}

// Poll reads the sensor once and observes the result. Read errors are
// returned and the reading is dropped.
func (t *Tracker) Poll(ctx context.Context) error {
	mask, err := t.sensor.ReadBitmask()
	if err != nil {
		return err
	}
	t.Observe(mask)
	return nil
}

// Run polls the sensor until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("touch tracker running", "interval", t.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Poll(ctx); err != nil {
				metrics.PollErrors.WithLabelValues("touch").Inc()
				t.logger.Warn("touch read failed, skipping poll", "error", err)
			}
		}
	}
}

// Start runs the poll loop in the background.
func (t *Tracker) Start(ctx context.Context) error {
	if t.sensor == nil {
		return ErrNoSensor
	}
	t.loop.Start(ctx, t.Run)
	return nil
}

// Stop cancels the poll loop and waits up to timeout for it to exit.
func (t *Tracker) Stop(timeout time.Duration) bool {
	return t.loop.Stop(timeout)
}

// Statistics returns live and today's touch activity. ActiveTouches is the
// mask seen by the most recent poll, at most one poll interval old; the
// sensor is only ever read by the poll loop.
func (t *Tracker) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollDay(t.now())
	stats := Statistics{
		ActiveTouches:      t.previous.Count(),
		Active:             t.previous,
		TodayTouches:       t.daily.Count,
		TodayTotalDuration: t.daily.Total.Seconds(),
		TodayMaxDuration:   t.daily.Max.Seconds(),
		TotalPresses:       t.presses,
	}
	if t.daily.Count > 0 {
		stats.TodayAvgDuration = stats.TodayTotalDuration / float64(t.daily.Count)
	}
	return stats
}

// Durations returns the completed touch durations of one electrode.
func (t *Tracker) Durations(electrode int) []time.Duration {
	if electrode < 0 || electrode >= Electrodes {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.electrodes[electrode].Completed)
}

// ResetDaily starts a new day's statistics unless the cache already belongs
// to today. Touches counted after the rollover are kept.
func (t *Tracker) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDay(t.now())
}

// Seed replaces today's statistics with values loaded from the store. A
// cache for another date is ignored.
func (t *Tracker) Seed(cache DailyCache) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cache.Date != store.DateOf(t.now()) {
		t.logger.Debug("ignoring stale daily cache", "date", cache.Date)
		return
	}
	t.daily = cache
}

// rollDay resets the daily cache when the calendar date changed. Caller
// holds mu.
func (t *Tracker) rollDay(now time.Time) {
	if today := store.DateOf(now); today != t.daily.Date {
		t.daily = DailyCache{Date: today}
	}
}

// CacheFromStats converts a stored daily row into a DailyCache.
func CacheFromStats(stats store.DailyStats) DailyCache {
	return DailyCache{
		Date:  stats.Date,
		Count: stats.TouchCount,
		Total: time.Duration(stats.TotalTouchDuration * float64(time.Second)),
		Max:   time.Duration(stats.MaxTouchDuration * float64(time.Second)),
	}
}

var _ Service = (*Tracker)(nil)

type nopLight struct{}

func (nopLight) EnterTouchFeedback() {}
func (nopLight) ReturnFromTouch()    {}

type nopEvents struct{}

func (nopEvents) LogTouch(int, time.Duration) {}
