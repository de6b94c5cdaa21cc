// Package store is the durable event log for the installation: append-only
// emotion and touch events plus a recomputed per-day summary.
//
// The daily summary is a denormalization of the event log. It is rebuilt
// from the events and upserted on every recompute, never incremented, so
// repeated recomputation cannot drift.
package store

import (
	"context"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used as the daily stats key.
const DateLayout = "2006-01-02"

// DefaultEmotion is reported as the dominant emotion of a day with no events.
const DefaultEmotion = "neutral"

// EmotionEvent records how long a stable emotion was displayed.
type EmotionEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	Emotion    string        `json:"emotion"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
}

// TouchEvent records one completed touch on an electrode.
type TouchEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Electrode int           `json:"electrode"`
	Duration  time.Duration `json:"duration"`
}

// DailyStats is the summary row for one calendar date.
// Durations are in seconds.
type DailyStats struct {
	Date               string         `json:"date"`
	DominantEmotion    string         `json:"dominant_emotion"`
	EmotionCounts      map[string]int `json:"emotion_counts"`
	TouchCount         int            `json:"touch_count"`
	AvgTouchDuration   float64        `json:"avg_touch_duration"`
	MaxTouchDuration   float64        `json:"max_touch_duration"`
	TotalTouchDuration float64        `json:"total_touch_duration"`
}

// TotalStats aggregates the whole event log.
// Durations are in seconds.
type TotalStats struct {
	TotalEmotions      int            `json:"total_emotions"`
	DominantEmotion    string         `json:"dominant_emotion"`
	EmotionCounts      map[string]int `json:"emotion_counts"`
	TotalTouches       int            `json:"total_touches"`
	AvgTouchDuration   float64        `json:"avg_touch_duration"`
	MaxTouchDuration   float64        `json:"max_touch_duration"`
	TotalTouchDuration float64        `json:"total_touch_duration"`
}

// Store is the event store contract. Implementations serialize their own
// writes; callers need no external lock.
type Store interface {
	// LogEmotion appends an emotion event. A zero Timestamp means now.
	LogEmotion(ctx context.Context, ev EmotionEvent) error

	// LogTouch appends a touch event. A zero Timestamp means now.
	LogTouch(ctx context.Context, ev TouchEvent) error

	// RecomputeDailyStats rebuilds and upserts the summary row for date.
	RecomputeDailyStats(ctx context.Context, date string) error

	// DailyStats returns the summary row for date, or defaults if none exists.
	DailyStats(ctx context.Context, date string) (DailyStats, error)

	// History returns the summary rows for the days ending at end, oldest first.
	History(ctx context.Context, end time.Time, days int) ([]DailyStats, error)

	// TotalStats aggregates every event in the log.
	TotalStats(ctx context.Context) (TotalStats, error)

	// Close releases the backend.
	Close() error
}

// DateOf returns the local calendar date of t.
func DateOf(t time.Time) string {
	return t.In(time.Local).Format(DateLayout)
}

// Today returns the local calendar date of now.
func Today() string {
	return DateOf(time.Now())
}

// DayBounds returns the half-open [start, end) interval of a local date.
func DayBounds(date string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return start, start.AddDate(0, 0, 1), nil
}

// EmptyDailyStats returns the defaults reported for a date with no row.
func EmptyDailyStats(date string) DailyStats {
	return DailyStats{
		Date:            date,
		DominantEmotion: DefaultEmotion,
		EmotionCounts:   map[string]int{},
	}
}

// EmptyTotalStats returns the defaults reported for an empty log.
func EmptyTotalStats() TotalStats {
	return TotalStats{
		DominantEmotion: DefaultEmotion,
		EmotionCounts:   map[string]int{},
	}
}

// seconds converts a duration to float seconds for storage.
func seconds(d time.Duration) float64 {
	return d.Seconds()
}

// unixSeconds is the stored timestamp representation.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// dominant picks the most frequent emotion; ties go to the emotion seen
// first. order lists emotions by first appearance.
func dominant(counts map[string]int, order []string) string {
	best, bestN := DefaultEmotion, 0
	for _, e := range order {
		if n := counts[e]; n > bestN {
			best, bestN = e, n
		}
	}
	return best
}

// dateRange returns the dates of the days ending at end, oldest first.
func dateRange(end time.Time, days int) []string {
	if days <= 0 {
		return nil
	}
	end = end.In(time.Local)
	dates := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		dates = append(dates, DateOf(end.AddDate(0, 0, -i)))
	}
	return dates
}
