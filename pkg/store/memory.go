package store

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Useful for tests and for
// running without a database file; nothing survives a restart.
type MemoryStore struct {
	now func() time.Time

	mu       sync.RWMutex
	emotions []EmotionEvent
	touches  []TouchEvent
	daily    map[string]DailyStats
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:   time.Now,
		daily: make(map[string]DailyStats),
	}
}

// LogEmotion appends an emotion event.
func (s *MemoryStore) LogEmotion(ctx context.Context, ev EmotionEvent) error {
	if ev.Emotion == "" || ev.Duration < 0 {
		return fmt.Errorf("%w: emotion %q duration %v", ErrInvalidEvent, ev.Emotion, ev.Duration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	s.emotions = append(s.emotions, ev)
	return nil
}

// LogTouch appends a touch event.
func (s *MemoryStore) LogTouch(ctx context.Context, ev TouchEvent) error {
	if ev.Electrode < 0 || ev.Duration < 0 {
		return fmt.Errorf("%w: electrode %d duration %v", ErrInvalidEvent, ev.Electrode, ev.Duration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	s.touches = append(s.touches, ev)
	return nil
}

// RecomputeDailyStats rebuilds the summary for date from the event log.
func (s *MemoryStore) RecomputeDailyStats(ctx context.Context, date string) error {
	start, end, err := DayBounds(date)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	within := func(t time.Time) bool {
		return !t.Before(start) && t.Before(end)
	}

	stats := EmptyDailyStats(date)
	var order []string
	for _, ev := range s.emotions {
		if !within(ev.Timestamp) {
			continue
		}
		if _, seen := stats.EmotionCounts[ev.Emotion]; !seen {
			order = append(order, ev.Emotion)
		}
		stats.EmotionCounts[ev.Emotion]++
	}
	stats.DominantEmotion = dominant(stats.EmotionCounts, order)

	for _, ev := range s.touches {
		if !within(ev.Timestamp) {
			continue
		}
		d := seconds(ev.Duration)
		stats.TouchCount++
		stats.TotalTouchDuration += d
		if d > stats.MaxTouchDuration {
			stats.MaxTouchDuration = d
		}
	}
	if stats.TouchCount > 0 {
		stats.AvgTouchDuration = stats.TotalTouchDuration / float64(stats.TouchCount)
	}

	s.daily[date] = stats
	return nil
}

// DailyStats returns the summary row for date, or defaults.
func (s *MemoryStore) DailyStats(ctx context.Context, date string) (DailyStats, error) {
	if _, _, err := DayBounds(date); err != nil {
		return DailyStats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return DailyStats{}, ErrClosed
	}
	stats, ok := s.daily[date]
	if !ok {
		return EmptyDailyStats(date), nil
	}
	stats.EmotionCounts = maps.Clone(stats.EmotionCounts)
	return stats, nil
}

// History returns the summary rows for the days ending at end, oldest first.
func (s *MemoryStore) History(ctx context.Context, end time.Time, days int) ([]DailyStats, error) {
	dates := dateRange(end, days)
	history := make([]DailyStats, 0, len(dates))
	for _, date := range dates {
		stats, err := s.DailyStats(ctx, date)
		if err != nil {
			return nil, err
		}
		history = append(history, stats)
	}
	return history, nil
}

// TotalStats aggregates the whole event log.
func (s *MemoryStore) TotalStats(ctx context.Context) (TotalStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return TotalStats{}, ErrClosed
	}

	stats := EmptyTotalStats()
	var order []string
	for _, ev := range s.emotions {
		if _, seen := stats.EmotionCounts[ev.Emotion]; !seen {
			order = append(order, ev.Emotion)
		}
		stats.EmotionCounts[ev.Emotion]++
		stats.TotalEmotions++
	}
	stats.DominantEmotion = dominant(stats.EmotionCounts, order)

	for _, ev := range s.touches {
		d := seconds(ev.Duration)
		stats.TotalTouches++
		stats.TotalTouchDuration += d
		if d > stats.MaxTouchDuration {
			stats.MaxTouchDuration = d
		}
	}
	if stats.TotalTouches > 0 {
		stats.AvgTouchDuration = stats.TotalTouchDuration / float64(stats.TotalTouches)
	}
	return stats, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
