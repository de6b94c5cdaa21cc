package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqlite, err := Open(ctx, BackendSQLite, filepath.Join(t.TempDir(), "glow.db"))
	require.NoError(t, err)
	memory, err := Open(ctx, BackendMemory, "")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = sqlite.Close()
		_ = memory.Close()
	})
	return map[string]Store{"sqlite": sqlite, "memory": memory}
}

func TestDailyStatsRoundTrip(t *testing.T) {
	ctx := context.Background()
	date := DateOf(day)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			durations := []time.Duration{
				500 * time.Millisecond,
				250 * time.Millisecond,
				1500 * time.Millisecond,
			}
			for i, d := range durations {
				require.NoError(t, st.LogTouch(ctx, TouchEvent{
					Timestamp: day.Add(time.Duration(i) * time.Minute),
					Electrode: i,
					Duration:  d,
				}))
			}
			// Different day, must not be counted.
			require.NoError(t, st.LogTouch(ctx, TouchEvent{
				Timestamp: day.AddDate(0, 0, 1),
				Electrode: 0,
				Duration:  time.Second,
			}))

			for i := 0; i < 3; i++ {
				require.NoError(t, st.RecomputeDailyStats(ctx, date))
			}

			stats, err := st.DailyStats(ctx, date)
			require.NoError(t, err)
			assert.Equal(t, date, stats.Date)
			assert.Equal(t, 3, stats.TouchCount)
			assert.Equal(t, 2.25, stats.TotalTouchDuration)
			assert.Equal(t, 1.5, stats.MaxTouchDuration)
			assert.Equal(t, 0.75, stats.AvgTouchDuration)
		})
	}
}

func TestDailyStatsDominantEmotion(t *testing.T) {
	ctx := context.Background()
	date := DateOf(day)

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i, e := range []string{"sad", "happy", "happy", "sad", "fear"} {
				require.NoError(t, st.LogEmotion(ctx, EmotionEvent{
					Timestamp:  day.Add(time.Duration(i) * time.Second),
					Emotion:    e,
					Confidence: 0.8,
					Duration:   2 * time.Second,
				}))
			}
			require.NoError(t, st.RecomputeDailyStats(ctx, date))

			stats, err := st.DailyStats(ctx, date)
			require.NoError(t, err)
			// sad and happy tie; sad was seen first.
			assert.Equal(t, "sad", stats.DominantEmotion)
			assert.Equal(t, map[string]int{"sad": 2, "happy": 2, "fear": 1}, stats.EmotionCounts)
			assert.Zero(t, stats.TouchCount)
		})
	}
}

func TestDailyStatsDefaults(t *testing.T) {
	ctx := context.Background()

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			stats, err := st.DailyStats(ctx, "2020-01-01")
			require.NoError(t, err)
			assert.Equal(t, EmptyDailyStats("2020-01-01"), stats)
			assert.Equal(t, DefaultEmotion, stats.DominantEmotion)
			assert.NotNil(t, stats.EmotionCounts)

			totals, err := st.TotalStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, EmptyTotalStats(), totals)
		})
	}
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.DailyStats(ctx, "14/03/2026")
			assert.ErrorIs(t, err, ErrInvalidDate)

			assert.ErrorIs(t, st.RecomputeDailyStats(ctx, "yesterday"), ErrInvalidDate)
			assert.ErrorIs(t, st.LogEmotion(ctx, EmotionEvent{}), ErrInvalidEvent)
			assert.ErrorIs(t, st.LogTouch(ctx, TouchEvent{Electrode: -1}), ErrInvalidEvent)
		})
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			yesterday := day.AddDate(0, 0, -1)
			require.NoError(t, st.LogTouch(ctx, TouchEvent{Timestamp: yesterday, Electrode: 3, Duration: time.Second}))
			require.NoError(t, st.RecomputeDailyStats(ctx, DateOf(yesterday)))

			history, err := st.History(ctx, day, 3)
			require.NoError(t, err)
			require.Len(t, history, 3)

			assert.Equal(t, DateOf(day.AddDate(0, 0, -2)), history[0].Date)
			assert.Equal(t, DateOf(yesterday), history[1].Date)
			assert.Equal(t, DateOf(day), history[2].Date)
			assert.Equal(t, 1, history[1].TouchCount)
			assert.Zero(t, history[2].TouchCount)

			empty, err := st.History(ctx, day, 0)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestTotalStats(t *testing.T) {
	ctx := context.Background()

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.LogEmotion(ctx, EmotionEvent{Timestamp: day, Emotion: "happy", Confidence: 0.9, Duration: time.Second}))
			require.NoError(t, st.LogEmotion(ctx, EmotionEvent{Timestamp: day.AddDate(0, 0, -5), Emotion: "angry", Confidence: 0.9, Duration: time.Second}))
			require.NoError(t, st.LogEmotion(ctx, EmotionEvent{Timestamp: day.AddDate(0, 0, -9), Emotion: "angry", Confidence: 0.9, Duration: time.Second}))
			require.NoError(t, st.LogTouch(ctx, TouchEvent{Timestamp: day, Electrode: 1, Duration: 2 * time.Second}))
			require.NoError(t, st.LogTouch(ctx, TouchEvent{Timestamp: day.AddDate(0, -1, 0), Electrode: 2, Duration: time.Second}))

			totals, err := st.TotalStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, totals.TotalEmotions)
			assert.Equal(t, "angry", totals.DominantEmotion)
			assert.Equal(t, 2, totals.TotalTouches)
			assert.Equal(t, 3.0, totals.TotalTouchDuration)
			assert.Equal(t, 2.0, totals.MaxTouchDuration)
			assert.Equal(t, 1.5, totals.AvgTouchDuration)
		})
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()

	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Close())
			assert.ErrorIs(t, st.LogTouch(ctx, TouchEvent{Electrode: 0, Duration: time.Second}), ErrClosed)
			_, err := st.TotalStats(ctx)
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "glow.db")
	date := DateOf(day)

	first := NewSQLiteStore(path)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.LogTouch(ctx, TouchEvent{Timestamp: day, Electrode: 4, Duration: 500 * time.Millisecond}))
	require.NoError(t, first.RecomputeDailyStats(ctx, date))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	require.NoError(t, second.Init(ctx))
	defer second.Close()

	stats, err := second.DailyStats(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TouchCount)
	assert.Equal(t, 0.5, stats.TotalTouchDuration)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Backend("postgres"), "")
	assert.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	start, end, err := DayBounds("2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local), start)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local), end)
}
