package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS emotion_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp REAL NOT NULL,
	emotion TEXT NOT NULL,
	confidence REAL NOT NULL,
	duration REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emotion_events_timestamp ON emotion_events (timestamp);

CREATE TABLE IF NOT EXISTS touch_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp REAL NOT NULL,
	electrode INTEGER NOT NULL,
	duration REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_touch_events_timestamp ON touch_events (timestamp);

CREATE TABLE IF NOT EXISTS daily_stats (
	date TEXT PRIMARY KEY,
	dominant_emotion TEXT NOT NULL,
	emotion_counts TEXT NOT NULL,
	touch_count INTEGER NOT NULL,
	avg_touch_duration REAL NOT NULL,
	max_touch_duration REAL NOT NULL,
	total_touch_duration REAL NOT NULL
);
`

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	path string
	now  func() time.Time

	mu sync.RWMutex
	db *sql.DB

	// writeMu serializes writers; SQLite allows one at a time.
	writeMu sync.Mutex
}

// NewSQLiteStore creates a store for the database at path. Call Init before use.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path, now: time.Now}
}

// Init opens the database and creates the tables if they don't exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping %s: %w", s.path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create tables: %w", err)
	}

	s.db = db
	return nil
}

// LogEmotion appends an emotion event.
func (s *SQLiteStore) LogEmotion(ctx context.Context, ev EmotionEvent) error {
	if ev.Emotion == "" || ev.Duration < 0 {
		return fmt.Errorf("%w: emotion %q duration %v", ErrInvalidEvent, ev.Emotion, ev.Duration)
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = db.ExecContext(ctx,
		`INSERT INTO emotion_events (timestamp, emotion, confidence, duration) VALUES (?, ?, ?, ?)`,
		unixSeconds(ev.Timestamp), ev.Emotion, ev.Confidence, seconds(ev.Duration))
	if err != nil {
		return fmt.Errorf("insert emotion event: %w", err)
	}
	return nil
}

// LogTouch appends a touch event.
func (s *SQLiteStore) LogTouch(ctx context.Context, ev TouchEvent) error {
	if ev.Electrode < 0 || ev.Duration < 0 {
		return fmt.Errorf("%w: electrode %d duration %v", ErrInvalidEvent, ev.Electrode, ev.Duration)
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = db.ExecContext(ctx,
		`INSERT INTO touch_events (timestamp, electrode, duration) VALUES (?, ?, ?)`,
		unixSeconds(ev.Timestamp), ev.Electrode, seconds(ev.Duration))
	if err != nil {
		return fmt.Errorf("insert touch event: %w", err)
	}
	return nil
}

// RecomputeDailyStats rebuilds the summary for date from the event log.
func (s *SQLiteStore) RecomputeDailyStats(ctx context.Context, date string) error {
	start, end, err := DayBounds(date)
	if err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	from, to := unixSeconds(start), unixSeconds(end)

	counts, order, err := emotionCounts(ctx, tx,
		`SELECT emotion, COUNT(*) AS n, MIN(id) AS first FROM emotion_events
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY emotion ORDER BY first`, from, to)
	if err != nil {
		return err
	}

	stats := EmptyDailyStats(date)
	stats.EmotionCounts = counts
	stats.DominantEmotion = dominant(counts, order)

	var total, longest float64
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration), 0), COALESCE(MAX(duration), 0)
		 FROM touch_events WHERE timestamp >= ? AND timestamp < ?`, from, to).
		Scan(&stats.TouchCount, &total, &longest)
	if err != nil {
		return fmt.Errorf("aggregate touches: %w", err)
	}
	stats.TotalTouchDuration = total
	stats.MaxTouchDuration = longest
	if stats.TouchCount > 0 {
		stats.AvgTouchDuration = total / float64(stats.TouchCount)
	}

	payload, err := json.Marshal(stats.EmotionCounts)
	if err != nil {
		return fmt.Errorf("encode emotion counts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_stats (date, dominant_emotion, emotion_counts, touch_count,
			avg_touch_duration, max_touch_duration, total_touch_duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			dominant_emotion = excluded.dominant_emotion,
			emotion_counts = excluded.emotion_counts,
			touch_count = excluded.touch_count,
			avg_touch_duration = excluded.avg_touch_duration,
			max_touch_duration = excluded.max_touch_duration,
			total_touch_duration = excluded.total_touch_duration
	`, stats.Date, stats.DominantEmotion, string(payload), stats.TouchCount,
		stats.AvgTouchDuration, stats.MaxTouchDuration, stats.TotalTouchDuration)
	if err != nil {
		return fmt.Errorf("upsert daily stats: %w", err)
	}

	return tx.Commit()
}

// DailyStats returns the summary row for date, or defaults.
func (s *SQLiteStore) DailyStats(ctx context.Context, date string) (DailyStats, error) {
	if _, _, err := DayBounds(date); err != nil {
		return DailyStats{}, err
	}
	db, err := s.getDB()
	if err != nil {
		return DailyStats{}, err
	}

	stats := EmptyDailyStats(date)
	var payload string
	err = db.QueryRowContext(ctx, `
		SELECT dominant_emotion, emotion_counts, touch_count,
			avg_touch_duration, max_touch_duration, total_touch_duration
		FROM daily_stats WHERE date = ?`, date).
		Scan(&stats.DominantEmotion, &payload, &stats.TouchCount,
			&stats.AvgTouchDuration, &stats.MaxTouchDuration, &stats.TotalTouchDuration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmptyDailyStats(date), nil
		}
		return DailyStats{}, fmt.Errorf("query daily stats %s: %w", date, err)
	}

	if err := json.Unmarshal([]byte(payload), &stats.EmotionCounts); err != nil {
		return DailyStats{}, fmt.Errorf("decode emotion counts %s: %w", date, err)
	}
	if stats.EmotionCounts == nil {
		stats.EmotionCounts = map[string]int{}
	}
	return stats, nil
}

// History returns the summary rows for the days ending at end, oldest first.
func (s *SQLiteStore) History(ctx context.Context, end time.Time, days int) ([]DailyStats, error) {
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
func (s *SQLiteStore) TotalStats(ctx context.Context) (TotalStats, error) {
	db, err := s.getDB()
	if err != nil {
		return TotalStats{}, err
	}

	counts, order, err := emotionCounts(ctx, db,
		`SELECT emotion, COUNT(*) AS n, MIN(id) AS first FROM emotion_events
		 GROUP BY emotion ORDER BY first`)
	if err != nil {
		return TotalStats{}, err
	}

	stats := EmptyTotalStats()
	stats.EmotionCounts = counts
	stats.DominantEmotion = dominant(counts, order)
	for _, n := range counts {
		stats.TotalEmotions += n
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration), 0), COALESCE(MAX(duration), 0) FROM touch_events`).
		Scan(&stats.TotalTouches, &stats.TotalTouchDuration, &stats.MaxTouchDuration)
	if err != nil {
		return TotalStats{}, fmt.Errorf("aggregate touches: %w", err)
	}
	if stats.TotalTouches > 0 {
		stats.AvgTouchDuration = stats.TotalTouchDuration / float64(stats.TotalTouches)
	}
	return stats, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// emotionCounts runs a grouped emotion count query returning rows of
// (emotion, count, first id) ordered by first appearance.
func emotionCounts(ctx context.Context, q querier, query string, args ...any) (map[string]int, []string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("count emotions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	var order []string
	for rows.Next() {
		var (
			emotion string
			n       int
			first   int64
		)
		if err := rows.Scan(&emotion, &n, &first); err != nil {
			return nil, nil, fmt.Errorf("scan emotion count: %w", err)
		}
		counts[emotion] = n
		order = append(order, emotion)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("count emotions: %w", err)
	}
	return counts, order, nil
}

var _ Store = (*SQLiteStore)(nil)
