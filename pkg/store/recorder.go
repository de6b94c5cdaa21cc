package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/metrics"
)

// DefaultQueueSize is the recorder's buffered event capacity.
const DefaultQueueSize = 256

// writeTimeout bounds a single insert plus its daily recompute.
const writeTimeout = 5 * time.Second

type record struct {
	emotion *EmotionEvent
	touch   *TouchEvent
}

func (r record) kind() string {
	if r.emotion != nil {
		return "emotion"
	}
	return "touch"
}

func (r record) timestamp() time.Time {
	if r.emotion != nil {
		return r.emotion.Timestamp
	}
	return r.touch.Timestamp
}

// Recorder writes events to a Store from a single background goroutine so
// callers on the sensing path never wait on the database. Events are written
// in enqueue order and each write is followed by a recompute of that day's
// summary row.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	queue  chan record
	closed bool

	done chan struct{}
}

// NewRecorder starts a recorder writing to st. size <= 0 uses DefaultQueueSize.
func NewRecorder(st Store, size int, logger *slog.Logger) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	r := &Recorder{
		store:  st,
		logger: log.Component(logger, "recorder"),
		now:    time.Now,
		queue:  make(chan record, size),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// LogEmotion queues an emotion event stamped now.
func (r *Recorder) LogEmotion(label string, confidence float64, d time.Duration) {
	r.enqueue(record{emotion: &EmotionEvent{
		Timestamp:  r.now(),
		Emotion:    label,
		Confidence: confidence,
		Duration:   d,
	}})
}

// LogTouch queues a touch event stamped now.
func (r *Recorder) LogTouch(electrode int, d time.Duration) {
	r.enqueue(record{touch: &TouchEvent{
		Timestamp: r.now(),
		Electrode: electrode,
		Duration:  d,
	}})
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		metrics.StoreDropped.Inc()
		r.logger.Warn("recorder closed, dropping event", "kind", rec.kind())
		return
	}

	select {
	case r.queue <- rec:
	default:
		metrics.StoreDropped.Inc()
		r.logger.Warn("recorder queue full, dropping event", "kind", rec.kind())
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		r.write(rec)
	}
}

func (r *Recorder) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	if rec.emotion != nil {
		err = r.store.LogEmotion(ctx, *rec.emotion)
	} else {
		err = r.store.LogTouch(ctx, *rec.touch)
	}
	if err != nil {
		metrics.StoreWrites.WithLabelValues(rec.kind(), "error").Inc()
		r.logger.Error("failed to record event", "kind", rec.kind(), "error", err)
		return
	}
	metrics.StoreWrites.WithLabelValues(rec.kind(), "ok").Inc()

	date := DateOf(rec.timestamp())
	if err := r.store.RecomputeDailyStats(ctx, date); err != nil {
		r.logger.Error("failed to recompute daily stats", "date", date, "error", err)
	}
}

// Close stops accepting events and waits for queued ones to be written or
// for ctx to end. Events logged after Close are dropped.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("recorder drain interrupted", "pending", len(r.queue))
		return ctx.Err()
	}
}
