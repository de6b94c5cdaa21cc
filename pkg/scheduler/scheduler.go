// Package scheduler runs the daily statistics housekeeping on cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/store"
)

const (
	// MidnightSpec closes the previous day.
	MidnightSpec = "0 0 * * *"
	// HourlySpec refreshes today's row.
	HourlySpec = "@hourly"

	jobTimeout = 30 * time.Second
)

// Recomputer rebuilds one day's aggregate row.
type Recomputer interface {
	RecomputeDailyStats(ctx context.Context, date string) error
}

// DailyResetter clears a day-scoped cache.
type DailyResetter interface {
	ResetDaily()
}

// Scheduler manages the rollover jobs.
type Scheduler struct {
	cron   *cron.Cron
	stats  Recomputer
	touch  DailyResetter
	logger *slog.Logger
	now    func() time.Time
}

// New creates a scheduler with the midnight and hourly jobs registered.
// touch may be nil.
func New(stats Recomputer, touch DailyResetter, logger *slog.Logger) (*Scheduler, error) {
	logger = log.Component(logger, "scheduler")
	cl := cronLogger{logger}

	s := &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		stats:  stats,
		touch:  touch,
		logger: logger,
		now:    time.Now,
	}

	if _, err := s.cron.AddFunc(MidnightSpec, s.job("midnight", s.RunMidnight)); err != nil {
		return nil, fmt.Errorf("schedule midnight rollover: %w", err)
	}
	if _, err := s.cron.AddFunc(HourlySpec, s.job("hourly", s.RecomputeToday)); err != nil {
		return nil, fmt.Errorf("schedule hourly recompute: %w", err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunMidnight clears the touch cache and recomputes yesterday's row.
func (s *Scheduler) RunMidnight(ctx context.Context) error {
	if s.touch != nil {
		s.touch.ResetDaily()
	}
	yesterday := store.DateOf(s.now().AddDate(0, 0, -1))
	if err := s.stats.RecomputeDailyStats(ctx, yesterday); err != nil {
		return fmt.Errorf("recompute %s: %w", yesterday, err)
	}
	s.logger.Info("daily rollover complete", "closed", yesterday)
	return nil
}

// RecomputeToday rebuilds today's row from the event log.
func (s *Scheduler) RecomputeToday(ctx context.Context) error {
	today := store.DateOf(s.now())
	if err := s.stats.RecomputeDailyStats(ctx, today); err != nil {
		return fmt.Errorf("recompute %s: %w", today, err)
	}
	return nil
}

func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, append(kv, "error", err)...)
}
