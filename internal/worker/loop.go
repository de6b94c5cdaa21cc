// Package worker runs long-lived poll loops on their own goroutine with a
// bounded stop.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/glow/internal/log"
)

// DefaultStopTimeout bounds how long Stop waits for a loop to exit.
const DefaultStopTimeout = 2 * time.Second

// Loop owns one goroutine running a blocking function until its context is
// cancelled.
type Loop struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a named loop.
func New(name string, logger *slog.Logger) *Loop {
	return &Loop{
		name:   name,
		logger: log.Component(logger, name),
	}
}

// Start launches run in a goroutine. Calling Start on a running loop is a no-op.
func (l *Loop) Start(parent context.Context, run func(ctx context.Context)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.running = true

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("loop panicked", "panic", r)
			}
		}()
		run(ctx)
	}()

	l.logger.Info("loop started")
}

// Stop cancels the loop and waits up to timeout for it to exit. It reports
// whether the loop exited in time; a late loop is logged and abandoned.
func (l *Loop) Stop(timeout time.Duration) bool {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return true
	}
	cancel, done := l.cancel, l.done
	l.running = false
	l.mu.Unlock()

	cancel()

	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	select {
	case <-done:
		l.logger.Info("loop stopped")
		return true
	case <-time.After(timeout):
		l.logger.Warn("loop did not stop in time, continuing shutdown", "timeout", timeout)
		return false
	}
}

// Running reports whether the loop has been started and not stopped.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Sleep waits for d or until ctx is done. It returns false if ctx ended first.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
