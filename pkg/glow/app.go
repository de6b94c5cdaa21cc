// Package glow wires the installation together: sensing loops, the light
// controller, the event store, the scheduler and the dashboard.
package glow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/glow/internal/config"
	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/internal/worker"
	"github.com/teslashibe/glow/pkg/emotion"
	"github.com/teslashibe/glow/pkg/ledstrip"
	"github.com/teslashibe/glow/pkg/light"
	"github.com/teslashibe/glow/pkg/mpr121"
	"github.com/teslashibe/glow/pkg/scheduler"
	"github.com/teslashibe/glow/pkg/status"
	"github.com/teslashibe/glow/pkg/store"
	"github.com/teslashibe/glow/pkg/touch"
	"github.com/teslashibe/glow/pkg/web"
)

// Shutdown timings.
const (
	StandbyFade   = 500 * time.Millisecond
	StandbyPause  = 300 * time.Millisecond
	drainTimeout  = 5 * time.Second
	webStopBudget = 2 * time.Second
)

// mockTouchScript presses electrode 0 for one second every six at the
// default poll rate.
var mockTouchScript = mpr121.PulseScript(0, 50, 10)

// App owns every component and their lifecycle.
type App struct {
	cfg      config.Config
	logger   *slog.Logger
	session  string
	detector emotion.FaceDetector

	strip      ledstrip.Strip
	light      *light.Controller
	store      store.Store
	recorder   *store.Recorder
	stabilizer *emotion.Stabilizer
	emotion    *emotion.Tracker
	sensor     touch.Sensor
	touch      touch.Service
	status     *status.Aggregator
	scheduler  *scheduler.Scheduler
	web        *web.Server
}

// New validates cfg. detector may be nil when no camera is available; the
// installation then stays in no_face.
func New(cfg config.Config, detector emotion.FaceDetector, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	session := uuid.NewString()
	return &App{
		cfg:      cfg,
		logger:   log.Or(logger).With("session", session),
		session:  session,
		detector: detector,
	}, nil
}

// Session identifies this run in the logs.
func (a *App) Session() string {
	return a.session
}

// Init opens the hardware and the store and builds every component. A
// missing touch chip is not fatal.
func (a *App) Init(ctx context.Context) error {
	var err error

	a.strip, err = ledstrip.Open(a.cfg.LED, a.logger)
	if err != nil {
		return fmt.Errorf("led strip: %w", err)
	}
	a.light = light.NewController(a.strip, a.cfg.Light, a.logger)

	a.store, err = store.Open(ctx, a.cfg.Store.Backend, a.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("event store: %w", err)
	}
	a.recorder = store.NewRecorder(a.store, store.DefaultQueueSize, a.logger)

	a.stabilizer = emotion.NewStabilizer(a.cfg.Emotion, a.light, a.recorder, a.logger)
	a.emotion = emotion.NewTracker(a.stabilizer, a.detector, a.cfg.Emotion, a.logger)
	if a.detector == nil {
		a.logger.Warn("no camera, emotion tracking disabled")
	}

	a.touch = a.initTouch(ctx)
	a.status = status.New(a.stabilizer, a.touch, a.light, a.store, a.logger)

	a.scheduler, err = scheduler.New(a.store, a.touch, a.logger)
	if err != nil {
		return err
	}
	a.web = web.NewServer(a.cfg.Web, a.status, a.light, a.logger)

	a.light.NotifyEmotion(emotion.NoFace)
	return nil
}

func (a *App) initTouch(ctx context.Context) touch.Service {
	if !a.cfg.Touch.Enabled {
		a.logger.Info("touch sensing disabled")
		return touch.Disabled{}
	}

	switch a.cfg.Touch.Backend {
	case config.TouchMock:
		a.sensor = mpr121.NewMock(mockTouchScript...)
	default:
		dev, err := mpr121.Open(a.cfg.Touch.MPR121)
		if err != nil {
			a.logger.Warn("touch sensor unavailable, continuing without touch", "error", err)
			return touch.Disabled{}
		}
		a.sensor = dev
	}

	tr := touch.NewTracker(a.sensor, a.light, a.recorder, a.cfg.Touch.PollInterval, a.logger)
	if today, err := a.store.DailyStats(ctx, store.Today()); err != nil {
		a.logger.Warn("could not seed today's touch stats", "error", err)
	} else {
		tr.Seed(touch.CacheFromStats(today))
	}
	return tr
}

// Run starts the loops and the dashboard and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.emotion.Start(ctx); err != nil && !errors.Is(err, emotion.ErrNoDetector) {
		return err
	}
	if err := a.touch.Start(ctx); err != nil {
		return err
	}
	a.scheduler.Start()
	if err := a.web.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("glow running", "dashboard", a.cfg.Web.Addr())
	<-ctx.Done()
	return nil
}

// Shutdown stops everything in dependency order and leaves the strip dark.
func (a *App) Shutdown() {
	a.logger.Info("shutting down")

	if a.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), webStopBudget)
		if err := a.web.Shutdown(ctx); err != nil {
			a.logger.Warn("web shutdown", "error", err)
		}
		cancel()
	}

	if a.emotion != nil && !a.emotion.Stop(worker.DefaultStopTimeout) {
		a.logger.Warn("emotion tracker did not stop in time")
	}
	if a.touch != nil && !a.touch.Stop(worker.DefaultStopTimeout) {
		a.logger.Warn("touch tracker did not stop in time")
	}

	if a.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := a.recorder.Close(ctx); err != nil {
			a.logger.Warn("event queue not drained", "error", err)
		}
		cancel()
	}

	if a.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), worker.DefaultStopTimeout)
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
		cancel()
	}

	if a.light != nil {
		a.darken()
		a.light.Close()
	}

	closeQuietly(a.logger, "led strip", a.strip)
	if c, ok := a.sensor.(io.Closer); ok {
		closeQuietly(a.logger, "touch sensor", c)
	}
	if c, ok := a.detector.(io.Closer); ok {
		closeQuietly(a.logger, "camera", c)
	}
	closeQuietly(a.logger, "event store", a.store)
}

// darken fades to standby, pauses, then clears. A failed fade clears at once.
func (a *App) darken() {
	ctx, cancel := context.WithTimeout(context.Background(), StandbyFade+time.Second)
	defer cancel()

	if err := a.light.FadeToStandby(ctx, StandbyFade); err != nil {
		a.logger.Warn("standby fade failed", "error", err)
	} else {
		time.Sleep(StandbyPause)
	}
	if err := a.light.Clear(); err != nil {
		a.logger.Error("could not clear strip", "error", err)
	}
}

func closeQuietly(logger *slog.Logger, what string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "component", what, "error", err)
	}
}
