// Package light arbitrates between emotion colors and touch feedback on the
// LED strip and runs color effects on a dedicated goroutine.
//
// Every public command updates the logical state under a lock and hands an
// effect to the worker. A new effect cancels the one in flight, so a touch
// never waits behind a running emotion transition or shimmer.
package light

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/internal/worker"
	"github.com/teslashibe/glow/pkg/emotion"
	"github.com/teslashibe/glow/pkg/metrics"
)

// Device drives the physical strip.
type Device interface {
	// SetAll buffers one color for every pixel.
	SetAll(r, g, b uint8) error
	// Commit pushes the buffered pixels to the strip.
	Commit() error
}

// Mode says who owns the strip.
type Mode int

const (
	Normal Mode = iota
	TouchFeedback
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case TouchFeedback:
		return "touch_feedback"
	default:
		return "unknown"
	}
}

// MarshalText renders the mode name in JSON.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "normal":
		*m = Normal
	case "touch_feedback":
		*m = TouchFeedback
	default:
		return fmt.Errorf("unknown light mode %q", text)
	}
	return nil
}

// State is a copy of the controller's logical state.
type State struct {
	Displayed Color         `json:"displayed"`
	Target    Color         `json:"target"`
	Emotion   emotion.Label `json:"emotion"`
	Intensity float64       `json:"intensity"`
	Mode      Mode          `json:"mode"`
	Effect    string        `json:"effect"`
}

type effectFunc func(ctx context.Context, settle func()) error

type request struct {
	name string
	run  effectFunc
	ctx  context.Context
	done chan error
}

// Controller owns the LED strip.
type Controller struct {
	dev    Device
	cfg    Config
	logger *slog.Logger
	random func() float64

	mu        sync.Mutex
	displayed Color
	target    Color
	emotion   emotion.Label
	intensity float64
	mode      Mode
	effect    string
	closed    bool

	pending *request
	cancel  context.CancelFunc
	idle    bool
	idleCh  chan struct{}

	wake   chan struct{}
	quit   chan struct{}
	exited chan struct{}
}

// NewController starts a controller for dev showing nothing until the first
// command.
func NewController(dev Device, cfg Config, logger *slog.Logger) *Controller {
	idleCh := make(chan struct{})
	close(idleCh)

	c := &Controller{
		dev:       dev,
		cfg:       cfg,
		logger:    log.Component(logger, "light"),
		random:    rand.Float64,
		target:    ColorFor(emotion.Neutral),
		emotion:   emotion.Neutral,
		intensity: clamp01(cfg.Intensity),
		idle:      true,
		idleCh:    idleCh,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
	go c.run()
	return c
}

// NotifyEmotion shows the color of label. While touch feedback is showing
// the request only updates the emotion that ReturnFromTouch will restore.
func (c *Controller) NotifyEmotion(label emotion.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.emotion = label
	c.target = ColorFor(label)
	if c.mode == TouchFeedback {
		c.logger.Debug("touch feedback active, not showing emotion", "emotion", label)
		return
	}
	c.renderLocked(c.cfg.EmotionSteps)
}

// EnterTouchFeedback switches the strip to full white.
func (c *Controller) EnterTouchFeedback() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mode = TouchFeedback
	c.submitLocked("touch", c.transition(White, c.cfg.TouchSteps))
}

// ReturnFromTouch goes back to the color of the current emotion.
func (c *Controller) ReturnFromTouch() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != TouchFeedback {
		return
	}
	c.mode = Normal
	c.renderLocked(c.cfg.ReturnSteps)
}

// SetIntensity sets the brightness baseline, clamped to [0,1]. In normal
// mode the strip is rescaled at once.
func (c *Controller) SetIntensity(x float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.intensity = clamp01(x)
	c.logger.Info("intensity changed", "intensity", c.intensity)
	if c.mode == Normal {
		c.renderLocked(1)
	}
}

// Intensity returns the brightness baseline.
func (c *Controller) Intensity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intensity
}

// FadeToStandby ramps the current emotion color down to the standby
// intensity over d and waits for it to finish.
func (c *Controller) FadeToStandby(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.mode = Normal
	done := c.submitLocked("standby", c.fade(c.target, c.intensity, d))
	c.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear turns every pixel off and waits for the write.
func (c *Controller) Clear() error {
	c.mu.Lock()
	done := c.submitLocked("clear", func(ctx context.Context, _ func()) error {
		err := c.write(Off)
		c.setDisplayed(Off)
		return err
	})
	c.mu.Unlock()
	return <-done
}

// State returns a copy of the logical state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Displayed: c.displayed,
		Target:    c.target,
		Emotion:   c.emotion,
		Intensity: c.intensity,
		Mode:      c.mode,
		Effect:    c.effect,
	}
}

// Settle waits until no finite effect is pending or running. A shimmer
// counts as settled once its first frame is shown.
func (c *Controller) Settle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idleCh
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker. The strip keeps its last frame.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.pending != nil {
		c.pending.done <- ErrClosed
		c.pending = nil
	}
	c.markIdleLocked()
	c.mu.Unlock()

	close(c.quit)
	<-c.exited
	return nil
}

// renderLocked shows the current emotion at the current intensity. Caller
// holds mu.
func (c *Controller) renderLocked(steps int) {
	scaled := c.target.Scale(c.intensity)
	if c.emotion == emotion.NoFace {
		c.submitLocked("shimmer", c.shimmer(scaled))
		return
	}
	c.submitLocked("transition", c.transition(scaled, steps))
}

// submitLocked replaces whatever effect is pending or running. Caller holds mu.
func (c *Controller) submitLocked(name string, run effectFunc) <-chan error {
	req := &request{name: name, run: run, done: make(chan error, 1)}
	if c.closed {
		req.done <- ErrClosed
		return req.done
	}

	if c.cancel != nil {
		c.cancel()
	}
	if c.pending != nil {
		c.pending.done <- ErrSuperseded
	}
	req.ctx, c.cancel = context.WithCancel(context.Background())
	c.pending = req

	if c.idle {
		c.idle = false
		c.idleCh = make(chan struct{})
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}

	metrics.LightEffects.WithLabelValues(name).Inc()
	return req.done
}

func (c *Controller) markIdleLocked() {
	if !c.idle {
		c.idle = true
		close(c.idleCh)
	}
}

func (c *Controller) run() {
	defer close(c.exited)

	for {
		select {
		case <-c.quit:
			return
		case <-c.wake:
		}

		c.mu.Lock()
		req := c.pending
		c.pending = nil
		if req != nil {
			c.effect = req.name
		}
		c.mu.Unlock()
		if req == nil {
			continue
		}

		settle := func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.pending == nil {
				c.markIdleLocked()
			}
		}

		err := req.run(req.ctx, settle)
		settle()
		req.done <- err
	}
}

// transition blends from the displayed color to to over steps frames.
// Tunables are read when the effect is created, under mu.
func (c *Controller) transition(to Color, steps int) effectFunc {
	delay := c.cfg.StepDelay
	return func(ctx context.Context, _ func()) error {
		from := c.Displayed()
		for s := 1; s <= steps; s++ {
			if ctx.Err() != nil {
				return ErrSuperseded
			}
			c.show(Lerp(from, to, s, steps))
			if s < steps && !worker.Sleep(ctx, delay) {
				return ErrSuperseded
			}
		}
		if steps < 1 {
			c.show(to)
		}
		return nil
	}
}

// shimmer perturbs every channel of base by up to ShimmerAmount until
// superseded.
func (c *Controller) shimmer(base Color) effectFunc {
	interval, amount := c.cfg.ShimmerInterval, c.cfg.ShimmerAmount
	return func(ctx context.Context, settle func()) error {
		for {
			c.show(c.perturb(base, amount))
			settle()
			if !worker.Sleep(ctx, interval) {
				return nil
			}
		}
	}
}

func (c *Controller) perturb(base Color, amount float64) Color {
	jitter := func(v uint8) uint8 {
		return channel(float64(v) * (1 + (c.random()*2-1)*amount))
	}
	return Color{R: jitter(base.R), G: jitter(base.G), B: jitter(base.B)}
}

// fade ramps the brightness of target from one intensity to the standby
// intensity at StandbyRate steps per second.
func (c *Controller) fade(target Color, from float64, d time.Duration) effectFunc {
	to := c.cfg.StandbyIntensity
	steps := max(1, int(d.Seconds()*float64(c.cfg.StandbyRate)))
	delay := d / time.Duration(steps)

	return func(ctx context.Context, _ func()) error {
		for i := 1; i <= steps; i++ {
			if ctx.Err() != nil {
				return ErrSuperseded
			}
			level := from + (to-from)*float64(i)/float64(steps)
			c.show(target.Scale(level))
			if !worker.Sleep(ctx, delay) {
				return ErrSuperseded
			}
		}

		c.mu.Lock()
		c.intensity = to
		c.mu.Unlock()
		return nil
	}
}

// show writes one frame. A failed write is logged and skipped; the logical
// color still advances so the next frame continues the effect.
func (c *Controller) show(col Color) {
	if err := c.write(col); err != nil {
		metrics.LightStepErrors.Inc()
		c.logger.Warn("led write failed, skipping frame", "color", col, "error", err)
	}
	c.setDisplayed(col)
}

func (c *Controller) write(col Color) error {
	if err := c.dev.SetAll(col.R, col.G, col.B); err != nil {
		return err
	}
	return c.dev.Commit()
}

func (c *Controller) setDisplayed(col Color) {
	c.mu.Lock()
	c.displayed = col
	c.mu.Unlock()
}

// Displayed returns the color last sent to the strip.
func (c *Controller) Displayed() Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

func clamp01(x float64) float64 {
	return max(0, min(1, x))
}
