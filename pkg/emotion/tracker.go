package emotion

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/internal/worker"
	"github.com/teslashibe/glow/pkg/metrics"
)

// Face is one detected face with its per-category emotion scores.
type Face struct {
	Box    image.Rectangle
	Scores map[Label]float64
}

// Detection is the result of classifying one camera frame.
type Detection struct {
	Faces       []Face
	FrameWidth  int
	FrameHeight int
}

// FaceDetector grabs a frame and classifies the faces in it.
type FaceDetector interface {
	DetectFaces(ctx context.Context) (Detection, error)
}

// Tracker drives a Stabilizer from a FaceDetector on its own goroutine.
type Tracker struct {
	stabilizer *Stabilizer
	detector   FaceDetector
	interval   time.Duration
	logger     *slog.Logger
	loop       *worker.Loop
}

// NewTracker creates a tracker polling detector every cfg.DetectionInterval.
func NewTracker(stabilizer *Stabilizer, detector FaceDetector, cfg Config, logger *slog.Logger) *Tracker {
	logger = log.Component(logger, "emotion-tracker")
	return &Tracker{
		stabilizer: stabilizer,
		detector:   detector,
		interval:   cfg.DetectionInterval,
		logger:     logger,
		loop:       worker.New("emotion-tracker", logger),
	}
}

// Poll runs one detection cycle. Detector errors are returned without
// touching the stabilizer, so they never count towards no-face.
func (t *Tracker) Poll(ctx context.Context) error {
	det, err := t.detector.DetectFaces(ctx)
	if err != nil {
		return err
	}

	if len(det.Faces) == 0 {
		t.stabilizer.ObserveNoFace()
		return nil
	}

	// Only the first face drives the light.
	face := det.Faces[0]
	obs := ObservationFromScores(face.Scores)
	obs.Box = &face.Box
	obs.FrameWidth = det.FrameWidth
	obs.FrameHeight = det.FrameHeight
	t.stabilizer.Observe(obs)
	return nil
}

// Run polls until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("emotion tracker running", "interval", t.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				metrics.PollErrors.WithLabelValues("emotion").Inc()
				t.logger.Warn("detection failed, skipping frame", "error", err)
			}
		}
	}
}

// Start runs the poll loop in the background.
func (t *Tracker) Start(ctx context.Context) error {
	if t.detector == nil {
		return ErrNoDetector
	}
	t.loop.Start(ctx, t.Run)
	return nil
}

// Stop cancels the poll loop and waits up to timeout for it to exit.
func (t *Tracker) Stop(timeout time.Duration) bool {
	return t.loop.Stop(timeout)
}

// Stabilizer returns the stabilizer this tracker feeds.
func (t *Tracker) Stabilizer() *Stabilizer {
	return t.stabilizer
}
