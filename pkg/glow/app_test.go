package glow

import (
	"context"
	"image"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/teslashibe/glow/internal/config"
	"github.com/teslashibe/glow/pkg/emotion"
	"github.com/teslashibe/glow/pkg/ledstrip"
	"github.com/teslashibe/glow/pkg/store"
)

type happyCamera struct {
	closed bool
}

func (c *happyCamera) DetectFaces(context.Context) (emotion.Detection, error) {
	return emotion.Detection{
		Faces: []emotion.Face{{
			Box:    image.Rect(200, 100, 400, 300),
			Scores: map[emotion.Label]float64{emotion.Happy: 0.95, emotion.Neutral: 0.05},
		}},
		FrameWidth:  640,
		FrameHeight: 480,
	}, nil
}

func (c *happyCamera) Close() error {
	c.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.LED.Backend = ledstrip.BackendMock
	cfg.Store = config.StoreConfig{Backend: store.BackendMemory}
	cfg.Touch.Backend = config.TouchMock
	cfg.Touch.PollInterval = time.Millisecond
	cfg.Emotion.DetectionInterval = 5 * time.Millisecond
	cfg.Light.StepDelay = time.Millisecond
	cfg.Web.Host = "127.0.0.1"
	cfg.Web.Port = 0
	cfg.Web.StaticDir = ""
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Touch.Backend = "capacitive-magic"
	if _, err := New(cfg, nil, quietLogger()); err == nil {
		t.Error("New() accepted an unknown touch backend")
	}
}

func TestAppLifecycle(t *testing.T) {
	cam := &happyCamera{}
	app, err := New(testConfig(), cam, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if app.Session() == "" {
		t.Error("empty session id")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := app.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	strip, ok := app.strip.(*ledstrip.Mock)
	if !ok {
		t.Fatalf("strip is %T, want mock", app.strip)
	}

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	waitFor(t, "happy emotion", func() bool {
		label, _ := app.stabilizer.Current()
		return label == emotion.Happy
	})
	waitFor(t, "a mock touch", func() bool {
		return app.touch.Statistics().TodayTouches > 0
	})

	snap := app.status.Snapshot(ctx, false)
	if snap.Emotion.Current != emotion.Happy {
		t.Errorf("snapshot emotion = %v, want happy", snap.Emotion.Current)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	app.Shutdown()

	frames := strip.Frames()
	if len(frames) == 0 {
		t.Fatal("no frames written")
	}
	if last := frames[len(frames)-1]; last != (ledstrip.Frame{}) {
		t.Errorf("last frame = %+v, want off", last)
	}
	if !cam.closed {
		t.Error("camera not closed")
	}
}

func TestAppWithoutCameraOrTouch(t *testing.T) {
	cfg := testConfig()
	cfg.Touch.Enabled = false

	app, err := New(cfg, nil, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := app.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	snap := app.status.Snapshot(ctx, true)
	if snap.Emotion.Current != emotion.NoFace {
		t.Errorf("emotion = %v, want no_face", snap.Emotion.Current)
	}
	if snap.Touch.TodayTouches != 0 {
		t.Errorf("touches = %d, want 0", snap.Touch.TodayTouches)
	}

	cancel()
	<-done
	app.Shutdown()
}
