// Glow - emotion and touch driven LED installation
// Watches faces through the camera, listens to the touch pads and paints the
// strip accordingly while serving a live dashboard.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/teslashibe/glow/internal/config"
	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/emotion"
	"github.com/teslashibe/glow/pkg/glow"
	"github.com/teslashibe/glow/pkg/ledstrip"
	"github.com/teslashibe/glow/pkg/vision"
)

func main() {
	cfg := parseFlags()
	log.Init(cfg.Log.Level)
	logger := log.L()

	detector := openCamera(cfg.Camera)

	app, err := glow.New(cfg, detector, logger)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
	}
}

// openCamera returns nil when the camera is disabled or cannot be opened.
func openCamera(c config.CameraConfig) emotion.FaceDetector {
	if !c.Enabled {
		log.Info("camera disabled")
		return nil
	}
	cam, err := vision.Open(vision.Config{
		Device:       c.Device,
		Width:        c.Width,
		Height:       c.Height,
		FaceModel:    c.FaceModel,
		EmotionModel: c.EmotionModel,
		FaceScore:    c.FaceScore,
	})
	if err != nil {
		log.Warn("camera unavailable, staying in no_face", "error", err)
		return nil
	}
	return cam
}

// parseFlags loads the config file and applies any flags given explicitly.
func parseFlags() config.Config {
	path := flag.String("config", "glow.yaml", "YAML configuration file")
	ledDevice := flag.String("led-device", "", "SPI device driving the strip")
	ledCount := flag.Int("led-count", 0, "Number of LEDs")
	ledFreq := flag.Int("led-freq", 0, "Strip data rate in kHz")
	ledMock := flag.Bool("led-mock", false, "Drive an in-memory strip instead of SPI")
	touchAddr := flag.Uint("touch-address", 0, "MPR121 I2C address")
	touchBus := flag.String("touch-bus", "", "I2C bus name")
	noTouch := flag.Bool("no-touch", false, "Disable touch sensing")
	mockTouch := flag.Bool("mock-touch", false, "Simulate touches instead of reading the MPR121")
	camera := flag.Int("camera", 0, "Camera device index")
	noCamera := flag.Bool("no-camera", false, "Disable the camera")
	db := flag.String("db", "", "SQLite database path")
	port := flag.Int("port", 0, "Dashboard port")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "led-device":
			cfg.LED.Device = *ledDevice
		case "led-count":
			cfg.LED.Count = *ledCount
		case "led-freq":
			cfg.LED.FreqKHz = *ledFreq
		case "led-mock":
			if *ledMock {
				cfg.LED.Backend = ledstrip.BackendMock
			}
		case "touch-address":
			cfg.Touch.MPR121.Address = uint16(*touchAddr)
		case "touch-bus":
			cfg.Touch.MPR121.Bus = *touchBus
		case "no-touch":
			cfg.Touch.Enabled = !*noTouch
		case "mock-touch":
			if *mockTouch {
				cfg.Touch.Backend = config.TouchMock
			}
		case "camera":
			cfg.Camera.Device = *camera
		case "no-camera":
			cfg.Camera.Enabled = !*noCamera
		case "db":
			cfg.Store.Path = *db
		case "port":
			cfg.Web.Port = *port
		case "debug":
			if *debug {
				cfg.Log.Level = "debug"
			}
		}
	})
	return cfg
}
