// Package web serves the glow dashboard: a JSON API over the status
// aggregator, a websocket that pushes snapshots when they change, and the
// Prometheus metrics endpoint.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/internal/worker"
	"github.com/teslashibe/glow/pkg/hub"
	"github.com/teslashibe/glow/pkg/protocol"
	"github.com/teslashibe/glow/pkg/status"
	"github.com/teslashibe/glow/pkg/store"
)

// Config configures the dashboard server.
type Config struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	StaticDir         string        `yaml:"static_dir"`         // Served at /
	BroadcastInterval time.Duration `yaml:"broadcast_interval"` // Snapshot check period for /ws
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8000,
		StaticDir:         "./web",
		BroadcastInterval: 250 * time.Millisecond,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// StatusProvider is the read side the dashboard renders.
type StatusProvider interface {
	Snapshot(ctx context.Context, withTotals bool) status.Snapshot
	Emotion() status.EmotionStatus
	Touch() status.TouchStatus
	DailyStats(ctx context.Context, date string) store.DailyStats
	History(ctx context.Context, days int) []store.DailyStats
	TotalStats(ctx context.Context) store.TotalStats
}

// IntensityControl adjusts the LED brightness baseline.
type IntensityControl interface {
	SetIntensity(x float64)
	Intensity() float64
}

// Server is the dashboard server.
type Server struct {
	cfg    Config
	app    *fiber.App
	status StatusProvider
	light  IntensityControl
	logger *slog.Logger

	hub         *hub.Hub
	mu          sync.Mutex
	hubCancel   context.CancelFunc
	broadcaster *worker.Loop
	last        []byte
}

// NewServer wires the routes. light may be nil, in which case intensity
// control answers 503.
func NewServer(cfg Config, sp StatusProvider, light IntensityControl, logger *slog.Logger) *Server {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultConfig().BroadcastInterval
	}
	logger = log.Component(logger, "web")

	s := &Server{
		cfg:         cfg,
		status:      sp,
		light:       light,
		logger:      logger,
		hub:         hub.New("status", logger),
		broadcaster: worker.New("ws-broadcast", logger),
	}
	s.hub.OnMessage(s.handleClientMessage)

	app := fiber.New(fiber.Config{
		AppName:               "glow",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/emotion", s.handleEmotion)
	api.Get("/touch", s.handleTouch)
	api.Get("/daily-stats", s.handleDailyStats)
	api.Get("/daily-stats/:date", s.handleDailyStats)
	api.Get("/history", s.handleHistory)
	api.Get("/total-stats", s.handleTotalStats)
	api.Post("/intensity", s.handleSetIntensity)
	api.Get("/intensity", s.handleGetIntensity)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the websocket hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Serve runs the hub and the snapshot broadcaster and serves on ln until
// Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.hubCancel = cancel
	s.mu.Unlock()
	go s.hub.Run(hubCtx)

	s.broadcaster.Start(ctx, s.broadcastLoop)

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	go func() {
		if err := s.Serve(ctx, ln); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the broadcaster, closes every websocket and stops the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.broadcaster.Stop(worker.DefaultStopTimeout)
	s.mu.Lock()
	cancel := s.hubCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := s.app.ShutdownWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// broadcastLoop pushes a snapshot to every client whenever it differs from
// the last one sent. The timestamp is ignored when comparing.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				s.last = nil
				continue
			}
			if err := s.broadcastIfChanged(ctx); err != nil {
				s.logger.Warn("snapshot broadcast failed", "error", err)
			}
		}
	}
}

func (s *Server) broadcastIfChanged(ctx context.Context) error {
	snap := s.status.Snapshot(ctx, true)

	stamp := snap.Time
	snap.Time = time.Time{}
	key, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if bytes.Equal(key, s.last) {
		return nil
	}
	s.last = key

	snap.Time = stamp
	msg, err := protocol.NewStatusMessage(snap)
	if err != nil {
		return err
	}
	return s.hub.BroadcastMessage(msg)
}

func (s *Server) handleWS(conn *websocket.Conn) {
	client := hub.NewClient(s.hub, conn)

	if data, err := s.snapshotMessage(context.Background()); err != nil {
		s.logger.Warn("initial snapshot failed", "client", client.ID, "error", err)
	} else {
		client.Send(data)
	}

	client.Run()
}

func (s *Server) snapshotMessage(ctx context.Context) ([]byte, error) {
	msg, err := protocol.NewStatusMessage(s.status.Snapshot(ctx, true))
	if err != nil {
		return nil, err
	}
	return msg.Bytes()
}

// handleClientMessage answers pings and applies intensity commands.
func (s *Server) handleClientMessage(c *hub.Client, data []byte) {
	reply, err := s.answer(data)
	if err != nil {
		s.logger.Warn("building reply failed", "client", c.ID, "error", err)
		return
	}
	if reply == nil {
		return
	}
	out, err := reply.Bytes()
	if err != nil {
		s.logger.Warn("encoding reply failed", "client", c.ID, "error", err)
		return
	}
	c.Send(out)
}

// invalidMessage is the reply to a client message that is not a valid envelope.
const invalidMessage = "invalid message"

func (s *Server) answer(data []byte) (*protocol.Message, error) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Debug("malformed client message", "error", err)
		return protocol.NewErrorMessage(invalidMessage)
	}

	switch msg.Type {
	case protocol.TypePing:
		return protocol.NewPongMessage()

	case protocol.TypeIntensity:
		var payload protocol.IntensityData
		if err := msg.ParseData(&payload); err != nil {
			return protocol.NewErrorMessage("invalid intensity payload")
		}
		if err := s.setIntensity(payload.Intensity); err != nil {
			return protocol.NewErrorMessage(err.Error())
		}
		return nil, nil

	default:
		return protocol.NewErrorMessage(fmt.Sprintf("unsupported message type %q", msg.Type))
	}
}
