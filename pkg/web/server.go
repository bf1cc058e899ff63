// Package web serves the optional driver-station dashboard: loop status,
// the latest target, and the annotated camera feed over MJPEG and websocket.
package web

import (
	"context"
	"embed"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-vision/pkg/hub"
	"github.com/teslashibe/go-vision/pkg/tracking"
)

//go:embed static
var static embed.FS

// TargetState is the last emitted target and when it was emitted.
type TargetState struct {
	Target *tracking.OutputData `json:"target"`
	At     time.Time            `json:"at"`
}

// Server is the web dashboard server. It implements the frame loop's
// observer hooks; every hook returns without blocking.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	cameraHub *hub.Hub
	targetHub *hub.Hub
	frames    *latestFrame

	mu     sync.RWMutex
	stats  tracking.Stats
	target TargetState
	config any

	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates the dashboard. config is served read-only at /api/config.
func NewServer(addr string, config any, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:      addr,
		logger:    logger.With("component", "web"),
		cameraHub: hub.New("camera", logger),
		targetHub: hub.New("targets", logger),
		frames:    newLatestFrame(),
		config:    config,
		done:      make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-vision",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/target", s.handleTarget)
	api.Get("/config", s.handleConfig)

	app.Get("/stream.mjpg", s.handleMJPEG)
	app.Get("/frame.jpg", s.handleFrame)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(func(c *websocket.Conn) { hub.Serve(s.cameraHub, c) }))
	app.Get("/ws/targets", websocket.New(func(c *websocket.Conn) { hub.Serve(s.targetHub, c) }))

	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(static),
		PathPrefix: "static",
		Index:      "index.html",
	}))

	s.app = app
	return s
}

// Start runs the hubs and blocks serving HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("dashboard listening", "addr", s.addr)
	go s.cameraHub.Run(ctx)
	go s.targetHub.Run(ctx)
	return s.app.Listen(s.addr)
}

// StartAsync starts the web server in a goroutine.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown ends MJPEG streams and stops the listener.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() { close(s.done) })
	return s.app.ShutdownWithTimeout(2 * time.Second)
}

// ObserveFrame publishes an encoded frame.
func (s *Server) ObserveFrame(jpeg []byte) {
	s.frames.set(jpeg)
	s.cameraHub.BroadcastBinary(jpeg)
}

// ObserveTarget publishes an emitted target.
func (s *Server) ObserveTarget(data tracking.OutputData) {
	s.mu.Lock()
	s.target = TargetState{Target: &data, At: time.Now()}
	s.mu.Unlock()
	s.targetHub.BroadcastJSON(data)
}

// ObserveStats records loop throughput.
func (s *Server) ObserveStats(stats tracking.Stats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}
