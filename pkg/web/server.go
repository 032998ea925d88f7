// Package web serves the tracker control API and the live dashboard
// streams. Processed frames and state changes are fanned out to browser
// clients through pkg/hub.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-facelink/pkg/capture"
	"github.com/teslashibe/go-facelink/pkg/face"
	"github.com/teslashibe/go-facelink/pkg/hub"
	"github.com/teslashibe/go-facelink/pkg/protocol"
	"github.com/teslashibe/go-facelink/pkg/tracking"
)

// Tracker is the subset of *tracking.Tracker the server drives.
type Tracker interface {
	Start(ctx context.Context) error
	Stop() error
	State() tracking.State
	SessionID() string
	Stats() tracking.Stats
	SubscribeFrames() *tracking.Subscription[face.Frame]
	SubscribeStates() *tracking.Subscription[tracking.State]
}

var _ Tracker = (*tracking.Tracker)(nil)

// Option configures a Server.
type Option func(*Server)

// WithCaptureHub mounts the capture ingestion endpoint and reports its
// clients in the status API.
func WithCaptureHub(h *capture.Hub) Option {
	return func(s *Server) {
		s.capture = h
	}
}

// WithGatherer exposes g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithRequestLog logs every HTTP request.
func WithRequestLog(enabled bool) Option {
	return func(s *Server) {
		s.requestLog = enabled
	}
}

// Server is the HTTP and websocket front end of a tracker.
type Server struct {
	app     *fiber.App
	addr    string
	tracker Tracker

	capture  *capture.Hub
	gatherer prometheus.Gatherer
	log      *slog.Logger
	started  time.Time

	requestLog bool

	// Hubs for websocket broadcast
	frameHub *hub.Hub
	stateHub *hub.Hub

	runOnce  sync.Once
	stopOnce sync.Once
	pumps    sync.WaitGroup
	frames   *tracking.Subscription[face.Frame]
	states   *tracking.Subscription[tracking.State]
}

// NewServer creates a server for tracker listening on addr.
func NewServer(addr string, tracker Tracker, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		tracker: tracker,
		log:     slog.Default(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Frames conflate to the latest one; state clients are greeted with
	// the current state.
	s.frameHub = hub.New("frames", hub.WithLogger(s.log), hub.WithClientBuffer(1))
	s.stateHub = hub.New("state", hub.WithLogger(s.log), hub.WithSnapshot(s.stateSnapshot))

	app := fiber.New(fiber.Config{
		AppName:               "facelink",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())
	if s.requestLog {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Get("/units", s.handleUnits)
	api.Get("/clients", s.handleClients)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	if s.capture != nil {
		s.capture.RegisterRoutes(app)
	}

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the dashboard hubs and serves on the configured address.
// It blocks until the server stops.
func (s *Server) Start() error {
	s.run()
	s.log.Info("web server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Serve is like Start but accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.run()
	s.log.Info("web server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.log.Error("web server failed", "error", err)
		}
	}()
}

// Shutdown stops serving, ends the tracker subscriptions and
// disconnects dashboard clients. The tracker itself is left running.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		err = s.app.ShutdownWithContext(ctx)
		if s.frames != nil {
			s.frames.Close()
			s.states.Close()
			s.pumps.Wait()
		}
		s.frameHub.Stop()
		s.stateHub.Stop()
	})
	return err
}

// run starts the hubs and the pumps that feed them from the tracker.
func (s *Server) run() {
	s.runOnce.Do(func() {
		go s.frameHub.Run()
		go s.stateHub.Run()

		s.frames = s.tracker.SubscribeFrames()
		s.states = s.tracker.SubscribeStates()
		s.pumps.Add(2)
		go s.pumpFrames(s.frames)
		go s.pumpStates(s.states)
	})
}

func (s *Server) pumpFrames(sub *tracking.Subscription[face.Frame]) {
	defer s.pumps.Done()
	for f := range sub.C() {
		msg, err := protocol.NewFrameMessage(f)
		if err != nil {
			s.log.Warn("encode frame", "error", err)
			continue
		}
		s.broadcast(s.frameHub, msg)
	}
}

func (s *Server) pumpStates(sub *tracking.Subscription[tracking.State]) {
	defer s.pumps.Done()
	for st := range sub.C() {
		msg, err := stateMessage(st, s.tracker.SessionID())
		if err != nil {
			s.log.Warn("encode state", "error", err)
			continue
		}
		s.broadcast(s.stateHub, msg)
	}
}

func (s *Server) broadcast(h *hub.Hub, msg *protocol.Message) {
	if err := h.BroadcastProtocol(msg); err != nil {
		s.log.Warn("marshal message", "hub", h.Stats().Name, "error", err)
	}
}

func (s *Server) stateSnapshot() (hub.Message, error) {
	msg, err := stateMessage(s.tracker.State(), s.tracker.SessionID())
	if err != nil {
		return hub.Message{}, err
	}
	return hub.FromProtocol(msg)
}

func stateMessage(st tracking.State, sessionID string) (*protocol.Message, error) {
	return protocol.NewStateMessage(st.Phase.String(), st.Reason, sessionID)
}
