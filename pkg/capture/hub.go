package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-facelink/pkg/protocol"
	"github.com/teslashibe/go-facelink/pkg/tracking"
)

// DefaultStartTimeout bounds how long Start waits for a capture client
// to connect and acknowledge.
const DefaultStartTimeout = 5 * time.Second

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the structured logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithStartTimeout sets how long Start waits for a client.
func WithStartTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// Connection is a connected capture client.
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time
	backend  string
}

// Send sends a message to the client.
func (c *Connection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Connection) touch(backend string) {
	c.mu.Lock()
	c.lastSeen = time.Now()
	if backend != "" {
		c.backend = backend
	}
	c.mu.Unlock()
}

// sessionBuffer is the capacity of a session's event channel.
const sessionBuffer = 8

// session is one capture session bound to one connection. Only the
// connection's read loop sends on events. close ends the session and
// closes events once no send is in flight.
type session struct {
	id     string
	conn   *Connection
	events chan tracking.Event
	ack    chan error
	stop   chan struct{}

	acked    bool // read loop only
	mu       sync.RWMutex
	stopOnce sync.Once
}

func newSession(conn *Connection) *session {
	return &session{
		id:     uuid.NewString(),
		conn:   conn,
		events: make(chan tracking.Event, sessionBuffer),
		ack:    make(chan error, 1),
		stop:   make(chan struct{}),
	}
}

func (s *session) close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		close(s.events)
		s.mu.Unlock()
	})
}

// deliver hands ev to the tracker, blocking while the buffer is full,
// unless the session was stopped.
func (s *session) deliver(ev tracking.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.stop:
		return false
	}
}

// offer is deliver without blocking. It reports whether ev was queued.
func (s *session) offer(ev tracking.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// acknowledge resolves a pending Start with err, once.
func (s *session) acknowledge(err error) {
	if s.acked {
		return
	}
	s.acked = true
	s.ack <- err
}

// Hub accepts WebSocket connections from capture clients and implements
// tracking.Source on top of them. One client at a time drives a session.
type Hub struct {
	log     *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	conns   map[string]*Connection
	arrived chan struct{} // closed and replaced on each connect
	current *session

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	framesInvalid    atomic.Uint64
	sessions         atomic.Uint64
}

// NewHub creates a capture hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		log:     slog.Default(),
		timeout: DefaultStartTimeout,
		conns:   make(map[string]*Connection),
		arrived: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the capture endpoint on a Fiber router.
func (h *Hub) RegisterRoutes(r fiber.Router) {
	upgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
	r.Get("/ws/capture", upgrade, websocket.New(h.handleClient))
	r.Get("/ws/capture/:id", upgrade, websocket.New(h.handleClient))
}

// handleClient runs one capture client connection.
func (h *Hub) handleClient(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	conn := &Connection{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		lastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.conns[id] = conn
	close(h.arrived)
	h.arrived = make(chan struct{})
	count := len(h.conns)
	h.mu.Unlock()

	log := h.log.With("client_id", id)
	log.Info("capture client connected", "clients", count)

	defer func() {
		h.mu.Lock()
		delete(h.conns, id)
		s := h.current
		if s != nil && s.conn == conn {
			h.current = nil
		} else {
			s = nil
		}
		count := len(h.conns)
		h.mu.Unlock()

		if s != nil {
			h.endSession(s, errors.New("capture client disconnected"))
		}
		log.Info("capture client disconnected", "clients", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("capture read ended", "error", err)
			return
		}
		h.messagesReceived.Add(1)
		h.handleMessage(conn, log, data)
	}
}

// endSession reports err to a session whose connection dropped. The
// session is detached by now, so nothing else will close it. A full
// buffer drops the failure; the closed channel still ends the session.
func (h *Hub) endSession(s *session, err error) {
	if !s.acked {
		s.acknowledge(&tracking.StartError{Reason: err.Error()})
	} else if !s.offer(tracking.FailureEvent(err)) {
		h.log.Debug("disconnect failure dropped", "capture_session", s.id)
	}
	s.close()
}

func (h *Hub) handleMessage(conn *Connection, log *slog.Logger, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("capture parse error", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		ping, _ := msg.GetPingData()
		pingID := ""
		if ping != nil {
			pingID = ping.ID
		}
		pong, err := protocol.NewPongMessage(pingID, msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			h.send(conn, pong)
		}
		return
	case protocol.TypePong:
		conn.touch("")
		return
	}

	s := h.sessionFor(conn)
	switch msg.Type {
	case protocol.TypeSession:
		sd, err := msg.GetSessionData()
		if err != nil {
			log.Warn("bad session message", "error", err)
			return
		}
		conn.touch(sd.Backend)
		if s == nil {
			return
		}
		h.handleSession(s, log, sd)

	case protocol.TypeBlendShapes:
		h.framesReceived.Add(1)
		bs, err := msg.GetBlendShapesData()
		if err != nil {
			h.framesInvalid.Add(1)
			log.Warn("bad blendshapes message", "error", err)
			return
		}
		conn.touch(bs.Backend)
		if s == nil {
			return
		}
		// Frames before an explicit ack imply the session is ready.
		s.acknowledge(nil)
		s.deliver(tracking.FrameEvent(tracking.RawFrame{
			Scores:    bs.ScoreMap(),
			Matrix:    bs.Matrix,
			Tracking:  bs.Tracking,
			Timestamp: bs.CaptureTime(),
		}))

	default:
		log.Debug("ignoring capture message", "type", string(msg.Type))
	}
}

func (h *Hub) handleSession(s *session, log *slog.Logger, sd *protocol.SessionData) {
	switch sd.Status {
	case protocol.SessionReady:
		s.acknowledge(nil)
		s.deliver(tracking.ReadyEvent())
	case protocol.SessionFailed:
		reason := sd.Reason
		if reason == "" {
			reason = "capture session failed"
		}
		if !s.acked {
			s.acknowledge(&tracking.StartError{Reason: reason})
			return
		}
		s.deliver(tracking.FailureEvent(errors.New(reason)))
	default:
		log.Warn("unknown session status", "status", sd.Status)
	}
}

// sessionFor returns the current session if conn drives it.
func (h *Hub) sessionFor(conn *Connection) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil && h.current.conn == conn {
		return h.current
	}
	return nil
}

// Start waits for a capture client, sends it a start command and waits
// for its acknowledgement. The wait is bounded by ctx and the hub's
// start timeout.
func (h *Hub) Start(ctx context.Context, opts tracking.SessionOptions) (<-chan tracking.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.Stop(); err != nil {
		return nil, err
	}

	conn, err := h.waitForClient(ctx)
	if err != nil {
		return nil, &tracking.StartError{Reason: "no capture client connected", Err: err}
	}

	s := newSession(conn)

	h.mu.Lock()
	if _, ok := h.conns[conn.ID]; !ok {
		h.mu.Unlock()
		return nil, &tracking.StartError{Reason: "capture client disconnected", Err: ErrNoClient}
	}
	h.current = s
	h.mu.Unlock()

	msg, err := protocol.NewStartMessage(s.id, opts.Facing.String())
	if err != nil {
		h.detach(s)
		return nil, err
	}
	if err := h.send(conn, msg); err != nil {
		h.detach(s)
		return nil, &tracking.StartError{Reason: "capture client unreachable", Err: err}
	}

	select {
	case err := <-s.ack:
		if err != nil {
			h.detach(s)
			return nil, err
		}
	case <-ctx.Done():
		h.detach(s)
		h.sendStop(s)
		return nil, &tracking.StartError{Reason: "capture client did not acknowledge start", Err: ctx.Err()}
	}

	h.sessions.Add(1)
	h.log.Info("capture session started", "capture_session", s.id, "client_id", conn.ID, "facing", opts.Facing.String())
	return s.events, nil
}

// Stop ends the current session, closes its event channel and tells its
// client to stop capturing.
func (h *Hub) Stop() error {
	h.mu.Lock()
	s := h.current
	h.current = nil
	h.mu.Unlock()

	if s == nil {
		return nil
	}
	s.close()
	h.sendStop(s)
	h.log.Info("capture session stopped", "capture_session", s.id)
	return nil
}

func (h *Hub) sendStop(s *session) {
	msg, err := protocol.NewStopMessage(s.id)
	if err != nil {
		return
	}
	if err := h.send(s.conn, msg); err != nil {
		h.log.Debug("stop not delivered", "client_id", s.conn.ID, "error", err)
	}
}

// detach drops s if it is still current.
func (h *Hub) detach(s *session) {
	h.mu.Lock()
	if h.current == s {
		h.current = nil
	}
	h.mu.Unlock()
	s.close()
}

// waitForClient returns the most recently connected client, waiting for
// one if none is connected.
func (h *Hub) waitForClient(ctx context.Context) (*Connection, error) {
	for {
		h.mu.Lock()
		conn := h.newestLocked()
		arrived := h.arrived
		h.mu.Unlock()

		if conn != nil {
			return conn, nil
		}
		select {
		case <-arrived:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNoClient, ctx.Err())
		}
	}
}

func (h *Hub) newestLocked() *Connection {
	var newest *Connection
	for _, c := range h.conns {
		if newest == nil || c.Connected.After(newest.Connected) {
			newest = c
		}
	}
	return newest
}

func (h *Hub) send(conn *Connection, msg *protocol.Message) error {
	h.messagesSent.Add(1)
	return conn.Send(msg)
}

// ClientCount returns the number of connected capture clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ClientInfo describes a connected capture client.
type ClientInfo struct {
	ID        string    `json:"id"`
	Backend   string    `json:"backend,omitempty"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Active    bool      `json:"active"`
}

// Clients returns info about all connected clients, newest first.
func (h *Hub) Clients() []ClientInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	infos := make([]ClientInfo, 0, len(h.conns))
	for _, c := range h.conns {
		c.mu.Lock()
		infos = append(infos, ClientInfo{
			ID:        c.ID,
			Backend:   c.backend,
			Connected: c.Connected,
			LastSeen:  c.lastSeen,
			Active:    h.current != nil && h.current.conn == c,
		})
		c.mu.Unlock()
	}
	slices.SortFunc(infos, func(a, b ClientInfo) int {
		return b.Connected.Compare(a.Connected)
	})
	return infos
}

// HubStats contains hub statistics
type HubStats struct {
	Clients          int    `json:"clients"`
	Sessions         uint64 `json:"sessions"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesInvalid    uint64 `json:"frames_invalid"`
}

// Stats returns hub statistics
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients:          h.ClientCount(),
		Sessions:         h.sessions.Load(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		FramesInvalid:    h.framesInvalid.Load(),
	}
}

var _ tracking.Source = (*Hub)(nil)
