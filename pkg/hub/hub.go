package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-facelink/pkg/protocol"
)

// DefaultClientBuffer is how many messages a client may lag behind before
// its oldest pending message is dropped.
const DefaultClientBuffer = 4

// broadcastBuffer bounds messages waiting for the hub goroutine.
const broadcastBuffer = 256

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithClientBuffer sets the per-client send buffer.
func WithClientBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.clientBuffer = n
		}
	}
}

// WithSnapshot queues the message returned by fn to every client as it
// registers, ahead of any broadcast. A snapshot error skips the greeting.
func WithSnapshot(fn func() (Message, error)) Option {
	return func(h *Hub) {
		h.snapshot = fn
	}
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Only the Run goroutine touches client send buffers.
type Hub struct {
	name         string
	log          *slog.Logger
	clientBuffer int
	snapshot     func() (Message, error)

	mu      sync.RWMutex
	clients map[*Client]struct{}

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	quit     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	sent      atomic.Uint64
	conflated atomic.Uint64
	rejected  atomic.Uint64
}

// Stats contains hub counters.
type Stats struct {
	Name      string `json:"name"`
	Clients   int    `json:"clients"`
	Sent      uint64 `json:"sent"`
	Conflated uint64 `json:"conflated"` // stale messages dropped for slow clients
	Rejected  uint64 `json:"rejected"`  // broadcasts dropped because the hub was saturated
}

// New creates a hub. Call Run to start it.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:         name,
		log:          slog.Default(),
		clientBuffer: DefaultClientBuffer,
		clients:      make(map[*Client]struct{}),
		broadcast:    make(chan Message, broadcastBuffer),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		quit:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("hub", name)
	return h
}

// Run is the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case c := <-h.register:
			h.greet(c)
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("dashboard client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("dashboard client disconnected", "clients", count)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.offer(msg) {
					h.conflated.Add(1)
				}
				h.sent.Add(1)
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) greet(c *Client) {
	if h.snapshot == nil {
		return
	}
	msg, err := h.snapshot()
	if err != nil {
		h.log.Warn("snapshot failed", "error", err)
		return
	}
	c.offer(msg)
	h.sent.Add(1)
}

// Stop ends Run and disconnects all clients. It is idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast queues msg for every client. It never blocks; when the hub
// is saturated the message is dropped and counted.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.rejected.Add(1)
		h.log.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastProtocol encodes and broadcasts a protocol message.
func (h *Hub) BroadcastProtocol(m *protocol.Message) error {
	msg, err := FromProtocol(m)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats returns hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Name:      h.name,
		Clients:   h.ClientCount(),
		Sent:      h.sent.Load(),
		Conflated: h.conflated.Load(),
		Rejected:  h.rejected.Load(),
	}
}
