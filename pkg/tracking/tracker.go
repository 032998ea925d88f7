// Package tracking runs the facial tracking pipeline: it sequences a
// capture source through its lifecycle, processes each frame through
// enhancement, calibration and smoothing, and fans processed frames and
// state changes out to any number of subscribers.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-facelink/pkg/face"
)

// Subscriber buffer sizes. Frames conflate to the latest value; state
// changes are rare, so a short history is kept.
const (
	frameBuffer = 1
	stateBuffer = 16
)

var errSourceClosed = errors.New("capture source closed")

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.log = logger
		}
	}
}

// WithMetrics records pipeline activity on m.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// Stats is a snapshot of tracker counters.
type Stats struct {
	Sessions         uint64 `json:"sessions"`
	FramesProcessed  uint64 `json:"frames_processed"`
	FramesRejected   uint64 `json:"frames_rejected"`
	FramesDropped    uint64 `json:"frames_dropped"`
	FrameSubscribers int    `json:"frame_subscribers"`
	StateSubscribers int    `json:"state_subscribers"`
}

// Tracker owns one capture source and the processing state of its
// sessions. All methods are safe for concurrent use.
type Tracker struct {
	cfg     Config
	source  Source
	log     *slog.Logger
	metrics *Metrics

	// opMu serializes Start, Stop and Release. Start does not hold it
	// across the source handshake, so Stop can interrupt one.
	opMu sync.Mutex

	mu        sync.RWMutex
	state     State
	sessionID string
	released  bool
	cancel    context.CancelFunc
	done      chan struct{}

	// Set while a source handshake is in flight. abort is cleared by the
	// Stop that cancels it; handshake is closed when Start unwinds.
	abort     context.CancelFunc
	handshake chan struct{}

	// pipe is used only by the session goroutine, or by Start and
	// Release while no session goroutine is running.
	pipe *pipeline

	states *broadcaster[State]
	frames *broadcaster[face.Frame]

	sessions  atomic.Uint64
	processed atomic.Uint64
	rejected  atomic.Uint64
	dropped   atomic.Uint64
}

// New creates an idle tracker. cfg is validated and retained for the
// tracker's lifetime.
func New(cfg Config, source Source, opts ...Option) (*Tracker, error) {
	if source == nil {
		return nil, errors.New("tracking: nil source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}
	pipe, err := newPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}

	t := &Tracker{
		cfg:    cfg,
		source: source,
		log:    slog.Default(),
		state:  State{Phase: Idle},
		pipe:   pipe,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.states = newBroadcaster[State](stateBuffer, nil, func() {
		t.metrics.dropped("states")
	})
	t.frames = newBroadcaster(frameBuffer, face.Frame.Clone, func() {
		t.dropped.Add(1)
		t.metrics.dropped("frames")
	})
	return t, nil
}

// Config returns the tracker's configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// SessionID returns the identifier of the current or most recent
// session, or "" before the first Start.
func (t *Tracker) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

// Released reports whether Release has been called.
func (t *Tracker) Released() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.released
}

// SubscribeStates returns a subscription to state changes made after
// the call. After Release the subscription is already closed.
func (t *Tracker) SubscribeStates() *Subscription[State] {
	return t.states.subscribe()
}

// SubscribeFrames returns a subscription to processed frames. A slow
// subscriber sees only the latest frame. After Release the subscription
// is already closed.
func (t *Tracker) SubscribeFrames() *Subscription[face.Frame] {
	return t.frames.subscribe()
}

// Stats returns a snapshot of the tracker counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Sessions:         t.sessions.Load(),
		FramesProcessed:  t.processed.Load(),
		FramesRejected:   t.rejected.Load(),
		FramesDropped:    t.dropped.Load(),
		FrameSubscribers: t.frames.count(),
		StateSubscribers: t.states.count(),
	}
}

// Start opens a capture session. It is a no-op while Starting or
// Tracking. If the source cannot start, the tracker moves to Error and
// Start returns a *StartError. ctx bounds only the startup handshake. A
// Stop during the handshake cancels it; Start then returns
// ErrStartInterrupted and the tracker is Stopped.
func (t *Tracker) Start(ctx context.Context) error {
	t.opMu.Lock()

	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		t.opMu.Unlock()
		return ErrIllegalState
	}
	if t.state.Phase.Active() {
		t.mu.Unlock()
		t.opMu.Unlock()
		return nil
	}
	prev := t.done
	t.mu.Unlock()

	// A failed session's goroutine may still be stopping the source.
	if prev != nil {
		<-prev
	}
	t.pipe.reset()

	id := uuid.NewString()
	hsCtx, abort := context.WithCancel(ctx)
	defer abort()
	handshake := make(chan struct{})
	defer close(handshake)

	t.mu.Lock()
	t.sessionID = id
	t.cancel, t.done = nil, nil
	t.abort, t.handshake = abort, handshake
	t.transitionLocked(State{Phase: Starting})
	t.mu.Unlock()
	t.sessions.Add(1)
	t.opMu.Unlock()

	events, err := t.source.Start(hsCtx, SessionOptions{Facing: t.cfg.CameraFacing})

	t.mu.Lock()
	interrupted := t.abort == nil
	t.abort, t.handshake = nil, nil
	if interrupted {
		t.mu.Unlock()
		if err == nil {
			// The source came up after Stop gave up on it.
			if stopErr := t.source.Stop(); stopErr != nil {
				t.log.Warn("capture stop failed", "session_id", id, "error", stopErr)
			}
		}
		t.log.Info("capture start interrupted", "session_id", id)
		return ErrStartInterrupted
	}

	if err != nil {
		reason := failureReason(err)
		t.transitionLocked(ErrorState(reason))
		t.mu.Unlock()
		t.log.Error("capture start failed", "session_id", id, "reason", reason, "error", err)

		var se *StartError
		if errors.As(err, &se) {
			return se
		}
		return &StartError{Reason: reason, Err: err}
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done
	t.mu.Unlock()

	go t.run(sessCtx, id, events, done)
	return nil
}

// Stop ends the current session. It is a no-op unless Starting or
// Tracking. When Stop returns, no further frames are published.
func (t *Tracker) Stop() error {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.mu.RLock()
	released := t.released
	t.mu.RUnlock()
	if released {
		return ErrIllegalState
	}
	t.stopLocked()
	return nil
}

// Release stops any session, discards all processing state and closes
// every subscription. It is idempotent. Start and Stop fail with
// ErrIllegalState afterwards.
func (t *Tracker) Release() {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.mu.RLock()
	released := t.released
	t.mu.RUnlock()
	if released {
		return
	}

	if !t.stopLocked() {
		t.mu.RLock()
		done := t.done
		t.mu.RUnlock()
		if done != nil {
			<-done
		}
	}

	t.mu.Lock()
	t.released = true
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	t.pipe.reset()
	t.states.close()
	t.frames.close()
	t.log.Info("tracker released", "session_id", t.SessionID())
}

// stopLocked stops an active session and reports whether one was
// active. A pending source handshake is cancelled and waited for. The
// caller holds opMu.
func (t *Tracker) stopLocked() bool {
	t.mu.Lock()
	if !t.state.Phase.Active() {
		t.mu.Unlock()
		return false
	}
	cancel, done, handshake := t.cancel, t.done, t.handshake
	if t.abort != nil {
		t.abort()
		t.abort = nil
	}
	if cancel != nil {
		cancel()
	}
	t.mu.Unlock()

	if handshake != nil {
		<-handshake
	}
	if err := t.source.Stop(); err != nil {
		t.log.Warn("capture stop failed", "session_id", t.SessionID(), "error", err)
	}
	// Wait for the in-flight frame, if any, to finish publishing.
	if done != nil {
		<-done
	}

	t.mu.Lock()
	t.transitionLocked(State{Phase: Stopped})
	t.mu.Unlock()
	return true
}

// transitionLocked sets and publishes s. The caller holds mu, which
// keeps published states in transition order.
func (t *Tracker) transitionLocked(s State) {
	t.state = s
	t.metrics.transition(s.Phase)
	t.states.publish(s)

	if s.Phase == Error {
		t.log.Warn("tracker state", "state", s.Phase.String(), "reason", s.Reason, "session_id", t.sessionID)
		return
	}
	t.log.Info("tracker state", "state", s.Phase.String(), "session_id", t.sessionID)
}

// run consumes one session's events until the session is cancelled or
// fails.
func (t *Tracker) run(ctx context.Context, id string, events <-chan Event, done chan struct{}) {
	defer close(done)
	log := t.log.With("session_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				t.fail(ctx, log, errSourceClosed)
				return
			}
			switch ev.Kind {
			case EventReady:
				if !t.markTracking(ctx) {
					return
				}
			case EventFrame:
				if !t.markTracking(ctx) {
					return
				}
				t.handleFrame(log, ev.Frame)
			case EventFailure:
				t.fail(ctx, log, ev.Err)
				return
			default:
				log.Debug("ignoring source event", "kind", ev.Kind.String())
			}
		}
	}
}

// markTracking moves Starting to Tracking. It returns false once the
// session has been cancelled.
func (t *Tracker) markTracking(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	if t.state.Phase == Starting {
		t.transitionLocked(State{Phase: Tracking})
	}
	return true
}

func (t *Tracker) handleFrame(log *slog.Logger, raw RawFrame) {
	began := time.Now()
	frame, err := t.pipe.process(raw)
	if err != nil {
		t.rejected.Add(1)
		t.metrics.frameRejected()
		log.Warn("frame rejected", "error", err)
		return
	}

	t.frames.publish(frame)
	n := t.processed.Add(1)
	t.metrics.frameProcessed(time.Since(began))
	log.Debug("frame published", "frame", n, "tracking", frame.IsTracking)
}

// fail moves the session to Error unless Stop already cancelled it.
func (t *Tracker) fail(ctx context.Context, log *slog.Logger, err error) {
	t.mu.Lock()
	if ctx.Err() != nil {
		t.mu.Unlock()
		return
	}
	t.transitionLocked(ErrorState(failureReason(err)))
	t.mu.Unlock()

	log.Error("capture session failed", "error", err)
	if stopErr := t.source.Stop(); stopErr != nil {
		log.Warn("capture stop failed", "error", stopErr)
	}
}
