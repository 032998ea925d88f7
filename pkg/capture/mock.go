// Package capture provides tracking.Source implementations: a scripted
// mock, a WebSocket hub that ingests frames from remote capture clients,
// and the client side of that link.
package capture

import (
	"context"
	"sync"

	"github.com/teslashibe/go-facelink/pkg/camera"
	"github.com/teslashibe/go-facelink/pkg/face"
	"github.com/teslashibe/go-facelink/pkg/tracking"
)

// MockOption configures a MockSource.
type MockOption func(*MockSource)

// WithStartFailure makes every Start fail with a StartError carrying
// reason.
func WithStartFailure(reason string) MockOption {
	return func(m *MockSource) {
		m.startErr = &tracking.StartError{Reason: reason}
	}
}

// WithAutoReady queues a ready event at the start of every session.
func WithAutoReady() MockOption {
	return func(m *MockSource) {
		m.autoReady = true
	}
}

// WithFrames plays n frames from next at the start of every session.
// next receives the frame index.
func WithFrames(n int, next func(i int) tracking.RawFrame) MockOption {
	return func(m *MockSource) {
		m.script = next
		m.scriptLen = n
	}
}

// WithBuffer sets the event channel capacity. The default is 64.
func WithBuffer(n int) MockOption {
	return func(m *MockSource) {
		if n > 0 {
			m.buffer = n
		}
	}
}

// MockSource is a scripted tracking.Source for tests and demos. Events
// are injected with Emit, Ready and Fail.
type MockSource struct {
	startErr  error
	autoReady bool
	script    func(i int) tracking.RawFrame
	scriptLen int
	buffer    int

	mu         sync.Mutex
	events     chan tracking.Event
	stop       chan struct{}
	sending    sync.WaitGroup
	closed     bool
	starts     int
	stops      int
	lastFacing camera.Facing
}

// NewMockSource creates a mock source.
func NewMockSource(opts ...MockOption) *MockSource {
	m := &MockSource{buffer: 64}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a session and returns its event channel.
func (m *MockSource) Start(ctx context.Context, opts tracking.SessionOptions) (<-chan tracking.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.starts++
	m.lastFacing = opts.Facing
	if m.startErr != nil {
		return nil, m.startErr
	}

	m.events = make(chan tracking.Event, m.buffer)
	m.stop = make(chan struct{})
	if m.autoReady {
		m.events <- tracking.ReadyEvent()
	}
	if m.script != nil {
		events, stop := m.events, m.stop
		m.sending.Add(1)
		go func() {
			defer m.sending.Done()
			for i := 0; i < m.scriptLen; i++ {
				select {
				case events <- tracking.FrameEvent(m.script(i)):
				case <-stop:
					return
				}
			}
		}()
	}
	return m.events, nil
}

// Stop ends the session and closes its event channel. Events already
// buffered are still drained by a reader.
func (m *MockSource) Stop() error {
	if m.end() {
		m.mu.Lock()
		m.stops++
		m.mu.Unlock()
	}
	return nil
}

// Emit delivers a frame to the open session, blocking while the event
// buffer is full.
func (m *MockSource) Emit(f tracking.RawFrame) error {
	return m.send(tracking.FrameEvent(f))
}

// EmitScores emits a tracked frame with an identity pose.
func (m *MockSource) EmitScores(scores map[string]float64) error {
	return m.Emit(tracking.RawFrame{Scores: scores, Matrix: IdentityMatrix(), Tracking: true})
}

// Ready delivers a session-ready event.
func (m *MockSource) Ready() error {
	return m.send(tracking.ReadyEvent())
}

// Fail delivers a session failure.
func (m *MockSource) Fail(err error) error {
	return m.send(tracking.FailureEvent(err))
}

// Disconnect closes the event channel without a failure event, as a
// source whose connection dropped would.
func (m *MockSource) Disconnect() {
	m.end()
}

// end closes the open session's channels and reports whether one was
// open.
func (m *MockSource) end() bool {
	m.mu.Lock()
	stop, events := m.stop, m.events
	if stop == nil {
		m.mu.Unlock()
		return false
	}
	close(stop)
	m.stop, m.events = nil, nil
	m.mu.Unlock()

	// Wait for in-flight sends to observe stop before closing.
	m.sending.Wait()
	close(events)
	return true
}

func (m *MockSource) send(ev tracking.Event) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	events, stop := m.events, m.stop
	if stop == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	m.sending.Add(1)
	m.mu.Unlock()
	defer m.sending.Done()

	select {
	case events <- ev:
		return nil
	case <-stop:
		return ErrNoSession
	}
}

// Close stops any session and makes later Starts fail with ErrClosed.
func (m *MockSource) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Active reports whether a session is open.
func (m *MockSource) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// Starts returns how many times Start was called.
func (m *MockSource) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many sessions were stopped.
func (m *MockSource) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// LastFacing returns the camera facing passed to the most recent Start.
func (m *MockSource) LastFacing() camera.Facing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFacing
}

// IdentityMatrix returns a column-major 4x4 identity pose.
func IdentityMatrix() []float64 {
	m := make([]float64, face.MatrixSize)
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

var _ tracking.Source = (*MockSource)(nil)
