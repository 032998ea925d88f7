package tracking

import (
	"context"
	"time"

	"github.com/teslashibe/go-facelink/pkg/camera"
)

// Source is a capture and inference back end. Both the geometry-mesh
// and ML-landmark back ends are driven through it.
type Source interface {
	// Start begins a capture session. ctx bounds only the startup
	// handshake, and Start must return soon after ctx is done. The
	// returned channel carries the session's events and is closed when
	// the session ends, whether by Stop or by failure. An error means no
	// session was opened; a *StartError carries a reason for the user.
	Start(ctx context.Context, opts SessionOptions) (<-chan Event, error)

	// Stop ends the current session and closes its event channel.
	// Buffered events may still be read. It must return promptly and is
	// a no-op when no session is open.
	Stop() error
}

// SessionOptions is forwarded to the source on Start.
type SessionOptions struct {
	Facing camera.Facing
}

// EventKind distinguishes source events.
type EventKind int

const (
	// EventReady signals that the session is producing frames.
	EventReady EventKind = iota
	// EventFrame carries one inference result.
	EventFrame
	// EventFailure ends the session with Err.
	EventFailure
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventFrame:
		return "frame"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is delivered by a Source on its session channel.
type Event struct {
	Kind  EventKind
	Frame RawFrame
	Err   error
}

// RawFrame is the unprocessed output of one inference cycle. Scores use
// the canonical action-unit names; unknown names are ignored.
type RawFrame struct {
	Scores    map[string]float64
	Matrix    []float64
	Tracking  bool
	Timestamp time.Time
}

// ReadyEvent returns an EventReady.
func ReadyEvent() Event {
	return Event{Kind: EventReady}
}

// FrameEvent wraps f in an EventFrame.
func FrameEvent(f RawFrame) Event {
	return Event{Kind: EventFrame, Frame: f}
}

// FailureEvent wraps err in an EventFailure.
func FailureEvent(err error) Event {
	return Event{Kind: EventFailure, Err: err}
}
