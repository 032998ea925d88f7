// Package protocol defines the WebSocket messages exchanged with capture
// clients (phones running face inference) and dashboard clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-facelink/pkg/face"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Capture client → server
	TypeSession     MessageType = "session"     // Session lifecycle report
	TypeBlendShapes MessageType = "blendshapes" // One inference result

	// Server → capture client
	TypeStart MessageType = "start" // Begin capture
	TypeStop  MessageType = "stop"  // End capture

	// Server → dashboard
	TypeFrame MessageType = "frame" // Processed face frame
	TypeState MessageType = "state" // Tracker state change

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Capture Client → Server Message Types
// =============================================================================

// Inference back ends reported by capture clients.
const (
	BackendARKit     = "arkit"     // Geometry-mesh tracking, named coefficients
	BackendMediaPipe = "mediapipe" // ML landmarks, ordered categories
)

// Session statuses.
const (
	SessionReady  = "ready"
	SessionFailed = "failed"
)

// SessionData reports whether the client's capture session started.
type SessionData struct {
	Status  string `json:"status"`           // "ready" or "failed"
	Reason  string `json:"reason,omitempty"` // Set when failed
	Backend string `json:"backend,omitempty"`
}

// BlendShapesData is one inference cycle. Geometry back ends send Scores,
// landmark back ends send Categories; both may be present.
type BlendShapesData struct {
	Backend    string             `json:"backend,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Categories []face.Category    `json:"categories,omitempty"`
	Matrix     []float64          `json:"matrix,omitempty"` // 16 elements, column-major
	Tracking   bool               `json:"tracking"`
	Timestamp  int64              `json:"ts,omitempty"` // Capture time, Unix milliseconds
}

// =============================================================================
// Server → Capture Client Message Types
// =============================================================================

// StartCommand asks a capture client to begin a session.
type StartCommand struct {
	SessionID    string `json:"session_id,omitempty"`
	CameraFacing string `json:"camera_facing"`
}

// StopCommand asks a capture client to end its session.
type StopCommand struct {
	SessionID string `json:"session_id,omitempty"`
}

// =============================================================================
// Server → Dashboard Message Types
// =============================================================================

// FrameData is a processed frame keyed by canonical action-unit names.
type FrameData struct {
	BlendShapes map[string]float64 `json:"blend_shapes"`
	Head        HeadData           `json:"head"`
	Tracking    bool               `json:"tracking"`
	Timestamp   int64              `json:"ts"` // Unix milliseconds
}

// HeadData is a head pose in degrees and scene units.
type HeadData struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// StateData is a tracker state change.
type StateData struct {
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
