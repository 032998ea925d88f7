package protocol

import (
	"time"

	"github.com/teslashibe/go-facelink/pkg/face"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewSessionMessage creates a session status message
func NewSessionMessage(status, reason, backend string) (*Message, error) {
	return NewMessage(TypeSession, SessionData{
		Status:  status,
		Reason:  reason,
		Backend: backend,
	})
}

// NewBlendShapesMessage creates a blendshapes message
func NewBlendShapesMessage(data BlendShapesData) (*Message, error) {
	return NewMessage(TypeBlendShapes, data)
}

// NewStartMessage creates a start command
func NewStartMessage(sessionID, facing string) (*Message, error) {
	return NewMessage(TypeStart, StartCommand{
		SessionID:    sessionID,
		CameraFacing: facing,
	})
}

// NewStopMessage creates a stop command
func NewStopMessage(sessionID string) (*Message, error) {
	return NewMessage(TypeStop, StopCommand{SessionID: sessionID})
}

// NewFrameMessage creates a dashboard frame message from a processed frame
func NewFrameMessage(f face.Frame) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		BlendShapes: f.BlendShapes.Names(),
		Head: HeadData{
			Pitch: f.Head.Pitch,
			Yaw:   f.Head.Yaw,
			Roll:  f.Head.Roll,
			X:     f.Head.PositionX,
			Y:     f.Head.PositionY,
			Z:     f.Head.PositionZ,
		},
		Tracking:  f.IsTracking,
		Timestamp: f.Timestamp.UnixMilli(),
	})
}

// NewStateMessage creates a state change message
func NewStateMessage(state, reason, sessionID string) (*Message, error) {
	return NewMessage(TypeState, StateData{
		State:     state,
		Reason:    reason,
		SessionID: sessionID,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetSessionData extracts session data from a message
func (m *Message) GetSessionData() (*SessionData, error) {
	var data SessionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetBlendShapesData extracts blendshapes data from a message
func (m *Message) GetBlendShapesData() (*BlendShapesData, error) {
	var data BlendShapesData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ScoreMap merges Scores and Categories into one name → score map.
// Scores win when a name appears in both.
func (b *BlendShapesData) ScoreMap() map[string]float64 {
	out := make(map[string]float64, len(b.Scores)+len(b.Categories))
	for _, c := range b.Categories {
		if c.Name == face.NeutralCategory {
			continue
		}
		out[c.Name] = c.Score
	}
	for name, v := range b.Scores {
		out[name] = v
	}
	return out
}

// CaptureTime returns the capture timestamp, or the zero time if unset.
func (b *BlendShapesData) CaptureTime() time.Time {
	if b.Timestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(b.Timestamp)
}

// GetStartCommand extracts a start command from a message
func (m *Message) GetStartCommand() (*StartCommand, error) {
	var data StartCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStopCommand extracts a stop command from a message
func (m *Message) GetStopCommand() (*StopCommand, error) {
	var data StopCommand
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
