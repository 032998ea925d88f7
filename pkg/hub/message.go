// Package hub fans pre-encoded websocket messages out to dashboard
// clients. Each client has a small send buffer; a client that falls
// behind loses its oldest pending messages instead of being disconnected,
// so every client converges on the latest value.
package hub

import "github.com/teslashibe/go-facelink/pkg/protocol"

// Message is one encoded text frame.
type Message struct {
	Data []byte
}

// NewMessage wraps pre-encoded JSON.
func NewMessage(data []byte) Message {
	return Message{Data: data}
}

// FromProtocol encodes a protocol envelope.
func FromProtocol(m *protocol.Message) (Message, error) {
	data, err := m.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
