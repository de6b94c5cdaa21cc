// Package protocol defines the WebSocket messages exchanged between the glow
// dashboard and its clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → client
	TypeStatus MessageType = "status" // Status snapshot
	TypeError  MessageType = "error"  // Rejected client message

	// Client → server
	TypeIntensity MessageType = "intensity" // Set LED brightness

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the envelope for every WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message stamped with the current time
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// ParseData unmarshals the message data into v
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

// ParseMessage parses a JSON message
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

// IntensityData is the payload of an intensity message
type IntensityData struct {
	Intensity float64 `json:"intensity"`
}

// ErrorData is the payload of an error message
type ErrorData struct {
	Message string `json:"message"`
}

// NewStatusMessage wraps a status snapshot
func NewStatusMessage(snapshot any) (*Message, error) {
	return NewMessage(TypeStatus, snapshot)
}

// NewIntensityMessage creates an intensity command
func NewIntensityMessage(intensity float64) (*Message, error) {
	return NewMessage(TypeIntensity, IntensityData{Intensity: intensity})
}

// NewErrorMessage reports a rejected message back to the client
func NewErrorMessage(text string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: text})
}

// NewPongMessage answers a ping
func NewPongMessage() (*Message, error) {
	return NewMessage(TypePong, nil)
}
