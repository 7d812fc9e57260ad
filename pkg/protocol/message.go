// Package protocol defines the WebSocket message types exchanged between
// the browser and interviewd. The format is deliberately flat so the
// browser client stays trivial.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server → browser messages
	TypeConnection MessageType = "connection" // Connection acknowledgment
	TypeTranscript MessageType = "transcript" // Agent/user transcript line

	// Bidirectional
	TypeAudio MessageType = "audio" // Base64-encoded audio frame
)

// StatusEstablished is the status sent in the connection acknowledgment.
const StatusEstablished = "established"

// Transcript roles.
const (
	RoleAgent = "agent"
	RoleUser  = "user"
)

// Message is the base wrapper for all WebSocket messages. Fields not
// relevant to a given type are omitted on the wire.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Status    string      `json:"status,omitempty"`
	Data      string      `json:"data,omitempty"`
	Role      string      `json:"role,omitempty"`
	Text      string      `json:"text,omitempty"`
}

// NewConnectionAck builds the acknowledgment sent once when a transport
// connection is established.
func NewConnectionAck(sessionID string) Message {
	return Message{
		Type:      TypeConnection,
		Status:    StatusEstablished,
		SessionID: sessionID,
	}
}

// NewAudio builds an outbound audio message carrying a base64 payload.
func NewAudio(data string) Message {
	return Message{Type: TypeAudio, Data: data}
}

// NewTranscript builds a transcript message for the browser UI.
func NewTranscript(role, text string) Message {
	return Message{Type: TypeTranscript, Role: role, Text: text}
}

// Parse decodes a JSON message from bytes.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &msg, nil
}

// Bytes returns the JSON-encoded message.
func (m Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}
