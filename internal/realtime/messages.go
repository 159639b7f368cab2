// Package realtime implements the client side of the entity-extraction
// stream: the WebSocket connection manager, the delta dispatcher, and
// the suggestion reconciler.
package realtime

import (
	"encoding/json"
	"fmt"

	"maxwell-extraction/internal/settings"
	"maxwell-extraction/pkg/codex"
)

// DetectedEntity is the wire payload for one detection. Immutable once
// received.
type DetectedEntity struct {
	Name           string              `json:"name"`
	Type           codex.Kind          `json:"type"`
	Context        string              `json:"context"`
	Confidence     settings.Confidence `json:"confidence"`
	SuggestionID   string              `json:"suggestionId,omitempty"`
	IsNew          bool                `json:"isNew"`
	AlreadyInCodex bool                `json:"alreadyInCodex"`
}

// ServerMessage is the decoded form of any inbound frame. Exactly one
// concrete type per wire shape; decoding happens once at the transport
// boundary so nothing downstream touches raw JSON.
type ServerMessage interface {
	messageType() string
}

// EntitiesMessage carries a batch of detections for the latest delta.
type EntitiesMessage struct {
	NewEntities []DetectedEntity `json:"new_entities"`
	Timestamp   string           `json:"timestamp"`
}

// PongMessage answers a keep-alive ping.
type PongMessage struct{}

// ConfigAckMessage confirms the settings the server is now applying.
type ConfigAckMessage struct {
	Settings settings.ExtractionSettings `json:"settings"`
}

func (EntitiesMessage) messageType() string  { return "entities" }
func (PongMessage) messageType() string      { return "pong" }
func (ConfigAckMessage) messageType() string { return "config_ack" }

// DecodeServerMessage parses one inbound text frame into its typed form.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message envelope: %w", err)
	}

	switch head.Type {
	case "entities":
		var m EntitiesMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode entities message: %w", err)
		}
		return m, nil
	case "pong":
		return PongMessage{}, nil
	case "config_ack":
		var m ConfigAckMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode config_ack message: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", head.Type)
	}
}

// Outbound shapes. TextDeltaMessage intentionally has no type tag; the
// server recognizes it by the text_delta key.

type TextDeltaMessage struct {
	TextDelta string `json:"text_delta"`
}

type PingMessage struct {
	Type string `json:"type"`
}

func NewPingMessage() PingMessage {
	return PingMessage{Type: "ping"}
}

type ConfigMessage struct {
	Type     string                      `json:"type"`
	Settings settings.ExtractionSettings `json:"settings"`
}

func NewConfigMessage(s settings.ExtractionSettings) ConfigMessage {
	return ConfigMessage{Type: "config", Settings: s}
}
