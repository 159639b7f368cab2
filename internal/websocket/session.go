package websocket

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"maxwell-extraction/internal/extract"
	"maxwell-extraction/internal/realtime"
	"maxwell-extraction/internal/settings"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
)

// inboundFrame covers every client frame shape. Deltas carry no type
// tag; they are recognized by the text_delta key alone.
type inboundFrame struct {
	Type      string                       `json:"type"`
	TextDelta string                       `json:"text_delta"`
	Settings  *settings.ExtractionSettings `json:"settings"`
}

type pongFrame struct {
	Type string `json:"type"`
}

type configAckFrame struct {
	Type     string                      `json:"type"`
	Settings settings.ExtractionSettings `json:"settings"`
}

type entitiesFrame struct {
	Type        string                    `json:"type"`
	NewEntities []realtime.DetectedEntity `json:"new_entities"`
	Timestamp   string                    `json:"timestamp"`
}

// Session is a middleman between one websocket connection and the
// extraction engine. Deltas accumulate until the debounce window
// closes, then the batch runs through the engine as a whole.
type Session struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// ManuscriptID this stream extracts for.
	ManuscriptID string

	// Buffered channel of outbound messages.
	Send chan []byte

	engine *extract.Engine

	mu       sync.Mutex
	settings settings.ExtractionSettings
	pending  strings.Builder
	debounce *time.Timer
}

// readPump pumps frames from the websocket connection into the session.
func (s *Session) readPump() {
	defer func() {
		s.stopDebounce()
		s.Hub.unregister <- s
		s.Conn.Close()
	}()
	s.Conn.SetReadLimit(maxMessageSize)
	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.Hub.logger.Warn("Session", "Read error", map[string]interface{}{
					"manuscript_id": s.ManuscriptID,
					"error":         err.Error(),
				})
			}
			break
		}
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handleFrame(data)
	}
}

func (s *Session) handleFrame(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.Hub.logger.Warn("Session", "Malformed frame dropped", map[string]interface{}{
			"manuscript_id": s.ManuscriptID,
			"error":         err.Error(),
		})
		return
	}

	switch frame.Type {
	case "ping":
		s.enqueue(pongFrame{Type: "pong"})
	case "config":
		if frame.Settings == nil {
			s.Hub.logger.Warn("Session", "Config frame without settings", map[string]interface{}{"manuscript_id": s.ManuscriptID})
			return
		}
		s.applySettings(*frame.Settings)
	case "":
		if frame.TextDelta != "" {
			s.queueDelta(frame.TextDelta)
		}
	default:
		s.Hub.logger.Warn("Session", "Unknown frame type", map[string]interface{}{
			"manuscript_id": s.ManuscriptID,
			"frame_type":    frame.Type,
		})
	}
}

func (s *Session) applySettings(next settings.ExtractionSettings) {
	s.mu.Lock()
	s.settings = next
	if !next.Enabled && s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
		s.pending.Reset()
	}
	s.mu.Unlock()

	s.Hub.logger.Info("Session", "Settings applied", map[string]interface{}{
		"manuscript_id": s.ManuscriptID,
		"debounce_s":    next.DebounceDelaySeconds,
		"threshold":     next.ConfidenceThreshold,
	})
	s.enqueue(configAckFrame{Type: "config_ack", Settings: next})
}

// queueDelta buffers text and arms the debounce timer. Each new delta
// restarts the window, so a typing burst produces one engine pass.
func (s *Session) queueDelta(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settings.Enabled {
		return
	}
	s.pending.WriteString(delta)

	window := time.Duration(s.settings.DebounceDelaySeconds) * time.Second
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(window, s.flush)
}

// flush runs the accumulated batch through the engine. An entities
// frame goes out even when nothing was detected, so the client can
// clear its processing state.
func (s *Session) flush() {
	s.mu.Lock()
	text := s.pending.String()
	s.pending.Reset()
	s.debounce = nil
	current := s.settings
	s.mu.Unlock()

	if text == "" {
		return
	}

	detected := s.engine.Detect(text, current)
	s.enqueue(entitiesFrame{
		Type:        "entities",
		NewEntities: detected,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Session) stopDebounce() {
	s.mu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.mu.Unlock()
}

func (s *Session) enqueue(frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.Hub.logger.Error("Session", "Frame marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}
	select {
	case s.Send <- data:
	default:
		s.Hub.logger.Warn("Session", "Send buffer full, dropping frame", map[string]interface{}{"manuscript_id": s.ManuscriptID})
	}
}

// writePump pumps messages from the session to the websocket connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
