package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/settings"

	"nhooyr.io/websocket"
)

// Status is the connection lifecycle state, observable via the
// OnStatusChange callback.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusOpen         Status = "open"
	StatusClosing      Status = "closing"
)

const (
	// DefaultReconnectDelay is the fixed wait between an unexpected
	// close and the next connect attempt. No backoff, no attempt cap:
	// the stream is best-effort and the next keystroke tolerates loss.
	DefaultReconnectDelay = 5 * time.Second

	// DefaultKeepAliveInterval is how often a ping message is sent
	// while the connection is open.
	DefaultKeepAliveInterval = 30 * time.Second

	writeWait = 10 * time.Second
)

// ConnConfig wires a ConnManager to its collaborators.
type ConnConfig struct {
	// BaseURL is the extraction service base URL (http/https); the
	// manager derives the per-manuscript WebSocket endpoint from it.
	BaseURL      string
	ManuscriptID string

	// Settings supplies the current extraction settings, transmitted
	// as a config message immediately after every successful open so
	// server and client start in sync.
	Settings func() settings.ExtractionSettings

	// OnMessage receives every decoded inbound message, one at a time,
	// in delivery order.
	OnMessage func(ServerMessage)

	// OnStatusChange observes lifecycle transitions. Optional.
	OnStatusChange func(Status)

	Logger logger.ILogger

	// Overridable intervals; zero means the defaults above. Tests
	// shrink these.
	ReconnectDelay    time.Duration
	KeepAliveInterval time.Duration
}

// ConnManager owns the WebSocket lifecycle for one manuscript session:
// connect, send, auto-reconnect, keep-alive, teardown. It guarantees at
// most one live socket per manuscript at any instant, and it is the
// only component that ever touches the raw socket.
type ConnManager struct {
	cfg ConnConfig
	log logger.ILogger

	mu               sync.Mutex
	status           Status
	conn             *websocket.Conn
	reconnectAttempt int
	reconnectTimer   *time.Timer
	cancelLoops      context.CancelFunc
	closed           bool // set by Disconnect; suppresses reconnects
}

func NewConnManager(cfg ConnConfig) *ConnManager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ConnManager{
		cfg:    cfg,
		log:    log,
		status: StatusDisconnected,
	}
}

// Status returns the current lifecycle state.
func (m *ConnManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ReconnectAttempt returns how many reconnects are pending or have run
// since the last successful open.
func (m *ConnManager) ReconnectAttempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectAttempt
}

// Connect opens the socket. A no-op when already connecting or open, so
// a second Connect can never create a second live socket.
func (m *ConnManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusConnecting || m.status == StatusOpen {
		m.mu.Unlock()
		return nil
	}
	m.closed = false
	m.status = StatusConnecting
	m.mu.Unlock()
	m.emitStatus(StatusConnecting)

	wsURL := m.endpoint()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		m.mu.Lock()
		m.status = StatusDisconnected
		m.mu.Unlock()
		m.emitStatus(StatusDisconnected)
		m.log.Warn("ConnManager", "WebSocket dial failed", map[string]interface{}{
			"manuscript_id": m.cfg.ManuscriptID,
			"error":         err.Error(),
		})
		m.scheduleReconnect()
		return fmt.Errorf("dial extraction endpoint: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	m.mu.Lock()
	if m.closed {
		// Disconnect raced the dial; drop the fresh socket.
		m.status = StatusDisconnected
		m.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "session closed")
		return nil
	}
	if m.cancelLoops != nil {
		// A previous generation's loops survived; stop them before the
		// new ones start.
		m.cancelLoops()
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	m.conn = conn
	m.cancelLoops = cancel
	m.status = StatusOpen
	m.reconnectAttempt = 0
	m.mu.Unlock()

	m.emitStatus(StatusOpen)
	m.log.Info("ConnManager", "Extraction stream connected", map[string]interface{}{
		"manuscript_id": m.cfg.ManuscriptID,
	})

	// Sync the server with the client's settings before any deltas.
	if m.cfg.Settings != nil {
		m.Send(NewConfigMessage(m.cfg.Settings()))
	}

	go m.readLoop(loopCtx, conn)
	go m.keepAliveLoop(loopCtx)

	return nil
}

// Send serializes and transmits a payload if the connection is open;
// otherwise it silently drops. Callers must not assume delivery — the
// next keystroke naturally re-triggers a send once reconnected.
func (m *ConnManager) Send(payload interface{}) {
	m.mu.Lock()
	conn := m.conn
	open := m.status == StatusOpen
	m.mu.Unlock()

	if !open || conn == nil {
		m.log.Debug("ConnManager", "Dropping payload, connection not open", map[string]interface{}{
			"manuscript_id": m.cfg.ManuscriptID,
		})
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Error("ConnManager", "Failed to marshal outbound payload", map[string]interface{}{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		// The read loop observes the broken socket and drives reconnect.
		m.log.Warn("ConnManager", "WebSocket write failed", map[string]interface{}{"error": err.Error()})
	}
}

// Disconnect cancels any pending reconnect, closes the socket and
// transitions to Disconnected. Idempotent.
func (m *ConnManager) Disconnect() {
	m.mu.Lock()
	if m.closed && m.conn == nil && m.reconnectTimer == nil && m.status == StatusDisconnected {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	if m.cancelLoops != nil {
		m.cancelLoops()
		m.cancelLoops = nil
	}
	conn := m.conn
	m.conn = nil
	wasDisconnected := m.status == StatusDisconnected
	if conn != nil {
		m.status = StatusClosing
	}
	m.mu.Unlock()

	if conn != nil {
		m.emitStatus(StatusClosing)
		conn.Close(websocket.StatusNormalClosure, "session closed")
	}

	m.mu.Lock()
	m.status = StatusDisconnected
	m.mu.Unlock()
	if !wasDisconnected {
		m.emitStatus(StatusDisconnected)
	}
}

func (m *ConnManager) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			m.mu.Lock()
			intentional := m.closed
			if !intentional {
				m.conn = nil
				m.status = StatusDisconnected
				// Stop this generation's keep-alive before the
				// reconnect spawns the next one.
				if m.cancelLoops != nil {
					m.cancelLoops()
					m.cancelLoops = nil
				}
			}
			m.mu.Unlock()

			if intentional {
				return
			}

			m.log.Warn("ConnManager", "Extraction stream closed unexpectedly", map[string]interface{}{
				"manuscript_id": m.cfg.ManuscriptID,
				"error":         err.Error(),
			})
			m.emitStatus(StatusDisconnected)
			m.scheduleReconnect()
			return
		}

		msg, derr := DecodeServerMessage(data)
		if derr != nil {
			// Malformed frames are discarded; the stream keeps going.
			m.log.Warn("ConnManager", "Discarding malformed inbound message", map[string]interface{}{
				"error": derr.Error(),
			})
			continue
		}

		if m.cfg.OnMessage != nil {
			m.cfg.OnMessage(msg)
		}
	}
}

func (m *ConnManager) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Send(NewPingMessage())
		}
	}
}

// scheduleReconnect arms a one-shot retry after the fixed delay. The
// loop repeats on every failure until Disconnect is called.
func (m *ConnManager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed || m.reconnectTimer != nil {
		m.mu.Unlock()
		return
	}
	m.reconnectAttempt++
	attempt := m.reconnectAttempt
	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		// A failed attempt schedules the next one itself.
		_ = m.Connect(context.Background())
	})
	m.mu.Unlock()

	m.log.Info("ConnManager", "Reconnect scheduled", map[string]interface{}{
		"manuscript_id": m.cfg.ManuscriptID,
		"attempt":       attempt,
		"delay":         m.cfg.ReconnectDelay.String(),
	})
}

func (m *ConnManager) endpoint() string {
	base := strings.Replace(m.cfg.BaseURL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return fmt.Sprintf("%s/ws/manuscripts/%s/extraction", strings.TrimRight(base, "/"), m.cfg.ManuscriptID)
}

func (m *ConnManager) emitStatus(s Status) {
	if m.cfg.OnStatusChange != nil {
		m.cfg.OnStatusChange(s)
	}
}
