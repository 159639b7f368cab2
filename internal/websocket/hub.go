package websocket

import (
	"sync"

	"maxwell-extraction/internal/pkg/logger"
)

// Hub tracks the live extraction sessions, keyed by manuscript so
// multiple editors of the same manuscript each get their own stream.
type Hub struct {
	// Registered sessions map: ManuscriptID -> List of Sessions
	sessions map[string][]*Session

	// Register requests from the sessions.
	register chan *Session

	// Unregister requests from sessions.
	unregister chan *Session

	// Lock for safe map access
	mu sync.RWMutex

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Session),
		unregister: make(chan *Session),
		sessions:   make(map[string][]*Session),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case session := <-h.register:
			h.mu.Lock()
			h.sessions[session.ManuscriptID] = append(h.sessions[session.ManuscriptID], session)
			h.mu.Unlock()
			h.logger.Info("Hub", "Session registered", map[string]interface{}{"manuscript_id": session.ManuscriptID})

		case session := <-h.unregister:
			h.mu.Lock()
			if sessions, ok := h.sessions[session.ManuscriptID]; ok {
				for i, s := range sessions {
					if s == session {
						h.sessions[session.ManuscriptID] = append(sessions[:i], sessions[i+1:]...)
						close(session.Send)
						break
					}
				}
				if len(h.sessions[session.ManuscriptID]) == 0 {
					delete(h.sessions, session.ManuscriptID)
					h.logger.Info("Hub", "Manuscript has no more sessions", map[string]interface{}{"manuscript_id": session.ManuscriptID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// SessionCount reports how many sessions are open for a manuscript.
func (h *Hub) SessionCount(manuscriptID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[manuscriptID])
}
