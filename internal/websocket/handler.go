package websocket

import (
	"maxwell-extraction/internal/extract"
	"maxwell-extraction/internal/settings"

	"github.com/gofiber/websocket/v2"
)

// ServeExtraction handles one upgraded extraction stream. Every session
// starts from default settings; the client pushes its own config frame
// right after the socket opens.
func ServeExtraction(hub *Hub, engine *extract.Engine, c *websocket.Conn, manuscriptID string) {
	session := &Session{
		Hub:          hub,
		Conn:         c,
		ManuscriptID: manuscriptID,
		Send:         make(chan []byte, 64),
		engine:       engine,
		settings:     settings.Defaults(),
	}
	session.Hub.register <- session

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go session.writePump()
	session.readPump() // Run readPump in current goroutine (handler)
}
