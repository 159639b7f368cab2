package server

import (
	"log"
	"net"

	"maxwell-extraction/internal/config"
	"maxwell-extraction/internal/extract"
	ws "maxwell-extraction/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type Server struct {
	app *fiber.App
	cfg *config.Config
}

func New(cfg *config.Config, hub *ws.Hub, engine *extract.Engine) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/manuscripts/:id/extraction", websocket.New(func(conn *websocket.Conn) {
		ws.ServeExtraction(hub, engine, conn, conn.Params("id"))
	}))

	return &Server{app: app, cfg: cfg}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Serve accepts connections on an already-bound listener. Integration
// tests use this with a random port.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Run() error {
	log.Printf("✅ Extraction server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
