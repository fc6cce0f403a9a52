package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type Handlers struct {
	Chat      *ChatHandler
	Sessions  *SessionHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler
	Admin     *AdminHandler
}

// Register mounts every API route on app.
func Register(app *fiber.App, h Handlers) {
	app.Get("/health", h.Health.Health)
	app.Get("/ready", h.Health.Ready)

	api := app.Group("/api")

	api.Post("/sessions", h.Sessions.Create)
	api.Get("/sessions", h.Sessions.List)
	api.Get("/sessions/:id", h.Sessions.Get)
	api.Put("/sessions/:id", h.Sessions.Rename)
	api.Delete("/sessions/:id", h.Sessions.Delete)

	api.Get("/doctor/sessions", h.Sessions.DoctorSessions)
	api.Get("/doctor/patients", h.Sessions.DoctorPatients)

	api.Post("/admin/questions/log", h.Admin.LogQuestion)
	api.Get("/admin/questions", h.Admin.Questions)

	api.Post("/chat/message", h.Chat.SendMessage)
	api.Post("/chat/message/stream", h.Chat.StreamMessage)

	api.Use("/chat/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/chat/ws", websocket.New(h.WebSocket.HandleConnection))
}
