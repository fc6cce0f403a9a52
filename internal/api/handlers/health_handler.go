package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether the knowledge graph is reachable.
type Pinger interface {
	Ping(ctx context.Context) bool
}

type HealthHandler struct {
	graph Pinger
}

func NewHealthHandler(graph Pinger) *HealthHandler {
	return &HealthHandler{graph: graph}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready fails while the knowledge graph cannot be reached.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	if !h.graph.Ping(ctx) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"graph":  "down",
		})
	}

	return c.JSON(fiber.Map{
		"status": "ready",
		"graph":  "up",
	})
}
