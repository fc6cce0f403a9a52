package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxMessageLength: 10}))
	app.Post("/api/chat/message", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/api/sessions", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"valid message", "/api/chat/message", "application/json", `{"session_id":"s","message":"洗腎"}`, fiber.StatusOK},
		{"missing message", "/api/chat/message", "application/json", `{"session_id":"s"}`, fiber.StatusBadRequest},
		{"blank message", "/api/chat/message", "application/json", `{"message":"  "}`, fiber.StatusBadRequest},
		{"non-string message", "/api/chat/message", "application/json", `{"message":5}`, fiber.StatusBadRequest},
		{"too long", "/api/chat/message", "application/json", `{"message":"` + strings.Repeat("腎", 11) + `"}`, fiber.StatusBadRequest},
		{"script", "/api/chat/message", "application/json", `{"message":"<script>"}`, fiber.StatusBadRequest},
		{"bad json", "/api/chat/message", "application/json", `{`, fiber.StatusBadRequest},
		{"wrong content type", "/api/chat/message", "text/plain", `hi`, fiber.StatusUnsupportedMediaType},
		{"other route", "/api/sessions", "application/json", `{"name":"x"}`, fiber.StatusOK},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestMiddleware_StreamRouteIsChecked(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{}))
	app.Post("/api/chat/message/stream", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("POST", "/api/chat/message/stream", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
