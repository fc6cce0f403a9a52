package validation

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxMessageLength int
	// ChatPaths are the route prefixes whose JSON body carries a user message.
	ChatPaths []string
	Logger    *zap.Logger
}

// Middleware rejects non-JSON writes and checks the message field on chat
// routes before any model work is started.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 2000
	}
	if len(cfg.ChatPaths) == 0 {
		cfg.ChatPaths = []string{"/api/chat/message"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodPost && method != fiber.MethodPut {
			return c.Next()
		}

		if len(c.Body()) > 0 && !strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"success": false,
				"error":   "Unsupported content type",
			})
		}

		if !isChatPath(c.Path(), cfg.ChatPaths) {
			return c.Next()
		}

		var req map[string]any
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid JSON format",
			})
		}

		message, ok := req["message"].(string)
		message = sanitizeString(message)
		if !ok || message == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Message is required and must be a string",
			})
		}

		if utf8.RuneCountInString(message) > cfg.MaxMessageLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Message exceeds maximum length",
			})
		}

		if xssPattern.MatchString(message) {
			cfg.Logger.Warn("Potential XSS attempt",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid message content",
			})
		}

		return c.Next()
	}
}

func isChatPath(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func sanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
