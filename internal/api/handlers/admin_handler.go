package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/session"
	"github.com/ckd-chatbot/backend/pkg/logger"
)

// AdminHandler serves the patient question log.
type AdminHandler struct {
	store session.Store
}

func NewAdminHandler(store session.Store) *AdminHandler {
	return &AdminHandler{store: store}
}

// LogQuestion records patient_name and question from the query string.
func (h *AdminHandler) LogQuestion(c *fiber.Ctx) error {
	patient := utils.CopyString(c.Query("patient_name"))
	question := utils.CopyString(c.Query("question"))
	if patient == "" || question == "" {
		return badRequest(c, "patient_name and question are required")
	}

	record := session.QuestionRecord{
		Timestamp:   time.Now(),
		PatientName: patient,
		Question:    question,
	}
	if err := h.store.LogQuestion(c.UserContext(), record); err != nil {
		logger.Error("Failed to log question", zap.String("patient_name", patient), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Error logging question",
		})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Question logged"})
}

func (h *AdminHandler) Questions(c *fiber.Ctx) error {
	records, err := h.store.Questions(c.UserContext())
	if err != nil {
		logger.Error("Failed to read question log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Error reading logs",
		})
	}
	return c.JSON(fiber.Map{"records": records})
}
