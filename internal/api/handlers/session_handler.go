package handlers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/session"
	"github.com/ckd-chatbot/backend/pkg/logger"
)

type SessionHandler struct {
	store    session.Store
	validate *validator.Validate
}

func NewSessionHandler(store session.Store) *SessionHandler {
	return &SessionHandler{
		store:    store,
		validate: validator.New(),
	}
}

// Create copies the query values since stores may retain them past the request.
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	userID := utils.CopyString(c.Query("user_id"))
	if userID == "" {
		return badRequest(c, "user_id is required")
	}

	sess, err := h.store.Create(c.UserContext(), userID, utils.CopyString(c.Query("doctor")))
	if err != nil {
		return h.storeError(c, "create", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"session": sess,
	})
}

func (h *SessionHandler) List(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id is required")
	}

	sessions, err := h.store.ListByUser(c.UserContext(), userID)
	if err != nil {
		return h.storeError(c, "list", err)
	}
	return c.JSON(sessions)
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.store.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.storeError(c, "get", err)
	}
	return c.JSON(sess)
}

func (h *SessionHandler) Rename(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name" validate:"required,max=100"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, "name is required")
	}

	if err := h.store.Rename(c.UserContext(), c.Params("id"), req.Name); err != nil {
		return h.storeError(c, "rename", err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Session updated"})
}

func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id is required")
	}

	if err := h.store.Delete(c.UserContext(), c.Params("id"), userID); err != nil {
		return h.storeError(c, "delete", err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Session deleted"})
}

// DoctorSessions groups a doctor's sessions by patient.
func (h *SessionHandler) DoctorSessions(c *fiber.Ctx) error {
	doctor := c.Query("doctor")
	if doctor == "" {
		return badRequest(c, "doctor is required")
	}

	sessions, err := h.store.ListByDoctor(c.UserContext(), doctor)
	if err != nil {
		return h.storeError(c, "list_doctor", err)
	}

	patients := make(map[string][]*session.Session)
	for _, sess := range sessions {
		patients[sess.UserID] = append(patients[sess.UserID], sess)
	}

	return c.JSON(fiber.Map{
		"doctor":         doctor,
		"total_patients": len(patients),
		"patients":       patients,
	})
}

type patientSummary struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	SessionCount int    `json:"session_count"`
	LastActivity string `json:"last_activity"`
}

// DoctorPatients lists the distinct patients of a doctor. Patient IDs have
// the form name_email.
func (h *SessionHandler) DoctorPatients(c *fiber.Ctx) error {
	doctor := c.Query("doctor")
	if doctor == "" {
		return badRequest(c, "doctor is required")
	}

	sessions, err := h.store.ListByDoctor(c.UserContext(), doctor)
	if err != nil {
		return h.storeError(c, "list_doctor", err)
	}

	order := make([]string, 0)
	byUser := make(map[string]*patientSummary)
	for _, sess := range sessions {
		p, ok := byUser[sess.UserID]
		if !ok {
			name, email, _ := strings.Cut(sess.UserID, "_")
			p = &patientSummary{UserID: sess.UserID, Name: name, Email: email}
			byUser[sess.UserID] = p
			order = append(order, sess.UserID)
		}
		p.SessionCount++
		if last := sess.UpdatedAt.Format("2006-01-02T15:04:05"); last > p.LastActivity {
			p.LastActivity = last
		}
	}

	patients := make([]*patientSummary, 0, len(order))
	for _, userID := range order {
		patients = append(patients, byUser[userID])
	}
	return c.JSON(patients)
}

func (h *SessionHandler) storeError(c *fiber.Ctx, operation string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Session not found",
		})
	}

	logger.Error("Session store operation failed",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Session store unavailable",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
