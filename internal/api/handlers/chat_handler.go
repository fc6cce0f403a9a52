package handlers

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/pipeline"
	"github.com/ckd-chatbot/backend/internal/session"
	"github.com/ckd-chatbot/backend/pkg/logger"
)

const persistTimeout = 5 * time.Second

// Answerer is the question-answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string) (*pipeline.ComposedAnswer, error)
	AnswerStream(ctx context.Context, question string) <-chan pipeline.Event
}

type SendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required,max=2000"`
}

type ChatHandler struct {
	answerer Answerer
	store    session.Store
	namer    *session.Namer
	validate *validator.Validate
}

func NewChatHandler(answerer Answerer, store session.Store, namer *session.Namer) *ChatHandler {
	return &ChatHandler{
		answerer: answerer,
		store:    store,
		namer:    namer,
		validate: validator.New(),
	}
}

// SendMessage answers one message and returns the composed answer.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if req == nil {
		return err
	}

	ctx := c.UserContext()
	sess, ok, err := h.recordQuestion(ctx, c, req)
	if !ok {
		return err
	}
	if sess != nil {
		h.namer.NameWithModel(ctx, req.SessionID, req.Message)
	}

	start := time.Now()
	answer, err := h.answerer.Answer(ctx, req.Message)
	if err != nil {
		var answerErr *pipeline.AnswerError
		if !errors.As(err, &answerErr) {
			logger.Error("Failed to answer message",
				zap.String("session_id", req.SessionID),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to process message",
			})
		}
		answer = &pipeline.ComposedAnswer{Outline: answerErr.Message, Detail: answerErr.Message}
	}
	elapsed := time.Since(start)

	if _, err := h.store.AppendMessage(ctx, req.SessionID, session.AssistantMessage(answer.Outline, answer.Detail)); err != nil {
		logger.Error("Failed to store answer", zap.String("session_id", req.SessionID), zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"message":         answer,
		"processing_time": elapsed.Seconds(),
	})
}

// StreamMessage answers one message as server-sent events. The stream is
// written after the handler returns, so the pipeline gets its own context
// which is cancelled when a write to the client fails.
func (h *ChatHandler) StreamMessage(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if req == nil {
		return err
	}

	sess, ok, err := h.recordQuestion(c.UserContext(), c, req)
	if !ok {
		return err
	}
	if sess != nil {
		h.namer.NameFromMessage(c.UserContext(), req.SessionID, req.Message)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := h.answerer.AnswerStream(ctx, req.Message)
		for event := range events {
			if event.Type == pipeline.EventDone {
				h.storeAnswer(req.SessionID, event)
			}

			if err := writeFrame(w, event); err != nil {
				logger.Info("SSE client disconnected",
					zap.String("session_id", req.SessionID),
					zap.Error(err),
				)
				cancel()
				for range events {
				}
				return
			}
		}
	})

	return nil
}

func writeFrame(w *bufio.Writer, event pipeline.Event) error {
	frame, err := pipeline.SSEFrame(event)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return w.Flush()
}

func (h *ChatHandler) storeAnswer(sessionID string, event pipeline.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := h.store.AppendMessage(ctx, sessionID, session.AssistantMessage(event.Outline, event.Detail)); err != nil {
		logger.Error("Failed to store streamed answer", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// parse returns a nil request when the response has already been written.
func (h *ChatHandler) parse(c *fiber.Ctx) (*SendMessageRequest, error) {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "session_id and message are required",
		})
	}

	return &req, nil
}

// recordQuestion appends the user message. It returns the session when this
// message is the first one in an unnamed session, and ok=false when the
// response has already been written.
func (h *ChatHandler) recordQuestion(ctx context.Context, c *fiber.Ctx, req *SendMessageRequest) (*session.Session, bool, error) {
	sess, err := h.store.Get(ctx, req.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, false, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Session not found",
		})
	}
	if err != nil {
		logger.Error("Failed to load session", zap.String("session_id", req.SessionID), zap.Error(err))
		return nil, false, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to load session",
		})
	}

	count, err := h.store.AppendMessage(ctx, req.SessionID, session.UserMessage(req.Message))
	if err != nil {
		logger.Error("Failed to store message", zap.String("session_id", req.SessionID), zap.Error(err))
		return nil, false, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to store message",
		})
	}

	if count == 1 && sess.Name == "" {
		return sess, true, nil
	}
	return nil, true, nil
}
