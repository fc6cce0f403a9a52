package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/pipeline"
	"github.com/ckd-chatbot/backend/internal/session"
	"github.com/ckd-chatbot/backend/pkg/logger"
)

type wsRequest struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

type WebSocketHandler struct {
	answerer Answerer
	store    session.Store
	namer    *session.Namer
}

func NewWebSocketHandler(answerer Answerer, store session.Store, namer *session.Namer) *WebSocketHandler {
	return &WebSocketHandler{
		answerer: answerer,
		store:    store,
		namer:    namer,
	}
}

// HandleConnection answers "query" messages, forwarding every pipeline event
// as one JSON message. Other message types are ignored.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsRequest
		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if msg.Type != "query" {
			continue
		}
		if msg.Content == "" {
			if err := c.WriteJSON(pipeline.ErrorEvent("message is required")); err != nil {
				return
			}
			continue
		}

		if err := h.streamResponse(c, msg); err != nil {
			logger.Info("WebSocket client went away", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, msg wsRequest) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.recordQuery(ctx, msg)

	events := h.answerer.AnswerStream(ctx, msg.Content)
	for event := range events {
		if event.Type == pipeline.EventDone {
			h.persist(ctx, msg.SessionID, session.AssistantMessage(event.Outline, event.Detail))
		}

		if err := c.WriteJSON(event); err != nil {
			cancel()
			for range events {
			}
			return err
		}
	}
	return nil
}

// recordQuery stores the user message and names an unnamed session on its
// first message.
func (h *WebSocketHandler) recordQuery(ctx context.Context, msg wsRequest) {
	if h.persist(ctx, msg.SessionID, session.UserMessage(msg.Content)) != 1 {
		return
	}

	sess, err := h.store.Get(ctx, msg.SessionID)
	if err == nil && sess.Name == "" {
		h.namer.NameFromMessage(ctx, msg.SessionID, msg.Content)
	}
}

// persist returns the history length, or 0 when nothing was stored.
func (h *WebSocketHandler) persist(ctx context.Context, sessionID string, message session.Message) int {
	if sessionID == "" {
		return 0
	}

	count, err := h.store.AppendMessage(ctx, sessionID, message)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		logger.Error("Failed to store WebSocket message",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
	return count
}
