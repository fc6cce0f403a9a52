package session

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/internal/llm"
	"github.com/ckd-chatbot/backend/pkg/logger"
)

const quickTitleRunes = 30

// Namer titles a session from its first user message.
type Namer struct {
	store Store
	model llm.Model
}

func NewNamer(store Store, model llm.Model) *Namer {
	return &Namer{store: store, model: model}
}

// NameWithModel asks the model for a one-line title. It falls back to
// QuickTitle when the model fails or returns nothing.
func (n *Namer) NameWithModel(ctx context.Context, sessionID, message string) {
	title := ""
	if n.model != nil {
		generated, err := n.model.Generate(ctx, "請用一句話為以下對話命名，作為標題：\n使用者："+message)
		if err != nil {
			logger.Warn("Session auto-naming failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
		title = cleanTitle(generated)
	}
	if title == "" {
		title = QuickTitle(message)
	}
	n.rename(ctx, sessionID, title)
}

// NameFromMessage titles the session with a prefix of message.
func (n *Namer) NameFromMessage(ctx context.Context, sessionID, message string) {
	n.rename(ctx, sessionID, QuickTitle(message))
}

func (n *Namer) rename(ctx context.Context, sessionID, title string) {
	if err := n.store.Rename(ctx, sessionID, title); err != nil {
		logger.Warn("Failed to rename session",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}
	logger.Debug("Session named", zap.String("session_id", sessionID), zap.String("name", title))
}

// QuickTitle keeps the first 30 characters of message.
func QuickTitle(message string) string {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) <= quickTitleRunes {
		return message
	}
	return string([]rune(message)[:quickTitleRunes]) + "..."
}

func cleanTitle(title string) string {
	title = strings.NewReplacer(`"`, "", "'", "", "「", "", "」", "").Replace(title)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}
