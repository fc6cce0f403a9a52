package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ckd-chatbot/backend/internal/metrics"
)

var ErrNotFound = errors.New("session not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one history entry. User messages carry Content; assistant
// messages carry Outline and Detail.
type Message struct {
	Role      Role
	Content   string
	Outline   string
	Detail    string
	CreatedAt time.Time
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now()}
}

func AssistantMessage(outline, detail string) Message {
	return Message{Role: RoleAssistant, Outline: outline, Detail: detail, CreatedAt: time.Now()}
}

type answerContent struct {
	Outline string `json:"outline"`
	Detail  string `json:"detail"`
}

type messageRecord struct {
	Role      Role            `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// MarshalJSON renders assistant content as {outline, detail} and user content
// as a plain string.
func (m Message) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if m.Role == RoleAssistant {
		content, err = json.Marshal(answerContent{Outline: m.Outline, Detail: m.Detail})
	} else {
		content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(messageRecord{Role: m.Role, Content: content, CreatedAt: m.CreatedAt})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var record messageRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}

	*m = Message{Role: record.Role, CreatedAt: record.CreatedAt}
	if len(record.Content) == 0 {
		return nil
	}

	if record.Role == RoleAssistant {
		var answer answerContent
		if err := json.Unmarshal(record.Content, &answer); err != nil {
			return fmt.Errorf("failed to decode assistant content: %w", err)
		}
		m.Outline, m.Detail = answer.Outline, answer.Detail
		return nil
	}

	return json.Unmarshal(record.Content, &m.Content)
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Doctor    string    `json:"doctor,omitempty"`
	Name      string    `json:"name,omitempty"`
	History   []Message `json:"history"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuestionRecord is one entry in the patient question log.
type QuestionRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	PatientName string    `json:"patient_name"`
	Question    string    `json:"question"`
}

// Store persists chat sessions and the patient question log. Implementations
// are safe for concurrent use.
type Store interface {
	Create(ctx context.Context, userID, doctor string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
	ListByDoctor(ctx context.Context, doctor string) ([]*Session, error)
	// AppendMessage returns the history length after the append.
	AppendMessage(ctx context.Context, id string, msg Message) (int, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id, userID string) error
	// LogQuestion appends to the question log; Questions returns it oldest first.
	LogQuestion(ctx context.Context, record QuestionRecord) error
	Questions(ctx context.Context) ([]QuestionRecord, error)
	Close() error
}

type Options struct {
	Backend       string
	TTL           time.Duration
	SQLitePath    string
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
}

// Open builds the store selected by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(opts.SQLitePath)
	case "redis":
		return NewRedisStore(ctx, opts.RedisHost, opts.RedisPort, opts.RedisPassword, opts.RedisDB, opts.TTL)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", opts.Backend)
	}
}

func observe(backend, operation string, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.SessionOperations.WithLabelValues(backend, operation, status).Inc()
}
