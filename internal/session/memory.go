package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Sessions are returned as
// copies; callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	questions []QuestionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Create(ctx context.Context, userID, doctor string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Doctor:    doctor,
		History:   []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	observe("memory", "create", nil)
	return clone(sess), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		observe("memory", "get", ErrNotFound)
		return nil, ErrNotFound
	}

	observe("memory", "get", nil)
	return clone(sess), nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	return s.list("list_user", func(sess *Session) bool { return sess.UserID == userID }), nil
}

func (s *MemoryStore) ListByDoctor(ctx context.Context, doctor string) ([]*Session, error) {
	return s.list("list_doctor", func(sess *Session) bool { return sess.Doctor == doctor }), nil
}

func (s *MemoryStore) list(operation string, match func(*Session) bool) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0)
	for _, sess := range s.sessions {
		if match(sess) {
			out = append(out, clone(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	observe("memory", operation, nil)
	return out
}

func (s *MemoryStore) AppendMessage(ctx context.Context, id string, msg Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		observe("memory", "append", ErrNotFound)
		return 0, ErrNotFound
	}

	sess.History = append(sess.History, msg)
	sess.UpdatedAt = time.Now()

	observe("memory", "append", nil)
	return len(sess.History), nil
}

func (s *MemoryStore) Rename(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		observe("memory", "rename", ErrNotFound)
		return ErrNotFound
	}

	sess.Name = name
	sess.UpdatedAt = time.Now()

	observe("memory", "rename", nil)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.UserID != userID {
		observe("memory", "delete", ErrNotFound)
		return ErrNotFound
	}

	delete(s.sessions, id)
	observe("memory", "delete", nil)
	return nil
}

func (s *MemoryStore) LogQuestion(ctx context.Context, record QuestionRecord) error {
	s.mu.Lock()
	s.questions = append(s.questions, record)
	s.mu.Unlock()

	observe("memory", "log_question", nil)
	return nil
}

func (s *MemoryStore) Questions(ctx context.Context) ([]QuestionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	observe("memory", "questions", nil)
	return append([]QuestionRecord{}, s.questions...), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func clone(sess *Session) *Session {
	out := *sess
	out.History = append([]Message(nil), sess.History...)
	if out.History == nil {
		out.History = []Message{}
	}
	return &out
}
