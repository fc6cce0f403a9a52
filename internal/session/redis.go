package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/pkg/logger"
)

const (
	maxWatchRetries = 5
	questionLogKey  = "question_log"
)

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore keeps each session as one JSON document with a sliding TTL, plus
// per-user and per-doctor index sets.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, host string, port int, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis session store initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &RedisStore{client: client, ttl: ttl}, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func userIndexKey(userID string) string {
	return fmt.Sprintf("user_sessions:%s", userID)
}

func doctorIndexKey(doctor string) string {
	return fmt.Sprintf("doctor_sessions:%s", doctor)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Create(ctx context.Context, userID, doctor string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Doctor:    doctor,
		History:   []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.ID), data, s.ttl)
		pipe.SAdd(ctx, userIndexKey(userID), sess.ID)
		if doctor != "" {
			pipe.SAdd(ctx, doctorIndexKey(doctor), sess.ID)
		}
		return nil
	})

	observe("redis", "create", err)
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.load(ctx, s.client, id)
	observe("redis", "get", err)
	return sess, err
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	return s.list(ctx, "list_user", userIndexKey(userID))
}

func (s *RedisStore) ListByDoctor(ctx context.Context, doctor string) ([]*Session, error) {
	return s.list(ctx, "list_doctor", doctorIndexKey(doctor))
}

// list drops index entries whose session has expired.
func (s *RedisStore) list(ctx context.Context, operation, indexKey string) (result []*Session, err error) {
	defer func() { observe("redis", operation, err) }()

	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session index: %w", err)
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.load(ctx, s.client, id)
		if errors.Is(err, ErrNotFound) {
			s.client.SRem(ctx, indexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, id string, msg Message) (int, error) {
	var count int
	err := s.update(ctx, id, func(sess *Session) {
		sess.History = append(sess.History, msg)
		count = len(sess.History)
	})
	observe("redis", "append", err)
	return count, err
}

func (s *RedisStore) Rename(ctx context.Context, id, name string) error {
	err := s.update(ctx, id, func(sess *Session) {
		sess.Name = name
	})
	observe("redis", "rename", err)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, id, userID string) error {
	sess, err := s.load(ctx, s.client, id)
	if err == nil && sess.UserID != userID {
		err = ErrNotFound
	}
	if err == nil {
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sessionKey(id))
			pipe.SRem(ctx, userIndexKey(sess.UserID), id)
			if sess.Doctor != "" {
				pipe.SRem(ctx, doctorIndexKey(sess.Doctor), id)
			}
			return nil
		})
		if err != nil {
			err = fmt.Errorf("failed to delete session: %w", err)
		}
	}

	observe("redis", "delete", err)
	return err
}

// LogQuestion appends to a list that is never expired.
func (s *RedisStore) LogQuestion(ctx context.Context, record QuestionRecord) error {
	data, err := json.Marshal(record)
	if err == nil {
		err = s.client.RPush(ctx, questionLogKey, data).Err()
	}

	observe("redis", "log_question", err)
	if err != nil {
		return fmt.Errorf("failed to log question: %w", err)
	}
	return nil
}

// Questions skips entries that no longer decode.
func (s *RedisStore) Questions(ctx context.Context) ([]QuestionRecord, error) {
	entries, err := s.client.LRange(ctx, questionLogKey, 0, -1).Result()
	observe("redis", "questions", err)
	if err != nil {
		return nil, fmt.Errorf("failed to read question log: %w", err)
	}

	records := make([]QuestionRecord, 0, len(entries))
	for _, entry := range entries {
		var record QuestionRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			logger.Warn("Skipping malformed question record", zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// update applies fn under WATCH so concurrent appends are not lost.
func (s *RedisStore) update(ctx context.Context, id string, fn func(*Session)) error {
	key := sessionKey(id)

	txf := func(tx *redis.Tx) error {
		sess, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		fn(sess)
		sess.UpdatedAt = time.Now()

		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return fmt.Errorf("failed to update session %s: too much contention", id)
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (*Session, error) {
	data, err := c.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.History == nil {
		sess.History = []Message{}
	}
	return &sess, nil
}
