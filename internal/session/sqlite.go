package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ckd-chatbot/backend/pkg/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	doctor TEXT,
	name TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_doctor ON sessions(doctor);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT,
	outline TEXT,
	detail TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);

CREATE TABLE IF NOT EXISTS question_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_name TEXT NOT NULL,
	question TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_question_log_created ON question_log(created_at);
`

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Connection pragmas go in the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite session store initialized", zap.String("path", dbPath))

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, userID, doctor string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Doctor:    doctor,
		History:   []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, doctor, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.UserID, nullString(sess.Doctor), nullString(""), now.Unix(), now.Unix())

	observe("sqlite", "create", err)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return sess, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, doctor, name, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	if err == nil {
		sess.History, err = s.history(ctx, id)
	}

	observe("sqlite", "get", err)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	return s.list(ctx, "list_user", "user_id", userID)
}

func (s *SQLiteStore) ListByDoctor(ctx context.Context, doctor string) ([]*Session, error) {
	return s.list(ctx, "list_doctor", "doctor", doctor)
}

// list filters on column, which is always one of the fixed names above.
func (s *SQLiteStore) list(ctx context.Context, operation, column, value string) (result []*Session, err error) {
	defer func() { observe("sqlite", operation, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, doctor, name, created_at, updated_at
		FROM sessions WHERE `+column+` = ?
		ORDER BY created_at ASC
	`, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	for _, sess := range sessions {
		if sess.History, err = s.history(ctx, sess.ID); err != nil {
			return nil, err
		}
	}

	return sessions, nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, id string, msg Message) (count int, err error) {
	defer func() { observe("sqlite", "append", err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now().Unix(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, outline, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, string(msg.Role), nullString(msg.Content), nullString(msg.Outline), nullString(msg.Detail), createdAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit message: %w", err)
	}

	return count, nil
}

func (s *SQLiteStore) Rename(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now().Unix(), id)
	if err == nil {
		if n, _ := res.RowsAffected(); n == 0 {
			err = ErrNotFound
		}
	}

	observe("sqlite", "rename", err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err == nil {
		if n, _ := res.RowsAffected(); n == 0 {
			err = ErrNotFound
		}
	}

	observe("sqlite", "delete", err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return err
}

func (s *SQLiteStore) LogQuestion(ctx context.Context, record QuestionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question_log (patient_name, question, created_at)
		VALUES (?, ?, ?)
	`, record.PatientName, record.Question, record.Timestamp.UnixMilli())

	observe("sqlite", "log_question", err)
	if err != nil {
		return fmt.Errorf("failed to insert question record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Questions(ctx context.Context) (records []QuestionRecord, err error) {
	defer func() { observe("sqlite", "questions", err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_name, question, created_at
		FROM question_log
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query question log: %w", err)
	}
	defer rows.Close()

	records = make([]QuestionRecord, 0)
	for rows.Next() {
		var (
			record    QuestionRecord
			createdAt int64
		)
		if err := rows.Scan(&record.PatientName, &record.Question, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan question record: %w", err)
		}
		record.Timestamp = time.UnixMilli(createdAt)
		records = append(records, record)
	}

	return records, rows.Err()
}

func (s *SQLiteStore) history(ctx context.Context, id string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, outline, detail, created_at
		FROM messages WHERE session_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	history := make([]Message, 0)
	for rows.Next() {
		var (
			msg                      Message
			role                     string
			content, outline, detail sql.NullString
			createdAt                int64
		)
		if err := rows.Scan(&role, &content, &outline, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = Role(role)
		msg.Content = content.String
		msg.Outline = outline.String
		msg.Detail = detail.String
		msg.CreatedAt = time.UnixMilli(createdAt)
		history = append(history, msg)
	}

	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess                 Session
		doctor, name         sql.NullString
		createdAt, updatedAt int64
	)

	err := row.Scan(&sess.ID, &sess.UserID, &doctor, &name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	sess.Doctor = doctor.String
	sess.Name = name.String
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	return &sess, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
