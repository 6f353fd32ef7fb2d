package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/DuongD0/multimodal-rag/internal/log"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// historyLimit caps how many messages History loads into the model
// context.
const historyLimit = 1000

// Store manages session persistence. It is safe for concurrent use;
// message appends serialize through a transaction so sequence numbers
// stay gapless per session.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

// New creates a Store. The sessions and messages tables must already
// exist (database.Migrate).
func New(db *sql.DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Create starts a new session. Title and modelName may be empty.
func (s *Store) Create(ctx context.Context, title, modelName string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Title:     title,
		ModelName: modelName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	const query = `
		INSERT INTO sessions (id, title, model_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.Title, sess.ModelName, sess.CreatedAt, sess.UpdatedAt); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID, "title", title)
	return sess, nil
}

// Get returns the session with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	const query = `
		SELECT id, title, model_name, created_at, updated_at
		FROM sessions WHERE id = ?`
	var sess Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.Title, &sess.ModelName, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns sessions ordered by last activity, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, title, model_name, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.ModelName, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// Delete removes a session and, through the foreign key cascade, all of
// its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.logger.Debug("deleted session", "id", id)
	return nil
}

// Append stores messages at the end of a session's history and bumps the
// session's updated_at. The whole append is one transaction.
func (s *Store) Append(ctx context.Context, sessionID string, messages []*ai.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	var maxSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM messages WHERE session_id = ?`, sessionID).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading max sequence number: %w", err)
	}

	now := time.Now().UTC()
	for i, msg := range messages {
		content, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("marshaling message %d content: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, sequence_number, role, content, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			sessionID, maxSeq+i+1, string(msg.Role), content, now); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("updating session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.logger.Debug("appended messages", "session_id", sessionID, "count", len(messages))
	return nil
}

// History loads a session's messages in sequence order as genkit
// messages, ready to seed a model conversation.
func (s *Store) History(ctx context.Context, sessionID string) ([]*ai.Message, error) {
	msgs, err := s.Messages(ctx, sessionID, historyLimit, 0)
	if err != nil {
		return nil, err
	}
	history := make([]*ai.Message, len(msgs))
	for i, m := range msgs {
		history[i] = &ai.Message{Role: ai.Role(m.Role), Content: m.Content}
	}
	return history, nil
}

// Messages returns stored messages ordered by sequence number.
func (s *Store) Messages(ctx context.Context, sessionID string, limit, offset int) ([]*Message, error) {
	if limit <= 0 {
		limit = historyLimit
	}
	const query = `
		SELECT id, session_id, sequence_number, role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY sequence_number LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("loading messages for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*Message
	for rows.Next() {
		var (
			m   Message
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SequenceNumber, &m.Role, &raw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if err := json.Unmarshal(raw, &m.Content); err != nil {
			s.logger.Warn("skipping message with malformed content",
				"message_id", m.ID, "session_id", sessionID, "error", err)
			continue
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
