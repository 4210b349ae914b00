// Package conversation drives the preference-gathering chat: each user turn
// is parsed into preference fields, merged into a session, and answered
// either with a follow-up question or with ranked matches.
package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"glowgo/internal/preference"
)

// SessionStatus is the lifecycle state of a preference session.
type SessionStatus string

const (
	StatusGathering SessionStatus = "gathering"
	StatusReady     SessionStatus = "ready"
	StatusMatched   SessionStatus = "matched"
	StatusClosed    SessionStatus = "closed"
)

// Session accumulates a user's preferences across conversation turns.
type Session struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	Pref      preference.Preference `json:"preferences"`
	Status    SessionStatus         `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Message is one turn of the conversation, persisted for context replay.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// sessionTTL bounds how long an unfinished session keeps accumulating; a
// user coming back days later starts fresh.
const sessionTTL = 24 * time.Hour

// SessionRepository provides access to session persistence operations.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create starts an empty gathering session for a user.
func (sr *SessionRepository) Create(ctx context.Context, userID string) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    StatusGathering,
		CreatedAt: now,
		UpdatedAt: now,
	}

	prefJSON, err := json.Marshal(s.Pref)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}

	_, err = sr.db.ExecContext(ctx, `
INSERT INTO preference_sessions (id, user_id, preferences_json, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, string(prefJSON), s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// GetActive retrieves the user's most recent session still gathering or
// ready; returns nil when there is none or the latest one has expired.
func (sr *SessionRepository) GetActive(ctx context.Context, userID string) (*Session, error) {
	cutoff := time.Now().UTC().Add(-sessionTTL)
	row := sr.db.QueryRowContext(ctx, `
SELECT id, user_id, preferences_json, status, created_at, updated_at
FROM preference_sessions
WHERE user_id = ? AND status IN ('gathering', 'ready') AND updated_at >= ?
ORDER BY updated_at DESC
LIMIT 1`, userID, cutoff)

	var (
		s        Session
		prefJSON string
	)
	if err := row.Scan(&s.ID, &s.UserID, &prefJSON, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}
	if err := json.Unmarshal([]byte(prefJSON), &s.Pref); err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}
	return &s, nil
}

// Update persists the session's preferences and status.
func (sr *SessionRepository) Update(ctx context.Context, s *Session) error {
	prefJSON, err := json.Marshal(s.Pref)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	s.UpdatedAt = time.Now().UTC()

	_, err = sr.db.ExecContext(ctx, `
UPDATE preference_sessions SET preferences_json = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(prefJSON), s.Status, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// CloseActive closes any session the user still has open.
func (sr *SessionRepository) CloseActive(ctx context.Context, userID string) error {
	_, err := sr.db.ExecContext(ctx, `
UPDATE preference_sessions SET status = ?, updated_at = ?
WHERE user_id = ? AND status IN ('gathering', 'ready')`,
		StatusClosed, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("close sessions: %w", err)
	}
	return nil
}

// DeleteStale removes sessions untouched for longer than the retention
// window, together with their messages.
func (sr *SessionRepository) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	if _, err := sr.db.ExecContext(ctx, `
DELETE FROM conversation_messages
WHERE session_id IN (SELECT id FROM preference_sessions WHERE updated_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("delete stale messages: %w", err)
	}
	res, err := sr.db.ExecContext(ctx, `DELETE FROM preference_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return res.RowsAffected()
}

// AppendMessage stores one conversation turn.
func (sr *SessionRepository) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := sr.db.ExecContext(ctx, `
INSERT INTO conversation_messages (session_id, role, content, created_at)
VALUES (?, ?, ?, ?)`,
		sessionID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// History returns a session's turns oldest first.
func (sr *SessionRepository) History(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := sr.db.QueryContext(ctx, `
SELECT id, session_id, role, content, created_at
FROM conversation_messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
