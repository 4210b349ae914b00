// Package user persists marketplace accounts. Telegram users are created
// lazily on first contact.
package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is a marketplace account. CalendarToken, when set, lets the calendar
// routes read this user's own Google Calendar.
type User struct {
	ID            string    `json:"id"`
	TelegramID    *int64    `json:"telegram_id,omitempty"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	CalendarToken string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository provides access to user persistence operations.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreateByTelegramID finds a user by telegram id, creating the account
// on first contact.
func (r *Repository) GetOrCreateByTelegramID(ctx context.Context, telegramID int64, name string) (*User, error) {
	u, err := r.getByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u = &User{
		ID:         uuid.NewString(),
		TelegramID: &telegramID,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO users (id, telegram_id, name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, telegramID, name, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Create inserts an account that is not tied to a telegram identity.
func (r *Repository) Create(ctx context.Context, name, phone, email string) (*User, error) {
	u := &User{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, name, phone, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Phone, u.Email, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Get loads a user by id; returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, telegram_id, name, phone, email, google_calendar_token, created_at
FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *Repository) getByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, telegram_id, name, phone, email, google_calendar_token, created_at
FROM users WHERE telegram_id = ?`, telegramID)
	return scanUser(row)
}

// UpdateContact sets the user's display name, phone and email.
func (r *Repository) UpdateContact(ctx context.Context, id, name, phone, email string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE users SET name = ?, phone = ?, email = ? WHERE id = ?`, name, phone, email, id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SetCalendarToken stores the user's Google Calendar access token. An empty
// token disconnects the calendar.
func (r *Repository) SetCalendarToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE users SET google_calendar_token = ? WHERE id = ?`, token, id)
	if err != nil {
		return fmt.Errorf("update calendar token: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u   User
		tid sql.NullInt64
	)
	if err := row.Scan(&u.ID, &tid, &u.Name, &u.Phone, &u.Email, &u.CalendarToken, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if tid.Valid {
		u.TelegramID = &tid.Int64
	}
	return &u, nil
}
