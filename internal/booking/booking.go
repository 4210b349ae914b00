// Package booking persists confirmed and pending appointments.
package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Booking ties a user to a provider's service at a specific slot.
type Booking struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	MerchantID string    `json:"merchant_id"`
	ServiceID  string    `json:"service_id"`
	SlotID     *string   `json:"slot_id,omitempty"`
	Status     Status    `json:"status"`
	Price      float64   `json:"price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Repository provides access to booking persistence operations.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending booking.
func (r *Repository) Create(ctx context.Context, b Booking) (Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO bookings (id, user_id, merchant_id, service_id, slot_id, status, price, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.MerchantID, b.ServiceID, b.SlotID, b.Status, b.Price, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	return b, nil
}

// Get loads one booking by id; returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*Booking, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, merchant_id, service_id, slot_id, status, price, created_at, updated_at
FROM bookings WHERE id = ?`, id)

	var (
		b    Booking
		slot sql.NullString
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.MerchantID, &b.ServiceID, &slot,
		&b.Status, &b.Price, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if slot.Valid {
		b.SlotID = &slot.String
	}
	return &b, nil
}

// ListByUser returns a user's bookings, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, merchant_id, service_id, slot_id, status, price, created_at, updated_at
FROM bookings WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var (
			b    Booking
			slot sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.MerchantID, &b.ServiceID, &slot,
			&b.Status, &b.Price, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		if slot.Valid {
			b.SlotID = &slot.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a booking's lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("booking %s not found", id)
	}
	return nil
}
