package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository provides access to merchant, service and slot persistence.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertProviders inserts providers without duplicating by id. Used by seed
// loading and ingestion.
func (r *Repository) UpsertProviders(ctx context.Context, providers []Provider) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO merchants
(id, name, address, location_lat, location_lon, rating, review_count, price_range, specialties_json, stylists_json, booking_url, source)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range providers {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		spec, _ := json.Marshal(p.Specialties)
		sty, _ := json.Marshal(p.Stylists)

		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Name, p.Address, p.Lat, p.Lon, p.Rating, p.ReviewCount,
			p.PriceRange, string(spec), string(sty), p.BookingURL, p.Source,
		); err != nil {
			return fmt.Errorf("insert merchant %s: %w", p.Name, err)
		}
	}
	return tx.Commit()
}

// CreateService attaches a service to a provider.
func (r *Repository) CreateService(ctx context.Context, s Service) (Service, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO services (id, merchant_id, name, service_type, base_price, duration_minutes)
VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.MerchantID, s.Name, s.ServiceType, s.BasePrice, s.DurationMinutes)
	if err != nil {
		return Service{}, fmt.Errorf("insert service: %w", err)
	}
	return s, nil
}

// GetProvider loads one merchant by id.
func (r *Repository) GetProvider(ctx context.Context, id string) (*Provider, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, address, location_lat, location_lon, rating, review_count,
       price_range, specialties_json, stylists_json, booking_url, source, created_at
FROM merchants WHERE id = ?`, id)

	p, err := scanProvider(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return p, nil
}

// OfferingFilter narrows a catalog listing. Service type and location match
// as substrings, so "hair" finds haircuts, coloring and styling alike.
type OfferingFilter struct {
	ServiceType string
	MinPrice    *float64
	MaxPrice    *float64
	Location    string
	SortBy      string // "price" or the default, rating
}

// ListOfferings returns provider+service pairs for a service type. An empty
// serviceType lists everything.
func (r *Repository) ListOfferings(ctx context.Context, serviceType string) ([]Offering, error) {
	return r.FilterOfferings(ctx, OfferingFilter{ServiceType: serviceType})
}

// FilterOfferings lists provider+service pairs matching the filter.
func (r *Repository) FilterOfferings(ctx context.Context, f OfferingFilter) ([]Offering, error) {
	query := `
SELECT m.id, m.name, m.address, m.location_lat, m.location_lon, m.rating, m.review_count,
       m.price_range, m.specialties_json, m.stylists_json, m.booking_url, m.source, m.created_at,
       s.id, s.merchant_id, s.name, s.service_type, s.base_price, s.duration_minutes
FROM merchants m
JOIN services s ON s.merchant_id = m.id`

	var where []string
	args := []any{}
	if f.ServiceType != "" {
		where = append(where, `s.service_type LIKE ?`)
		args = append(args, "%"+f.ServiceType+"%")
	}
	if f.MinPrice != nil {
		where = append(where, `s.base_price >= ?`)
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, `s.base_price <= ?`)
		args = append(args, *f.MaxPrice)
	}
	if f.Location != "" {
		where = append(where, `m.address LIKE ?`)
		args = append(args, "%"+f.Location+"%")
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	switch f.SortBy {
	case "price":
		query += ` ORDER BY s.base_price ASC, m.rating DESC`
	default:
		query += ` ORDER BY m.rating DESC`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter offerings: %w", err)
	}
	defer rows.Close()

	var out []Offering
	for rows.Next() {
		var (
			p         Provider
			s         Service
			spec, sty string
			lat, lon  sql.NullFloat64
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Address, &lat, &lon, &p.Rating, &p.ReviewCount,
			&p.PriceRange, &spec, &sty, &p.BookingURL, &p.Source, &p.CreatedAt,
			&s.ID, &s.MerchantID, &s.Name, &s.ServiceType, &s.BasePrice, &s.DurationMinutes,
		); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		if lat.Valid {
			p.Lat = &lat.Float64
		}
		if lon.Valid {
			p.Lon = &lon.Float64
		}
		_ = json.Unmarshal([]byte(spec), &p.Specialties)
		_ = json.Unmarshal([]byte(sty), &p.Stylists)
		out = append(out, Offering{Provider: p, Service: s})
	}
	return out, rows.Err()
}

// CreateSlot adds an open availability window.
func (r *Repository) CreateSlot(ctx context.Context, slot Slot) (Slot, error) {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO availability_slots (id, merchant_id, starts_at, ends_at, booked)
VALUES (?, ?, ?, ?, ?)`,
		slot.ID, slot.MerchantID, slot.StartsAt, slot.EndsAt, slot.Booked)
	if err != nil {
		return Slot{}, fmt.Errorf("insert slot: %w", err)
	}
	return slot, nil
}

// OpenSlots lists unbooked slots for a merchant inside [from, to).
func (r *Repository) OpenSlots(ctx context.Context, merchantID string, from, to time.Time) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, merchant_id, starts_at, ends_at, booked
FROM availability_slots
WHERE merchant_id = ? AND booked = 0 AND starts_at >= ? AND starts_at < ?
ORDER BY starts_at`, merchantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.MerchantID, &s.StartsAt, &s.EndsAt, &s.Booked); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountOpenSlots counts unbooked slots for a merchant inside [from, to).
func (r *Repository) CountOpenSlots(ctx context.Context, merchantID string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM availability_slots
WHERE merchant_id = ? AND booked = 0 AND starts_at >= ? AND starts_at < ?`,
		merchantID, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return n, nil
}

// MarkSlotBooked flips a slot to booked; returns false when the slot was
// already taken.
func (r *Repository) MarkSlotBooked(ctx context.Context, slotID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE availability_slots SET booked = 1 WHERE id = ? AND booked = 0`, slotID)
	if err != nil {
		return false, fmt.Errorf("book slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountProviders returns the merchant count, used to decide whether seeding
// is needed.
func (r *Repository) CountProviders(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM merchants`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*Provider, error) {
	var (
		p         Provider
		spec, sty string
		lat, lon  sql.NullFloat64
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Address, &lat, &lon, &p.Rating, &p.ReviewCount,
		&p.PriceRange, &spec, &sty, &p.BookingURL, &p.Source, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lat.Valid {
		p.Lat = &lat.Float64
	}
	if lon.Valid {
		p.Lon = &lon.Float64
	}
	_ = json.Unmarshal([]byte(spec), &p.Specialties)
	_ = json.Unmarshal([]byte(sty), &p.Stylists)
	return &p, nil
}
