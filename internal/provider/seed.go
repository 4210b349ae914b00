package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

//go:embed seed_data.json
var seedData []byte

// seedService is the on-disk shape of a seeded service.
type seedService struct {
	Name            string  `json:"name"`
	ServiceType     string  `json:"service_type"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
}

// seedProvider is the on-disk shape of a seeded merchant with its services.
type seedProvider struct {
	Name        string        `json:"name"`
	Address     string        `json:"address"`
	Lat         *float64      `json:"location_lat"`
	Lon         *float64      `json:"location_lon"`
	Rating      float64       `json:"rating"`
	ReviewCount int           `json:"review_count"`
	PriceRange  string        `json:"price_range"`
	Specialties []string      `json:"specialties"`
	Stylists    []string      `json:"stylist_names"`
	BookingURL  string        `json:"booking_url"`
	Services    []seedService `json:"services"`
}

// LoadSeedFile reads a provider seed dataset from a JSON file.
func LoadSeedFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return b, nil
}

// Seed populates the catalog from a JSON dataset when the merchants table is
// empty. A nil data argument falls back to the embedded Boston/Cambridge
// dataset. It also opens a week of hourly availability per merchant so a
// fresh install can serve matches immediately.
func (r *Repository) Seed(ctx context.Context, data []byte) error {
	count, err := r.CountProviders(ctx)
	if err != nil {
		return fmt.Errorf("count providers: %w", err)
	}
	if count > 0 {
		return nil
	}

	if data == nil {
		data = seedData
	}
	var seeds []seedProvider
	if err := json.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("unmarshal seed data: %w", err)
	}

	for _, s := range seeds {
		p := Provider{
			ID:          uuid.NewString(),
			Name:        s.Name,
			Address:     s.Address,
			Lat:         s.Lat,
			Lon:         s.Lon,
			Rating:      s.Rating,
			ReviewCount: s.ReviewCount,
			PriceRange:  s.PriceRange,
			Specialties: s.Specialties,
			Stylists:    s.Stylists,
			BookingURL:  s.BookingURL,
			Source:      "seed",
		}
		if err := r.UpsertProviders(ctx, []Provider{p}); err != nil {
			return err
		}

		for _, svc := range s.Services {
			if _, err := r.CreateService(ctx, Service{
				MerchantID:      p.ID,
				Name:            svc.Name,
				ServiceType:     svc.ServiceType,
				BasePrice:       svc.Price,
				DurationMinutes: svc.DurationMinutes,
			}); err != nil {
				return err
			}
		}

		if err := r.seedSlots(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// seedSlots opens hourly slots over the next seven days within salon
// business hours (9am to 7pm).
func (r *Repository) seedSlots(ctx context.Context, merchantID string) error {
	start := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)
	for day := 0; day < 7; day++ {
		d := start.AddDate(0, 0, day)
		for hour := 9; hour < 19; hour += 2 {
			slot := Slot{
				MerchantID: merchantID,
				StartsAt:   time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, d.Location()),
				EndsAt:     time.Date(d.Year(), d.Month(), d.Day(), hour+1, 0, 0, 0, d.Location()),
			}
			if _, err := r.CreateSlot(ctx, slot); err != nil {
				return err
			}
		}
	}
	return nil
}
