// Package provider owns the merchant catalog: salons, the services they
// offer, and their open availability slots.
package provider

import "time"

// Provider is a merchant offering beauty services.
type Provider struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Lat         *float64  `json:"location_lat,omitempty"`
	Lon         *float64  `json:"location_lon,omitempty"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	PriceRange  string    `json:"price_range"` // "$".."$$$$"
	Specialties []string  `json:"specialties"`
	Stylists    []string  `json:"stylist_names"`
	BookingURL  string    `json:"booking_url"`
	Source      string    `json:"source"` // seed, yelp, styleseat, ...
	CreatedAt   time.Time `json:"created_at"`
}

// Service is one bookable offering of a provider.
type Service struct {
	ID              string  `json:"id"`
	MerchantID      string  `json:"merchant_id"`
	Name            string  `json:"name"`
	ServiceType     string  `json:"service_type"`
	BasePrice       float64 `json:"base_price"`
	DurationMinutes int     `json:"duration_minutes"`
}

// Slot is an open availability window at a provider.
type Slot struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchant_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Booked     bool      `json:"booked"`
}

// Offering joins a provider with one of its services; this is the unit the
// matching pipeline turns into a candidate.
type Offering struct {
	Provider Provider `json:"provider"`
	Service  Service  `json:"service"`
}
