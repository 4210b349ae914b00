package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"glowgo/internal/logger"
	"glowgo/internal/provider"
)

// serviceTypeKeywords classifies a service menu entry into a bookable
// category. Checked in order so the more specific names win.
var serviceTypeKeywords = []struct {
	keyword     string
	serviceType string
}{
	{"balayage", "hair color"},
	{"highlight", "hair color"},
	{"color", "hair color"},
	{"keratin", "hair treatment"},
	{"conditioning", "hair treatment"},
	{"extension", "hair treatment"},
	{"blowout", "hair styling"},
	{"blow dry", "hair styling"},
	{"updo", "hair styling"},
	{"style", "hair styling"},
	{"haircut", "haircut"},
	{"cut", "haircut"},
	{"fade", "haircut"},
	{"shave", "haircut"},
	{"beard", "haircut"},
	{"manicure", "manicure"},
	{"pedicure", "pedicure"},
	{"nail", "nails"},
	{"massage", "massage"},
	{"facial", "facial"},
	{"wax", "waxing"},
	{"makeup", "makeup"},
	{"spa", "spa"},
}

// ClassifyServiceType maps a service menu name to a category the matching
// pipeline can filter on.
func ClassifyServiceType(serviceName string) string {
	lower := strings.ToLower(serviceName)
	for _, entry := range serviceTypeKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.serviceType
		}
	}
	return "other"
}

// Ingestor writes externally sourced provider data into the catalog.
type Ingestor struct {
	repo    *provider.Repository
	yelp    *YelpClient
	scraper *Scraper
	log     logger.Logger
}

func NewIngestor(repo *provider.Repository, yelp *YelpClient, scraper *Scraper, log logger.Logger) *Ingestor {
	return &Ingestor{repo: repo, yelp: yelp, scraper: scraper, log: log}
}

// RefreshFromYelp searches Yelp and upserts the results. Returns how many
// providers the search produced.
func (in *Ingestor) RefreshFromYelp(ctx context.Context, term, location string, limit int) (int, error) {
	if in.yelp == nil {
		return 0, fmt.Errorf("yelp client not configured")
	}
	providers, err := in.yelp.Search(ctx, term, location, limit)
	if err != nil {
		return 0, fmt.Errorf("yelp search: %w", err)
	}
	if err := in.repo.UpsertProviders(ctx, providers); err != nil {
		return 0, fmt.Errorf("store yelp providers: %w", err)
	}
	in.log.Info("yelp refresh complete", map[string]interface{}{
		"term":      term,
		"location":  location,
		"providers": len(providers),
	})
	return len(providers), nil
}

// ImportFromURL scrapes a booking page and stores the providers and service
// menus found on it. Returns how many providers were imported.
func (in *Ingestor) ImportFromURL(ctx context.Context, pageURL string) (int, error) {
	if in.scraper == nil {
		return 0, fmt.Errorf("scraper not configured")
	}
	extracted, err := in.scraper.ScrapeURL(ctx, pageURL)
	if err != nil {
		return 0, err
	}

	var providers []provider.Provider
	ids := make([]string, 0, len(extracted))
	for _, e := range extracted {
		id := uuid.NewString()
		ids = append(ids, id)
		bookingURL := e.BookingURL
		if bookingURL == "" {
			bookingURL = pageURL
		}
		providers = append(providers, provider.Provider{
			ID:          id,
			Name:        e.Name,
			Address:     e.Address,
			Lat:         e.Lat,
			Lon:         e.Lon,
			Rating:      e.Rating,
			ReviewCount: e.ReviewCount,
			PriceRange:  priceRangeFor(e.Services),
			Specialties: e.Specialties,
			Stylists:    e.Stylists,
			BookingURL:  bookingURL,
			Source:      "scrape",
		})
	}
	if err := in.repo.UpsertProviders(ctx, providers); err != nil {
		return 0, fmt.Errorf("store scraped providers: %w", err)
	}

	for i, e := range extracted {
		for _, svc := range e.Services {
			if _, err := in.repo.CreateService(ctx, provider.Service{
				MerchantID:      ids[i],
				Name:            svc.Name,
				ServiceType:     ClassifyServiceType(svc.Name),
				BasePrice:       svc.Price,
				DurationMinutes: svc.Duration,
			}); err != nil {
				return 0, fmt.Errorf("store service %q: %w", svc.Name, err)
			}
		}
	}

	in.log.Info("page import complete", map[string]interface{}{
		"url":       pageURL,
		"providers": len(providers),
	})
	return len(providers), nil
}

// priceRangeFor derives a $..$$$$ bucket from the average service price.
func priceRangeFor(services []ExtractedService) string {
	if len(services) == 0 {
		return "$$"
	}
	var sum float64
	for _, s := range services {
		sum += s.Price
	}
	avg := sum / float64(len(services))
	switch {
	case avg < 40:
		return "$"
	case avg < 90:
		return "$$"
	case avg < 180:
		return "$$$"
	default:
		return "$$$$"
	}
}
