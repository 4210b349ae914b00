// Package ingest pulls provider data into the catalog from outside sources:
// the Yelp Fusion API and booking-site pages extracted with an LLM.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"glowgo/internal/provider"
)

const yelpBaseURL = "https://api.yelp.com/v3"

// YelpClient talks to the Yelp Fusion business search API.
type YelpClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewYelpClient(apiKey string) *YelpClient {
	return &YelpClient{
		apiKey:     apiKey,
		baseURL:    yelpBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type yelpBusiness struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Rating   float64 `json:"rating"`
	Reviews  int     `json:"review_count"`
	Price    string  `json:"price"`
	URL      string  `json:"url"`
	IsClosed bool    `json:"is_closed"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
	Coordinates struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
}

type yelpSearchResponse struct {
	Total      int            `json:"total"`
	Businesses []yelpBusiness `json:"businesses"`
}

// Search looks up beauty businesses by term and location, sorted by rating.
// Permanently closed businesses are dropped.
func (c *YelpClient) Search(ctx context.Context, term, location string, limit int) ([]provider.Provider, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("yelp api key not set")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	q := url.Values{}
	q.Set("term", term)
	q.Set("location", location)
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("sort_by", "rating")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/businesses/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build yelp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yelp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("yelp api returned status %d: %s", resp.StatusCode, string(body))
	}

	var result yelpSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode yelp response: %w", err)
	}

	providers := make([]provider.Provider, 0, len(result.Businesses))
	for _, biz := range result.Businesses {
		if biz.IsClosed {
			continue
		}
		specialties := make([]string, 0, len(biz.Categories))
		for _, cat := range biz.Categories {
			specialties = append(specialties, cat.Title)
		}
		priceRange := biz.Price
		if priceRange == "" {
			priceRange = "$$"
		}
		providers = append(providers, provider.Provider{
			ID:          "yelp-" + biz.ID,
			Name:        biz.Name,
			Address:     strings.Join(biz.Location.DisplayAddress, ", "),
			Lat:         biz.Coordinates.Latitude,
			Lon:         biz.Coordinates.Longitude,
			Rating:      biz.Rating,
			ReviewCount: biz.Reviews,
			PriceRange:  priceRange,
			Specialties: specialties,
			BookingURL:  biz.URL,
			Source:      "yelp",
		})
	}
	return providers, nil
}
