package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"glowgo/internal/llm"
)

// Scraper fetches a booking-site page and has the model pull structured
// provider data out of it.
type Scraper struct {
	textGen    llm.TextGenerator
	httpClient *http.Client
}

// ExtractedService is one service row the model found on the page.
type ExtractedService struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Duration int     `json:"duration"`
}

// ExtractedProvider is the provider profile the model assembled from a page.
type ExtractedProvider struct {
	Name        string             `json:"provider_name"`
	Address     string             `json:"address"`
	Lat         *float64           `json:"location_lat"`
	Lon         *float64           `json:"location_lon"`
	Services    []ExtractedService `json:"services"`
	Rating      float64            `json:"rating"`
	ReviewCount int                `json:"review_count"`
	BookingURL  string             `json:"booking_url"`
	Specialties []string           `json:"specialties"`
	Stylists    []string           `json:"stylist_names"`
}

func NewScraper(textGen llm.TextGenerator) *Scraper {
	return &Scraper{
		textGen:    textGen,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ScrapeURL fetches the page and extracts provider profiles from it.
func (s *Scraper) ScrapeURL(ctx context.Context, pageURL string) ([]ExtractedProvider, error) {
	content, err := s.fetchAndCleanHTML(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	prompt := fmt.Sprintf(`
You are a beauty-service data extraction expert. Extract every provider listed in the following page content.
Return the result strictly as a JSON object with this structure:
{
  "providers": [
    {
      "provider_name": "Salon Name",
      "address": "9 Newbury Street, Boston, MA 02116",
      "services": [{"name": "Women's Haircut", "price": 85, "duration": 45}, ...],
      "rating": 4.8,
      "review_count": 423,
      "booking_url": "https://...",
      "specialties": ["Color Specialists", ...],
      "stylist_names": ["Mario Russo", ...]
    }
  ]
}
Use null for anything the page does not show. Prices are numbers in dollars, durations in minutes.

Page Content:
%s
`, content)

	resp, err := s.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ai extraction failed: %w", err)
	}

	raw := strings.TrimSpace(resp.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var extracted struct {
		Providers []ExtractedProvider `json:"providers"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w. Response: %s", err, resp.Content)
	}
	return extracted.Providers, nil
}

func (s *Scraper) fetchAndCleanHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})

	return doc.Find("body").Text(), nil
}
