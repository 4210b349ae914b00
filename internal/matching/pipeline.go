package matching

import (
	"context"
	"fmt"
	"time"

	"glowgo/internal/logger"
	"glowgo/internal/preference"
	"glowgo/internal/provider"
)

// Catalog is the slice of the provider repository the pipeline needs.
type Catalog interface {
	ListOfferings(ctx context.Context, serviceType string) ([]provider.Offering, error)
	CountOpenSlots(ctx context.Context, merchantID string, from, to time.Time) (int, error)
	OpenSlots(ctx context.Context, merchantID string, from, to time.Time) ([]provider.Slot, error)
}

const (
	// maxShownTimes caps how many slot times a ranked option lists.
	maxShownTimes  = 5
	slotTimeLayout = "Mon Jan 2 3:04 PM"
)

// Request carries one matching invocation.
type Request struct {
	Pref        preference.Preference
	UserLat     *float64
	UserLon     *float64
	RadiusMiles float64
	Limit       int
	Now         time.Time
}

// Result is what a matching request produces: ranked options, or fallback
// advice when the strict search found nothing.
type Result struct {
	Ranked       []ScoredCandidate     `json:"ranked_options"`
	TotalFound   int                   `json:"total_options_found"`
	Summary      string                `json:"search_summary"`
	Suggestions  []Suggestion          `json:"suggestions,omitempty"`
	Availability *AvailabilityFallback `json:"availability_fallback,omitempty"`
}

// Pipeline runs the full match: load offerings, filter on attributes, check
// availability, score and rank, and degrade to fallback suggestions on empty
// results.
type Pipeline struct {
	catalog  Catalog
	engine   *Engine
	fallback *Fallback
	log      logger.Logger
}

func NewPipeline(catalog Catalog, engine *Engine, fallback *Fallback, log logger.Logger) *Pipeline {
	return &Pipeline{catalog: catalog, engine: engine, fallback: fallback, log: log}
}

// Match executes one matching request.
func (p *Pipeline) Match(ctx context.Context, req Request) (*Result, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	serviceType := ""
	if req.Pref.ServiceType != nil {
		serviceType = *req.Pref.ServiceType
	}

	offerings, err := p.catalog.ListOfferings(ctx, serviceType)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}

	// Everything the search will consider, before filters. The fallback
	// engine needs this full population.
	considered := make([]Candidate, 0, len(offerings))
	for _, o := range offerings {
		considered = append(considered, p.toCandidate(req, o))
	}

	p.log.Debug("matching candidates loaded", map[string]interface{}{
		"service_type": serviceType,
		"considered":   len(considered),
	})

	// Attribute filters: budget and radius.
	var passed []Candidate
	for _, c := range considered {
		if !withinBudget(c, req.Pref.BudgetMax) {
			continue
		}
		if req.RadiusMiles > 0 && c.DistanceMiles > req.RadiusMiles {
			continue
		}
		passed = append(passed, c)
	}

	if len(passed) == 0 {
		suggestions := p.fallback.Suggest(req.Pref, req.RadiusMiles, considered)
		summary := "No providers found. Try adjusting your budget, timing, or location."
		if len(suggestions) > 0 {
			summary = suggestionSummary(suggestions)
		}
		return &Result{Summary: summary, Suggestions: suggestions}, nil
	}

	// Availability check against the requested window.
	from, to := availabilityWindow(req.Pref, req.Now)
	var available []Candidate
	for i := range passed {
		n, err := p.catalog.CountOpenSlots(ctx, passed[i].ProviderID, from, to)
		if err != nil {
			return nil, fmt.Errorf("count open slots for %s: %w", passed[i].ProviderID, err)
		}
		passed[i].AvailableSlots = n
		if n > 0 {
			available = append(available, passed[i])
		}
	}

	if len(available) == 0 {
		fb := p.fallback.SuggestForAvailability(req.Pref, passed)
		return &Result{
			TotalFound:   len(passed),
			Summary:      fb.Message,
			Availability: &fb,
		}, nil
	}

	ranked := p.engine.Rank(available, req.Pref)
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	// Attach concrete slot times to the options the user will actually see.
	for i := range ranked {
		slots, err := p.catalog.OpenSlots(ctx, ranked[i].ProviderID, from, to)
		if err != nil {
			return nil, fmt.Errorf("load slots for %s: %w", ranked[i].ProviderID, err)
		}
		for j := 0; j < len(slots) && j < maxShownTimes; j++ {
			ranked[i].AvailableTimes = append(ranked[i].AvailableTimes, slots[j].StartsAt.Format(slotTimeLayout))
		}
	}

	return &Result{
		Ranked:     ranked,
		TotalFound: len(available),
		Summary:    fmt.Sprintf("Found %d providers matching your criteria.", len(available)),
	}, nil
}

func (p *Pipeline) toCandidate(req Request, o provider.Offering) Candidate {
	dist := 0.0
	if req.UserLat != nil && req.UserLon != nil && o.Provider.Lat != nil && o.Provider.Lon != nil {
		dist = provider.DistanceMiles(*req.UserLat, *req.UserLon, *o.Provider.Lat, *o.Provider.Lon)
	}
	return Candidate{
		ProviderID:    o.Provider.ID,
		Name:          o.Provider.Name,
		Rating:        o.Provider.Rating,
		Price:         o.Service.BasePrice,
		DistanceMiles: dist,
	}
}

// availabilityWindow translates the preference's "when" into a concrete slot
// search window.
func availabilityWindow(pref preference.Preference, now time.Time) (time.Time, time.Time) {
	startOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}

	if pref.PreferredDate != nil {
		day := startOfDay(*pref.PreferredDate)
		switch pref.TimeConstraint {
		case "before", "by":
			return now, day.AddDate(0, 0, 1)
		case "after":
			return day, day.AddDate(0, 0, 7)
		default:
			return day, day.AddDate(0, 0, 1)
		}
	}

	if pref.TimeUrgency != nil {
		switch *pref.TimeUrgency {
		case preference.UrgencyASAP, preference.UrgencyToday:
			return now, startOfDay(now).AddDate(0, 0, 1)
		case preference.UrgencyWeek:
			return now, startOfDay(now).AddDate(0, 0, 7)
		}
	}

	// Flexible or unspecified: look two weeks out.
	return now, startOfDay(now).AddDate(0, 0, 14)
}

func suggestionSummary(suggestions []Suggestion) string {
	out := "I couldn't find exact matches for your criteria. Here are some options:\n"
	for i, s := range suggestions {
		if i == 3 {
			break
		}
		out += "\n- " + s.Message
	}
	return out
}
