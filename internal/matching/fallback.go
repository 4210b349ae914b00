package matching

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"glowgo/internal/preference"
)

// SuggestionKind identifies which constraint a fallback suggestion relaxes.
type SuggestionKind string

const (
	SuggestionBudgetRelax SuggestionKind = "budget_relax"
	SuggestionTimeRelax   SuggestionKind = "time_relax"
	SuggestionRadiusRelax SuggestionKind = "radius_relax"
)

// Suggestion is an advisory constraint relaxation. It never mutates the
// preference it was derived from; acting on it is the caller's choice.
type Suggestion struct {
	Kind           SuggestionKind `json:"kind"`
	NewBudget      float64        `json:"new_budget,omitempty"`
	NewRadiusMiles float64        `json:"new_radius_miles,omitempty"`
	AdmittedCount  int            `json:"admitted_count,omitempty"`
	Candidate      *Candidate     `json:"candidate,omitempty"`
	Message        string         `json:"message"`
}

// Fallback probes constraint relaxations against a population of candidates
// when strict matching found nothing.
type Fallback struct {
	cfg FallbackConfig
}

func NewFallback(cfg FallbackConfig) *Fallback {
	return &Fallback{cfg: cfg}
}

// Suggest evaluates each relaxation independently against the candidates the
// search considered, including ones the upstream filters rejected. It
// returns zero suggestions when no relaxation admits anyone; that is a valid
// terminal outcome, not an error.
func (f *Fallback) Suggest(pref preference.Preference, radiusMiles float64, considered []Candidate) []Suggestion {
	var out []Suggestion

	if s, ok := f.budgetRelax(pref, considered); ok {
		out = append(out, s)
	}
	if s, ok := f.timeRelax(pref, considered); ok {
		out = append(out, s)
	}
	if s, ok := f.radiusRelax(pref, radiusMiles, considered); ok {
		out = append(out, s)
	}
	return out
}

// budgetRelax finds the smallest budget increase, capped at the configured
// step above budget_max, that admits at least one candidate. The required
// new budget is the cheapest newly-admitted price.
func (f *Fallback) budgetRelax(pref preference.Preference, considered []Candidate) (Suggestion, bool) {
	if pref.BudgetMax == nil {
		return Suggestion{}, false
	}
	budget := *pref.BudgetMax
	ceiling := budget * (1 + f.cfg.BudgetStepFraction)

	var admitted []Candidate
	for _, c := range considered {
		if c.Price > budget && c.Price <= ceiling {
			admitted = append(admitted, c)
		}
	}
	if len(admitted) == 0 {
		return Suggestion{}, false
	}

	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Price < admitted[j].Price })
	cheapest := admitted[0]

	return Suggestion{
		Kind:      SuggestionBudgetRelax,
		NewBudget: cheapest.Price,
		Candidate: &cheapest,
		Message: fmt.Sprintf("If you raise your budget to $%.0f, %s would be available",
			cheapest.Price, cheapest.Name),
	}, true
}

// timeRelax counts candidates that would pass if the date/time constraints
// were dropped. Only budget still applies.
func (f *Fallback) timeRelax(pref preference.Preference, considered []Candidate) (Suggestion, bool) {
	if !pref.TimeComplete() {
		return Suggestion{}, false
	}

	count := 0
	for _, c := range considered {
		if withinBudget(c, pref.BudgetMax) {
			count++
		}
	}
	if count == 0 {
		return Suggestion{}, false
	}

	when := "your preferred time"
	if pref.PreferredDate != nil {
		when = pref.PreferredDate.Format("2006-01-02")
	}
	return Suggestion{
		Kind:          SuggestionTimeRelax,
		AdmittedCount: count,
		Message: fmt.Sprintf("If you're flexible with timing (not strict about %s), %d provider(s) would be available",
			when, count),
	}, true
}

// radiusRelax probes the configured wider radius for candidates that were
// only excluded by distance.
func (f *Fallback) radiusRelax(pref preference.Preference, radiusMiles float64, considered []Candidate) (Suggestion, bool) {
	newRadius := f.cfg.RelaxedRadiusMiles
	if newRadius <= radiusMiles {
		return Suggestion{}, false
	}

	count := 0
	for _, c := range considered {
		if c.DistanceMiles > radiusMiles && c.DistanceMiles <= newRadius && withinBudget(c, pref.BudgetMax) {
			count++
		}
	}
	if count == 0 {
		return Suggestion{}, false
	}

	return Suggestion{
		Kind:           SuggestionRadiusRelax,
		NewRadiusMiles: newRadius,
		AdmittedCount:  count,
		Message: fmt.Sprintf("If you expand your search radius to %.0f miles, %d more provider(s) would be available",
			newRadius, count),
	}, true
}

func withinBudget(c Candidate, budgetMax *float64) bool {
	return budgetMax == nil || c.Price <= *budgetMax
}

// AvailabilityFallback is produced when matched providers exist but none has
// a slot for the requested timing.
type AvailabilityFallback struct {
	AlternativeDates []time.Time `json:"alternative_dates,omitempty"` // day before / day after
	DropConstraint   bool        `json:"drop_constraint"`
	SuggestedBand    string      `json:"suggested_band,omitempty"` // opposite time-of-day band
	Alternatives     []Candidate `json:"alternatives,omitempty"`   // up to three, other times
	Suggestions      []string    `json:"suggestions"`
	Message          string      `json:"message"`
}

// SuggestForAvailability handles the empty-result cause where providers
// matched on attributes but none had matching availability. The advice is
// timing-focused: adjacent days, dropping the constraint, the opposite
// time-of-day band, and up to three concrete alternatives.
func (f *Fallback) SuggestForAvailability(pref preference.Preference, candidates []Candidate) AvailabilityFallback {
	var out AvailabilityFallback

	if pref.PreferredDate != nil {
		before := pref.PreferredDate.AddDate(0, 0, -1)
		after := pref.PreferredDate.AddDate(0, 0, 1)
		out.AlternativeDates = []time.Time{before, after}
		out.Suggestions = append(out.Suggestions,
			fmt.Sprintf("Try the day before (%s) for better availability", before.Format("2006-01-02")),
			fmt.Sprintf("Try the day after (%s) for more options", after.Format("2006-01-02")),
		)
	}

	if pref.TimeConstraint != "" {
		out.DropConstraint = true
		out.Suggestions = append(out.Suggestions,
			fmt.Sprintf("Consider removing the '%s' time constraint for more flexibility", pref.TimeConstraint))
	}

	if pref.PreferredTime != nil {
		out.SuggestedBand = oppositeBand(*pref.PreferredTime)
		if out.SuggestedBand == "morning" {
			out.Suggestions = append(out.Suggestions, "Try morning slots (before 12pm)")
		} else {
			out.Suggestions = append(out.Suggestions, "Try afternoon or evening slots (after 12pm)")
		}
	}

	if len(out.Suggestions) == 0 {
		out.Suggestions = append(out.Suggestions, "Try 'flexible' timing to see all available slots")
	}

	for i, c := range candidates {
		if i == 3 {
			break
		}
		out.Alternatives = append(out.Alternatives, c)
	}

	out.Message = availabilityMessage(len(candidates), out)
	return out
}

// oppositeBand flips a requested "HH:MM" into the other half of the day.
func oppositeBand(timeOfDay string) string {
	hour := 0
	if t, err := time.Parse("15:04", timeOfDay); err == nil {
		hour = t.Hour()
	}
	if hour < 12 {
		return "afternoon"
	}
	return "morning"
}

func availabilityMessage(total int, fb AvailabilityFallback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d great providers, but none have availability for your exact timing.\n\n", total)
	b.WriteString("Here are some suggestions:\n")
	for i, s := range fb.Suggestions {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s\n", s)
	}
	if len(fb.Alternatives) > 0 {
		b.WriteString("\nProviders with availability at other times:\n")
		for _, c := range fb.Alternatives {
			fmt.Fprintf(&b, "- %s ($%.0f, %.1f stars)\n", c.Name, c.Price, c.Rating)
		}
	}
	return b.String()
}
