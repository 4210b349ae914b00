package matching

import (
	"fmt"
	"math"
	"sort"

	"glowgo/internal/preference"
)

const (
	// slotSaturation is the slot count at which availability stops adding
	// value.
	slotSaturation = 3.0
	// distanceHorizonMiles is where the proximity contribution reaches zero.
	distanceHorizonMiles = 10.0
)

// Engine scores and ranks candidates. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	weights Weights
}

func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

// Score computes the weighted overall score (0..100) for one candidate. It
// is pure and never fails; missing preference fields contribute their
// neutral value.
//
// Price is deliberately a binary budget-compliance gate, not a "cheaper is
// better" gradient: a candidate inside the budget scores full marks, one a
// cent over scores zero. Callers wanting price sensitivity should adjust the
// budget, not this rule.
func (e *Engine) Score(c Candidate, pref preference.Preference) ScoredCandidate {
	s := SubScores{
		Rating:       clamp01(c.Rating / 5.0),
		Price:        priceScore(c.Price, pref.BudgetMax),
		Availability: clamp01(float64(c.AvailableSlots) / slotSaturation),
		Distance:     clamp01(1.0 - c.DistanceMiles/distanceHorizonMiles),
	}

	overall := 100 * (e.weights.Rating*s.Rating +
		e.weights.Price*s.Price +
		e.weights.Availability*s.Availability +
		e.weights.Distance*s.Distance)
	overall = math.Round(overall*10) / 10

	return ScoredCandidate{
		Candidate:      c,
		Overall:        overall,
		Relevance:      overall / 100,
		Scores:         s,
		WhyRecommended: e.whyRecommended(c, s),
	}
}

// whyRecommended names the component that contributes most to the weighted
// score, phrased for the end user.
func (e *Engine) whyRecommended(c Candidate, s SubScores) string {
	type contribution struct {
		weighted float64
		text     string
	}
	parts := []contribution{
		{e.weights.Rating * s.Rating, fmt.Sprintf("Rated %.1f stars by customers", c.Rating)},
		{e.weights.Price * s.Price, fmt.Sprintf("Fits your budget at $%.0f", c.Price)},
		{e.weights.Availability * s.Availability, fmt.Sprintf("%d open slots in your window", c.AvailableSlots)},
		{e.weights.Distance * s.Distance, fmt.Sprintf("Only %.1f miles away", c.DistanceMiles)},
	}
	best := parts[0]
	for _, p := range parts[1:] {
		if p.weighted > best.weighted {
			best = p
		}
	}
	return best.text
}

// Rank scores every candidate and orders the results best-first: descending
// overall score, ties broken by higher rating, then lower price.
func (e *Engine) Rank(candidates []Candidate, pref preference.Preference) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, e.Score(c, pref))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// priceScore gates on budget compliance. An absent budget means
// unconstrained, which scores full marks.
func priceScore(price float64, budgetMax *float64) float64 {
	if budgetMax == nil {
		return 1.0
	}
	if price <= *budgetMax {
		return 1.0
	}
	return 0.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
