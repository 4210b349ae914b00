package matching

import (
	"encoding/json"
	"fmt"
	"os"
)

// Weights defines the coefficient for each scoring component. The four
// coefficients are expected to sum to 1.0.
type Weights struct {
	Rating       float64 `json:"rating"`
	Price        float64 `json:"price"`
	Availability float64 `json:"availability"`
	Distance     float64 `json:"distance"`
}

// DefaultWeights returns the production ranking policy: rating dominates,
// budget compliance second, then availability and proximity.
func DefaultWeights() Weights {
	return Weights{
		Rating:       0.40,
		Price:        0.30,
		Availability: 0.20,
		Distance:     0.10,
	}
}

// FallbackConfig controls how far each constraint is relaxed when a search
// comes back empty. The steps are policy knobs, not fixed behavior.
type FallbackConfig struct {
	// BudgetStepFraction is the fraction above budget_max that a relaxed
	// budget may reach, e.g. 0.30 allows prices up to 130% of the budget.
	BudgetStepFraction float64 `json:"budget_step_fraction"`
	// RelaxedRadiusMiles is the widened search radius to probe.
	RelaxedRadiusMiles float64 `json:"relaxed_radius_miles"`
}

// DefaultFallbackConfig returns the relaxation steps used in production.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		BudgetStepFraction: 0.30,
		RelaxedRadiusMiles: 20,
	}
}

// LoadWeightsFromFile loads weights from a JSON file, falling back to
// defaults on read errors.
func LoadWeightsFromFile(path string) (Weights, error) {
	w := DefaultWeights()
	b, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read weights file: %w", err)
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return w, fmt.Errorf("unmarshal weights: %w", err)
	}
	return w, nil
}
