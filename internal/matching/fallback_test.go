package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glowgo/internal/preference"
	"glowgo/internal/timeparse"
)

func TestBudgetRelaxReportsCheapestAdmitted(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())
	pref := preference.Preference{BudgetMax: floatPtr(50)}

	considered := []Candidate{
		{ProviderID: "a", Name: "Luxe Salon", Price: 65, Rating: 4.8},
		{ProviderID: "b", Name: "Gold Cuts", Price: 120, Rating: 4.9}, // beyond the 30% step
	}

	got := f.Suggest(pref, 10, considered)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, SuggestionBudgetRelax, s.Kind)
	assert.Equal(t, 65.0, s.NewBudget)
	require.NotNil(t, s.Candidate)
	assert.Equal(t, "Luxe Salon", s.Candidate.Name)
}

func TestBudgetRelaxSkippedWithoutBudget(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())

	got := f.Suggest(preference.Preference{}, 10, []Candidate{{Price: 65}})
	for _, s := range got {
		assert.NotEqual(t, SuggestionBudgetRelax, s.Kind)
	}
}

func TestTimeRelaxCountsAdmitted(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())
	d := time.Date(2025, time.November, 27, 0, 0, 0, 0, time.UTC)
	pref := preference.Preference{
		BudgetMax:      floatPtr(80),
		PreferredDate:  &d,
		TimeConstraint: timeparse.ConstraintBefore,
	}

	considered := []Candidate{
		{ProviderID: "a", Price: 60},
		{ProviderID: "b", Price: 75},
		{ProviderID: "c", Price: 200}, // over budget even with flexible timing
	}

	got := f.Suggest(pref, 10, considered)

	var timeRelax *Suggestion
	for i := range got {
		if got[i].Kind == SuggestionTimeRelax {
			timeRelax = &got[i]
		}
	}
	require.NotNil(t, timeRelax)
	assert.Equal(t, 2, timeRelax.AdmittedCount)
	assert.Contains(t, timeRelax.Message, "2025-11-27")
}

func TestRadiusRelaxCountsNewlyReachable(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())
	pref := preference.Preference{BudgetMax: floatPtr(100)}

	considered := []Candidate{
		{ProviderID: "near", Price: 50, DistanceMiles: 5},   // already inside the radius
		{ProviderID: "mid", Price: 50, DistanceMiles: 14},   // admitted by the wider radius
		{ProviderID: "far", Price: 50, DistanceMiles: 30},   // still out of reach
		{ProviderID: "rich", Price: 150, DistanceMiles: 12}, // reachable but over budget
	}

	got := f.Suggest(pref, 10, considered)

	var radius *Suggestion
	for i := range got {
		if got[i].Kind == SuggestionRadiusRelax {
			radius = &got[i]
		}
	}
	require.NotNil(t, radius)
	assert.Equal(t, 1, radius.AdmittedCount)
	assert.Equal(t, 20.0, radius.NewRadiusMiles)
}

func TestSuggestReturnsEmptyWhenNothingHelps(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())
	pref := preference.Preference{BudgetMax: floatPtr(50)}

	// Everything is hopelessly over budget and out of range.
	considered := []Candidate{
		{ProviderID: "a", Price: 500, DistanceMiles: 80},
	}

	got := f.Suggest(pref, 10, considered)
	assert.Empty(t, got)
}

func TestSuggestionsDoNotMutatePreference(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())
	pref := preference.Preference{BudgetMax: floatPtr(50)}

	f.Suggest(pref, 10, []Candidate{{Price: 60}})
	assert.Equal(t, 50.0, *pref.BudgetMax)
}

func TestAvailabilityFallbackSuggestsAdjacentDays(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())
	d := time.Date(2025, time.November, 21, 0, 0, 0, 0, time.UTC)
	tod := "15:00"
	pref := preference.Preference{
		PreferredDate:  &d,
		PreferredTime:  &tod,
		TimeConstraint: timeparse.ConstraintBefore,
	}

	candidates := []Candidate{
		{Name: "A Salon", Price: 40, Rating: 4.6},
		{Name: "B Salon", Price: 55, Rating: 4.2},
		{Name: "C Salon", Price: 60, Rating: 4.9},
		{Name: "D Salon", Price: 70, Rating: 3.9},
	}

	got := f.SuggestForAvailability(pref, candidates)

	require.Len(t, got.AlternativeDates, 2)
	assert.Equal(t, d.AddDate(0, 0, -1), got.AlternativeDates[0])
	assert.Equal(t, d.AddDate(0, 0, 1), got.AlternativeDates[1])
	assert.True(t, got.DropConstraint)
	assert.Equal(t, "morning", got.SuggestedBand, "afternoon request flips to morning")
	assert.Len(t, got.Alternatives, 3, "capped at three concrete alternatives")
	assert.Contains(t, got.Message, "A Salon")
}

func TestAvailabilityFallbackOppositeBandMorningRequest(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())
	tod := "09:00"
	pref := preference.Preference{PreferredTime: &tod}

	got := f.SuggestForAvailability(pref, nil)
	assert.Equal(t, "afternoon", got.SuggestedBand)
}

func TestAvailabilityFallbackGenericAdviceWhenNothingRequested(t *testing.T) {
	f := NewFallback(DefaultFallbackConfig())

	got := f.SuggestForAvailability(preference.Preference{}, nil)
	require.Len(t, got.Suggestions, 1)
	assert.Contains(t, got.Suggestions[0], "flexible")
}
