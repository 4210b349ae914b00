package matching

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glowgo/internal/logger"
	"glowgo/internal/preference"
	"glowgo/internal/provider"
)

// fakeCatalog serves canned offerings and slot counts.
type fakeCatalog struct {
	offerings []provider.Offering
	slots     map[string]int
}

func (f *fakeCatalog) ListOfferings(_ context.Context, serviceType string) ([]provider.Offering, error) {
	var out []provider.Offering
	for _, o := range f.offerings {
		if serviceType == "" || o.Service.ServiceType == serviceType {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeCatalog) CountOpenSlots(_ context.Context, merchantID string, _, _ time.Time) (int, error) {
	return f.slots[merchantID], nil
}

func (f *fakeCatalog) OpenSlots(_ context.Context, merchantID string, from, _ time.Time) ([]provider.Slot, error) {
	out := make([]provider.Slot, 0, f.slots[merchantID])
	for i := 0; i < f.slots[merchantID]; i++ {
		start := from.Add(time.Duration(i) * time.Hour)
		out = append(out, provider.Slot{
			ID:         fmt.Sprintf("%s-slot-%d", merchantID, i),
			MerchantID: merchantID,
			StartsAt:   start,
			EndsAt:     start.Add(time.Hour),
		})
	}
	return out, nil
}

func coord(v float64) *float64 { return &v }

func offering(id, name string, rating, price float64, lat, lon float64) provider.Offering {
	return provider.Offering{
		Provider: provider.Provider{ID: id, Name: name, Rating: rating, Lat: coord(lat), Lon: coord(lon)},
		Service:  provider.Service{ID: id + "-svc", MerchantID: id, ServiceType: "haircut", BasePrice: price},
	}
}

func newTestPipeline(catalog Catalog) *Pipeline {
	return NewPipeline(catalog, NewEngine(DefaultWeights()), NewFallback(DefaultFallbackConfig()), logger.NewNop())
}

func TestMatchRanksAvailableProviders(t *testing.T) {
	catalog := &fakeCatalog{
		offerings: []provider.Offering{
			offering("good", "Good Salon", 4.8, 45, 42.352, -71.076),
			offering("ok", "Okay Salon", 3.5, 40, 42.351, -71.077),
		},
		slots: map[string]int{"good": 3, "ok": 2},
	}
	p := newTestPipeline(catalog)

	svc := "haircut"
	res, err := p.Match(context.Background(), Request{
		Pref:        preference.Preference{ServiceType: &svc, BudgetMax: floatPtr(50)},
		UserLat:     coord(42.352),
		UserLon:     coord(-71.076),
		RadiusMiles: 10,
	})
	require.NoError(t, err)

	require.Len(t, res.Ranked, 2)
	assert.Equal(t, "good", res.Ranked[0].ProviderID)
	assert.Equal(t, 2, res.TotalFound)
	assert.Empty(t, res.Suggestions)

	top := res.Ranked[0]
	assert.InDelta(t, top.Overall/100, top.Relevance, 1e-9)
	assert.NotEmpty(t, top.WhyRecommended)
	assert.Len(t, top.AvailableTimes, 3)
}

func TestMatchRankedOptionsCapSlotTimes(t *testing.T) {
	catalog := &fakeCatalog{
		offerings: []provider.Offering{
			offering("busy", "Busy Salon", 4.6, 45, 42.352, -71.076),
		},
		slots: map[string]int{"busy": 8},
	}
	p := newTestPipeline(catalog)

	svc := "haircut"
	res, err := p.Match(context.Background(), Request{
		Pref:        preference.Preference{ServiceType: &svc, BudgetMax: floatPtr(50)},
		RadiusMiles: 10,
	})
	require.NoError(t, err)

	require.Len(t, res.Ranked, 1)
	assert.Len(t, res.Ranked[0].AvailableTimes, 5)
	// Times are human-readable, not raw timestamps.
	assert.Contains(t, res.Ranked[0].AvailableTimes[0], time.Now().Format("Jan"))
}

func TestMatchBudgetMissProducesFallback(t *testing.T) {
	catalog := &fakeCatalog{
		offerings: []provider.Offering{
			offering("lux", "Luxe Salon", 4.9, 65, 42.352, -71.076),
		},
		slots: map[string]int{"lux": 4},
	}
	p := newTestPipeline(catalog)

	svc := "haircut"
	res, err := p.Match(context.Background(), Request{
		Pref:        preference.Preference{ServiceType: &svc, BudgetMax: floatPtr(50)},
		RadiusMiles: 10,
	})
	require.NoError(t, err)

	assert.Empty(t, res.Ranked)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, SuggestionBudgetRelax, res.Suggestions[0].Kind)
	assert.Equal(t, 65.0, res.Suggestions[0].NewBudget)
	assert.Contains(t, res.Summary, "Luxe Salon")
}

func TestMatchAvailabilityMissProducesTimingAdvice(t *testing.T) {
	catalog := &fakeCatalog{
		offerings: []provider.Offering{
			offering("a", "A Salon", 4.5, 40, 42.352, -71.076),
			offering("b", "B Salon", 4.2, 35, 42.353, -71.075),
		},
		slots: map[string]int{}, // nobody has slots
	}
	p := newTestPipeline(catalog)

	svc := "haircut"
	d := time.Date(2025, time.November, 21, 0, 0, 0, 0, time.UTC)
	res, err := p.Match(context.Background(), Request{
		Pref: preference.Preference{
			ServiceType:   &svc,
			BudgetMax:     floatPtr(50),
			PreferredDate: &d,
		},
		RadiusMiles: 10,
	})
	require.NoError(t, err)

	assert.Empty(t, res.Ranked)
	assert.Equal(t, 2, res.TotalFound)
	require.NotNil(t, res.Availability)
	assert.Len(t, res.Availability.AlternativeDates, 2)
	assert.Contains(t, res.Summary, "none have availability")
}

func TestMatchRadiusFilterExcludesFarProviders(t *testing.T) {
	catalog := &fakeCatalog{
		offerings: []provider.Offering{
			offering("near", "Near Salon", 4.0, 40, 42.352, -71.076),
			// Roughly 40 miles away.
			offering("far", "Far Salon", 5.0, 40, 42.99, -71.46),
		},
		slots: map[string]int{"near": 2, "far": 2},
	}
	p := newTestPipeline(catalog)

	svc := "haircut"
	res, err := p.Match(context.Background(), Request{
		Pref:        preference.Preference{ServiceType: &svc, BudgetMax: floatPtr(50)},
		UserLat:     coord(42.352),
		UserLon:     coord(-71.076),
		RadiusMiles: 10,
	})
	require.NoError(t, err)

	require.Len(t, res.Ranked, 1)
	assert.Equal(t, "near", res.Ranked[0].ProviderID)
}

func TestMatchLimitCapsResults(t *testing.T) {
	catalog := &fakeCatalog{slots: map[string]int{}}
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		catalog.offerings = append(catalog.offerings, offering(id, id+" Salon", 4.0, 40, 42.35, -71.07))
		catalog.slots[id] = 1
	}
	p := newTestPipeline(catalog)

	svc := "haircut"
	res, err := p.Match(context.Background(), Request{
		Pref:  preference.Preference{ServiceType: &svc, BudgetMax: floatPtr(50)},
		Limit: 5,
	})
	require.NoError(t, err)
	assert.Len(t, res.Ranked, 5)
	assert.Equal(t, 15, res.TotalFound)
}
