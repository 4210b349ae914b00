// Package preference models the requirements a user accumulates over a
// booking conversation and decides when enough is known to run a match.
package preference

import (
	"time"

	"glowgo/internal/timeparse"
)

// Urgency is the legacy coarse-grained "when" representation. New sessions
// carry structured date/time fields instead; the two forms are alternatives
// and are never required together.
type Urgency string

const (
	UrgencyASAP     Urgency = "asap"
	UrgencyToday    Urgency = "today"
	UrgencyWeek     Urgency = "week"
	UrgencyFlexible Urgency = "flexible"
)

// Preference is the partially-specified set of user requirements for a
// booking. Nil pointers mean "not stated yet".
type Preference struct {
	ServiceType       *string              `json:"service_type,omitempty"`
	BudgetMin         *float64             `json:"budget_min,omitempty"`
	BudgetMax         *float64             `json:"budget_max,omitempty"`
	PreferredDate     *time.Time           `json:"preferred_date,omitempty"`
	PreferredTime     *string              `json:"preferred_time,omitempty"` // "HH:MM"
	TimeConstraint    timeparse.Constraint `json:"time_constraint,omitempty"`
	TimeUrgency       *Urgency             `json:"time_urgency,omitempty"`
	Location          *string              `json:"location,omitempty"`
	ArtisanPreference *string              `json:"artisan_preference,omitempty"`
	SpecialNotes      *string              `json:"special_notes,omitempty"`
}

// TimeComplete reports whether the preference pins down "when" in either
// representation: the legacy urgency enum, or any structured field.
func (p Preference) TimeComplete() bool {
	if p.TimeUrgency != nil {
		return true
	}
	return p.PreferredDate != nil || p.PreferredTime != nil || p.TimeConstraint != timeparse.ConstraintNone
}

// Merge folds fields extracted from a newer conversation turn into p.
// Present fields in update win; absent fields in update leave p untouched.
func (p *Preference) Merge(update Preference) {
	if update.ServiceType != nil {
		p.ServiceType = update.ServiceType
	}
	if update.BudgetMin != nil {
		p.BudgetMin = update.BudgetMin
	}
	if update.BudgetMax != nil {
		p.BudgetMax = update.BudgetMax
	}
	if update.PreferredDate != nil {
		p.PreferredDate = update.PreferredDate
	}
	if update.PreferredTime != nil {
		p.PreferredTime = update.PreferredTime
	}
	if update.TimeConstraint != timeparse.ConstraintNone {
		p.TimeConstraint = update.TimeConstraint
	}
	if update.TimeUrgency != nil {
		p.TimeUrgency = update.TimeUrgency
	}
	if update.Location != nil {
		p.Location = update.Location
	}
	if update.ArtisanPreference != nil {
		p.ArtisanPreference = update.ArtisanPreference
	}
	if update.SpecialNotes != nil {
		p.SpecialNotes = update.SpecialNotes
	}
}

// Readiness describes how close a preference is to being matchable.
type Readiness struct {
	Ready        bool     `json:"ready_to_match"`
	Missing      []string `json:"missing_fields,omitempty"`
	Completeness float64  `json:"completeness"`
}

// requiredFields are the three things a match cannot run without.
var requiredFields = []string{"service_type", "budget", "time"}

// CheckReadiness reports whether the preference has the fields a matching
// request needs: a service type, a budget ceiling, and a time in either
// representation.
func CheckReadiness(p Preference) Readiness {
	var missing []string
	if p.ServiceType == nil || *p.ServiceType == "" {
		missing = append(missing, "service_type")
	}
	if p.BudgetMax == nil {
		missing = append(missing, "budget")
	}
	if !p.TimeComplete() {
		missing = append(missing, "time")
	}

	have := len(requiredFields) - len(missing)
	return Readiness{
		Ready:        len(missing) == 0,
		Missing:      missing,
		Completeness: float64(have) / float64(len(requiredFields)),
	}
}
