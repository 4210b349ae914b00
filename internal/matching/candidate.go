// Package matching ranks provider candidates against a user's accumulated
// preferences and proposes constraint relaxations when nothing matches.
package matching

// Candidate is a provider/slot snapshot considered for ranking. It is built
// fresh per matching request and never persisted.
type Candidate struct {
	ProviderID     string  `json:"provider_id"`
	Name           string  `json:"name"`
	Rating         float64 `json:"rating"` // 0..5
	Price          float64 `json:"price"`
	AvailableSlots int     `json:"available_slots"`
	DistanceMiles  float64 `json:"distance_miles"`
}

// SubScores are the four normalized components of an overall score, each in
// [0,1] before weighting.
type SubScores struct {
	Rating       float64 `json:"rating"`
	Price        float64 `json:"price"`
	Availability float64 `json:"availability"`
	Distance     float64 `json:"distance"`
}

// ScoredCandidate pairs a candidate with its overall score (0..100), the
// sub-scores that produced it, and the presentation fields a ranked option
// carries: a relevance score on [0,1], a one-line reason naming the
// candidate's strongest component, and the first few open slot times.
type ScoredCandidate struct {
	Candidate
	Overall        float64   `json:"overall_score"`
	Relevance      float64   `json:"relevance_score"`
	Scores         SubScores `json:"sub_scores"`
	WhyRecommended string    `json:"why_recommended"`
	AvailableTimes []string  `json:"available_times,omitempty"`
}
