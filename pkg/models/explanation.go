package models

// Explanation is the output of the pairwise explainer: named sub-scores, a
// human-readable rationale trail, and the clamped aggregate score. It is a
// pure function of the two input entities' current property state.
type Explanation struct {
	Features  map[string]float64 `json:"features"`
	Rationale []string           `json:"rationale"`
	Score     float64            `json:"score"`
}
