// Package matching implements the pairwise explainer: a deterministic,
// bounded similarity score over two entities' signals with a human-readable
// rationale trail for merge review.
package matching

import (
	"fmt"
	"time"

	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/signals"
)

// Additive contributions per matched feature. The final score is the clamped
// sum, never above 1.0.
const (
	WeightPhonetic  = 0.3
	WeightExactName = 0.5
	WeightGeo       = 0.4
	WeightCrypto    = 0.8
	WeightTemporal  = 0.1
)

// Feature names reported in Explanation.Features.
const (
	FeaturePhonetic  = "phonetic"
	FeatureExactName = "name_exact"
	FeatureGeo       = "geo_bucket"
	FeatureCrypto    = "crypto_address"
	FeatureTemporal  = "temporal_overlap"
)

// Explainer scores entity pairs. It is stateless; Explain is a pure function
// of the two entities' current property state and is not aware of in-flight
// merges.
type Explainer struct{}

// NewExplainer creates a new Explainer.
func NewExplainer() *Explainer {
	return &Explainer{}
}

// Explain compares two entities and returns the weighted similarity score
// with the matched evidence that produced it. Identical inputs always produce
// identical output.
func (e *Explainer) Explain(a, b *models.Entity) models.Explanation {
	expl := models.Explanation{
		Features:  map[string]float64{},
		Rationale: []string{},
	}

	sigA := signals.Extract(a)
	sigB := signals.Extract(b)

	if code, ok := sharedValue(sigA.Phonetic, sigB.Phonetic); ok {
		expl.Features[FeaturePhonetic] = WeightPhonetic
		expl.Rationale = append(expl.Rationale, fmt.Sprintf("shared phonetic code %s", code))
		expl.Score += WeightPhonetic
	}

	if nameA := a.Name(); nameA != "" && nameA == b.Name() {
		expl.Features[FeatureExactName] = WeightExactName
		expl.Rationale = append(expl.Rationale, fmt.Sprintf("exact name match %q", nameA))
		expl.Score += WeightExactName
	}

	if bucket, ok := sharedValue(sigA.GeoBuckets, sigB.GeoBuckets); ok {
		expl.Features[FeatureGeo] = WeightGeo
		expl.Rationale = append(expl.Rationale, fmt.Sprintf("shared geo bucket %s", bucket))
		expl.Score += WeightGeo
	}

	if addr, ok := sharedValue(sigA.CryptoAddrs, sigB.CryptoAddrs); ok {
		expl.Features[FeatureCrypto] = WeightCrypto
		expl.Rationale = append(expl.Rationale, fmt.Sprintf("shared crypto address %s", addr))
		expl.Score += WeightCrypto
	}

	if Overlap(a, b) {
		expl.Features[FeatureTemporal] = WeightTemporal
		expl.Rationale = append(expl.Rationale, "bitemporal validity overlap")
		expl.Score += WeightTemporal
	}

	if expl.Score > 1.0 {
		expl.Score = 1.0
	}

	return expl
}

// Score returns just the aggregate similarity, in the shape the guardrail
// evaluator binds to its fixture pairs.
func (e *Explainer) Score(a, b *models.Entity) float64 {
	return e.Explain(a, b).Score
}

// Overlap reports whether the two entities' validity intervals intersect.
// An absent validFrom is treated as -infinity and an absent validTo as
// +infinity, so two entities with no temporal bounds at all always overlap.
// Intervals are half-open: they overlap iff max(start1,start2) < min(end1,end2).
func Overlap(a, b *models.Entity) bool {
	latestStart, haveStart := laterOf(
		entityTime(a, models.PropValidFrom),
		entityTime(b, models.PropValidFrom),
	)
	earliestEnd, haveEnd := earlierOf(
		entityTime(a, models.PropValidTo),
		entityTime(b, models.PropValidTo),
	)

	if !haveStart || !haveEnd {
		return true
	}
	return latestStart.Before(earliestEnd)
}

type temporalBound struct {
	t  time.Time
	ok bool
}

func entityTime(e *models.Entity, key string) temporalBound {
	t, ok := e.TimeProp(key)
	return temporalBound{t: t, ok: ok}
}

func laterOf(a, b temporalBound) (time.Time, bool) {
	switch {
	case a.ok && b.ok:
		if a.t.After(b.t) {
			return a.t, true
		}
		return b.t, true
	case a.ok:
		return a.t, true
	case b.ok:
		return b.t, true
	default:
		return time.Time{}, false
	}
}

func earlierOf(a, b temporalBound) (time.Time, bool) {
	switch {
	case a.ok && b.ok:
		if a.t.Before(b.t) {
			return a.t, true
		}
		return b.t, true
	case a.ok:
		return a.t, true
	case b.ok:
		return b.t, true
	default:
		return time.Time{}, false
	}
}

func sharedValue(a, b []string) (string, bool) {
	if len(a) == 0 || len(b) == 0 {
		return "", false
	}
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if seen[v] {
			return v, true
		}
	}
	return "", false
}
