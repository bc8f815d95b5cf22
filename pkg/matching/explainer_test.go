package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianCLong/summit-sub013/pkg/models"
)

func entity(id string, props map[string]any) *models.Entity {
	return &models.Entity{
		ID:       id,
		TenantID: "t1",
		Labels:   []string{models.LabelEntity},
		Props:    props,
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name    string
		a       map[string]any
		b       map[string]any
		overlap bool
	}{
		{
			name:    "no bounds on either side",
			a:       map[string]any{},
			b:       map[string]any{},
			overlap: true,
		},
		{
			name:    "one side unbounded",
			a:       map[string]any{models.PropValidFrom: "2020-01-01T00:00:00Z"},
			b:       map[string]any{},
			overlap: true,
		},
		{
			name: "intersecting intervals",
			a: map[string]any{
				models.PropValidFrom: "2020-01-01T00:00:00Z",
				models.PropValidTo:   "2021-01-01T00:00:00Z",
			},
			b: map[string]any{
				models.PropValidFrom: "2020-06-01T00:00:00Z",
				models.PropValidTo:   "2022-01-01T00:00:00Z",
			},
			overlap: true,
		},
		{
			name: "disjoint intervals",
			a: map[string]any{
				models.PropValidFrom: "2020-01-01T00:00:00Z",
				models.PropValidTo:   "2020-06-01T00:00:00Z",
			},
			b: map[string]any{
				models.PropValidFrom: "2021-01-01T00:00:00Z",
				models.PropValidTo:   "2022-01-01T00:00:00Z",
			},
			overlap: false,
		},
		{
			name: "touching endpoints do not overlap",
			a: map[string]any{
				models.PropValidFrom: "2020-01-01T00:00:00Z",
				models.PropValidTo:   "2021-01-01T00:00:00Z",
			},
			b: map[string]any{
				models.PropValidFrom: "2021-01-01T00:00:00Z",
				models.PropValidTo:   "2022-01-01T00:00:00Z",
			},
			overlap: false,
		},
		{
			name: "open ended both sides",
			a: map[string]any{
				models.PropValidFrom: "2020-01-01T00:00:00Z",
			},
			b: map[string]any{
				models.PropValidTo: "2019-01-01T00:00:00Z",
			},
			overlap: false,
		},
		{
			name: "unparseable bound treated as absent",
			a: map[string]any{
				models.PropValidFrom: "not-a-date",
			},
			b: map[string]any{
				models.PropValidFrom: "2021-01-01T00:00:00Z",
				models.PropValidTo:   "2022-01-01T00:00:00Z",
			},
			overlap: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := entity("a", tt.a)
			b := entity("b", tt.b)
			assert.Equal(t, tt.overlap, Overlap(a, b))
			assert.Equal(t, tt.overlap, Overlap(b, a), "overlap should be symmetric")
		})
	}
}

func TestOverlapTouchingHalfOpen(t *testing.T) {
	// max(start) == min(end) means the half-open intervals share no instant.
	a := entity("a", map[string]any{
		models.PropValidFrom: "2020-01-01T00:00:00Z",
		models.PropValidTo:   "2021-01-01T00:00:00Z",
	})
	b := entity("b", map[string]any{
		models.PropValidFrom: "2021-01-01T00:00:00Z",
	})
	assert.False(t, Overlap(a, b))
}

func TestExplainNameAndGeo(t *testing.T) {
	a := entity("a", map[string]any{
		models.PropName: "Ada Lovelace",
		models.PropLat:  51.5237,
		models.PropLon:  -0.1585,
	})
	b := entity("b", map[string]any{
		models.PropName: "Ada Lovelace",
		models.PropLat:  51.52370001,
		models.PropLon:  -0.15850002,
	})

	expl := NewExplainer().Explain(a, b)

	// exact name 0.5, phonetic 0.3, geo 0.4, temporal 0.1 clamps to 1.0
	assert.Equal(t, WeightExactName, expl.Features[FeatureExactName])
	assert.Equal(t, WeightGeo, expl.Features[FeatureGeo])
	assert.InDelta(t, 1.0, expl.Score, 1e-9)
}

func TestExplainNameOnly(t *testing.T) {
	a := entity("a", map[string]any{models.PropName: "Ada Lovelace", models.PropValidFrom: "2021-01-01T00:00:00Z"})
	b := entity("b", map[string]any{models.PropName: "Ada Lovelace", models.PropValidTo: "2020-01-01T00:00:00Z"})

	expl := NewExplainer().Explain(a, b)

	require.Len(t, expl.Features, 2)
	assert.Equal(t, WeightExactName, expl.Features[FeatureExactName])
	assert.Equal(t, WeightPhonetic, expl.Features[FeaturePhonetic])
	assert.InDelta(t, WeightExactName+WeightPhonetic, expl.Score, 1e-9)
}

func TestExplainClampsAtOne(t *testing.T) {
	a := entity("a", map[string]any{
		models.PropName:          "Ada Lovelace",
		models.PropCryptoAddress: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
	})
	b := entity("b", map[string]any{
		models.PropName:          "Ada Lovelace",
		models.PropCryptoAddress: " 1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa ",
	})

	expl := NewExplainer().Explain(a, b)

	// crypto 0.8 + name 0.5 + phonetic 0.3 + temporal 0.1 far exceeds 1.0
	assert.Equal(t, 1.0, expl.Score)
	assert.Equal(t, WeightCrypto, expl.Features[FeatureCrypto])
}

func TestExplainNoSharedEvidence(t *testing.T) {
	a := entity("a", map[string]any{
		models.PropName:      "Ada Lovelace",
		models.PropValidFrom: "2022-01-01T00:00:00Z",
	})
	b := entity("b", map[string]any{
		models.PropName:    "Grace Hopper",
		models.PropValidTo: "2020-01-01T00:00:00Z",
	})

	expl := NewExplainer().Explain(a, b)

	assert.Zero(t, expl.Score)
	assert.Empty(t, expl.Features)
	assert.Empty(t, expl.Rationale)
}

func TestExplainDeterministic(t *testing.T) {
	a := entity("a", map[string]any{
		models.PropName: "Ada Lovelace",
		models.PropLat:  51.5237,
		models.PropLon:  -0.1585,
	})
	b := entity("b", map[string]any{
		models.PropName: "Ada Lovelace",
		models.PropLat:  51.5237,
		models.PropLon:  -0.1585,
	})

	e := NewExplainer()
	first := e.Explain(a, b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Explain(a, b))
	}
}

func TestExplainRationaleOrder(t *testing.T) {
	a := entity("a", map[string]any{
		models.PropName: "Ada Lovelace",
		models.PropLat:  10.0,
		models.PropLon:  20.0,
	})
	b := entity("b", map[string]any{
		models.PropName: "Ada Lovelace",
		models.PropLat:  10.0,
		models.PropLon:  20.0,
	})

	expl := NewExplainer().Explain(a, b)

	require.Len(t, expl.Rationale, 4)
	assert.Contains(t, expl.Rationale[0], "phonetic")
	assert.Contains(t, expl.Rationale[1], "exact name")
	assert.Contains(t, expl.Rationale[2], "geo bucket")
	assert.Contains(t, expl.Rationale[3], "bitemporal")
}

func TestScoreMatchesExplain(t *testing.T) {
	a := entity("a", map[string]any{models.PropName: "Ada Lovelace"})
	b := entity("b", map[string]any{models.PropName: "Ada Lovelace"})

	e := NewExplainer()
	assert.Equal(t, e.Explain(a, b).Score, e.Score(a, b))
}
