package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianCLong/summit-sub013/pkg/models"
)

func TestExtractAbsentFieldsOmitSignals(t *testing.T) {
	e := &models.Entity{
		ID:       "e1",
		TenantID: "t1",
		Props:    map[string]any{models.PropName: "Ada Lovelace"},
	}

	s := Extract(e)

	require.Len(t, s.Phonetic, 1)
	assert.Empty(t, s.GeoBuckets)
	assert.Empty(t, s.DeviceIDs)
	assert.Empty(t, s.CryptoAddrs)
	assert.Empty(t, s.PHashes)
	require.Len(t, s.DocSigs, 1)
}

func TestExtractEmptyEntity(t *testing.T) {
	e := &models.Entity{ID: "e1", TenantID: "t1", Props: map[string]any{}}

	s := Extract(e)

	assert.Equal(t, models.EntitySignals{}, s)
}

func TestExtractDeterministic(t *testing.T) {
	e := &models.Entity{
		ID:       "e1",
		TenantID: "t1",
		Props: map[string]any{
			models.PropName:          "Ada Lovelace",
			models.PropLat:           51.5237,
			models.PropLon:           -0.1585,
			models.PropCryptoAddress: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
			models.PropUserAgent:     "Mozilla/5.0",
		},
	}

	first := Extract(e)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Extract(e))
	}
}

func TestExtractMultiValuedName(t *testing.T) {
	e := &models.Entity{
		ID:       "e1",
		TenantID: "t1",
		Props: map[string]any{
			models.PropName: []any{"Ada Lovelace", "A. Lovelace", ""},
		},
	}

	s := Extract(e)

	assert.Len(t, s.Phonetic, 2)
}

func TestExtractDocSignatureDependsOnPropsOnly(t *testing.T) {
	props := map[string]any{models.PropName: "Ada Lovelace", "dob": "1815-12-10"}

	a := Extract(&models.Entity{ID: "a", TenantID: "t1", Props: props})
	b := Extract(&models.Entity{ID: "b", TenantID: "t2", Props: props})
	c := Extract(&models.Entity{ID: "c", TenantID: "t1", Props: map[string]any{models.PropName: "Grace Hopper"}})

	require.Len(t, a.DocSigs, 1)
	assert.Equal(t, a.DocSigs[0], b.DocSigs[0], "same properties must produce the same document signature")
	assert.NotEqual(t, a.DocSigs[0], c.DocSigs[0])
}

func TestGeoBucket(t *testing.T) {
	tests := []struct {
		name   string
		lat    any
		lon    any
		bucket string
		ok     bool
	}{
		{name: "floats", lat: 51.5237, lon: -0.1585, bucket: "51.5237,-0.1585", ok: true},
		{name: "float noise rounds away", lat: 51.52370001, lon: -0.15849999, bucket: "51.5237,-0.1585", ok: true},
		{name: "string coordinates", lat: "51.5237", lon: "-0.1585", bucket: "51.5237,-0.1585", ok: true},
		{name: "integer coordinates", lat: 10, lon: 20, bucket: "10.0000,20.0000", ok: true},
		{name: "missing lon", lat: 51.5237, lon: nil, ok: false},
		{name: "unparseable string", lat: "north", lon: "-0.1585", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, ok := GeoBucket(tt.lat, tt.lon)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.bucket, bucket)
			}
		})
	}
}

func TestMetaphoneEquivalentSpellings(t *testing.T) {
	assert.Equal(t, Metaphone("smith"), Metaphone("smyth"))
	assert.NotEqual(t, Metaphone("smith"), Metaphone("jones"))
	assert.Empty(t, Metaphone(""))
}
