// Package models defines the shared domain types for the entity resolution engine.
package models

import "time"

// Marker labels used on graph nodes. An entity visible to normal queries
// carries LabelEntity; once absorbed into a master it carries LabelMergedEntity
// instead.
const (
	LabelEntity           = "Entity"
	LabelMergedEntity     = "MergedEntity"
	LabelERDecision       = "ERDecision"
	LabelRevertedDecision = "RevertedDecision"
)

// Well-known entity property keys.
const (
	PropName          = "name"
	PropLat           = "lat"
	PropLon           = "lon"
	PropUserAgent     = "userAgent"
	PropCryptoAddress = "cryptoAddress"
	PropPHash         = "pHash"
	PropValidFrom     = "validFrom"
	PropValidTo       = "validTo"
	PropObservedAt    = "observedAt"
	PropRecordedAt    = "recordedAt"
	PropMergedInto    = "mergedInto"
	PropMergedAt      = "mergedAt"
)

// Entity is a node in the property graph representing one real-world object.
type Entity struct {
	ID       string         `json:"id"`
	TenantID string         `json:"tenant_id"`
	Labels   []string       `json:"labels"`
	Props    map[string]any `json:"properties"`
}

// HasLabel reports whether the entity carries the given label.
func (e *Entity) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Name returns the entity's name property, or "" when absent.
func (e *Entity) Name() string {
	s, _ := e.Props[PropName].(string)
	return s
}

// StringProp returns a string property by key, or "" when absent or non-string.
func (e *Entity) StringProp(key string) string {
	s, _ := e.Props[key].(string)
	return s
}

// TimeProp returns a temporal property by key. Neo4j datetime values arrive as
// time.Time; ingested values may be RFC3339 strings.
func (e *Entity) TimeProp(key string) (time.Time, bool) {
	switch v := e.Props[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// EntitySignals is the derived bundle of comparable fingerprints for an
// entity. It is recomputed on demand from the entity's properties and never
// persisted independently. Absent source fields simply omit the corresponding
// list.
type EntitySignals struct {
	Phonetic    []string `json:"phonetic,omitempty"`
	GeoBuckets  []string `json:"geo_buckets,omitempty"`
	DeviceIDs   []string `json:"device_ids,omitempty"`
	CryptoAddrs []string `json:"crypto_addrs,omitempty"`
	PHashes     []string `json:"p_hashes,omitempty"`
	DocSigs     []string `json:"doc_sigs,omitempty"`
}

// CandidateCluster is one group of probable-duplicate entities produced by the
// candidate feed for human or automated review.
type CandidateCluster struct {
	CanonicalKey string   `json:"canonical_key"`
	EntityIDs    []string `json:"entity_ids"`
}
