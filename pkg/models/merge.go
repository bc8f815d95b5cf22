package models

import "time"

// UserContext identifies the actor performing a merge or revert, including the
// clearance set evaluated by label-based access control.
type UserContext struct {
	UserID     string   `json:"user_id" validate:"required"`
	TenantID   string   `json:"tenant_id" validate:"required"`
	Clearances []string `json:"clearances"`
}

// HasClearance reports whether the actor holds the given clearance.
func (u UserContext) HasClearance(clearance string) bool {
	for _, c := range u.Clearances {
		if c == clearance {
			return true
		}
	}
	return false
}

// MergeRequest asks the orchestrator to absorb MergeIDs into MasterID.
type MergeRequest struct {
	MasterID                string   `json:"master_id" validate:"required"`
	MergeIDs                []string `json:"merge_ids" validate:"required,min=1,dive,required"`
	Rationale               string   `json:"rationale" validate:"required"`
	GuardrailDatasetID      string   `json:"guardrail_dataset_id,omitempty"`
	GuardrailOverrideReason string   `json:"guardrail_override_reason,omitempty"`
}

// AllIDs returns the master id followed by the absorb set.
func (r MergeRequest) AllIDs() []string {
	ids := make([]string, 0, len(r.MergeIDs)+1)
	ids = append(ids, r.MasterID)
	ids = append(ids, r.MergeIDs...)
	return ids
}

// MergeResult is returned to the caller on a committed merge.
type MergeResult struct {
	DecisionID   string          `json:"decision_id"`
	Guardrails   GuardrailResult `json:"guardrails"`
	OverrideUsed bool            `json:"override_used"`
}

// ArchivedRelationship preserves one pre-merge relationship with its original
// identifier, type, endpoints, and properties. The full list is stored as a
// blob on the decision node and is the canonical source for reversibility.
type ArchivedRelationship struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	StartID string         `json:"start_id"`
	EndID   string         `json:"end_id"`
	Props   map[string]any `json:"properties,omitempty"`
}

// ERDecision is the audit record of one merge: inputs, rationale, guardrail
// snapshot, and every archived pre-merge relationship. Immutable once
// committed, except for the revert marker.
type ERDecision struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	Rationale   string    `json:"rationale"`
	MasterID    string    `json:"master_id"`
	OriginalIDs []string  `json:"original_ids"`

	// Guardrail snapshot at decision time.
	GuardrailDatasetID string  `json:"guardrail_dataset_id"`
	GuardrailStatus    string  `json:"guardrail_status"` // "passed" or "overridden"
	Precision          float64 `json:"precision"`
	Recall             float64 `json:"recall"`
	MinPrecision       float64 `json:"min_precision"`
	MinRecall          float64 `json:"min_recall"`
	MatchThreshold     float64 `json:"match_threshold"`
	OverrideReason     string  `json:"override_reason,omitempty"`
	OverrideBy         string  `json:"override_by,omitempty"`

	ArchivedRelationships []ArchivedRelationship `json:"archived_relationships"`

	Reverted   bool       `json:"reverted"`
	RevertedAt *time.Time `json:"reverted_at,omitempty"`
	RevertedBy string     `json:"reverted_by,omitempty"`
}

// Guardrail status values stored on the decision node.
const (
	GuardrailStatusPassed     = "passed"
	GuardrailStatusOverridden = "overridden"
)
