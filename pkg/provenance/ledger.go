// Package provenance defines the durable audit ledger consumed by the merge
// orchestrator. Entries are append-only; a returned nil error means the entry
// is durably stored.
package provenance

import (
	"context"
	"encoding/json"
	"time"
)

// Action types recorded in the ledger.
const (
	ActionGuardrailOverride = "ER_GUARDRAIL_OVERRIDE"
)

// Entry is one immutable ledger record.
type Entry struct {
	ID         string          `json:"id" db:"id"`
	TenantID   string          `json:"tenant_id" db:"tenant_id"`
	ActionType string          `json:"action_type" db:"action_type"`
	ResourceID string          `json:"resource_id" db:"resource_id"`
	Actor      string          `json:"actor" db:"actor"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// OverridePayload is the payload recorded for a guardrail override: the
// measured metrics, the thresholds they failed, and the affected entities.
type OverridePayload struct {
	DatasetID      string   `json:"dataset_id"`
	Reason         string   `json:"reason"`
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	MinPrecision   float64  `json:"min_precision"`
	MinRecall      float64  `json:"min_recall"`
	MatchThreshold float64  `json:"match_threshold"`
	MasterID       string   `json:"master_id"`
	MergeIDs       []string `json:"merge_ids"`
}

// Ledger appends audit entries. AppendEntry must not return nil unless the
// entry is confirmed durable; the merge orchestrator is fail-closed on it.
type Ledger interface {
	AppendEntry(ctx context.Context, entry Entry) error
}
