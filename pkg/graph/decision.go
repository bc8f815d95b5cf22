package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/BrianCLong/summit-sub013/pkg/errs"
	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

// Annotations stamped onto replicated relationships so revert can find them.
const (
	propOriginalID        = "originalId"
	propCreatedByDecision = "createdByDecision"
)

// MergePlan is the validated input to a single merge transaction. The
// orchestrator builds it after authorization and the guardrail gate have
// passed; the store only executes it.
type MergePlan struct {
	TenantID   string
	DecisionID string
	MasterID   string
	MergeIDs   []string
	UserID     string
	Rationale  string
	Timestamp  time.Time

	Guardrails      models.GuardrailResult
	GuardrailStatus string
	OverrideReason  string
	OverrideBy      string
}

// MergeOutcome summarizes the committed merge transaction.
type MergeOutcome struct {
	DecisionID      string
	ArchivedCount   int
	ReplicatedCount int
}

// DecisionStore executes merge and revert transactions against the graph.
// Each operation runs inside exactly one write transaction; any failure rolls
// the whole transaction back.
type DecisionStore struct {
	client *Client
	types  *TypeRegistry
	logger ectologger.Logger

	// When true, revert also deletes the synthetic relationships the merge
	// created at the master. Default behavior keeps them as permanent
	// provenance.
	removeSyntheticOnRevert bool
}

// NewDecisionStore creates a decision store.
func NewDecisionStore(client *Client, types *TypeRegistry, logger ectologger.Logger, removeSyntheticOnRevert bool) *DecisionStore {
	return &DecisionStore{
		client:                  client,
		types:                   types,
		logger:                  logger,
		removeSyntheticOnRevert: removeSyntheticOnRevert,
	}
}

// FetchEntities returns the entities carrying the Entity marker for the given
// ids in a single read. Missing ids are simply absent from the result; the
// caller compares counts.
func (s *DecisionStore) FetchEntities(ctx context.Context, tenantID string, ids []string) ([]*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.DecisionStore.FetchEntities")
	defer span.End()

	cypher := `
		MATCH (e:Entity {tenant_id: $tenant_id})
		WHERE e.id IN $ids
		RETURN e.id AS id, labels(e) AS labels, properties(e) AS props
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"tenant_id": tenantID,
			"ids":       ids,
		})
		if err != nil {
			return nil, err
		}

		var entities []*models.Entity
		for res.Next(ctx) {
			entities = append(entities, entityFromRecord(tenantID, res.Record()))
		}
		return entities, res.Err()
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to fetch entities")
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}

	return result.([]*models.Entity), nil
}

// ExecuteMerge runs the whole merge as one write transaction: re-verify the
// Entity markers, archive every relationship incident to the absorb set,
// create the decision node with the archived blob, replicate relationships at
// the master, stamp the originals, and relabel the absorbed entities. Returns
// ConflictError when a requested entity lost its Entity marker since the
// pre-transaction read.
func (s *DecisionStore) ExecuteMerge(ctx context.Context, plan MergePlan) (*MergeOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.DecisionStore.ExecuteMerge")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"decision_id": plan.DecisionID,
		"master_id":   plan.MasterID,
		"merge_count": len(plan.MergeIDs),
		"tenant_id":   plan.TenantID,
	})

	result, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		allIDs := append([]string{plan.MasterID}, plan.MergeIDs...)
		if err := verifyEntityMarkers(ctx, tx, plan.TenantID, allIDs); err != nil {
			return nil, err
		}

		archived, err := readIncidentRelationships(ctx, tx, plan.TenantID, plan.MergeIDs)
		if err != nil {
			return nil, err
		}

		absorbed := make(map[string]bool, len(plan.MergeIDs))
		for _, id := range plan.MergeIDs {
			absorbed[id] = true
		}
		replications := planReplications(archived, plan.MasterID, absorbed)

		for _, rep := range replications {
			if !s.types.Allowed(rep.RelType) {
				return nil, fmt.Errorf("relationship type %q is not in the allow-list", rep.RelType)
			}
		}

		if err := createDecisionNode(ctx, tx, plan, archived); err != nil {
			return nil, err
		}
		if err := s.replicateRelationships(ctx, tx, plan, replications); err != nil {
			return nil, err
		}
		if err := stampOriginals(ctx, tx, plan, archived); err != nil {
			return nil, err
		}
		if err := relabelAbsorbed(ctx, tx, plan); err != nil {
			return nil, err
		}

		return &MergeOutcome{
			DecisionID:      plan.DecisionID,
			ArchivedCount:   len(archived),
			ReplicatedCount: len(replications),
		}, nil
	})
	if err != nil {
		if errs.IsConflict(err) {
			log.WithError(err).Warn("Merge aborted on concurrent absorption")
			return nil, err
		}
		log.WithError(err).Error("Merge transaction failed")
		return nil, fmt.Errorf("merge transaction failed: %w", err)
	}

	outcome := result.(*MergeOutcome)
	log.WithFields(map[string]any{
		"archived_count":   outcome.ArchivedCount,
		"replicated_count": outcome.ReplicatedCount,
	}).Info("Committed merge decision")
	return outcome, nil
}

// ExecuteRevert restores the absorbed entities' visibility, clears the merge
// annotations stamped by the decision, and marks the decision node reverted.
// Runs as one write transaction.
func (s *DecisionStore) ExecuteRevert(ctx context.Context, tenantID string, decisionID string, actor string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.DecisionStore.ExecuteRevert")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"decision_id": decisionID,
		"tenant_id":   tenantID,
	})

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		decision, err := readDecision(ctx, tx, tenantID, decisionID)
		if err != nil {
			return nil, err
		}
		if decision == nil {
			return nil, errs.NewNotFound("decision", decisionID)
		}
		if decision.Reverted {
			return nil, fmt.Errorf("decision %q is already reverted", decisionID)
		}

		restore := `
			MATCH (e:MergedEntity {tenant_id: $tenant_id})
			WHERE e.id IN $ids
			SET e:Entity
			REMOVE e:MergedEntity, e.mergedInto, e.mergedAt
		`
		if _, err := tx.Run(ctx, restore, map[string]any{
			"tenant_id": tenantID,
			"ids":       decision.OriginalIDs,
		}); err != nil {
			return nil, err
		}

		unstamp := `
			MATCH ()-[r]->()
			WHERE r.mergedByDecision = $decision_id
			REMOVE r.merged, r.mergedAt, r.mergedByDecision
		`
		if _, err := tx.Run(ctx, unstamp, map[string]any{"decision_id": decisionID}); err != nil {
			return nil, err
		}

		if s.removeSyntheticOnRevert {
			removeSynthetic := `
				MATCH ()-[r]->()
				WHERE r.createdByDecision = $decision_id
				DELETE r
			`
			if _, err := tx.Run(ctx, removeSynthetic, map[string]any{"decision_id": decisionID}); err != nil {
				return nil, err
			}
		}

		mark := `
			MATCH (d:ERDecision {id: $decision_id, tenant_id: $tenant_id})
			SET d:RevertedDecision, d.revertedAt = $reverted_at, d.revertedBy = $actor
		`
		if _, err := tx.Run(ctx, mark, map[string]any{
			"decision_id": decisionID,
			"tenant_id":   tenantID,
			"reverted_at": time.Now().UTC(),
			"actor":       actor,
		}); err != nil {
			return nil, err
		}

		return nil, nil
	})
	if err != nil {
		if errs.IsNotFound(err) {
			return err
		}
		log.WithError(err).Error("Revert transaction failed")
		return fmt.Errorf("revert transaction failed: %w", err)
	}

	log.Info("Reverted merge decision")
	return nil
}

// GetDecision reads one decision node.
func (s *DecisionStore) GetDecision(ctx context.Context, tenantID string, decisionID string) (*models.ERDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.DecisionStore.GetDecision")
	defer span.End()

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return readDecision(ctx, tx, tenantID, decisionID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}

	decision := result.(*models.ERDecision)
	if decision == nil {
		return nil, errs.NewNotFound("decision", decisionID)
	}
	return decision, nil
}

// verifyEntityMarkers re-checks, inside the transaction, that every requested
// id still carries the Entity marker. Two overlapping merges may both pass the
// pre-transaction read; the loser must abort here instead of double-archiving.
func verifyEntityMarkers(ctx context.Context, tx neo4j.ManagedTransaction, tenantID string, ids []string) error {
	cypher := `
		MATCH (e:Entity {tenant_id: $tenant_id})
		WHERE e.id IN $ids
		RETURN e.id AS id
	`
	res, err := tx.Run(ctx, cypher, map[string]any{
		"tenant_id": tenantID,
		"ids":       ids,
	})
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(ids))
	for res.Next(ctx) {
		if v, ok := res.Record().Get("id"); ok {
			if id, ok := v.(string); ok {
				present[id] = true
			}
		}
	}
	if err := res.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if !present[id] {
			return errs.NewConflict(id)
		}
	}
	return nil
}

// readIncidentRelationships collects every relationship incident to the absorb
// set, excluding decision-node edges. The relationship's graph identifier
// becomes the archived id.
func readIncidentRelationships(ctx context.Context, tx neo4j.ManagedTransaction, tenantID string, mergeIDs []string) ([]models.ArchivedRelationship, error) {
	cypher := `
		MATCH (a {tenant_id: $tenant_id})-[r]-(b)
		WHERE a.id IN $ids AND NOT b:ERDecision
		RETURN DISTINCT toString(id(r)) AS rel_id, type(r) AS rel_type,
			startNode(r).id AS start_id, endNode(r).id AS end_id,
			properties(r) AS props
	`
	res, err := tx.Run(ctx, cypher, map[string]any{
		"tenant_id": tenantID,
		"ids":       mergeIDs,
	})
	if err != nil {
		return nil, err
	}

	var archived []models.ArchivedRelationship
	for res.Next(ctx) {
		record := res.Record()
		rel := models.ArchivedRelationship{
			ID:      stringValue(record, "rel_id"),
			Type:    stringValue(record, "rel_type"),
			StartID: stringValue(record, "start_id"),
			EndID:   stringValue(record, "end_id"),
		}
		if v, ok := record.Get("props"); ok {
			if props, ok := v.(map[string]any); ok {
				rel.Props = props
			}
		}
		archived = append(archived, rel)
	}
	return archived, res.Err()
}

// replication is one synthetic relationship to create at the master.
type replication struct {
	RelType    string
	StartID    string
	EndID      string
	OriginalID string
	Props      map[string]any
}

// planReplications maps archived relationships to the synthetic edges the
// master receives. Direction is preserved: an absorbed start endpoint becomes
// the master as start, and symmetrically for end. A relationship with both
// endpoints inside the absorb set collapses: it is archived but never
// replicated. The same holds when the surviving endpoint is the master itself,
// which would otherwise produce a self loop.
func planReplications(archived []models.ArchivedRelationship, masterID string, absorbed map[string]bool) []replication {
	var reps []replication
	for _, rel := range archived {
		startAbsorbed := absorbed[rel.StartID]
		endAbsorbed := absorbed[rel.EndID]

		switch {
		case startAbsorbed && endAbsorbed:
			continue
		case startAbsorbed:
			if rel.EndID == masterID {
				continue
			}
			reps = append(reps, replication{
				RelType:    rel.Type,
				StartID:    masterID,
				EndID:      rel.EndID,
				OriginalID: rel.ID,
				Props:      rel.Props,
			})
		case endAbsorbed:
			if rel.StartID == masterID {
				continue
			}
			reps = append(reps, replication{
				RelType:    rel.Type,
				StartID:    rel.StartID,
				EndID:      masterID,
				OriginalID: rel.ID,
				Props:      rel.Props,
			})
		}
	}
	return reps
}

// createDecisionNode writes the decision with its guardrail snapshot and the
// archived-relationship blob, linked to the master entity.
func createDecisionNode(ctx context.Context, tx neo4j.ManagedTransaction, plan MergePlan, archived []models.ArchivedRelationship) error {
	blob, err := json.Marshal(archived)
	if err != nil {
		return fmt.Errorf("failed to serialize archived relationships: %w", err)
	}

	cypher := `
		MATCH (m:Entity {id: $master_id, tenant_id: $tenant_id})
		CREATE (d:ERDecision {
			id: $id,
			tenant_id: $tenant_id,
			timestamp: $timestamp,
			user: $user,
			rationale: $rationale,
			masterId: $master_id,
			originalIds: $original_ids,
			datasetId: $dataset_id,
			status: $status,
			precision: $precision,
			recall: $recall,
			minPrecision: $min_precision,
			minRecall: $min_recall,
			matchThreshold: $match_threshold,
			overrideReason: $override_reason,
			overrideBy: $override_by,
			archivedRelationships: $archived
		})
		CREATE (d)-[:DECIDED]->(m)
	`
	_, err = tx.Run(ctx, cypher, map[string]any{
		"id":              plan.DecisionID,
		"tenant_id":       plan.TenantID,
		"timestamp":       plan.Timestamp,
		"user":            plan.UserID,
		"rationale":       plan.Rationale,
		"master_id":       plan.MasterID,
		"original_ids":    plan.MergeIDs,
		"dataset_id":      plan.Guardrails.DatasetID,
		"status":          plan.GuardrailStatus,
		"precision":       plan.Guardrails.Metrics.Precision,
		"recall":          plan.Guardrails.Metrics.Recall,
		"min_precision":   plan.Guardrails.Thresholds.MinPrecision,
		"min_recall":      plan.Guardrails.Thresholds.MinRecall,
		"match_threshold": plan.Guardrails.Thresholds.MatchThreshold,
		"override_reason": plan.OverrideReason,
		"override_by":     plan.OverrideBy,
		"archived":        string(blob),
	})
	return err
}

// replicateRelationships creates the synthetic edges at the master, batched
// per relationship type and direction. The type names were validated against
// the allow-list before this point. Every batch returns its created count,
// which has to equal the planned count before the transaction may commit.
func (s *DecisionStore) replicateRelationships(ctx context.Context, tx neo4j.ManagedTransaction, plan MergePlan, reps []replication) error {
	type groupKey struct {
		relType  string
		outgoing bool
	}
	groups := make(map[groupKey][]replication)
	for _, rep := range reps {
		key := groupKey{relType: rep.RelType, outgoing: rep.StartID == plan.MasterID}
		groups[key] = append(groups[key], rep)
	}

	for key, groupReps := range groups {
		batch := make([]map[string]any, len(groupReps))
		for i, rep := range groupReps {
			props := map[string]any{}
			for k, v := range rep.Props {
				props[k] = v
			}
			props[propOriginalID] = rep.OriginalID
			props[propCreatedByDecision] = plan.DecisionID
			props[models.PropValidFrom] = plan.Timestamp

			otherID := rep.EndID
			if !key.outgoing {
				otherID = rep.StartID
			}
			batch[i] = map[string]any{
				"other_id": otherID,
				"props":    props,
			}
		}

		pattern := "CREATE (m)-[r:%s]->(n)"
		if !key.outgoing {
			pattern = "CREATE (n)-[r:%s]->(m)"
		}
		cypher := fmt.Sprintf(`
			UNWIND $batch AS data
			MATCH (m:Entity {id: $master_id, tenant_id: $tenant_id})
			MATCH (n {id: data.other_id, tenant_id: $tenant_id})
			`+pattern+`
			SET r = data.props
			RETURN count(r) AS created
		`, sanitizeLabel(key.relType))

		res, err := tx.Run(ctx, cypher, map[string]any{
			"batch":     batch,
			"master_id": plan.MasterID,
			"tenant_id": plan.TenantID,
		})
		if err != nil {
			return err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return err
		}
		if err := checkReplicatedCount(record, len(groupReps), key.relType); err != nil {
			return err
		}
	}
	return nil
}

// checkReplicatedCount compares a batch's created-edge count against the plan.
// A shortfall means a surviving endpoint did not match and the transaction
// must abort instead of silently dropping the edge.
func checkReplicatedCount(record *neo4j.Record, planned int, relType string) error {
	created := int64(0)
	if record != nil {
		if v, ok := record.Get("created"); ok {
			if n, ok := v.(int64); ok {
				created = n
			}
		}
	}
	if created != int64(planned) {
		return fmt.Errorf("replicated %d of %d %q relationships: a surviving endpoint did not match", created, planned, relType)
	}
	return nil
}

// stampOriginals marks every archived relationship as merged.
func stampOriginals(ctx context.Context, tx neo4j.ManagedTransaction, plan MergePlan, archived []models.ArchivedRelationship) error {
	if len(archived) == 0 {
		return nil
	}

	relIDs := make([]string, len(archived))
	for i, rel := range archived {
		relIDs[i] = rel.ID
	}

	cypher := `
		MATCH ()-[r]->()
		WHERE toString(id(r)) IN $rel_ids
		SET r.merged = true, r.mergedAt = $merged_at, r.mergedByDecision = $decision_id
	`
	_, err := tx.Run(ctx, cypher, map[string]any{
		"rel_ids":     relIDs,
		"merged_at":   plan.Timestamp,
		"decision_id": plan.DecisionID,
	})
	return err
}

// relabelAbsorbed swaps the Entity marker for MergedEntity on the absorb set.
func relabelAbsorbed(ctx context.Context, tx neo4j.ManagedTransaction, plan MergePlan) error {
	cypher := `
		MATCH (e:Entity {tenant_id: $tenant_id})
		WHERE e.id IN $ids
		SET e:MergedEntity, e.mergedInto = $master_id, e.mergedAt = $merged_at
		REMOVE e:Entity
	`
	_, err := tx.Run(ctx, cypher, map[string]any{
		"tenant_id": plan.TenantID,
		"ids":       plan.MergeIDs,
		"master_id": plan.MasterID,
		"merged_at": plan.Timestamp,
	})
	return err
}

// readDecision returns the decision node, or nil when absent.
func readDecision(ctx context.Context, tx neo4j.ManagedTransaction, tenantID string, decisionID string) (*models.ERDecision, error) {
	cypher := `
		MATCH (d:ERDecision {id: $id, tenant_id: $tenant_id})
		RETURN properties(d) AS props, labels(d) AS labels
	`
	res, err := tx.Run(ctx, cypher, map[string]any{
		"id":        decisionID,
		"tenant_id": tenantID,
	})
	if err != nil {
		return nil, err
	}
	if !res.Next(ctx) {
		return nil, res.Err()
	}

	record := res.Record()
	propsVal, _ := record.Get("props")
	labelsVal, _ := record.Get("labels")

	props, _ := propsVal.(map[string]any)
	var labels []string
	if raw, ok := labelsVal.([]any); ok {
		for _, l := range raw {
			if s, ok := l.(string); ok {
				labels = append(labels, s)
			}
		}
	}

	return decisionFromProps(props, labels)
}

// decisionFromProps maps a decision node's properties into the model,
// including the archived-relationship blob.
func decisionFromProps(props map[string]any, labels []string) (*models.ERDecision, error) {
	d := &models.ERDecision{
		ID:                 stringProp(props, "id"),
		TenantID:           stringProp(props, "tenant_id"),
		User:               stringProp(props, "user"),
		Rationale:          stringProp(props, "rationale"),
		MasterID:           stringProp(props, "masterId"),
		GuardrailDatasetID: stringProp(props, "datasetId"),
		GuardrailStatus:    stringProp(props, "status"),
		Precision:          floatProp(props, "precision"),
		Recall:             floatProp(props, "recall"),
		MinPrecision:       floatProp(props, "minPrecision"),
		MinRecall:          floatProp(props, "minRecall"),
		MatchThreshold:     floatProp(props, "matchThreshold"),
		OverrideReason:     stringProp(props, "overrideReason"),
		OverrideBy:         stringProp(props, "overrideBy"),
		RevertedBy:         stringProp(props, "revertedBy"),
	}

	if ts, ok := timeProp(props, "timestamp"); ok {
		d.Timestamp = ts
	}
	if raw, ok := props["originalIds"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				d.OriginalIDs = append(d.OriginalIDs, s)
			}
		}
	}
	if blob := stringProp(props, "archivedRelationships"); blob != "" {
		if err := json.Unmarshal([]byte(blob), &d.ArchivedRelationships); err != nil {
			return nil, fmt.Errorf("failed to parse archived relationships blob: %w", err)
		}
	}

	for _, l := range labels {
		if l == models.LabelRevertedDecision {
			d.Reverted = true
		}
	}
	if ts, ok := timeProp(props, "revertedAt"); ok {
		d.RevertedAt = &ts
	}

	return d, nil
}

func entityFromRecord(tenantID string, record *neo4j.Record) *models.Entity {
	e := &models.Entity{
		ID:       stringValue(record, "id"),
		TenantID: tenantID,
	}
	if v, ok := record.Get("labels"); ok {
		if raw, ok := v.([]any); ok {
			for _, l := range raw {
				if s, ok := l.(string); ok {
					e.Labels = append(e.Labels, s)
				}
			}
		}
	}
	if v, ok := record.Get("props"); ok {
		if props, ok := v.(map[string]any); ok {
			e.Props = props
		}
	}
	return e
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func timeProp(props map[string]any, key string) (time.Time, bool) {
	switch v := props[key].(type) {
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
