// Package er contains the merge and revert orchestrators: the control paths
// that validate a request, run authorization and the guardrail gate, record
// the override audit entry, and hand a validated plan to the graph store.
package er

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/BrianCLong/summit-sub013/pkg/errs"
	"github.com/BrianCLong/summit-sub013/pkg/graph"
	"github.com/BrianCLong/summit-sub013/pkg/matching"
	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/provenance"
	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

// DecisionStore is the graph-side contract the orchestrator drives.
type DecisionStore interface {
	FetchEntities(ctx context.Context, tenantID string, ids []string) ([]*models.Entity, error)
	ExecuteMerge(ctx context.Context, plan graph.MergePlan) (*graph.MergeOutcome, error)
	ExecuteRevert(ctx context.Context, tenantID string, decisionID string, actor string) error
	GetDecision(ctx context.Context, tenantID string, decisionID string) (*models.ERDecision, error)
}

// GuardrailGate is the quality gate consulted before any transaction opens.
type GuardrailGate interface {
	Check(ctx context.Context, datasetID string, overrideReason string) (models.GuardrailResult, bool, error)
}

// Authorizer enforces label-based access control over the request's entities.
type Authorizer interface {
	Authorize(user models.UserContext, entities []*models.Entity) error
}

// EventEmitter publishes decision lifecycle events. Emission is best effort
// and never blocks a committed operation.
type EventEmitter interface {
	EmitMergeCommitted(ctx context.Context, tenantID string, decisionID string, masterID string, mergeIDs []string) error
	EmitMergeReverted(ctx context.Context, tenantID string, decisionID string, actor string) error
}

// Service orchestrates merges and reverts. All collaborators are injected at
// construction so tests can substitute them.
type Service struct {
	store      DecisionStore
	gate       GuardrailGate
	ledger     provenance.Ledger
	authorizer Authorizer
	explainer  *matching.Explainer
	emitter    EventEmitter
	logger     ectologger.Logger
}

// NewService creates the orchestrator.
func NewService(
	store DecisionStore,
	gate GuardrailGate,
	ledger provenance.Ledger,
	authorizer Authorizer,
	explainer *matching.Explainer,
	emitter EventEmitter,
	logger ectologger.Logger,
) *Service {
	return &Service{
		store:      store,
		gate:       gate,
		ledger:     ledger,
		authorizer: authorizer,
		explainer:  explainer,
		emitter:    emitter,
		logger:     logger,
	}
}

// Merge absorbs the requested entities into the master under the guardrail
// gate. All pre-transaction failures (NotFound, PolicyViolation,
// GuardrailFailure) are raised before any write; in-transaction failures roll
// the whole transaction back.
func (s *Service) Merge(ctx context.Context, user models.UserContext, req models.MergeRequest) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "er.Service.Merge")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"master_id":   req.MasterID,
		"merge_count": len(req.MergeIDs),
		"tenant_id":   user.TenantID,
		"user_id":     user.UserID,
	})

	ids := req.AllIDs()
	if dup, ok := firstDuplicate(ids); ok {
		log.WithFields(map[string]any{"entity_id": dup}).Warn("Merge request repeats an entity id")
		return nil, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("entity id %q appears more than once in the request", dup))
	}

	entities, err := s.store.FetchEntities(ctx, user.TenantID, ids)
	if err != nil {
		return nil, err
	}
	if len(entities) != len(ids) {
		missing := missingIDs(ids, entities)
		log.WithFields(map[string]any{"missing_ids": missing}).Warn("Merge request names unknown entities")
		return nil, errs.NewNotFound("entity", missing[0])
	}

	if err := s.authorizer.Authorize(user, entities); err != nil {
		log.WithError(err).Warn("Merge denied by label-based access control")
		return nil, err
	}

	guardrails, overrideUsed, err := s.gate.Check(ctx, req.GuardrailDatasetID, req.GuardrailOverrideReason)
	if err != nil {
		return nil, err
	}

	decisionID := uuid.New().String()
	now := time.Now().UTC()

	status := models.GuardrailStatusPassed
	overrideReason := ""
	overrideBy := ""
	if overrideUsed {
		status = models.GuardrailStatusOverridden
		overrideReason = req.GuardrailOverrideReason
		overrideBy = user.UserID

		// The audit entry must be durable before the merge transaction opens.
		// An unaudited override defeats the guardrail, so this path is
		// fail-closed.
		if err := s.appendOverrideAudit(ctx, user, req, guardrails, decisionID, now); err != nil {
			log.WithError(err).Error("Override audit write failed; aborting merge")
			return nil, fmt.Errorf("override audit write failed: %w", err)
		}
	}

	plan := graph.MergePlan{
		TenantID:        user.TenantID,
		DecisionID:      decisionID,
		MasterID:        req.MasterID,
		MergeIDs:        req.MergeIDs,
		UserID:          user.UserID,
		Rationale:       req.Rationale,
		Timestamp:       now,
		Guardrails:      guardrails,
		GuardrailStatus: status,
		OverrideReason:  overrideReason,
		OverrideBy:      overrideBy,
	}

	outcome, err := s.store.ExecuteMerge(ctx, plan)
	if err != nil {
		if errs.IsConflict(err) {
			return nil, err
		}
		return nil, errs.NewTransactionFailure(err)
	}

	if emitErr := s.emitter.EmitMergeCommitted(ctx, user.TenantID, outcome.DecisionID, req.MasterID, req.MergeIDs); emitErr != nil {
		log.WithError(emitErr).Warn("Failed to emit merge committed event")
	}

	log.WithFields(map[string]any{
		"decision_id":   outcome.DecisionID,
		"override_used": overrideUsed,
	}).Info("Merge committed")

	return &models.MergeResult{
		DecisionID:   outcome.DecisionID,
		Guardrails:   guardrails,
		OverrideUsed: overrideUsed,
	}, nil
}

// Revert reverses a committed merge decision: restores the absorbed entities'
// visibility, clears the merge annotations, and marks the decision reverted.
func (s *Service) Revert(ctx context.Context, user models.UserContext, decisionID string) error {
	ctx, span := tracing.StartSpan(ctx, "er.Service.Revert")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"decision_id": decisionID,
		"tenant_id":   user.TenantID,
		"user_id":     user.UserID,
	})

	if err := s.store.ExecuteRevert(ctx, user.TenantID, decisionID, user.UserID); err != nil {
		if errs.IsNotFound(err) {
			return err
		}
		return errs.NewTransactionFailure(err)
	}

	if emitErr := s.emitter.EmitMergeReverted(ctx, user.TenantID, decisionID, user.UserID); emitErr != nil {
		log.WithError(emitErr).Warn("Failed to emit merge reverted event")
	}

	log.Info("Merge reverted")
	return nil
}

// Explain scores two entities for review tooling. Authorization applies to
// reads too: labels above the actor's clearance deny the explanation.
func (s *Service) Explain(ctx context.Context, user models.UserContext, idA string, idB string) (*models.Explanation, error) {
	ctx, span := tracing.StartSpan(ctx, "er.Service.Explain")
	defer span.End()

	if idA == idB {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "explain requires two distinct entity ids")
	}

	ids := []string{idA, idB}
	entities, err := s.store.FetchEntities(ctx, user.TenantID, ids)
	if err != nil {
		return nil, err
	}
	if len(entities) != len(ids) {
		missing := missingIDs(ids, entities)
		return nil, errs.NewNotFound("entity", missing[0])
	}

	if err := s.authorizer.Authorize(user, entities); err != nil {
		return nil, err
	}

	explanation := s.explainer.Explain(entities[0], entities[1])
	return &explanation, nil
}

// GetDecision returns one decision record.
func (s *Service) GetDecision(ctx context.Context, user models.UserContext, decisionID string) (*models.ERDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "er.Service.GetDecision")
	defer span.End()

	return s.store.GetDecision(ctx, user.TenantID, decisionID)
}

func (s *Service) appendOverrideAudit(ctx context.Context, user models.UserContext, req models.MergeRequest, guardrails models.GuardrailResult, decisionID string, now time.Time) error {
	payload, err := json.Marshal(provenance.OverridePayload{
		DatasetID:      guardrails.DatasetID,
		Reason:         req.GuardrailOverrideReason,
		Precision:      guardrails.Metrics.Precision,
		Recall:         guardrails.Metrics.Recall,
		MinPrecision:   guardrails.Thresholds.MinPrecision,
		MinRecall:      guardrails.Thresholds.MinRecall,
		MatchThreshold: guardrails.Thresholds.MatchThreshold,
		MasterID:       req.MasterID,
		MergeIDs:       req.MergeIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize override payload: %w", err)
	}

	return s.ledger.AppendEntry(ctx, provenance.Entry{
		ID:         uuid.New().String(),
		TenantID:   user.TenantID,
		ActionType: provenance.ActionGuardrailOverride,
		ResourceID: decisionID,
		Actor:      user.UserID,
		Payload:    payload,
		CreatedAt:  now,
	})
}

func firstDuplicate(ids []string) (string, bool) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id, true
		}
		seen[id] = true
	}
	return "", false
}

func missingIDs(requested []string, found []*models.Entity) []string {
	present := make(map[string]bool, len(found))
	for _, e := range found {
		present[e.ID] = true
	}
	var missing []string
	for _, id := range requested {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
