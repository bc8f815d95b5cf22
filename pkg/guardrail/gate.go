// Package guardrail wraps the external quality evaluator into a pass/fail
// gate for merges, including the audited override contract.
package guardrail

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/BrianCLong/summit-sub013/pkg/errs"
	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

// ScoreFunc is the pairwise scoring function the evaluator binds to its
// labeled fixture pairs.
type ScoreFunc func(a, b *models.Entity) float64

// Evaluator measures precision/recall of a scoring function against a named
// labeled dataset. Implementations may cache; every result returned here is
// treated as authoritative for the current request.
type Evaluator interface {
	Evaluate(ctx context.Context, datasetID string, score ScoreFunc) (models.GuardrailResult, error)
}

// Gate decides whether a merge may proceed.
type Gate struct {
	evaluator Evaluator
	score     ScoreFunc
	logger    ectologger.Logger
}

// NewGate creates a Gate binding the given scoring function to the evaluator.
func NewGate(evaluator Evaluator, score ScoreFunc, logger ectologger.Logger) *Gate {
	return &Gate{
		evaluator: evaluator,
		score:     score,
		logger:    logger,
	}
}

// Check evaluates the gate for one merge request.
//
// Verdicts:
//   - passed: (result, overrideUsed=false, nil)
//   - failed, no override reason: (result, false, *errs.GuardrailFailure);
//     the caller must not open any transaction
//   - failed, non-empty override reason: (result, overrideUsed=true, nil);
//     the caller must durably record the override audit entry before opening
//     the merge transaction
func (g *Gate) Check(ctx context.Context, datasetID string, overrideReason string) (models.GuardrailResult, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "guardrail.Gate.Check")
	defer span.End()

	result, err := g.evaluator.Evaluate(ctx, datasetID, g.score)
	if err != nil {
		return models.GuardrailResult{}, false, err
	}

	log := g.logger.WithContext(ctx).WithFields(map[string]any{
		"dataset_id": result.DatasetID,
		"precision":  result.Metrics.Precision,
		"recall":     result.Metrics.Recall,
		"passed":     result.Passed,
	})

	if result.Passed {
		log.Debug("Guardrail passed")
		return result, false, nil
	}

	if overrideReason == "" {
		log.Warn("Guardrail failed with no override reason")
		return result, false, errs.NewGuardrailFailure(result.DatasetID, result.Metrics.Precision, result.Metrics.Recall)
	}

	log.WithFields(map[string]any{"override_reason": overrideReason}).Warn("Guardrail failed; override requested")
	return result, true, nil
}
