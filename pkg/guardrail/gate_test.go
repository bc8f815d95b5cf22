package guardrail

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianCLong/summit-sub013/pkg/errs"
	"github.com/BrianCLong/summit-sub013/pkg/models"
)

type stubEvaluator struct {
	result models.GuardrailResult
	err    error

	gotDataset string
}

func (s *stubEvaluator) Evaluate(_ context.Context, datasetID string, _ ScoreFunc) (models.GuardrailResult, error) {
	s.gotDataset = datasetID
	return s.result, s.err
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func passingResult() models.GuardrailResult {
	return models.GuardrailResult{
		DatasetID: "golden-v3",
		Passed:    true,
		Metrics:   models.GuardrailMetrics{Precision: 0.97, Recall: 0.93},
		Thresholds: models.GuardrailThresholds{
			MinPrecision:   0.95,
			MinRecall:      0.90,
			MatchThreshold: 0.8,
		},
	}
}

func failingResult() models.GuardrailResult {
	r := passingResult()
	r.Passed = false
	r.Metrics = models.GuardrailMetrics{Precision: 0.80, Recall: 0.70}
	return r
}

func TestCheckPassed(t *testing.T) {
	eval := &stubEvaluator{result: passingResult()}
	gate := NewGate(eval, func(a, b *models.Entity) float64 { return 0 }, testLogger())

	result, overrideUsed, err := gate.Check(context.Background(), "golden-v3", "")

	require.NoError(t, err)
	assert.False(t, overrideUsed)
	assert.Equal(t, passingResult(), result)
	assert.Equal(t, "golden-v3", eval.gotDataset)
}

func TestCheckFailedNoOverride(t *testing.T) {
	eval := &stubEvaluator{result: failingResult()}
	gate := NewGate(eval, func(a, b *models.Entity) float64 { return 0 }, testLogger())

	result, overrideUsed, err := gate.Check(context.Background(), "golden-v3", "")

	require.Error(t, err)
	assert.True(t, errs.IsGuardrailFailure(err))
	assert.False(t, overrideUsed)

	var gf *errs.GuardrailFailure
	require.ErrorAs(t, err, &gf)
	assert.Equal(t, "golden-v3", gf.DatasetID)
	assert.Equal(t, 0.80, gf.Precision)
	assert.Equal(t, 0.70, gf.Recall)
	assert.Equal(t, failingResult(), result)
}

func TestCheckFailedWithOverride(t *testing.T) {
	eval := &stubEvaluator{result: failingResult()}
	gate := NewGate(eval, func(a, b *models.Entity) float64 { return 0 }, testLogger())

	result, overrideUsed, err := gate.Check(context.Background(), "golden-v3", "reviewed by analyst team")

	require.NoError(t, err)
	assert.True(t, overrideUsed)
	assert.Equal(t, failingResult(), result)
}

func TestCheckPassedIgnoresOverrideReason(t *testing.T) {
	eval := &stubEvaluator{result: passingResult()}
	gate := NewGate(eval, func(a, b *models.Entity) float64 { return 0 }, testLogger())

	_, overrideUsed, err := gate.Check(context.Background(), "golden-v3", "unnecessary reason")

	require.NoError(t, err)
	assert.False(t, overrideUsed)
}

func TestCheckEvaluatorError(t *testing.T) {
	wantErr := errors.New("evaluator unreachable")
	eval := &stubEvaluator{err: wantErr}
	gate := NewGate(eval, func(a, b *models.Entity) float64 { return 0 }, testLogger())

	_, overrideUsed, err := gate.Check(context.Background(), "golden-v3", "reason")

	require.ErrorIs(t, err, wantErr)
	assert.False(t, overrideUsed)
	assert.False(t, errs.IsGuardrailFailure(err))
}

func namedEntity(name string) models.Entity {
	return models.Entity{
		ID:       "e-" + name,
		TenantID: "t1",
		Labels:   []string{models.LabelEntity},
		Props:    map[string]any{models.PropName: name},
	}
}

func TestMeasure(t *testing.T) {
	thresholds := models.GuardrailThresholds{
		MinPrecision:   0.95,
		MinRecall:      0.90,
		MatchThreshold: 0.5,
	}

	// score by exact name equality: 1.0 on match, 0.0 otherwise
	score := func(a, b *models.Entity) float64 {
		if a.Name() == b.Name() {
			return 1.0
		}
		return 0.0
	}

	pairs := []FixturePair{
		{A: namedEntity("ada"), B: namedEntity("ada"), Match: true},     // TP
		{A: namedEntity("grace"), B: namedEntity("grace"), Match: true}, // TP
		{A: namedEntity("ada"), B: namedEntity("grace"), Match: false},  // TN
		{A: namedEntity("alan"), B: namedEntity("turing"), Match: true}, // FN
	}

	result := Measure("golden-v3", thresholds, pairs, score)

	assert.Equal(t, "golden-v3", result.DatasetID)
	assert.Equal(t, 1.0, result.Metrics.Precision)
	assert.InDelta(t, 2.0/3.0, result.Metrics.Recall, 1e-9)
	assert.False(t, result.Passed)
	assert.Equal(t, thresholds, result.Thresholds)
}

func TestMeasureFalsePositiveLowersPrecision(t *testing.T) {
	thresholds := models.GuardrailThresholds{
		MinPrecision:   0.95,
		MinRecall:      0.50,
		MatchThreshold: 0.5,
	}
	score := func(a, b *models.Entity) float64 { return 1.0 }

	pairs := []FixturePair{
		{A: namedEntity("ada"), B: namedEntity("ada"), Match: true},    // TP
		{A: namedEntity("ada"), B: namedEntity("grace"), Match: false}, // FP
	}

	result := Measure("golden-v3", thresholds, pairs, score)

	assert.Equal(t, 0.5, result.Metrics.Precision)
	assert.Equal(t, 1.0, result.Metrics.Recall)
	assert.False(t, result.Passed)
}

func TestMeasureEmptyDatasetPasses(t *testing.T) {
	thresholds := models.GuardrailThresholds{
		MinPrecision:   0.95,
		MinRecall:      0.90,
		MatchThreshold: 0.5,
	}

	// zero denominators read as perfect scores
	result := Measure("empty", thresholds, nil, func(a, b *models.Entity) float64 { return 0 })

	assert.Equal(t, 1.0, result.Metrics.Precision)
	assert.Equal(t, 1.0, result.Metrics.Recall)
	assert.True(t, result.Passed)
}

func TestMeasureThresholdBoundaryIsInclusive(t *testing.T) {
	thresholds := models.GuardrailThresholds{
		MinPrecision:   1.0,
		MinRecall:      1.0,
		MatchThreshold: 0.5,
	}
	score := func(a, b *models.Entity) float64 {
		if a.Name() == b.Name() {
			return 0.5 // exactly at the match threshold counts as predicted
		}
		return 0.0
	}

	pairs := []FixturePair{
		{A: namedEntity("ada"), B: namedEntity("ada"), Match: true},
	}

	result := Measure("golden-v3", thresholds, pairs, score)

	assert.Equal(t, 1.0, result.Metrics.Precision)
	assert.Equal(t, 1.0, result.Metrics.Recall)
	assert.True(t, result.Passed)
}
