package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

// datasetPayload is the labeled fixture set served by the evaluator service.
type datasetPayload struct {
	DatasetID  string                     `json:"dataset_id"`
	Thresholds models.GuardrailThresholds `json:"thresholds"`
	Pairs      []FixturePair              `json:"pairs"`
}

// FixturePair is one labeled example in an evaluation dataset.
type FixturePair struct {
	A     models.Entity `json:"a"`
	B     models.Entity `json:"b"`
	Match bool          `json:"match"`
}

// Client is an Evaluator backed by the external guardrail service. The
// service owns the labeled datasets and thresholds; the scoring function is
// bound locally against the fetched fixture pairs.
type Client struct {
	baseURL string
	http    *http.Client
	logger  ectologger.Logger
}

// ClientConfig holds evaluator client configuration.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates an evaluator client.
func NewClient(cfg ClientConfig, logger ectologger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Evaluate fetches the named dataset and measures the scoring function's
// precision and recall against its labeled pairs.
func (c *Client) Evaluate(ctx context.Context, datasetID string, score ScoreFunc) (models.GuardrailResult, error) {
	ctx, span := tracing.StartSpan(ctx, "guardrail.Client.Evaluate")
	defer span.End()

	dataset, err := c.fetchDataset(ctx, datasetID)
	if err != nil {
		return models.GuardrailResult{}, err
	}

	result := Measure(dataset.DatasetID, dataset.Thresholds, dataset.Pairs, score)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"dataset_id": datasetID,
		"pairs":      len(dataset.Pairs),
		"precision":  result.Metrics.Precision,
		"recall":     result.Metrics.Recall,
	}).Debug("Evaluated guardrail dataset")

	return result, nil
}

func (c *Client) fetchDataset(ctx context.Context, datasetID string) (*datasetPayload, error) {
	url := fmt.Sprintf("%s/api/v1/guardrails/datasets/%s", c.baseURL, datasetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build guardrail dataset request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guardrail dataset %q: %w", datasetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("guardrail dataset %q returned status %d", datasetID, resp.StatusCode)
	}

	var dataset datasetPayload
	if err := json.NewDecoder(resp.Body).Decode(&dataset); err != nil {
		return nil, fmt.Errorf("failed to decode guardrail dataset %q: %w", datasetID, err)
	}
	if dataset.DatasetID == "" {
		dataset.DatasetID = datasetID
	}
	return &dataset, nil
}

// Measure computes precision/recall of the scoring function over labeled
// pairs and applies the dataset thresholds. Exported so in-process evaluators
// and tests can reuse the exact gate arithmetic.
func Measure(datasetID string, thresholds models.GuardrailThresholds, pairs []FixturePair, score ScoreFunc) models.GuardrailResult {
	var truePos, falsePos, falseNeg float64

	for _, p := range pairs {
		a, b := p.A, p.B
		predicted := score(&a, &b) >= thresholds.MatchThreshold
		switch {
		case predicted && p.Match:
			truePos++
		case predicted && !p.Match:
			falsePos++
		case !predicted && p.Match:
			falseNeg++
		}
	}

	precision := 1.0
	if truePos+falsePos > 0 {
		precision = truePos / (truePos + falsePos)
	}
	recall := 1.0
	if truePos+falseNeg > 0 {
		recall = truePos / (truePos + falseNeg)
	}

	return models.GuardrailResult{
		DatasetID: datasetID,
		Passed:    precision >= thresholds.MinPrecision && recall >= thresholds.MinRecall,
		Metrics: models.GuardrailMetrics{
			Precision: precision,
			Recall:    recall,
		},
		Thresholds: thresholds,
	}
}
