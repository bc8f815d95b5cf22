package models

// GuardrailMetrics are the precision/recall measured by the external evaluator
// against a labeled dataset.
type GuardrailMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// GuardrailThresholds are the minimums the evaluator applied when deciding
// whether the gate passed.
type GuardrailThresholds struct {
	MinPrecision   float64 `json:"min_precision"`
	MinRecall      float64 `json:"min_recall"`
	MatchThreshold float64 `json:"match_threshold"`
}

// GuardrailResult is the verdict of the external quality evaluator for one
// evaluation dataset. Every call is treated as authoritative for the current
// request; caching is the evaluator's concern.
type GuardrailResult struct {
	DatasetID  string              `json:"dataset_id"`
	Passed     bool                `json:"passed"`
	Metrics    GuardrailMetrics    `json:"metrics"`
	Thresholds GuardrailThresholds `json:"thresholds"`
}
