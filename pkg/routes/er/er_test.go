package er

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	erpkg "github.com/BrianCLong/summit-sub013/pkg/er"
	"github.com/BrianCLong/summit-sub013/pkg/graph"
	"github.com/BrianCLong/summit-sub013/pkg/matching"
	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/provenance"
	"github.com/BrianCLong/summit-sub013/pkg/requestctx"
)

type diStore struct {
	entities map[string]*models.Entity
	plans    []graph.MergePlan
}

func (s *diStore) FetchEntities(_ context.Context, _ string, ids []string) ([]*models.Entity, error) {
	seen := make(map[string]bool, len(ids))
	var found []*models.Entity
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := s.entities[id]; ok {
			found = append(found, e)
		}
	}
	return found, nil
}

func (s *diStore) ExecuteMerge(_ context.Context, plan graph.MergePlan) (*graph.MergeOutcome, error) {
	s.plans = append(s.plans, plan)
	return &graph.MergeOutcome{DecisionID: plan.DecisionID}, nil
}

func (s *diStore) ExecuteRevert(context.Context, string, string, string) error { return nil }

func (s *diStore) GetDecision(_ context.Context, _ string, id string) (*models.ERDecision, error) {
	return &models.ERDecision{ID: id}, nil
}

type diGate struct{}

func (diGate) Check(_ context.Context, datasetID string, _ string) (models.GuardrailResult, bool, error) {
	return models.GuardrailResult{DatasetID: datasetID, Passed: true}, false, nil
}

type diLedger struct{}

func (diLedger) AppendEntry(context.Context, provenance.Entry) error { return nil }

type diAuthorizer struct{}

func (diAuthorizer) Authorize(models.UserContext, []*models.Entity) error { return nil }

type diEmitter struct{}

func (diEmitter) EmitMergeCommitted(context.Context, string, string, string, []string) error {
	return nil
}

func (diEmitter) EmitMergeReverted(context.Context, string, string, string) error { return nil }

func TestMergeResolvesServiceThroughContainer(t *testing.T) {
	container, err := ectoinject.NewDIDefaultContainer()
	require.NoError(t, err)

	store := &diStore{entities: map[string]*models.Entity{
		"m1": {ID: "m1", TenantID: "t1", Labels: []string{models.LabelEntity}, Props: map[string]any{"name": "Ada"}},
		"e2": {ID: "e2", TenantID: "t1", Labels: []string{models.LabelEntity}, Props: map[string]any{"name": "Ada"}},
	}}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	svc := erpkg.NewService(store, diGate{}, diLedger{}, diAuthorizer{}, matching.NewExplainer(), diEmitter{}, logger)
	require.NoError(t, ectoinject.RegisterInstance[*erpkg.Service](container, svc))

	// No service on the handler: resolution has to come from the container.
	h := NewHandler(nil, nil, HandlerConfig{}, logger)

	body := `{"master_id":"m1","merge_ids":["e2"],"rationale":"same person","guardrail_dataset_id":"golden-set"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/er/merge", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	ctx := requestctx.SetTenantID(req.Context(), "t1")
	ctx = requestctx.SetUserID(ctx, "analyst-7")
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, h.Merge(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var result models.MergeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.DecisionID)

	require.Len(t, store.plans, 1)
	assert.Equal(t, "m1", store.plans[0].MasterID)
	assert.Equal(t, []string{"e2"}, store.plans[0].MergeIDs)
	assert.Equal(t, "t1", store.plans[0].TenantID)
}
