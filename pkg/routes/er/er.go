// Package er exposes the entity resolution API: merge, revert, explain,
// decision lookup, and the candidate feed.
package er

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	erpkg "github.com/BrianCLong/summit-sub013/pkg/er"
	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/requestctx"
)

var validate = validator.New()

// HandlerConfig carries request defaults applied when the caller omits them.
type HandlerConfig struct {
	DefaultGuardrailDataset string
	DefaultCandidateLimit   int
}

// Handler handles entity resolution API endpoints
type Handler struct {
	service *erpkg.Service
	feed    erpkg.CandidateFeed
	cfg     HandlerConfig
	logger  ectologger.Logger
}

// NewHandler creates a new entity resolution handler
func NewHandler(service *erpkg.Service, feed erpkg.CandidateFeed, cfg HandlerConfig, logger ectologger.Logger) *Handler {
	return &Handler{
		service: service,
		feed:    feed,
		cfg:     cfg,
		logger:  logger,
	}
}

// Register registers the entity resolution routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/merge", h.Merge)
	g.POST("/decisions/:id/revert", h.Revert)
	g.POST("/explain", h.Explain)
	g.GET("/decisions/:id", h.GetDecision)
	g.GET("/candidates", h.Candidates)
}

func (h *Handler) requireService(c echo.Context) (*erpkg.Service, error) {
	// Resolve through the DI container first; the constructor-injected
	// service covers wiring done without a container.
	ctx := c.Request().Context()
	if _, svc, err := ectoinject.GetContext[*erpkg.Service](ctx); err == nil && svc != nil {
		return svc, nil
	}

	if h != nil && h.service != nil {
		return h.service, nil
	}
	return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "entity resolution service unavailable")
}

func userFromContext(c echo.Context) (models.UserContext, error) {
	ctx := c.Request().Context()

	user := models.UserContext{
		UserID:     requestctx.GetUserID(ctx),
		TenantID:   requestctx.GetTenantID(ctx),
		Clearances: requestctx.GetClearances(ctx),
	}
	if user.TenantID == "" {
		return models.UserContext{}, httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	if user.UserID == "" {
		return models.UserContext{}, httperror.NewHTTPError(http.StatusUnauthorized, "user_id is required")
	}
	return user, nil
}

// Merge absorbs the requested entities into a master entity
// @Summary Merge entities
// @Description Merge duplicate entities into a master under the guardrail gate
// @Tags EntityResolution
// @Accept json
// @Produce json
// @Param body body models.MergeRequest true "Merge request"
// @Success 200 {object} models.MergeResult
// @Failure 403 {object} httperror.HTTPError
// @Failure 404 {object} httperror.HTTPError
// @Failure 409 {object} httperror.HTTPError
// @Failure 422 {object} httperror.HTTPError
// @Router /api/v1/er/merge [post]
func (h *Handler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := userFromContext(c)
	if err != nil {
		return err
	}

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	var req models.MergeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for _, id := range req.MergeIDs {
		if id == req.MasterID {
			return httperror.NewHTTPError(http.StatusBadRequest, "master_id cannot appear in merge_ids")
		}
	}
	if req.GuardrailDatasetID == "" {
		req.GuardrailDatasetID = h.cfg.DefaultGuardrailDataset
	}

	result, err := svc.Merge(ctx, user, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Revert reverses a committed merge decision
// @Summary Revert a merge
// @Description Restore the absorbed entities of a committed merge decision
// @Tags EntityResolution
// @Produce json
// @Param id path string true "Decision ID"
// @Success 204
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/er/decisions/{id}/revert [post]
func (h *Handler) Revert(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := userFromContext(c)
	if err != nil {
		return err
	}

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	decisionID := c.Param("id")
	if decisionID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "decision id is required")
	}

	if err := svc.Revert(ctx, user, decisionID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ExplainRequest names the entity pair to score
type ExplainRequest struct {
	EntityA string `json:"entity_a" validate:"required"`
	EntityB string `json:"entity_b" validate:"required"`
}

// Explain scores an entity pair for review
// @Summary Explain a candidate pair
// @Description Score two entities with the matched evidence that produced it
// @Tags EntityResolution
// @Accept json
// @Produce json
// @Param body body ExplainRequest true "Entity pair"
// @Success 200 {object} models.Explanation
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/er/explain [post]
func (h *Handler) Explain(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := userFromContext(c)
	if err != nil {
		return err
	}

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	var req ExplainRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	explanation, err := svc.Explain(ctx, user, req.EntityA, req.EntityB)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, explanation)
}

// GetDecision returns one merge decision record
// @Summary Get a merge decision
// @Tags EntityResolution
// @Produce json
// @Param id path string true "Decision ID"
// @Success 200 {object} models.ERDecision
// @Failure 404 {object} httperror.HTTPError
// @Router /api/v1/er/decisions/{id} [get]
func (h *Handler) GetDecision(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := userFromContext(c)
	if err != nil {
		return err
	}

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	decisionID := c.Param("id")
	if decisionID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "decision id is required")
	}

	decision, err := svc.GetDecision(ctx, user, decisionID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, decision)
}

// Candidates lists probable-duplicate clusters for review
// @Summary List candidate clusters
// @Tags EntityResolution
// @Produce json
// @Param limit query int false "Maximum clusters (default 100)"
// @Success 200 {array} models.CandidateCluster
// @Router /api/v1/er/candidates [get]
func (h *Handler) Candidates(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := userFromContext(c)
	if err != nil {
		return err
	}

	if h.feed == nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "candidate feed unavailable")
	}

	limit := h.cfg.DefaultCandidateLimit
	if limit <= 0 {
		limit = 100
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	clusters, err := h.feed.FindCandidates(ctx, user.TenantID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, clusters)
}
