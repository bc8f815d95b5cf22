package provenance

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/BrianCLong/summit-sub013/pkg/database"
	"github.com/BrianCLong/summit-sub013/pkg/provenance"
	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

// Repository is the append-only Postgres ledger. Rows are written once and
// never updated or deleted.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new provenance ledger repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AppendEntry writes a single ledger entry. The caller treats a nil return as
// confirmation the entry is durable.
func (r *Repository) AppendEntry(ctx context.Context, entry provenance.Entry) error {
	ctx, span := tracing.StartSpan(ctx, "provenance.Repository.AppendEntry")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("provenance_entries")
	sb.Cols("id", "tenant_id", "action_type", "resource_id", "actor", "payload", "created_at")
	sb.Values(entry.ID, entry.TenantID, entry.ActionType, entry.ResourceID, entry.Actor, []byte(entry.Payload), entry.CreatedAt)

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entry_id":    entry.ID,
			"action_type": entry.ActionType,
			"resource_id": entry.ResourceID,
		}).Error("Failed to append provenance entry")
		return fmt.Errorf("failed to append provenance entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entry_id": entry.ID,
		}).Error("Failed to commit provenance entry")
		return fmt.Errorf("failed to commit provenance entry: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entry_id":    entry.ID,
		"action_type": entry.ActionType,
	}).Debug("Appended provenance entry")
	return nil
}

// ListByResource retrieves ledger entries for a resource, newest first.
func (r *Repository) ListByResource(ctx context.Context, tenantID string, resourceID string, limit int) ([]provenance.Entry, error) {
	ctx, span := tracing.StartSpan(ctx, "provenance.Repository.ListByResource")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "action_type", "resource_id", "actor", "payload", "created_at")
	sb.From("provenance_entries")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("resource_id", resourceID),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var entries []provenance.Entry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list provenance entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list provenance entries")
	}

	return entries, nil
}
