package er

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/BrianCLong/summit-sub013/pkg/graph"
	"github.com/BrianCLong/summit-sub013/pkg/models"
	"github.com/BrianCLong/summit-sub013/pkg/normalizers"
	"github.com/BrianCLong/summit-sub013/pkg/signals"
	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

// CandidateFeed supplies clusters of probable-duplicate entities for review.
type CandidateFeed interface {
	FindCandidates(ctx context.Context, tenantID string, limit int) ([]models.CandidateCluster, error)
}

// GraphCandidateFeed groups visible entities by the phonetic code of their
// normalized name. It is a review aid, not a blocking strategy; anything more
// serious replaces this behind the same interface.
type GraphCandidateFeed struct {
	client *graph.Client
	logger ectologger.Logger
}

// NewGraphCandidateFeed creates a graph-backed candidate feed.
func NewGraphCandidateFeed(client *graph.Client, logger ectologger.Logger) *GraphCandidateFeed {
	return &GraphCandidateFeed{
		client: client,
		logger: logger,
	}
}

// FindCandidates returns up to limit clusters of entities sharing a canonical
// name key. Singleton groups are dropped.
func (f *GraphCandidateFeed) FindCandidates(ctx context.Context, tenantID string, limit int) ([]models.CandidateCluster, error) {
	ctx, span := tracing.StartSpan(ctx, "er.GraphCandidateFeed.FindCandidates")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	cypher := `
		MATCH (e:Entity {tenant_id: $tenant_id})
		WHERE e.name IS NOT NULL
		RETURN e.id AS id, e.name AS name
		LIMIT $scan_limit
	`

	result, err := f.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"tenant_id":  tenantID,
			"scan_limit": 10000,
		})
		if err != nil {
			return nil, err
		}

		byKey := make(map[string][]string)
		for res.Next(ctx) {
			record := res.Record()
			idVal, _ := record.Get("id")
			nameVal, _ := record.Get("name")
			id, _ := idVal.(string)
			name, _ := nameVal.(string)
			if id == "" || name == "" {
				continue
			}
			key := signals.Metaphone(normalizers.NormalizeName(name))
			if key == "" {
				continue
			}
			byKey[key] = append(byKey[key], id)
		}
		return byKey, res.Err()
	})
	if err != nil {
		f.logger.WithContext(ctx).WithError(err).Error("Failed to scan candidate entities")
		return nil, fmt.Errorf("failed to scan candidate entities: %w", err)
	}

	byKey := result.(map[string][]string)
	keys := make([]string, 0, len(byKey))
	for key, ids := range byKey {
		if len(ids) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var clusters []models.CandidateCluster
	for _, key := range keys {
		if len(clusters) >= limit {
			break
		}
		ids := byKey[key]
		sort.Strings(ids)
		clusters = append(clusters, models.CandidateCluster{
			CanonicalKey: key,
			EntityIDs:    ids,
		})
	}
	return clusters, nil
}
