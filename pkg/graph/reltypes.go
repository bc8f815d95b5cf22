package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

// TypeRegistry is the allow-list of relationship types that may be spliced
// into replication queries. Cypher cannot parameterize relationship types, so
// every type read back from the graph is validated here before use. Types are
// seeded statically and refreshed from the database's schema metadata.
type TypeRegistry struct {
	client *Client
	logger ectologger.Logger

	mu    sync.RWMutex
	types map[string]struct{}
}

// NewTypeRegistry creates a registry seeded with the given relationship types.
func NewTypeRegistry(client *Client, logger ectologger.Logger, seed []string) *TypeRegistry {
	types := make(map[string]struct{}, len(seed))
	for _, t := range seed {
		if t != "" && t == sanitizeLabel(t) {
			types[t] = struct{}{}
		}
	}
	return &TypeRegistry{
		client: client,
		logger: logger,
		types:  types,
	}
}

// Allowed reports whether relType is a known relationship type. It also
// requires the name to survive sanitization unchanged, so an allowed type is
// always safe to splice.
func (r *TypeRegistry) Allowed(relType string) bool {
	if relType == "" || relType != sanitizeLabel(relType) {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[relType]
	return ok
}

// Refresh reloads the allow-list from the database's relationship type
// metadata. Seeded types are retained.
func (r *TypeRegistry) Refresh(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "graph.TypeRegistry.Refresh")
	defer span.End()

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType", nil)
		if err != nil {
			return nil, err
		}

		var types []string
		for res.Next(ctx) {
			if v, ok := res.Record().Get("relationshipType"); ok {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
		}
		return types, res.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to refresh relationship type registry")
		return fmt.Errorf("failed to refresh relationship types: %w", err)
	}

	types := result.([]string)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if t != "" && t == sanitizeLabel(t) {
			r.types[t] = struct{}{}
		}
	}
	r.logger.WithContext(ctx).WithFields(map[string]any{"type_count": len(r.types)}).Debug("Refreshed relationship type registry")
	return nil
}
