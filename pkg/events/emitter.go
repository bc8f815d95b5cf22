// Package events handles event emission for merge decision lifecycle changes
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/BrianCLong/summit-sub013/pkg/kafka"
	"github.com/BrianCLong/summit-sub013/pkg/tracing"
)

// Event types published on the decision topic.
const (
	EventMergeCommitted = "er.merge.committed"
	EventMergeReverted  = "er.merge.reverted"
)

// Emitter publishes decision lifecycle events
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitMergeCommitted emits an event for a committed merge decision
func (e *Emitter) EmitMergeCommitted(ctx context.Context, tenantID string, decisionID string, masterID string, mergeIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMergeCommitted")
	defer span.End()

	event := &kafka.DecisionEvent{
		EventType:  EventMergeCommitted,
		TenantID:   tenantID,
		DecisionID: decisionID,
		MasterID:   masterID,
		MergedIDs:  mergeIDs,
	}

	if err := e.producer.PublishDecisionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit er.merge.committed event")
		return err
	}

	return nil
}

// EmitMergeReverted emits an event for a reverted merge decision
func (e *Emitter) EmitMergeReverted(ctx context.Context, tenantID string, decisionID string, actor string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMergeReverted")
	defer span.End()

	event := &kafka.DecisionEvent{
		EventType:  EventMergeReverted,
		TenantID:   tenantID,
		DecisionID: decisionID,
		Actor:      actor,
	}

	if err := e.producer.PublishDecisionEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit er.merge.reverted event")
		return err
	}

	return nil
}
