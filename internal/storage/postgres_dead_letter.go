package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// SaveDeadLetterEvent persists an event the pipeline has given up on, so no
// inbound payload is ever silently dropped.
func (r *PostgresRepo) SaveDeadLetterEvent(ctx context.Context, event model.DeadLetterEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = utils.Now()
	}

	operation := func() error {
		if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveDeadLetterEvent Commit", operation)
	observer.ObserveDbOperationDuration("insert", "dead_letter_event", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save dead letter event after retries",
			zap.String("source_subject", event.SourceSubject),
			zap.Error(commitErr))
		return commitErr
	}

	observer.IncDeadLetterEvent(event.SourceSubject)
	return nil
}
