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

// SaveTask inserts a task created by an automation action.
func (r *PostgresRepo) SaveTask(ctx context.Context, task model.Task) error {
	task.UpdatedAt = utils.Now()

	operation := func() error {
		if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveTask Commit", operation)
	observer.ObserveDbOperationDuration("insert", "task", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save task after retries",
			zap.String("contact_id", task.ContactID),
			zap.String("title", task.Title),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}
