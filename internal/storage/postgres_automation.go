package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// FindActiveAutomationsByTrigger returns the active automations registered for
// a trigger type. An empty result is not an error; it means nothing fires.
func (r *PostgresRepo) FindActiveAutomationsByTrigger(ctx context.Context, trigger model.TriggerType) ([]model.Automation, error) {
	var automations []model.Automation

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("trigger_type = ? AND active = ?", trigger, true).
			Order("created_at ASC").
			Find(&automations)
		if result.Error != nil {
			return fmt.Errorf("%w: failed to list automations for trigger %s: %w", apperrors.ErrDatabase, trigger, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindActiveAutomationsByTrigger Query", operation)
	observer.ObserveDbOperationDuration("list", "automation", time.Since(startTime), readErr)

	if readErr != nil {
		logger.FromContext(ctx).Error("Failed to list automations after retries",
			zap.String("trigger", string(trigger)), zap.Error(readErr))
		return nil, readErr
	}

	return automations, nil
}
