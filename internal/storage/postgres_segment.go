package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// FindSegmentByID retrieves a segment by its primary key.
func (r *PostgresRepo) FindSegmentByID(ctx context.Context, id string) (*model.Segment, error) {
	var segment model.Segment

	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&segment)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: segment %s", apperrors.ErrNotFound, id)
			}
			return fmt.Errorf("%w: failed to find segment: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindSegmentByID Query", operation)
	observer.ObserveDbOperationDuration("find", "segment", time.Since(startTime), readErr)

	if readErr != nil {
		if !apperrors.IsNotFoundError(readErr) {
			logger.FromContext(ctx).Error("Failed to find segment after retries",
				zap.String("segment_id", id), zap.Error(readErr))
		}
		return nil, readErr
	}

	return &segment, nil
}
