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

// FindActiveForwardingRulesByAddress returns the active forwarding rules whose
// match address equals the inbound recipient address.
func (r *PostgresRepo) FindActiveForwardingRulesByAddress(ctx context.Context, address string) ([]model.ForwardingRule, error) {
	var rules []model.ForwardingRule

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("match_address = ? AND active = ?", address, true).
			Find(&rules)
		if result.Error != nil {
			return fmt.Errorf("%w: failed to list forwarding rules: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindActiveForwardingRulesByAddress Query", operation)
	observer.ObserveDbOperationDuration("list", "forwarding_rule", time.Since(startTime), readErr)

	if readErr != nil {
		logger.FromContext(ctx).Error("Failed to list forwarding rules after retries",
			zap.String("match_address", address), zap.Error(readErr))
		return nil, readErr
	}

	return rules, nil
}
