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

// CreateCampaign inserts a new campaign row.
func (r *PostgresRepo) CreateCampaign(ctx context.Context, campaign model.Campaign) error {
	campaign.UpdatedAt = utils.Now()

	operation := func() error {
		if err := r.db.WithContext(ctx).Create(&campaign).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateCampaign Commit", operation)
	observer.ObserveDbOperationDuration("insert", "campaign", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to create campaign after retries",
			zap.String("campaign_id", campaign.ID), zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// FindCampaignByID retrieves a campaign by its primary key.
func (r *PostgresRepo) FindCampaignByID(ctx context.Context, id string) (*model.Campaign, error) {
	return r.findCampaign(ctx, "FindCampaignByID", "id = ?", id)
}

// FindCampaignByProviderEmailID retrieves the campaign linked to a provider
// email id, the key delivery events arrive under.
func (r *PostgresRepo) FindCampaignByProviderEmailID(ctx context.Context, providerEmailID string) (*model.Campaign, error) {
	return r.findCampaign(ctx, "FindCampaignByProviderEmailID", "provider_email_id = ?", providerEmailID)
}

func (r *PostgresRepo) findCampaign(ctx context.Context, opName, cond, value string) (*model.Campaign, error) {
	var campaign model.Campaign

	operation := func() error {
		result := r.db.WithContext(ctx).Where(cond, value).First(&campaign)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: campaign (%s %s)", apperrors.ErrNotFound, cond, value)
			}
			return fmt.Errorf("%w: failed to find campaign: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, opName+" Query", operation)
	observer.ObserveDbOperationDuration("find", "campaign", time.Since(startTime), readErr)

	if readErr != nil {
		if !apperrors.IsNotFoundError(readErr) {
			logger.FromContext(ctx).Error("Failed to find campaign after retries",
				zap.String("operation", opName), zap.Error(readErr))
		}
		return nil, readErr
	}

	return &campaign, nil
}

// UpdateCampaignStatus sets the campaign lifecycle status.
func (r *PostgresRepo) UpdateCampaignStatus(ctx context.Context, id, status string) error {
	return r.updateCampaignFields(ctx, "UpdateCampaignStatus", id, map[string]interface{}{
		"status":     status,
		"updated_at": utils.Now(),
	})
}

// SetCampaignProviderEmailID links a campaign to the email id the provider
// assigned on submission.
func (r *PostgresRepo) SetCampaignProviderEmailID(ctx context.Context, id, providerEmailID string) error {
	return r.updateCampaignFields(ctx, "SetCampaignProviderEmailID", id, map[string]interface{}{
		"provider_email_id": providerEmailID,
		"updated_at":        utils.Now(),
	})
}

// SetCampaignTotalSent records the recipient count at submission time.
func (r *PostgresRepo) SetCampaignTotalSent(ctx context.Context, id string, total int64) error {
	return r.updateCampaignFields(ctx, "SetCampaignTotalSent", id, map[string]interface{}{
		"total_sent": total,
		"updated_at": utils.Now(),
	})
}

func (r *PostgresRepo) updateCampaignFields(ctx context.Context, opName, id string, fields map[string]interface{}) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Campaign{}).Where("id = ?", id).Updates(fields)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: campaign %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, opName+" Commit", operation)
	observer.ObserveDbOperationDuration("update", "campaign", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update campaign after retries",
			zap.String("operation", opName),
			zap.String("campaign_id", id),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// IncrementCampaignCounter bumps one delivery counter column by one in a
// single server-side statement, so concurrent delivery events never lose
// increments. The column must be one of the known counter columns.
func (r *PostgresRepo) IncrementCampaignCounter(ctx context.Context, id, column string) error {
	if !model.IsCounterColumn(column) {
		return fmt.Errorf("%w: unknown counter column %q", apperrors.ErrBadRequest, column)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Campaign{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				column:       gorm.Expr(column+" + ?", 1),
				"updated_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: campaign %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "IncrementCampaignCounter Commit", operation)
	observer.ObserveDbOperationDuration("increment", "campaign", time.Since(startTime), commitErr)

	if commitErr != nil {
		if !apperrors.IsNotFoundError(commitErr) {
			logger.FromContext(ctx).Error("Failed to increment campaign counter after retries",
				zap.String("campaign_id", id),
				zap.String("column", column),
				zap.Error(commitErr))
		}
		return commitErr
	}

	return nil
}

// ReadCampaignCounter reads one counter column. Together with
// WriteCampaignCounter it backs the degraded read-modify-write fallback used
// when the atomic increment is unavailable.
func (r *PostgresRepo) ReadCampaignCounter(ctx context.Context, id, column string) (int64, error) {
	if !model.IsCounterColumn(column) {
		return 0, fmt.Errorf("%w: unknown counter column %q", apperrors.ErrBadRequest, column)
	}

	var value int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Campaign{}).
			Where("id = ?", id).
			Select(column).
			Scan(&value)
		if result.Error != nil {
			return fmt.Errorf("%w: failed to read counter %s: %w", apperrors.ErrDatabase, column, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: campaign %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "ReadCampaignCounter Query", operation)
	observer.ObserveDbOperationDuration("find", "campaign", time.Since(startTime), readErr)

	if readErr != nil {
		return 0, readErr
	}

	return value, nil
}

// WriteCampaignCounter overwrites one counter column.
func (r *PostgresRepo) WriteCampaignCounter(ctx context.Context, id, column string, value int64) error {
	if !model.IsCounterColumn(column) {
		return fmt.Errorf("%w: unknown counter column %q", apperrors.ErrBadRequest, column)
	}

	return r.updateCampaignFields(ctx, "WriteCampaignCounter", id, map[string]interface{}{
		column:       value,
		"updated_at": utils.Now(),
	})
}

// FindDueScheduledCampaigns returns scheduled campaigns whose scheduled_at
// has passed, oldest first.
func (r *PostgresRepo) FindDueScheduledCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	var campaigns []model.Campaign

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", model.CampaignScheduled, now).
			Order("scheduled_at ASC").
			Find(&campaigns)
		if result.Error != nil {
			return fmt.Errorf("%w: failed to list due scheduled campaigns: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindDueScheduledCampaigns Query", operation)
	observer.ObserveDbOperationDuration("list", "campaign", time.Since(startTime), readErr)

	if readErr != nil {
		logger.FromContext(ctx).Error("Failed to list due scheduled campaigns after retries", zap.Error(readErr))
		return nil, readErr
	}

	return campaigns, nil
}
