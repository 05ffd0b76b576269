package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// SaveMessage stores a message. Rows carrying a provider message id are
// upserted on it, so redelivered webhook events collapse into one row.
func (r *PostgresRepo) SaveMessage(ctx context.Context, message model.Message) error {
	message.UpdatedAt = utils.Now()

	operation := func() error {
		tx := r.db.WithContext(ctx)
		if message.ProviderMessageID != "" {
			tx = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "provider_message_id"}},
				DoUpdates: clause.AssignmentColumns(model.MessageConflictColumns()),
			})
		}
		result := tx.Create(&message)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveMessage Commit", operation)
	observer.ObserveDbOperationDuration("upsert", "message", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save message after retries",
			zap.String("provider_message_id", message.ProviderMessageID),
			zap.String("conversation_id", message.ConversationID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// FindMessageByProviderID retrieves a message by its provider message id.
func (r *PostgresRepo) FindMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	var message model.Message

	operation := func() error {
		result := r.db.WithContext(ctx).Where("provider_message_id = ?", providerMessageID).First(&message)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, providerMessageID)
			}
			return fmt.Errorf("%w: failed to find message by provider id: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindMessageByProviderID Query", operation)
	observer.ObserveDbOperationDuration("find", "message", time.Since(startTime), readErr)

	if readErr != nil {
		if !apperrors.IsNotFoundError(readErr) {
			logger.FromContext(ctx).Error("Failed to find message after retries",
				zap.String("provider_message_id", providerMessageID), zap.Error(readErr))
		}
		return nil, readErr
	}

	return &message, nil
}

// AdvanceMessageStatus applies a forward-only status transition to the message
// identified by its provider message id. The row is locked for the duration of
// the check so concurrent status events cannot interleave. A status that does
// not advance the stored one returns apperrors.ErrStatusRegression and leaves
// the row untouched; a repeat of the current status is a no-op.
func (r *PostgresRepo) AdvanceMessageStatus(ctx context.Context, providerMessageID, status string, readAt *time.Time) error {
	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					logger.FromContext(ctx).Error("Failed to rollback status transaction",
						zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		var existing model.Message
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_message_id = ?", providerMessageID).
			First(&existing)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: message %s for status update", apperrors.ErrNotFound, providerMessageID)
				return backoff.Permanent(txErr)
			}
			txErr = fmt.Errorf("%w: failed to lock message row: %w", apperrors.ErrDatabase, result.Error)
			return txErr
		}

		if existing.Status == status {
			// Duplicate status event, nothing to do.
			if err := tx.Commit().Error; err != nil {
				txErr = fmt.Errorf("%w: failed to commit transaction: %w", apperrors.ErrDatabase, err)
				return txErr
			}
			return nil
		}

		if !model.StatusAdvances(existing.Status, status) {
			txErr = fmt.Errorf("%w: message %s cannot move from %s to %s",
				apperrors.ErrStatusRegression, providerMessageID, existing.Status, status)
			return backoff.Permanent(txErr)
		}

		updateFields := map[string]interface{}{
			"status":     status,
			"updated_at": utils.Now(),
		}
		if status == model.StatusRead && readAt != nil {
			updateFields["read_at"] = *readAt
		}

		if err := tx.Model(&model.Message{}).Where("id = ?", existing.ID).Updates(updateFields).Error; err != nil {
			txErr = checkConstraintViolation(err)
			return txErr
		}

		if err := tx.Commit().Error; err != nil {
			txErr = fmt.Errorf("%w: failed to commit transaction: %w", apperrors.ErrDatabase, err)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AdvanceMessageStatus Commit", operation)
	observer.ObserveDbOperationDuration("update", "message", time.Since(startTime), commitErr)

	if commitErr != nil {
		if !errors.Is(commitErr, apperrors.ErrStatusRegression) && !apperrors.IsNotFoundError(commitErr) {
			logger.FromContext(ctx).Error("Failed to advance message status after retries",
				zap.String("provider_message_id", providerMessageID),
				zap.String("status", status),
				zap.Error(commitErr))
		}
		return commitErr
	}

	return nil
}
