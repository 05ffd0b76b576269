package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// CreateOpenConversationIfAbsent inserts an open conversation for the contact
// and channel, unless one already exists. The partial unique index on
// (contact_id, channel) WHERE status = 'open' makes the insert race-safe; on
// conflict the existing open row is fetched and returned. The second return
// value reports whether a new row was created.
func (r *PostgresRepo) CreateOpenConversationIfAbsent(ctx context.Context, conversation model.Conversation) (*model.Conversation, bool, error) {
	if conversation.ContactID == "" || conversation.Channel == "" {
		return nil, false, fmt.Errorf("%w: conversation contact id and channel are required", apperrors.ErrBadRequest)
	}

	conversation.Status = model.ConversationOpen
	conversation.UpdatedAt = utils.Now()

	var created bool
	operation := func() error {
		created = false
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "contact_id"}, {Name: "channel"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Name: "status"}, Value: model.ConversationOpen},
			}},
			DoNothing: true,
		}).Create(&conversation)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected > 0 {
			created = true
			return nil
		}
		// Conflict: another open conversation already exists, fetch it.
		var existing model.Conversation
		err := r.db.WithContext(ctx).
			Where("contact_id = ? AND channel = ? AND status = ?", conversation.ContactID, conversation.Channel, model.ConversationOpen).
			First(&existing).Error
		if err != nil {
			return fmt.Errorf("%w: failed to fetch open conversation after conflict: %w", apperrors.ErrDatabase, err)
		}
		conversation = existing
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateOpenConversationIfAbsent Commit", operation)
	observer.ObserveDbOperationDuration("upsert", "conversation", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to create open conversation after retries",
			zap.String("contact_id", conversation.ContactID),
			zap.String("channel", conversation.Channel),
			zap.Error(commitErr))
		return nil, false, commitErr
	}

	return &conversation, created, nil
}

// FindOpenConversationByContact retrieves the open conversation for a contact
// on the given channel.
func (r *PostgresRepo) FindOpenConversationByContact(ctx context.Context, contactID, channel string) (*model.Conversation, error) {
	var conversation model.Conversation

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("contact_id = ? AND channel = ? AND status = ?", contactID, channel, model.ConversationOpen).
			First(&conversation)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: open conversation for contact %s on %s", apperrors.ErrNotFound, contactID, channel)
			}
			return fmt.Errorf("%w: failed to find open conversation: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindOpenConversationByContact Query", operation)
	observer.ObserveDbOperationDuration("find", "conversation", time.Since(startTime), readErr)

	if readErr != nil {
		if !apperrors.IsNotFoundError(readErr) {
			logger.FromContext(ctx).Error("Failed to find open conversation after retries",
				zap.String("contact_id", contactID), zap.Error(readErr))
		}
		return nil, readErr
	}

	return &conversation, nil
}

// MarkConversationWelcomeSent flips welcome_sent on a conversation. Called
// only after the welcome message has actually left through the send gateway.
func (r *PostgresRepo) MarkConversationWelcomeSent(ctx context.Context, conversationID string) error {
	return r.updateConversationFields(ctx, "MarkConversationWelcomeSent", conversationID, map[string]interface{}{
		"welcome_sent": true,
		"updated_at":   utils.Now(),
	})
}

// SetConversationBotActive toggles the bot on a conversation. Deactivating it
// hands the conversation to a human operator.
func (r *PostgresRepo) SetConversationBotActive(ctx context.Context, conversationID string, active bool) error {
	return r.updateConversationFields(ctx, "SetConversationBotActive", conversationID, map[string]interface{}{
		"bot_active": active,
		"updated_at": utils.Now(),
	})
}

// TouchConversationActivity bumps last_activity_at on a conversation.
func (r *PostgresRepo) TouchConversationActivity(ctx context.Context, conversationID string, at time.Time) error {
	return r.updateConversationFields(ctx, "TouchConversationActivity", conversationID, map[string]interface{}{
		"last_activity_at": at,
		"updated_at":       utils.Now(),
	})
}

func (r *PostgresRepo) updateConversationFields(ctx context.Context, opName, conversationID string, fields map[string]interface{}) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Conversation{}).
			Where("id = ?", conversationID).
			Updates(fields)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation %s", apperrors.ErrNotFound, conversationID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, opName+" Commit", operation)
	observer.ObserveDbOperationDuration("update", "conversation", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update conversation after retries",
			zap.String("operation", opName),
			zap.String("conversation_id", conversationID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}
