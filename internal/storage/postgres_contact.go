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

// UpsertByPhone inserts the contact keyed on its phone number, or refreshes the
// mutable columns of the existing row on conflict. The second return value
// reports whether a new row was created.
func (r *PostgresRepo) UpsertByPhone(ctx context.Context, contact model.Contact) (*model.Contact, bool, error) {
	if contact.PhoneNumber == "" {
		return nil, false, fmt.Errorf("%w: contact phone number is required", apperrors.ErrBadRequest)
	}

	// Insert and conflict-update paths are told apart by the timestamps:
	// a fresh row carries created_at == updated_at, a refreshed one keeps
	// its original created_at.
	now := utils.Now()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	// display_name joins the conflict-update set only when the caller supplied
	// one; an event without a profile name leaves the stored name alone. A
	// fresh row still needs something to show in the inbox.
	assignments := model.ContactConflictColumns()
	if contact.DisplayName != "" {
		assignments = append([]string{"display_name"}, assignments...)
	} else {
		contact.DisplayName = model.FallbackDisplayName(contact.PhoneNumber)
	}

	var created bool
	operation := func() error {
		created = false
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone_number"}},
			DoUpdates: clause.AssignmentColumns(assignments),
		}).Create(&contact)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		var row model.Contact
		if err := r.db.WithContext(ctx).Where("phone_number = ?", contact.PhoneNumber).First(&row).Error; err != nil {
			return fmt.Errorf("%w: failed to read back upserted contact: %w", apperrors.ErrDatabase, err)
		}
		created = row.CreatedAt.Equal(row.UpdatedAt)
		contact = row
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertContactByPhone Commit", operation)
	observer.ObserveDbOperationDuration("upsert", "contact", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert contact after retries",
			zap.String("phone_number", contact.PhoneNumber), zap.Error(commitErr))
		return nil, false, commitErr
	}

	return &contact, created, nil
}

// FindContactByID retrieves a contact by its primary key.
func (r *PostgresRepo) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact

	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, id)
			}
			return fmt.Errorf("%w: failed to find contact by id: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindContactByID Query", operation)
	observer.ObserveDbOperationDuration("find", "contact", time.Since(startTime), readErr)

	if readErr != nil {
		if !apperrors.IsNotFoundError(readErr) {
			logger.FromContext(ctx).Error("Failed to find contact by id after retries",
				zap.String("contact_id", id), zap.Error(readErr))
		}
		return nil, readErr
	}

	return &contact, nil
}

// FindContactByPhone retrieves a contact by phone number.
func (r *PostgresRepo) FindContactByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	var contact model.Contact

	operation := func() error {
		result := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact with phone %s", apperrors.ErrNotFound, phone)
			}
			return fmt.Errorf("%w: failed to find contact by phone: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "FindContactByPhone Query", operation)
	observer.ObserveDbOperationDuration("find", "contact", time.Since(startTime), readErr)

	if readErr != nil {
		if !apperrors.IsNotFoundError(readErr) {
			logger.FromContext(ctx).Error("Failed to find contact by phone after retries",
				zap.String("phone_number", phone), zap.Error(readErr))
		}
		return nil, readErr
	}

	return &contact, nil
}

// ListContactsBySegment returns all contacts belonging to the given segment.
// A segment flagged all_contacts matches every contact regardless of membership rows.
func (r *PostgresRepo) ListContactsBySegment(ctx context.Context, segmentID string) ([]model.Contact, error) {
	var segment model.Segment
	if err := r.db.WithContext(ctx).Where("id = ?", segmentID).First(&segment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: segment %s", apperrors.ErrNotFound, segmentID)
		}
		return nil, fmt.Errorf("%w: failed to load segment: %w", apperrors.ErrDatabase, err)
	}

	var contacts []model.Contact
	operation := func() error {
		query := r.db.WithContext(ctx).Model(&model.Contact{})
		if !segment.AllContacts {
			query = query.Joins("JOIN segment_members ON segment_members.contact_id = contacts.id").
				Where("segment_members.segment_id = ?", segmentID)
		}
		if err := query.Order("contacts.created_at ASC").Find(&contacts).Error; err != nil {
			return fmt.Errorf("%w: failed to list segment contacts: %w", apperrors.ErrDatabase, err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	readErr := retryableOperation(ctx, readPolicy, "ListContactsBySegment Query", operation)
	observer.ObserveDbOperationDuration("list", "contact", time.Since(startTime), readErr)

	if readErr != nil {
		logger.FromContext(ctx).Error("Failed to list contacts by segment after retries",
			zap.String("segment_id", segmentID), zap.Error(readErr))
		return nil, readErr
	}

	return contacts, nil
}
