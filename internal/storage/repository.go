package storage

import (
	"context"
	"time"

	"github.com/antaracrm/messaging-pipeline/internal/model"
)

// ContactRepo defines contact storage operations
type ContactRepo interface {
	// UpsertByPhone inserts the contact keyed on its phone number, or returns
	// the existing row on conflict. The second result reports whether a new
	// row was created.
	UpsertByPhone(ctx context.Context, contact model.Contact) (*model.Contact, bool, error)
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByPhone(ctx context.Context, phone string) (*model.Contact, error)
	// ListBySegment returns the contacts belonging to a segment in creation
	// order. A segment flagged all_contacts matches every contact.
	ListBySegment(ctx context.Context, segmentID string) ([]model.Contact, error)
	Close(ctx context.Context) error
}

// ConversationRepo defines conversation storage operations
type ConversationRepo interface {
	// CreateOpenIfAbsent inserts an open conversation unless the contact
	// already has one on the channel, in which case the existing row is
	// returned. The second result reports whether a new row was created.
	CreateOpenIfAbsent(ctx context.Context, conversation model.Conversation) (*model.Conversation, bool, error)
	FindOpenByContact(ctx context.Context, contactID, channel string) (*model.Conversation, error)
	MarkWelcomeSent(ctx context.Context, conversationID string) error
	SetBotActive(ctx context.Context, conversationID string, active bool) error
	TouchActivity(ctx context.Context, conversationID string, at time.Time) error
	Close(ctx context.Context) error
}

// MessageRepo defines message storage operations
type MessageRepo interface {
	// Save upserts keyed on the provider message id, making duplicate webhook
	// deliveries idempotent.
	Save(ctx context.Context, message model.Message) error
	FindByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error)
	// AdvanceStatus applies a forward-only status transition; a regressing
	// status returns apperrors.ErrStatusRegression and leaves the row untouched.
	AdvanceStatus(ctx context.Context, providerMessageID, status string, readAt *time.Time) error
	Close(ctx context.Context) error
}

// AutomationRepo defines automation storage operations (read-only to the pipeline)
type AutomationRepo interface {
	FindActiveByTrigger(ctx context.Context, trigger model.TriggerType) ([]model.Automation, error)
	Close(ctx context.Context) error
}

// CampaignRepo defines campaign storage operations
type CampaignRepo interface {
	Create(ctx context.Context, campaign model.Campaign) error
	FindByID(ctx context.Context, id string) (*model.Campaign, error)
	FindByProviderEmailID(ctx context.Context, providerEmailID string) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, id, status string) error
	SetProviderEmailID(ctx context.Context, id, providerEmailID string) error
	SetTotalSent(ctx context.Context, id string, total int64) error
	// IncrementCounter is the atomic primary path: a single-statement
	// server-side increment of one counter column.
	IncrementCounter(ctx context.Context, id, column string) error
	// ReadCounter / WriteCounter back the non-atomic fallback path.
	ReadCounter(ctx context.Context, id, column string) (int64, error)
	WriteCounter(ctx context.Context, id, column string, value int64) error
	// FindDueScheduled returns scheduled campaigns whose scheduled_at has passed.
	FindDueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error)
	Close(ctx context.Context) error
}

// SegmentRepo defines segment storage operations (read-only to the dispatcher)
type SegmentRepo interface {
	FindByID(ctx context.Context, id string) (*model.Segment, error)
	Close(ctx context.Context) error
}

// TaskRepo defines task storage operations
type TaskRepo interface {
	Save(ctx context.Context, task model.Task) error
	Close(ctx context.Context) error
}

// ForwardingRuleRepo defines forwarding rule lookups for inbound email events
type ForwardingRuleRepo interface {
	FindActiveByAddress(ctx context.Context, address string) ([]model.ForwardingRule, error)
	Close(ctx context.Context) error
}

// DeadLetterRepo persists events the pipeline has given up on
type DeadLetterRepo interface {
	Save(ctx context.Context, event model.DeadLetterEvent) error
	Close(ctx context.Context) error
}
