package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/antaracrm/messaging-pipeline/internal/model"
)

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

// UpsertByPhone mocks the UpsertByPhone method
func (m *ContactRepoMock) UpsertByPhone(ctx context.Context, contact model.Contact) (*model.Contact, bool, error) {
	args := m.Called(ctx, contact)
	var result *model.Contact
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Contact)
	}
	return result, args.Bool(1), args.Error(2)
}

// FindByID mocks the FindByID method
func (m *ContactRepoMock) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	var result *model.Contact
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Contact)
	}
	return result, args.Error(1)
}

// FindByPhone mocks the FindByPhone method
func (m *ContactRepoMock) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	args := m.Called(ctx, phone)
	var result *model.Contact
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Contact)
	}
	return result, args.Error(1)
}

// ListBySegment mocks the ListBySegment method
func (m *ContactRepoMock) ListBySegment(ctx context.Context, segmentID string) ([]model.Contact, error) {
	args := m.Called(ctx, segmentID)
	var result []model.Contact
	if args.Get(0) != nil {
		result = args.Get(0).([]model.Contact)
	}
	return result, args.Error(1)
}

// Close mocks the Close method
func (m *ContactRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ConversationRepo Mock ---

// ConversationRepoMock mocks the ConversationRepo interface
type ConversationRepoMock struct {
	mock.Mock
}

// CreateOpenIfAbsent mocks the CreateOpenIfAbsent method
func (m *ConversationRepoMock) CreateOpenIfAbsent(ctx context.Context, conversation model.Conversation) (*model.Conversation, bool, error) {
	args := m.Called(ctx, conversation)
	var result *model.Conversation
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Conversation)
	}
	return result, args.Bool(1), args.Error(2)
}

// FindOpenByContact mocks the FindOpenByContact method
func (m *ConversationRepoMock) FindOpenByContact(ctx context.Context, contactID, channel string) (*model.Conversation, error) {
	args := m.Called(ctx, contactID, channel)
	var result *model.Conversation
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Conversation)
	}
	return result, args.Error(1)
}

// MarkWelcomeSent mocks the MarkWelcomeSent method
func (m *ConversationRepoMock) MarkWelcomeSent(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

// SetBotActive mocks the SetBotActive method
func (m *ConversationRepoMock) SetBotActive(ctx context.Context, conversationID string, active bool) error {
	args := m.Called(ctx, conversationID, active)
	return args.Error(0)
}

// TouchActivity mocks the TouchActivity method
func (m *ConversationRepoMock) TouchActivity(ctx context.Context, conversationID string, at time.Time) error {
	args := m.Called(ctx, conversationID, at)
	return args.Error(0)
}

// Close mocks the Close method
func (m *ConversationRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- MessageRepo Mock ---

// MessageRepoMock mocks the MessageRepo interface
type MessageRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *MessageRepoMock) Save(ctx context.Context, message model.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// FindByProviderID mocks the FindByProviderID method
func (m *MessageRepoMock) FindByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	args := m.Called(ctx, providerMessageID)
	var result *model.Message
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Message)
	}
	return result, args.Error(1)
}

// AdvanceStatus mocks the AdvanceStatus method
func (m *MessageRepoMock) AdvanceStatus(ctx context.Context, providerMessageID, status string, readAt *time.Time) error {
	args := m.Called(ctx, providerMessageID, status, readAt)
	return args.Error(0)
}

// Close mocks the Close method
func (m *MessageRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- AutomationRepo Mock ---

// AutomationRepoMock mocks the AutomationRepo interface
type AutomationRepoMock struct {
	mock.Mock
}

// FindActiveByTrigger mocks the FindActiveByTrigger method
func (m *AutomationRepoMock) FindActiveByTrigger(ctx context.Context, trigger model.TriggerType) ([]model.Automation, error) {
	args := m.Called(ctx, trigger)
	var result []model.Automation
	if args.Get(0) != nil {
		result = args.Get(0).([]model.Automation)
	}
	return result, args.Error(1)
}

// Close mocks the Close method
func (m *AutomationRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- CampaignRepo Mock ---

// CampaignRepoMock mocks the CampaignRepo interface
type CampaignRepoMock struct {
	mock.Mock
}

// Create mocks the Create method
func (m *CampaignRepoMock) Create(ctx context.Context, campaign model.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *CampaignRepoMock) FindByID(ctx context.Context, id string) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	var result *model.Campaign
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Campaign)
	}
	return result, args.Error(1)
}

// FindByProviderEmailID mocks the FindByProviderEmailID method
func (m *CampaignRepoMock) FindByProviderEmailID(ctx context.Context, providerEmailID string) (*model.Campaign, error) {
	args := m.Called(ctx, providerEmailID)
	var result *model.Campaign
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Campaign)
	}
	return result, args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method
func (m *CampaignRepoMock) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// SetProviderEmailID mocks the SetProviderEmailID method
func (m *CampaignRepoMock) SetProviderEmailID(ctx context.Context, id, providerEmailID string) error {
	args := m.Called(ctx, id, providerEmailID)
	return args.Error(0)
}

// SetTotalSent mocks the SetTotalSent method
func (m *CampaignRepoMock) SetTotalSent(ctx context.Context, id string, total int64) error {
	args := m.Called(ctx, id, total)
	return args.Error(0)
}

// IncrementCounter mocks the IncrementCounter method
func (m *CampaignRepoMock) IncrementCounter(ctx context.Context, id, column string) error {
	args := m.Called(ctx, id, column)
	return args.Error(0)
}

// ReadCounter mocks the ReadCounter method
func (m *CampaignRepoMock) ReadCounter(ctx context.Context, id, column string) (int64, error) {
	args := m.Called(ctx, id, column)
	return args.Get(0).(int64), args.Error(1)
}

// WriteCounter mocks the WriteCounter method
func (m *CampaignRepoMock) WriteCounter(ctx context.Context, id, column string, value int64) error {
	args := m.Called(ctx, id, column, value)
	return args.Error(0)
}

// FindDueScheduled mocks the FindDueScheduled method
func (m *CampaignRepoMock) FindDueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	args := m.Called(ctx, now)
	var result []model.Campaign
	if args.Get(0) != nil {
		result = args.Get(0).([]model.Campaign)
	}
	return result, args.Error(1)
}

// Close mocks the Close method
func (m *CampaignRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- SegmentRepo Mock ---

// SegmentRepoMock mocks the SegmentRepo interface
type SegmentRepoMock struct {
	mock.Mock
}

// FindByID mocks the FindByID method
func (m *SegmentRepoMock) FindByID(ctx context.Context, id string) (*model.Segment, error) {
	args := m.Called(ctx, id)
	var result *model.Segment
	if args.Get(0) != nil {
		result = args.Get(0).(*model.Segment)
	}
	return result, args.Error(1)
}

// Close mocks the Close method
func (m *SegmentRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- TaskRepo Mock ---

// TaskRepoMock mocks the TaskRepo interface
type TaskRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *TaskRepoMock) Save(ctx context.Context, task model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

// Close mocks the Close method
func (m *TaskRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ForwardingRuleRepo Mock ---

// ForwardingRuleRepoMock mocks the ForwardingRuleRepo interface
type ForwardingRuleRepoMock struct {
	mock.Mock
}

// FindActiveByAddress mocks the FindActiveByAddress method
func (m *ForwardingRuleRepoMock) FindActiveByAddress(ctx context.Context, address string) ([]model.ForwardingRule, error) {
	args := m.Called(ctx, address)
	var result []model.ForwardingRule
	if args.Get(0) != nil {
		result = args.Get(0).([]model.ForwardingRule)
	}
	return result, args.Error(1)
}

// Close mocks the Close method
func (m *ForwardingRuleRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- DeadLetterRepo Mock ---

// DeadLetterRepoMock mocks the DeadLetterRepo interface
type DeadLetterRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *DeadLetterRepoMock) Save(ctx context.Context, event model.DeadLetterEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Close mocks the Close method
func (m *DeadLetterRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
