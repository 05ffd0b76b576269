package storage

import (
	"context"
	"time"

	"github.com/antaracrm/messaging-pipeline/internal/model"
)

// ContactRepoAdapter adapts the PostgresRepo to the ContactRepo interface
type ContactRepoAdapter struct {
	postgres *PostgresRepo
}

// NewContactRepoAdapter creates a new adapter for contact operations
func NewContactRepoAdapter(postgres *PostgresRepo) ContactRepo {
	return &ContactRepoAdapter{postgres: postgres}
}

func (a *ContactRepoAdapter) UpsertByPhone(ctx context.Context, contact model.Contact) (*model.Contact, bool, error) {
	return a.postgres.UpsertByPhone(ctx, contact)
}

func (a *ContactRepoAdapter) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	return a.postgres.FindContactByID(ctx, id)
}

func (a *ContactRepoAdapter) FindByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	return a.postgres.FindContactByPhone(ctx, phone)
}

func (a *ContactRepoAdapter) ListBySegment(ctx context.Context, segmentID string) ([]model.Contact, error) {
	return a.postgres.ListContactsBySegment(ctx, segmentID)
}

func (a *ContactRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ConversationRepoAdapter adapts the PostgresRepo to the ConversationRepo interface
type ConversationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewConversationRepoAdapter creates a new adapter for conversation operations
func NewConversationRepoAdapter(postgres *PostgresRepo) ConversationRepo {
	return &ConversationRepoAdapter{postgres: postgres}
}

func (a *ConversationRepoAdapter) CreateOpenIfAbsent(ctx context.Context, conversation model.Conversation) (*model.Conversation, bool, error) {
	return a.postgres.CreateOpenConversationIfAbsent(ctx, conversation)
}

func (a *ConversationRepoAdapter) FindOpenByContact(ctx context.Context, contactID, channel string) (*model.Conversation, error) {
	return a.postgres.FindOpenConversationByContact(ctx, contactID, channel)
}

func (a *ConversationRepoAdapter) MarkWelcomeSent(ctx context.Context, conversationID string) error {
	return a.postgres.MarkConversationWelcomeSent(ctx, conversationID)
}

func (a *ConversationRepoAdapter) SetBotActive(ctx context.Context, conversationID string, active bool) error {
	return a.postgres.SetConversationBotActive(ctx, conversationID, active)
}

func (a *ConversationRepoAdapter) TouchActivity(ctx context.Context, conversationID string, at time.Time) error {
	return a.postgres.TouchConversationActivity(ctx, conversationID, at)
}

func (a *ConversationRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// MessageRepoAdapter adapts the PostgresRepo to the MessageRepo interface
type MessageRepoAdapter struct {
	postgres *PostgresRepo
}

// NewMessageRepoAdapter creates a new adapter for message operations
func NewMessageRepoAdapter(postgres *PostgresRepo) MessageRepo {
	return &MessageRepoAdapter{postgres: postgres}
}

func (a *MessageRepoAdapter) Save(ctx context.Context, message model.Message) error {
	return a.postgres.SaveMessage(ctx, message)
}

func (a *MessageRepoAdapter) FindByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	return a.postgres.FindMessageByProviderID(ctx, providerMessageID)
}

func (a *MessageRepoAdapter) AdvanceStatus(ctx context.Context, providerMessageID, status string, readAt *time.Time) error {
	return a.postgres.AdvanceMessageStatus(ctx, providerMessageID, status, readAt)
}

func (a *MessageRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// AutomationRepoAdapter adapts the PostgresRepo to the AutomationRepo interface
type AutomationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewAutomationRepoAdapter creates a new adapter for automation lookups
func NewAutomationRepoAdapter(postgres *PostgresRepo) AutomationRepo {
	return &AutomationRepoAdapter{postgres: postgres}
}

func (a *AutomationRepoAdapter) FindActiveByTrigger(ctx context.Context, trigger model.TriggerType) ([]model.Automation, error) {
	return a.postgres.FindActiveAutomationsByTrigger(ctx, trigger)
}

func (a *AutomationRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// CampaignRepoAdapter adapts the PostgresRepo to the CampaignRepo interface
type CampaignRepoAdapter struct {
	postgres *PostgresRepo
}

// NewCampaignRepoAdapter creates a new adapter for campaign operations
func NewCampaignRepoAdapter(postgres *PostgresRepo) CampaignRepo {
	return &CampaignRepoAdapter{postgres: postgres}
}

func (a *CampaignRepoAdapter) Create(ctx context.Context, campaign model.Campaign) error {
	return a.postgres.CreateCampaign(ctx, campaign)
}

func (a *CampaignRepoAdapter) FindByID(ctx context.Context, id string) (*model.Campaign, error) {
	return a.postgres.FindCampaignByID(ctx, id)
}

func (a *CampaignRepoAdapter) FindByProviderEmailID(ctx context.Context, providerEmailID string) (*model.Campaign, error) {
	return a.postgres.FindCampaignByProviderEmailID(ctx, providerEmailID)
}

func (a *CampaignRepoAdapter) UpdateStatus(ctx context.Context, id, status string) error {
	return a.postgres.UpdateCampaignStatus(ctx, id, status)
}

func (a *CampaignRepoAdapter) SetProviderEmailID(ctx context.Context, id, providerEmailID string) error {
	return a.postgres.SetCampaignProviderEmailID(ctx, id, providerEmailID)
}

func (a *CampaignRepoAdapter) SetTotalSent(ctx context.Context, id string, total int64) error {
	return a.postgres.SetCampaignTotalSent(ctx, id, total)
}

func (a *CampaignRepoAdapter) IncrementCounter(ctx context.Context, id, column string) error {
	return a.postgres.IncrementCampaignCounter(ctx, id, column)
}

func (a *CampaignRepoAdapter) ReadCounter(ctx context.Context, id, column string) (int64, error) {
	return a.postgres.ReadCampaignCounter(ctx, id, column)
}

func (a *CampaignRepoAdapter) WriteCounter(ctx context.Context, id, column string, value int64) error {
	return a.postgres.WriteCampaignCounter(ctx, id, column, value)
}

func (a *CampaignRepoAdapter) FindDueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	return a.postgres.FindDueScheduledCampaigns(ctx, now)
}

func (a *CampaignRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// SegmentRepoAdapter adapts the PostgresRepo to the SegmentRepo interface
type SegmentRepoAdapter struct {
	postgres *PostgresRepo
}

// NewSegmentRepoAdapter creates a new adapter for segment lookups
func NewSegmentRepoAdapter(postgres *PostgresRepo) SegmentRepo {
	return &SegmentRepoAdapter{postgres: postgres}
}

func (a *SegmentRepoAdapter) FindByID(ctx context.Context, id string) (*model.Segment, error) {
	return a.postgres.FindSegmentByID(ctx, id)
}

func (a *SegmentRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// TaskRepoAdapter adapts the PostgresRepo to the TaskRepo interface
type TaskRepoAdapter struct {
	postgres *PostgresRepo
}

// NewTaskRepoAdapter creates a new adapter for task persistence
func NewTaskRepoAdapter(postgres *PostgresRepo) TaskRepo {
	return &TaskRepoAdapter{postgres: postgres}
}

func (a *TaskRepoAdapter) Save(ctx context.Context, task model.Task) error {
	return a.postgres.SaveTask(ctx, task)
}

func (a *TaskRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ForwardingRuleRepoAdapter adapts the PostgresRepo to the ForwardingRuleRepo interface
type ForwardingRuleRepoAdapter struct {
	postgres *PostgresRepo
}

// NewForwardingRuleRepoAdapter creates a new adapter for forwarding rule lookups
func NewForwardingRuleRepoAdapter(postgres *PostgresRepo) ForwardingRuleRepo {
	return &ForwardingRuleRepoAdapter{postgres: postgres}
}

func (a *ForwardingRuleRepoAdapter) FindActiveByAddress(ctx context.Context, address string) ([]model.ForwardingRule, error) {
	return a.postgres.FindActiveForwardingRulesByAddress(ctx, address)
}

func (a *ForwardingRuleRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// DeadLetterRepoAdapter adapts the PostgresRepo to the DeadLetterRepo interface
type DeadLetterRepoAdapter struct {
	postgres *PostgresRepo
}

// NewDeadLetterRepoAdapter creates a new adapter for dead letter persistence
func NewDeadLetterRepoAdapter(postgres *PostgresRepo) DeadLetterRepo {
	return &DeadLetterRepoAdapter{postgres: postgres}
}

func (a *DeadLetterRepoAdapter) Save(ctx context.Context, event model.DeadLetterEvent) error {
	return a.postgres.SaveDeadLetterEvent(ctx, event)
}

func (a *DeadLetterRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Compile-time checks that the adapters satisfy their interfaces
var (
	_ ContactRepo        = (*ContactRepoAdapter)(nil)
	_ ConversationRepo   = (*ConversationRepoAdapter)(nil)
	_ MessageRepo        = (*MessageRepoAdapter)(nil)
	_ AutomationRepo     = (*AutomationRepoAdapter)(nil)
	_ CampaignRepo       = (*CampaignRepoAdapter)(nil)
	_ SegmentRepo        = (*SegmentRepoAdapter)(nil)
	_ TaskRepo           = (*TaskRepoAdapter)(nil)
	_ ForwardingRuleRepo = (*ForwardingRuleRepoAdapter)(nil)
	_ DeadLetterRepo     = (*DeadLetterRepoAdapter)(nil)
)
