package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/storage"
	"github.com/antaracrm/messaging-pipeline/internal/transport"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// PipelineService implements inbound event processing, campaign dispatch and
// delivery counter updates on top of the storage and transport layers.
type PipelineService struct {
	contactRepo      storage.ContactRepo
	conversationRepo storage.ConversationRepo
	messageRepo      storage.MessageRepo
	campaignRepo     storage.CampaignRepo
	segmentRepo      storage.SegmentRepo
	taskRepo         storage.TaskRepo
	forwardingRepo   storage.ForwardingRuleRepo

	chatSender        transport.ChatSender
	emailSender       transport.EmailSender
	campaignSubmitter transport.CampaignSubmitter

	automationWorker IAutomationWorker
	organizationID   string

	// sendLimiter enforces the mandatory gap between consecutive segment
	// sends: one token, refilled at the configured interval.
	sendLimiter *rate.Limiter
}

// NewPipelineService creates the pipeline service.
func NewPipelineService(
	contactRepo storage.ContactRepo,
	conversationRepo storage.ConversationRepo,
	messageRepo storage.MessageRepo,
	campaignRepo storage.CampaignRepo,
	segmentRepo storage.SegmentRepo,
	taskRepo storage.TaskRepo,
	forwardingRepo storage.ForwardingRuleRepo,
	chatSender transport.ChatSender,
	emailSender transport.EmailSender,
	campaignSubmitter transport.CampaignSubmitter,
	automationWorker IAutomationWorker,
	organizationID string,
	sendInterval time.Duration,
) *PipelineService {
	return &PipelineService{
		contactRepo:       contactRepo,
		conversationRepo:  conversationRepo,
		messageRepo:       messageRepo,
		campaignRepo:      campaignRepo,
		segmentRepo:       segmentRepo,
		taskRepo:          taskRepo,
		forwardingRepo:    forwardingRepo,
		chatSender:        chatSender,
		emailSender:       emailSender,
		campaignSubmitter: campaignSubmitter,
		automationWorker:  automationWorker,
		organizationID:    organizationID,
		sendLimiter:       rate.NewLimiter(rate.Every(sendInterval), 1),
	}
}

// ProcessInboundMessage handles one inbound chat message: resolve the sender
// to a contact and open conversation, persist the message, run the bot, and
// fire automations. Automation submission is fire-and-forget; its errors only
// get logged and never fail the event.
func (s *PipelineService) ProcessInboundMessage(ctx context.Context, payload model.InboundMessagePayload, metadata *model.LastMetadata) error {
	log := logger.FromContext(ctx)

	resolution, err := s.resolveEntities(ctx, payload.FromPhone, payload.DisplayName)
	if err != nil {
		// Store unavailable: the raw event stays on the stream for redelivery.
		return apperrors.NewRetryable(err, "entity resolution failed")
	}
	conversation := resolution.Conversation

	messageTimestamp := payload.Timestamp
	if messageTimestamp == 0 {
		messageTimestamp = utils.Now().Unix()
	}

	message := model.Message{
		ConversationID:    conversation.ID,
		Direction:         model.DirectionInbound,
		Content:           payload.Text,
		ProviderMessageID: payload.ProviderMessageID,
		Status:            model.StatusReceived,
		MessageTimestamp:  messageTimestamp,
	}
	if metadata != nil {
		message.LastMetadata = datatypes.JSON(utils.MustMarshalJSON(metadata))
	}
	if err := s.messageRepo.Save(ctx, message); err != nil {
		return apperrors.NewRetryable(err, "failed to persist inbound message")
	}

	if err := s.conversationRepo.TouchActivity(ctx, conversation.ID, utils.UnixToTime(messageTimestamp)); err != nil {
		// Activity timestamp is advisory; log and continue.
		log.Warn("Failed to touch conversation activity", zap.Error(err))
	}

	if err := s.runBot(ctx, resolution, payload.Text); err != nil {
		return err
	}

	if resolution.ContactCreated {
		s.fireAutomations(ctx, model.TriggerNewLead, resolution)
	}
	s.fireAutomations(ctx, model.TriggerMessageReceived, resolution)

	return nil
}

// ProcessStatusUpdate applies a provider delivery status to the referenced
// message. Status regressions and unknown messages are dropped with a log
// line; the webhook may deliver statuses out of order or for messages the
// pipeline never stored.
func (s *PipelineService) ProcessStatusUpdate(ctx context.Context, payload model.InboundStatusPayload, metadata *model.LastMetadata) error {
	log := logger.FromContext(ctx)

	var readAt *time.Time
	if payload.Status == model.StatusRead {
		at := utils.Now()
		if payload.Timestamp > 0 {
			at = utils.UnixToTime(payload.Timestamp)
		}
		readAt = &at
	}

	err := s.messageRepo.AdvanceStatus(ctx, payload.ProviderMessageID, payload.Status, readAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrStatusRegression):
		log.Info("Ignoring out-of-order status update",
			zap.String("provider_message_id", payload.ProviderMessageID),
			zap.String("status", payload.Status),
		)
		return nil
	case apperrors.IsNotFoundError(err):
		log.Warn("Status update for unknown message, dropping",
			zap.String("provider_message_id", payload.ProviderMessageID),
		)
		return nil
	default:
		return apperrors.NewRetryable(err, "failed to advance message status")
	}
}

// fireAutomations submits an automation trigger to the worker pool. The
// submission itself is best-effort: a full pool is logged, never propagated.
func (s *PipelineService) fireAutomations(ctx context.Context, trigger model.TriggerType, resolution *Resolution) {
	if s.automationWorker == nil {
		return
	}
	task := AutomationTaskData{
		Trigger:        trigger,
		ContactID:      resolution.Contact.ID,
		ConversationID: resolution.Conversation.ID,
		RequestID:      logger.RequestIDFromContext(ctx),
	}
	if err := s.automationWorker.Submit(task); err != nil {
		logger.FromContext(ctx).Error("Failed to submit automation task",
			zap.String("trigger", string(trigger)),
			zap.String("contact_id", resolution.Contact.ID),
			zap.Error(err),
		)
	}
}

// persistOutboundMessage records a bot- or automation-issued reply.
func (s *PipelineService) persistOutboundMessage(ctx context.Context, conversationID, providerMessageID, text string) error {
	return s.messageRepo.Save(ctx, model.Message{
		ConversationID:    conversationID,
		Direction:         model.DirectionOutbound,
		Content:           text,
		ProviderMessageID: providerMessageID,
		Status:            model.StatusSent,
		MessageTimestamp:  utils.Now().Unix(),
	})
}
