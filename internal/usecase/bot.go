package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

const welcomeMenuText = "Hi! Thanks for reaching out. Reply with a number:\n" +
	"1. Talk to an agent\n" +
	"2. Opening hours\n" +
	"3. Products and pricing"

const (
	handoffReplyText = "Got it, an agent will be with you shortly."
	hoursReplyText   = "We are available Monday to Friday, 8am to 6pm."
	infoReplyText    = "You can browse our full catalog at https://antaracrm.example/catalog. Reply 1 anytime to talk to an agent."
)

// menuOption is one entry of the fixed bot menu. Selections are matched by
// exact string comparison against the trimmed inbound text.
type menuOption struct {
	reply   string
	kind    string
	handoff bool
}

var menuOptions = map[string]menuOption{
	"1": {reply: handoffReplyText, kind: "handoff", handoff: true},
	"2": {reply: hoursReplyText, kind: "hours"},
	"3": {reply: infoReplyText, kind: "info"},
}

// runBot advances the conversational bot for one inbound text message.
// A chat transport failure on the welcome path is returned as retryable and
// leaves welcome_sent untouched, so the greeting is retried rather than
// silently marked sent.
func (s *PipelineService) runBot(ctx context.Context, resolution *Resolution, text string) error {
	conversation := resolution.Conversation
	log := logger.FromContext(ctx).With(zap.String("conversation_id", conversation.ID))

	switch conversation.BotState() {
	case model.BotStateAwaitingWelcome:
		return s.sendWelcome(ctx, resolution)
	case model.BotStateMenuActive:
		return s.handleMenuSelection(ctx, resolution, text)
	case model.BotStateHandedOff:
		// Human owns the conversation; the message was persisted, nothing to say.
		return nil
	default:
		log.Warn("Unknown bot state, skipping bot handling",
			zap.String("bot_state", string(conversation.BotState())))
		return nil
	}
}

// sendWelcome issues the greeting menu. welcome_sent only commits after the
// transport accepted the send; the inbound message that woke the bot is
// already persisted either way.
func (s *PipelineService) sendWelcome(ctx context.Context, resolution *Resolution) error {
	conversation := resolution.Conversation
	log := logger.FromContext(ctx)

	providerMessageID, err := s.chatSender.SendText(ctx, resolution.Contact.PhoneNumber, welcomeMenuText)
	if err != nil {
		return apperrors.NewRetryable(err, "failed to send welcome menu")
	}

	if err := s.persistOutboundMessage(ctx, conversation.ID, providerMessageID, welcomeMenuText); err != nil {
		return apperrors.NewRetryable(err, "failed to persist welcome message")
	}
	if err := s.conversationRepo.MarkWelcomeSent(ctx, conversation.ID); err != nil {
		return apperrors.NewRetryable(err, "failed to mark welcome as sent")
	}
	conversation.WelcomeSent = true

	observer.IncBotReply("welcome")
	log.Info("Welcome menu sent",
		zap.String("conversation_id", conversation.ID),
		zap.String("provider_message_id", providerMessageID),
	)
	return nil
}

// handleMenuSelection matches the inbound text against the option table.
// Unmatched text stays persisted for human review with no bot reply.
func (s *PipelineService) handleMenuSelection(ctx context.Context, resolution *Resolution, text string) error {
	conversation := resolution.Conversation
	log := logger.FromContext(ctx)

	option, ok := menuOptions[strings.TrimSpace(text)]
	if !ok {
		log.Debug("Inbound text did not match a menu option, leaving for human review",
			zap.String("conversation_id", conversation.ID))
		return nil
	}

	providerMessageID, err := s.chatSender.SendText(ctx, resolution.Contact.PhoneNumber, option.reply)
	if err != nil {
		return apperrors.NewRetryable(err, "failed to send menu reply")
	}
	if err := s.persistOutboundMessage(ctx, conversation.ID, providerMessageID, option.reply); err != nil {
		return apperrors.NewRetryable(err, "failed to persist menu reply")
	}

	if option.handoff {
		if err := s.conversationRepo.SetBotActive(ctx, conversation.ID, false); err != nil {
			return apperrors.NewRetryable(err, "failed to hand conversation off")
		}
		conversation.BotActive = false
		log.Info("Conversation handed off to a human operator",
			zap.String("conversation_id", conversation.ID))
	}

	observer.IncBotReply(option.kind)
	return nil
}
