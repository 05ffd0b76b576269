package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// Resolution is the outcome of resolving an inbound sender to CRM entities.
type Resolution struct {
	Contact             *model.Contact
	Conversation        *model.Conversation
	ContactCreated      bool
	ConversationCreated bool
}

// resolveEntities maps a sender phone number to a contact and its open
// conversation, creating either when absent. Both inserts are idempotent
// upserts, so concurrent duplicate webhook deliveries converge on the same
// rows instead of racing a lookup-then-insert window.
func (s *PipelineService) resolveEntities(ctx context.Context, phone, displayName string) (*Resolution, error) {
	log := logger.FromContext(ctx)

	// displayName travels as-is: the upsert falls back to a default name for
	// new rows and skips the column entirely for existing ones, so an event
	// without a profile name never overwrites an operator-set display name.
	contact, contactCreated, err := s.contactRepo.UpsertByPhone(ctx, model.Contact{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		DisplayName: displayName,
		LeadSource:  model.LeadSourceWhatsApp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contact for %s: %w", phone, err)
	}

	conversation, conversationCreated, err := s.conversationRepo.CreateOpenIfAbsent(ctx, model.Conversation{
		ID:             uuid.NewString(),
		ContactID:      contact.ID,
		Channel:        model.ChannelWhatsApp,
		ChannelAddress: phone,
		BotActive:      true,
		WelcomeSent:    false,
		LastActivityAt: utils.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve open conversation for contact %s: %w", contact.ID, err)
	}

	if contactCreated {
		log.Info("Created contact from inbound message",
			zap.String("contact_id", contact.ID),
			zap.String("phone_number", phone),
		)
	}
	if conversationCreated {
		log.Info("Opened conversation",
			zap.String("conversation_id", conversation.ID),
			zap.String("contact_id", contact.ID),
		)
	}

	return &Resolution{
		Contact:             contact,
		Conversation:        conversation,
		ContactCreated:      contactCreated,
		ConversationCreated: conversationCreated,
	}, nil
}
