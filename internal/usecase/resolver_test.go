package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/antaracrm/messaging-pipeline/internal/model"
)

func TestResolveEntities_EmptyNamePassedThroughToUpsert(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	// The storage layer decides what to do with a missing name: default it
	// for new rows, keep the stored one for existing rows. The resolver must
	// not synthesize a name of its own.
	m.contactRepo.On("UpsertByPhone", mock.Anything, mock.MatchedBy(func(contact model.Contact) bool {
		return contact.PhoneNumber == "+573001112233" &&
			contact.DisplayName == "" &&
			contact.LeadSource == model.LeadSourceWhatsApp
	})).Return(&model.Contact{ID: "contact-1", PhoneNumber: "+573001112233"}, true, nil)

	m.conversationRepo.On("CreateOpenIfAbsent", mock.Anything, mock.MatchedBy(func(conversation model.Conversation) bool {
		return conversation.ContactID == "contact-1" &&
			conversation.Channel == model.ChannelWhatsApp &&
			conversation.BotActive && !conversation.WelcomeSent
	})).Return(&model.Conversation{ID: "conv-1", ContactID: "contact-1"}, true, nil)

	resolution, err := service.resolveEntities(ctx, "+573001112233", "")
	assert.NoError(t, err)
	assert.True(t, resolution.ContactCreated)
	assert.True(t, resolution.ConversationCreated)
	assert.Equal(t, "contact-1", resolution.Contact.ID)
	assert.Equal(t, "conv-1", resolution.Conversation.ID)
}

func TestResolveEntities_KeepsProvidedDisplayName(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	m.contactRepo.On("UpsertByPhone", mock.Anything, mock.MatchedBy(func(contact model.Contact) bool {
		return contact.DisplayName == "Ada Lovelace"
	})).Return(&model.Contact{ID: "contact-1"}, false, nil)
	m.conversationRepo.On("CreateOpenIfAbsent", mock.Anything, mock.Anything).
		Return(&model.Conversation{ID: "conv-1"}, false, nil)

	resolution, err := service.resolveEntities(ctx, "+573001112233", "Ada Lovelace")
	assert.NoError(t, err)
	assert.False(t, resolution.ContactCreated)
	assert.False(t, resolution.ConversationCreated)
}
