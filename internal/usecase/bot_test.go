package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
)

func awaitingWelcomeResolution() *Resolution {
	return &Resolution{
		Contact: &model.Contact{ID: "contact-1", PhoneNumber: "+628111"},
		Conversation: &model.Conversation{
			ID: "conv-1", ContactID: "contact-1", Channel: model.ChannelWhatsApp,
			Status: model.ConversationOpen, BotActive: true, WelcomeSent: false,
		},
	}
}

func menuActiveResolution() *Resolution {
	r := awaitingWelcomeResolution()
	r.Conversation.WelcomeSent = true
	return r
}

func TestRunBot_SendsWelcomeAndCommitsFlag(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)
	resolution := awaitingWelcomeResolution()

	m.chatSender.On("SendText", mock.Anything, "+628111", welcomeMenuText).Return("wamid.w", nil)
	m.messageRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	m.conversationRepo.On("MarkWelcomeSent", mock.Anything, "conv-1").Return(nil)

	err := service.runBot(ctx, resolution, "hola")
	assert.NoError(t, err)
	assert.True(t, resolution.Conversation.WelcomeSent)

	saved := savedMessages(m.messageRepo)
	assert.Len(t, saved, 1)
	assert.Equal(t, model.DirectionOutbound, saved[0].Direction)
	assert.Equal(t, welcomeMenuText, saved[0].Content)
}

func TestRunBot_WelcomeTransportFailureLeavesFlagUntouched(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)
	resolution := awaitingWelcomeResolution()

	m.chatSender.On("SendText", mock.Anything, "+628111", welcomeMenuText).
		Return("", apperrors.NewRetryable(apperrors.ErrTransport, "gateway 503"))

	err := service.runBot(ctx, resolution, "hola")
	assert.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.False(t, resolution.Conversation.WelcomeSent)
	m.conversationRepo.AssertNotCalled(t, "MarkWelcomeSent", mock.Anything, mock.Anything)
	m.messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRunBot_MenuHandoffDisablesBot(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)
	resolution := menuActiveResolution()

	m.chatSender.On("SendText", mock.Anything, "+628111", handoffReplyText).Return("wamid.r", nil)
	m.messageRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	m.conversationRepo.On("SetBotActive", mock.Anything, "conv-1", false).Return(nil)

	err := service.runBot(ctx, resolution, " 1 ")
	assert.NoError(t, err)
	assert.False(t, resolution.Conversation.BotActive)
	m.conversationRepo.AssertExpectations(t)
}

func TestRunBot_MenuInfoOptionsStayActive(t *testing.T) {
	for option, reply := range map[string]string{"2": hoursReplyText, "3": infoReplyText} {
		service, m := newTestService(t)
		ctx := testContext(t)
		resolution := menuActiveResolution()

		m.chatSender.On("SendText", mock.Anything, "+628111", reply).Return("wamid.r", nil)
		m.messageRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		err := service.runBot(ctx, resolution, option)
		assert.NoError(t, err)
		assert.True(t, resolution.Conversation.BotActive)
		m.conversationRepo.AssertNotCalled(t, "SetBotActive", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestRunBot_UnmatchedTextIsSilent(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)
	resolution := menuActiveResolution()

	err := service.runBot(ctx, resolution, "can I talk to someone about pricing?")
	assert.NoError(t, err)
	m.chatSender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
	m.messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRunBot_HandedOffIsInert(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)
	resolution := menuActiveResolution()
	resolution.Conversation.BotActive = false

	err := service.runBot(ctx, resolution, "1")
	assert.NoError(t, err)
	m.chatSender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunBot_MenuReplyPersistFailureIsRetryable(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)
	resolution := menuActiveResolution()

	m.chatSender.On("SendText", mock.Anything, "+628111", hoursReplyText).Return("wamid.r", nil)
	m.messageRepo.On("Save", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	err := service.runBot(ctx, resolution, "2")
	assert.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}
