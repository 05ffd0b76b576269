package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
)

func TestApplyEmailEvent_AtomicPath(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	campaign := &model.Campaign{ID: "camp-1", ProviderEmailID: "re-42"}
	m.campaignRepo.On("FindByProviderEmailID", mock.Anything, "re-42").Return(campaign, nil)
	m.campaignRepo.On("IncrementCounter", mock.Anything, "camp-1", "total_delivered").Return(nil)

	result, err := service.ApplyEmailEvent(ctx, model.EmailEventDelivered, "re-42")
	assert.NoError(t, err)
	assert.Equal(t, PathAtomic, result.Path)
	assert.Equal(t, "camp-1", result.CampaignID)
	assert.Equal(t, "total_delivered", result.Column)
	m.campaignRepo.AssertNotCalled(t, "ReadCounter", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyEmailEvent_DegradedFallback(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	campaign := &model.Campaign{ID: "camp-42", ProviderEmailID: "re-42"}
	m.campaignRepo.On("FindByProviderEmailID", mock.Anything, "re-42").Return(campaign, nil)
	m.campaignRepo.On("IncrementCounter", mock.Anything, "camp-42", "total_bounced").
		Return(errors.New("increment rpc unavailable"))
	m.campaignRepo.On("ReadCounter", mock.Anything, "camp-42", "total_bounced").Return(int64(5), nil)
	m.campaignRepo.On("WriteCounter", mock.Anything, "camp-42", "total_bounced", int64(6)).Return(nil)

	result, err := service.ApplyEmailEvent(ctx, model.EmailEventBounced, "re-42")
	assert.NoError(t, err)
	assert.Equal(t, PathDegraded, result.Path)
	m.campaignRepo.AssertExpectations(t)
}

func TestApplyEmailEvent_UnknownTypeDropped(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	result, err := service.ApplyEmailEvent(ctx, "email.unsubscribed", "re-42")
	assert.NoError(t, err)
	assert.Equal(t, PathDropped, result.Path)
	m.campaignRepo.AssertNotCalled(t, "FindByProviderEmailID", mock.Anything, mock.Anything)
}

func TestApplyEmailEvent_ReceivedNeverTouchesCounters(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	result, err := service.ApplyEmailEvent(ctx, model.EmailEventReceived, "re-42")
	assert.NoError(t, err)
	assert.Equal(t, PathDropped, result.Path)
	m.campaignRepo.AssertNotCalled(t, "IncrementCounter", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyEmailEvent_UnknownCampaignIsFatal(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	m.campaignRepo.On("FindByProviderEmailID", mock.Anything, "re-ghost").
		Return(nil, apperrors.ErrNotFound)

	result, err := service.ApplyEmailEvent(ctx, model.EmailEventOpened, "re-ghost")
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsFatal(err))
}

func TestApplyEmailEvent_FallbackWriteFailure(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	campaign := &model.Campaign{ID: "camp-1"}
	m.campaignRepo.On("FindByProviderEmailID", mock.Anything, "re-42").Return(campaign, nil)
	m.campaignRepo.On("IncrementCounter", mock.Anything, "camp-1", "total_opened").Return(errors.New("boom"))
	m.campaignRepo.On("ReadCounter", mock.Anything, "camp-1", "total_opened").Return(int64(0), errors.New("read failed"))

	result, err := service.ApplyEmailEvent(ctx, model.EmailEventOpened, "re-42")
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestForwardInboundEmail_RuleFailureIsolated(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	rules := []model.ForwardingRule{
		{ID: "rule-1", MatchAddress: "sales@crm.example", ForwardTo: "alice@corp.example", Active: true},
		{ID: "rule-2", MatchAddress: "sales@crm.example", ForwardTo: "bob@corp.example", Active: true},
	}
	m.forwardingRepo.On("FindActiveByAddress", mock.Anything, "sales@crm.example").Return(rules, nil)
	m.emailSender.On("Send", mock.Anything, []string{"alice@corp.example"}, "RFQ", "body").
		Return(errors.New("mailbox full"))
	m.emailSender.On("Send", mock.Anything, []string{"bob@corp.example"}, "RFQ", "body").Return(nil)

	err := service.ForwardInboundEmail(ctx, "sales@crm.example", "RFQ", "body")
	assert.Error(t, err)
	m.emailSender.AssertExpectations(t)
}

func TestForwardInboundEmail_NoRulesIsNoop(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	m.forwardingRepo.On("FindActiveByAddress", mock.Anything, "random@crm.example").
		Return([]model.ForwardingRule{}, nil)

	err := service.ForwardInboundEmail(ctx, "random@crm.example", "hi", "body")
	assert.NoError(t, err)
	m.emailSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
