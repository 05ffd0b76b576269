package webhook

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
)

func TestEmailEvents_DeliveredIncrementsCounter(t *testing.T) {
	server, m := newTestServer(t)

	m.campaignRepo.On("FindByProviderEmailID", mock.Anything, "prov-email-1").
		Return(&model.Campaign{ID: "camp-1"}, nil)
	m.campaignRepo.On("IncrementCounter", mock.Anything, "camp-1", "total_delivered").
		Return(nil)

	body := `{"type": "email.delivered", "data": {"email_id": "prov-email-1"}}`
	w := perform(server, http.MethodPost, "/v1/webhooks/email", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	m.campaignRepo.AssertExpectations(t)
	m.deadLetterRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEmailEvents_ReceivedGoesThroughForwardingRules(t *testing.T) {
	server, m := newTestServer(t)

	m.forwardingRepo.On("FindActiveByAddress", mock.Anything, "sales@acme.io").
		Return([]model.ForwardingRule{
			{ID: "rule-1", MatchAddress: "sales@acme.io", ForwardTo: "owner@acme.io", Active: true},
		}, nil)
	m.emailSender.On("Send", mock.Anything, []string{"owner@acme.io"}, "Pricing question", "Hi, how much?").
		Return(nil)

	body := `{
		"type": "email.received",
		"data": {
			"from": "prospect@example.com",
			"to": ["sales@acme.io"],
			"subject": "Pricing question",
			"text": "Hi, how much?"
		}
	}`
	w := perform(server, http.MethodPost, "/v1/webhooks/email", body)

	assert.Equal(t, http.StatusOK, w.Code)
	m.emailSender.AssertExpectations(t)
	// Inbound mail never touches campaign counters.
	m.campaignRepo.AssertNotCalled(t, "FindByProviderEmailID", mock.Anything, mock.Anything)
	m.campaignRepo.AssertNotCalled(t, "IncrementCounter", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmailEvents_UnknownCampaignIsDeadLetteredAndStill200(t *testing.T) {
	server, m := newTestServer(t)

	m.campaignRepo.On("FindByProviderEmailID", mock.Anything, "prov-gone").
		Return(nil, apperrors.ErrNotFound)
	m.deadLetterRepo.On("Save", mock.Anything, mock.MatchedBy(func(event model.DeadLetterEvent) bool {
		return event.SourceSubject == "webhook.email.email.opened" &&
			len(event.OriginalPayload) > 0
	})).Return(nil)

	body := `{"type": "email.opened", "data": {"email_id": "prov-gone"}}`
	w := perform(server, http.MethodPost, "/v1/webhooks/email", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	m.deadLetterRepo.AssertExpectations(t)
}

func TestEmailEvents_MalformedBodyStillAccepted(t *testing.T) {
	server, m := newTestServer(t)

	w := perform(server, http.MethodPost, "/v1/webhooks/email", `{"type": `)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	m.campaignRepo.AssertNotCalled(t, "FindByProviderEmailID", mock.Anything, mock.Anything)
	m.deadLetterRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
