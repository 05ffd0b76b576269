package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/antaracrm/messaging-pipeline/internal/transport"
)

// ChatSenderMock mocks the ChatSender interface
type ChatSenderMock struct {
	mock.Mock
}

// SendText mocks the SendText method
func (m *ChatSenderMock) SendText(ctx context.Context, to, text string) (string, error) {
	args := m.Called(ctx, to, text)
	return args.String(0), args.Error(1)
}

// EmailSenderMock mocks the EmailSender interface
type EmailSenderMock struct {
	mock.Mock
}

// Send mocks the Send method
func (m *EmailSenderMock) Send(ctx context.Context, to []string, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// CampaignSubmitterMock mocks the CampaignSubmitter interface
type CampaignSubmitterMock struct {
	mock.Mock
}

// SubmitCampaign mocks the SubmitCampaign method
func (m *CampaignSubmitterMock) SubmitCampaign(ctx context.Context, submission transport.CampaignSubmission) (string, error) {
	args := m.Called(ctx, submission)
	return args.String(0), args.Error(1)
}
