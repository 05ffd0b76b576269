package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// MockInboundService mocks the inbound processing service.
type MockInboundService struct {
	mock.Mock
}

func (m *MockInboundService) ProcessInboundMessage(ctx context.Context, payload model.InboundMessagePayload, metadata *model.LastMetadata) error {
	args := m.Called(ctx, payload, metadata)
	return args.Error(0)
}

func (m *MockInboundService) ProcessStatusUpdate(ctx context.Context, payload model.InboundStatusPayload, metadata *model.LastMetadata) error {
	args := m.Called(ctx, payload, metadata)
	return args.Error(0)
}

func testMetadata() *model.MessageMetadata {
	return &model.MessageMetadata{
		MessageSubject: string(model.V1InboundMessage),
		MessageID:      "msg-1",
		StreamSequence: 7,
	}
}

func testCtx(t *testing.T) context.Context {
	return logger.WithLogger(context.Background(), zaptest.NewLogger(t))
}

func TestHandleEvent_InboundMessage(t *testing.T) {
	service := new(MockInboundService)
	h := NewInboundHandler(service)

	rawEvent := []byte(`{"provider_message_id":"wamid.1","from_phone":"573001112233","text":"hi"}`)
	service.On("ProcessInboundMessage", mock.Anything,
		mock.MatchedBy(func(payload model.InboundMessagePayload) bool {
			return payload.ProviderMessageID == "wamid.1" && payload.FromPhone == "573001112233"
		}),
		mock.MatchedBy(func(metadata *model.LastMetadata) bool {
			return metadata.StreamSequence == 7 && metadata.MessageID == "msg-1"
		}),
	).Return(nil)

	err := h.HandleEvent(testCtx(t), model.V1InboundMessage, testMetadata(), rawEvent)

	assert.NoError(t, err)
	service.AssertExpectations(t)
}

func TestHandleEvent_StatusUpdate(t *testing.T) {
	service := new(MockInboundService)
	h := NewInboundHandler(service)

	rawEvent := []byte(`{"provider_message_id":"wamid.9","status":"delivered"}`)
	service.On("ProcessStatusUpdate", mock.Anything,
		mock.MatchedBy(func(payload model.InboundStatusPayload) bool {
			return payload.ProviderMessageID == "wamid.9" && payload.Status == "delivered"
		}),
		mock.Anything,
	).Return(nil)

	err := h.HandleEvent(testCtx(t), model.V1InboundStatus, testMetadata(), rawEvent)

	assert.NoError(t, err)
	service.AssertExpectations(t)
}

func TestHandleEvent_MalformedPayloadIsFatal(t *testing.T) {
	service := new(MockInboundService)
	h := NewInboundHandler(service)

	err := h.HandleEvent(testCtx(t), model.V1InboundMessage, testMetadata(), []byte(`{broken`))

	assert.Error(t, err)
	assert.True(t, apperrors.IsFatal(err), "malformed payload must not be retried")
	service.AssertNotCalled(t, "ProcessInboundMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_InvalidPayloadIsFatal(t *testing.T) {
	service := new(MockInboundService)
	h := NewInboundHandler(service)

	// Missing required provider_message_id and from_phone.
	err := h.HandleEvent(testCtx(t), model.V1InboundMessage, testMetadata(), []byte(`{"text":"hi"}`))

	assert.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
	service.AssertNotCalled(t, "ProcessInboundMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_InvalidStatusValueIsFatal(t *testing.T) {
	service := new(MockInboundService)
	h := NewInboundHandler(service)

	err := h.HandleEvent(testCtx(t), model.V1InboundStatus, testMetadata(), []byte(`{"provider_message_id":"wamid.9","status":"vanished"}`))

	assert.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
	service.AssertNotCalled(t, "ProcessStatusUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEvent_UnsupportedTypeIsFatal(t *testing.T) {
	service := new(MockInboundService)
	h := NewInboundHandler(service)

	err := h.HandleEvent(testCtx(t), model.EventType("v1.something.else"), testMetadata(), []byte(`{}`))

	assert.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
}
