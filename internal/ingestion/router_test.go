package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// MockHandler mocks an event handler target.
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Handle(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	args := m.Called(ctx, eventType, metadata, rawEvent)
	return args.Error(0)
}

func forwardTo(h *MockHandler) EventHandler {
	return func(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
		return h.Handle(ctx, eventType, metadata, rawEvent)
	}
}

func TestRouter_Register(t *testing.T) {
	router := NewRouter()
	mockHandler := new(MockHandler)

	eventType := model.EventType("test.event")
	router.Register(eventType, forwardTo(mockHandler))

	assert.NotNil(t, router.handlers[eventType], "Handler should be registered")
}

func TestRouter_Route_ExactMatch(t *testing.T) {
	router := NewRouter()
	mockHandler := new(MockHandler)
	router.Register(model.V1InboundMessage, forwardTo(mockHandler))

	rawEvent := []byte(`{"provider_message_id":"wamid.1"}`)
	metadata := &model.MessageMetadata{
		MessageSubject: string(model.V1InboundMessage),
		MessageID:      "msg-123",
	}
	mockHandler.On("Handle", mock.Anything, model.V1InboundMessage, metadata, rawEvent).Return(nil)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	err := router.Route(ctx, metadata, rawEvent)

	assert.NoError(t, err)
	mockHandler.AssertExpectations(t)
}

func TestRouter_Route_SubjectWithTrailingToken(t *testing.T) {
	router := NewRouter()
	mockHandler := new(MockHandler)
	router.Register(model.V1InboundStatus, forwardTo(mockHandler))

	rawEvent := []byte(`{}`)
	metadata := &model.MessageMetadata{
		MessageSubject: "v1.inbound.status.org-1",
		MessageID:      "msg-456",
	}
	mockHandler.On("Handle", mock.Anything, model.V1InboundStatus, metadata, rawEvent).Return(nil)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	err := router.Route(ctx, metadata, rawEvent)

	assert.NoError(t, err)
	mockHandler.AssertExpectations(t)
}

func TestRouter_Route_DefaultHandler(t *testing.T) {
	router := NewRouter()
	mockDefaultHandler := new(MockHandler)
	router.RegisterDefault(forwardTo(mockDefaultHandler))

	rawEvent := []byte(`{}`)
	metadata := &model.MessageMetadata{
		MessageSubject: "invalid.subject.format",
		MessageID:      "msg-789",
	}
	mockDefaultHandler.On("Handle", mock.Anything, model.EventType(""), metadata, rawEvent).Return(nil)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	err := router.Route(ctx, metadata, rawEvent)

	assert.NoError(t, err)
	mockDefaultHandler.AssertExpectations(t)
}

func TestRouter_Route_NoHandlerIsDropped(t *testing.T) {
	router := NewRouter()

	metadata := &model.MessageMetadata{
		MessageSubject: string(model.V1InboundMessage),
		MessageID:      "msg-000",
	}

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	err := router.Route(ctx, metadata, []byte(`{}`))

	// Without a handler or a default, the event is logged and dropped.
	assert.NoError(t, err)
}

func TestRouter_Route_HandlerErrorPropagates(t *testing.T) {
	router := NewRouter()
	mockHandler := new(MockHandler)
	router.Register(model.V1InboundMessage, forwardTo(mockHandler))

	handlerErr := errors.New("processing failed")
	metadata := &model.MessageMetadata{
		MessageSubject: string(model.V1InboundMessage),
		MessageID:      "msg-err",
	}
	mockHandler.On("Handle", mock.Anything, model.V1InboundMessage, metadata, mock.Anything).Return(handlerErr)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	err := router.Route(ctx, metadata, []byte(`{}`))

	assert.ErrorIs(t, err, handlerErr)
}
