package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/validator"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// InboundHandler processes inbound chat events from the ingestion stream
type InboundHandler struct {
	service InboundService
}

// InboundService defines the interface for inbound event processing
type InboundService interface {
	ProcessInboundMessage(ctx context.Context, payload model.InboundMessagePayload, metadata *model.LastMetadata) error
	ProcessStatusUpdate(ctx context.Context, payload model.InboundStatusPayload, metadata *model.LastMetadata) error
}

// NewInboundHandler creates a new inbound event handler
func NewInboundHandler(service InboundService) *InboundHandler {
	return &InboundHandler{
		service: service,
	}
}

// HandleEvent processes inbound events
func (h *InboundHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	if logger.RequestIDFromContext(ctx) == "" {
		ctx = logger.WithRequestID(ctx, uuid.NewString())
	}

	log := logger.FromContext(ctx)
	log.Info("Processing inbound event", zap.String("type", string(eventType)))

	lastMetadata := metadata.ToLastMetadata()
	var err error
	switch eventType {
	case model.V1InboundMessage:
		err = h.handleInboundMessage(ctx, lastMetadata, rawEvent)
	case model.V1InboundStatus:
		err = h.handleStatusUpdate(ctx, lastMetadata, rawEvent)
	default:
		unsupportedErr := fmt.Errorf("unsupported inbound event type: %s", eventType)
		log.Error("Unsupported inbound event type", zap.String("eventType", string(eventType)))
		err = apperrors.NewFatal(unsupportedErr, "unsupported inbound event type")
	}
	return err
}

// handleInboundMessage processes one inbound chat message
func (h *InboundHandler) handleInboundMessage(ctx context.Context, metadata *model.LastMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.InboundMessagePayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal inbound message payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal inbound message payload")
	}

	if err := validator.Validate(payload); err != nil {
		log.Error("Invalid inbound message payload", zap.Error(err))
		return apperrors.NewFatal(err, "invalid inbound message payload")
	}

	return h.service.ProcessInboundMessage(ctx, payload, metadata)
}

// handleStatusUpdate processes one delivery status update for an outbound message
func (h *InboundHandler) handleStatusUpdate(ctx context.Context, metadata *model.LastMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.InboundStatusPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal status payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal status payload")
	}

	if err := validator.Validate(payload); err != nil {
		log.Error("Invalid status payload", zap.Error(err))
		return apperrors.NewFatal(err, "invalid status payload")
	}

	return h.service.ProcessStatusUpdate(ctx, payload, metadata)
}
