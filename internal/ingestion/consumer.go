package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/config"
	"github.com/antaracrm/messaging-pipeline/internal/jetstream"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// AckNakAction represents the decision made after processing a message
type AckNakAction int

const (
	ActionAck      AckNakAction = iota // Message processed successfully, ACK it
	ActionNak                          // Non-retryable error or DLQ failure, NAK immediately
	ActionNakDelay                     // Retryable error, NAK with calculated delay
	ActionDLQ                          // Max retries reached or fatal error, publish to DLQ then ACK
)

// determineAckNakAction decides the fate of a message based on the processing
// result and delivery metadata. It returns the action to take and the NAK
// delay where applicable.
func determineAckNakAction(
	processingErr error,
	metadata *nats.MsgMetadata,
	maxDeliver int,
	nakBaseDelay time.Duration,
	nakMaxDelay time.Duration,
) (action AckNakAction, delay time.Duration) {
	if processingErr == nil {
		return ActionAck, 0
	}

	isRetryable := apperrors.IsRetryable(processingErr)
	numDelivered := metadata.NumDelivered

	// Max retries reached or fatal error goes to the DLQ.
	if numDelivered >= uint64(maxDeliver) || !isRetryable {
		return ActionDLQ, 0
	}

	// Retryable with attempts remaining: NAK with exponential delay.
	attempt := numDelivered
	delay = nakBaseDelay
	if attempt > 1 {
		delay = nakBaseDelay * (1 << (attempt - 1))
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// InboundConsumer consumes the durable inbound event stream and feeds the
// router. Failed events are NAKed with backoff and eventually forwarded to
// the DLQ stream.
type InboundConsumer struct {
	client     jetstream.ClientInterface
	router     *Router
	cfg        config.ConsumerNatsConfig
	dlqSubject string
	sub        *nats.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewInboundConsumer creates a consumer for the inbound event stream
func NewInboundConsumer(client jetstream.ClientInterface, router *Router, cfg config.ConsumerNatsConfig, dlqSubject string) *InboundConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithLogger(ctx, logger.Log.With(zap.String("consumer", cfg.Consumer)))

	return &InboundConsumer{
		client:     client,
		router:     router,
		cfg:        cfg,
		dlqSubject: dlqSubject,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Setup configures the NATS stream and consumer for inbound events
func (c *InboundConsumer) Setup() error {
	log := logger.FromContext(c.ctx)
	log.Info("Setting up inbound consumer", zap.String("stream", c.cfg.Stream))

	maxAgeRetention := time.Duration(c.cfg.MaxAge*24) * time.Hour

	streamCfg := &nats.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  c.cfg.SubjectList,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAgeRetention,
	}

	if err := c.client.SetupStream(c.ctx, streamCfg); err != nil {
		return fmt.Errorf("failed to setup inbound stream '%s': %w", c.cfg.Stream, err)
	}

	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.QueueGroup,
		FilterSubjects: c.cfg.SubjectList,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverSubject: nats.NewInbox(),
		MaxDeliver:     c.cfg.MaxDeliver,
		AckWait:        30 * time.Second,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
		DeliverPolicy:  nats.DeliverAllPolicy,
	}

	if err := c.client.SetupConsumer(c.ctx, c.cfg.Stream, consumerCfg); err != nil {
		return fmt.Errorf("failed to setup inbound consumer '%s' for stream '%s': %w", c.cfg.Consumer, c.cfg.Stream, err)
	}

	log.Info("Inbound consumer setup complete")
	return nil
}

// Start subscribes to the NATS stream
func (c *InboundConsumer) Start() error {
	log := logger.FromContext(c.ctx)

	filterSubject := ""
	if len(c.cfg.SubjectList) == 1 {
		filterSubject = c.cfg.SubjectList[0]
	}

	sub, err := c.client.SubscribePush(filterSubject, c.cfg.Consumer, c.cfg.QueueGroup, c.cfg.Stream, c.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe inbound consumer '%s': %w", c.cfg.Consumer, err)
	}
	c.sub = sub
	log.Info("Inbound consumer subscribed",
		zap.String("stream", c.cfg.Stream),
		zap.String("filter_subject", filterSubject),
	)
	return nil
}

// Stop unsubscribes and cleans up resources
func (c *InboundConsumer) Stop() {
	log := logger.FromContext(c.ctx)
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Error draining inbound subscription", zap.Error(err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	log.Info("Inbound consumer stopped")
}

// handleMessage is the core message processing logic.
func (c *InboundConsumer) handleMessage(msg *nats.Msg) {
	startTime := utils.Now()

	defer func() {
		if r := recover(); r != nil {
			log := logger.FromContext(c.ctx)
			log.Error("Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.String("subject", msg.Subject),
				zap.Duration("duration", time.Since(startTime)),
				zap.Stack("stack"),
			)
			observer.IncEventFailed(msg.Subject)
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	msgCtx := c.ctx
	log := logger.FromContext(msgCtx)

	var msgID string
	if msg.Header != nil {
		msgID = msg.Header.Get("Nats-Msg-Id")
	}

	eventType, found := model.MapToBaseEventType(msg.Subject)
	if !found {
		log.Warn("Unknown event type", zap.String("subject", msg.Subject))
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message for unknown event type", zap.Error(nakErr))
		}
		return
	}

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err))
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		return
	}
	if msgID == "" {
		msgID = fmt.Sprintf("msg-%d", metadata.Sequence.Stream)
	}

	requestID := ""
	if msg.Header != nil {
		requestID = msg.Header.Get("Request-Id")
	}

	internalMetadata := &model.MessageMetadata{
		StreamSequence:   metadata.Sequence.Stream,
		ConsumerSequence: metadata.Sequence.Consumer,
		NumDelivered:     metadata.NumDelivered,
		NumPending:       metadata.NumPending,
		Timestamp:        metadata.Timestamp,
		Stream:           metadata.Stream,
		Consumer:         metadata.Consumer,
		MessageID:        msgID,
		MessageSubject:   msg.Subject,
		RequestID:        requestID,
	}

	observer.IncEventReceived(string(eventType))

	msgCtx = logger.WithLogger(msgCtx, log.With(
		zap.String("nats_message_id", msgID),
		zap.Uint64("stream_sequence", internalMetadata.StreamSequence),
		zap.String("subject", msg.Subject),
	))

	processingErr := c.router.Route(msgCtx, internalMetadata, msg.Data)

	enhancedLog := logger.FromContext(msgCtx)
	action, nakDelay := determineAckNakAction(processingErr, metadata, c.cfg.MaxDeliver, c.cfg.NakBaseDelay, c.cfg.NakMaxDelay)

	switch action {
	case ActionAck:
		enhancedLog.Info("Successfully processed message", zap.Duration("duration", time.Since(startTime)))
		observer.IncEventProcessed(string(eventType), time.Since(startTime))
		if ackErr := msg.Ack(); ackErr != nil {
			enhancedLog.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case ActionNak:
		enhancedLog.Error("NAKing message immediately", zap.Error(processingErr))
		observer.IncEventFailed(string(eventType))
		if nakErr := msg.Nak(); nakErr != nil {
			enhancedLog.Error("Failed to NAK message", zap.Error(nakErr))
		}

	case ActionNakDelay:
		enhancedLog.Info("NAKing message with delay for redelivery",
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
			zap.Duration("nak_delay", nakDelay),
		)
		observer.IncEventFailed(string(eventType))
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			enhancedLog.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case ActionDLQ:
		c.publishToDLQ(msgCtx, msg, metadata, string(eventType), msgID, processingErr)
	}
}

// publishToDLQ wraps the failed message in a DLQ envelope and moves it to the
// dead letter stream. The original message is ACKed only when the DLQ publish
// succeeds, so the event is never lost.
func (c *InboundConsumer) publishToDLQ(ctx context.Context, msg *nats.Msg, metadata *nats.MsgMetadata, eventType, msgID string, processingErr error) {
	log := logger.FromContext(ctx)

	isRetryable := apperrors.IsRetryable(processingErr)
	logReason := "max delivery attempts reached"
	errorTypeString := "retryable"
	if !isRetryable {
		logReason = "fatal error encountered"
		errorTypeString = "fatal"
	}
	log.Warn("Sending message to DLQ: "+logReason,
		zap.Error(processingErr),
		zap.Uint64("num_delivered", metadata.NumDelivered),
		zap.Int("max_deliver", c.cfg.MaxDeliver),
	)
	observer.IncEventFailed(eventType)

	dlqPayload := model.DLQPayload{
		SourceSubject:   msg.Subject,
		OriginalPayload: json.RawMessage(msg.Data),
		Error:           processingErr.Error(),
		ErrorType:       errorTypeString,
		RetryCount:      metadata.NumDelivered,
		MaxRetry:        c.cfg.MaxDeliver,
		Timestamp:       utils.Now(),
	}

	dlqData, marshalErr := json.Marshal(dlqPayload)
	if marshalErr != nil {
		log.Error("Failed to marshal DLQ payload, NAKing original message", zap.Error(marshalErr))
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message after DLQ marshal error", zap.Error(nakErr))
		}
		return
	}

	dlqHeaders := map[string]string{}
	if msgID != "" {
		dlqHeaders["Original-Nats-Msg-Id"] = msgID
	}

	if publishErr := c.client.Publish(c.dlqSubject, dlqData, dlqHeaders); publishErr != nil {
		log.Error("Failed to publish message to DLQ, NAKing original message",
			zap.Error(publishErr),
			zap.String("dlq_subject", c.dlqSubject),
		)
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message after DLQ publish error", zap.Error(nakErr))
		}
		return
	}

	log.Info("Message published to DLQ", zap.String("dlq_subject", c.dlqSubject))
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message after successful DLQ publish", zap.Error(ackErr))
	}
}
