package dlqworker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/antaracrm/messaging-pipeline/internal/config"
	"github.com/antaracrm/messaging-pipeline/internal/ingestion"
	internal_js "github.com/antaracrm/messaging-pipeline/internal/jetstream"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/internal/storage"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

const (
	maxRetries        = 5
	defaultMsgChanCap = 100
	fetchBatchSize    = 10
	fetchMaxWait      = 5 * time.Second
	maxAckPending     = 500
)

// Worker replays dead-lettered events back through the ingestion router with
// exponential backoff. Events that stay unprocessable are written to the
// dead_letter_events table and terminated.
type Worker struct {
	cfg    *config.Config
	logger *zap.Logger
	js     internal_js.ClientInterface
	pool   *ants.Pool
	router ingestion.RouterInterface
	store  storage.DeadLetterRepo
	msgCh  chan *nats.Msg
	stopWg sync.WaitGroup
	cancel context.CancelFunc
}

// NewWorker creates the DLQ worker and provisions its stream and consumer.
func NewWorker(cfg *config.Config, baseLogger *zap.Logger, jsClient internal_js.ClientInterface, router ingestion.RouterInterface, deadLetterRepo storage.DeadLetterRepo) (*Worker, error) {
	pool, err := ants.NewPool(cfg.NATS.DLQWorkers,
		ants.WithLogger(newAntsLoggerAdapter(baseLogger.Named("ants_pool"))),
		ants.WithPanicHandler(func(err interface{}) {
			baseLogger.Error("Worker panic caught", zap.Any("error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	setupCtx := context.Background()
	dlqStreamName := cfg.NATS.DLQStream
	dlqSubject := cfg.NATS.DLQSubject + ".>"

	dlqStreamCfg := &nats.StreamConfig{
		Name:      dlqStreamName,
		Subjects:  []string{dlqSubject},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(cfg.NATS.DLQMaxAgeDays) * 24 * time.Hour,
	}
	if err := jsClient.SetupStream(setupCtx, dlqStreamCfg); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to setup DLQ stream '%s': %w", dlqStreamName, err)
	}

	dlqConsumerCfg := &nats.ConsumerConfig{
		Durable:       dlqDurableName(cfg.NATS.DLQSubject),
		FilterSubject: dlqSubject,
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    cfg.NATS.DLQMaxDeliver,
		AckWait:       cfg.NATS.DLQAckWait,
		MaxAckPending: maxAckPending,
		DeliverPolicy: nats.DeliverAllPolicy,
		ReplayPolicy:  nats.ReplayInstantPolicy,
	}
	if err := jsClient.SetupConsumer(setupCtx, dlqStreamName, dlqConsumerCfg); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to setup DLQ consumer for stream '%s': %w", dlqStreamName, err)
	}

	worker := &Worker{
		cfg:    cfg,
		logger: baseLogger.Named("dlq_worker"),
		js:     jsClient,
		pool:   pool,
		router: router,
		store:  deadLetterRepo,
		msgCh:  make(chan *nats.Msg, defaultMsgChanCap),
	}
	worker.logger.Info("DLQ worker initialized", zap.Int("pool_size", cfg.NATS.DLQWorkers))
	return worker, nil
}

func dlqDurableName(dlqSubject string) string {
	return fmt.Sprintf("%s_worker_consumer", strings.ReplaceAll(dlqSubject, ".", "_"))
}

// Start begins the fetch and dispatch loops and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	derivedCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	subSubject := fmt.Sprintf("%s.>", w.cfg.NATS.DLQSubject)
	sub, err := w.js.SubscribePull(w.cfg.NATS.DLQStream, subSubject, dlqDurableName(w.cfg.NATS.DLQSubject))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create DLQ pull subscription: %w", err)
	}

	w.stopWg.Add(1)
	go w.fetchMessages(derivedCtx, sub)

	w.stopWg.Add(1)
	go w.dispatchMessages(derivedCtx)

	w.logger.Info("DLQ worker started",
		zap.String("stream", w.cfg.NATS.DLQStream),
		zap.String("subject", subSubject),
	)

	<-derivedCtx.Done()
	return nil
}

// Stop gracefully shuts down the DLQ worker.
func (w *Worker) Stop() {
	w.logger.Info("Stopping DLQ worker")
	if w.cancel != nil {
		w.cancel()
	}
	w.stopWg.Wait()
	close(w.msgCh)
	w.pool.Release()
	w.logger.Info("DLQ worker stopped")
}

// fetchMessages pulls batches off the DLQ subscription into msgCh.
func (w *Worker) fetchMessages(ctx context.Context, sub *nats.Subscription) {
	defer w.stopWg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			msgs, err := sub.Fetch(fetchBatchSize, nats.MaxWait(fetchMaxWait))
			if err != nil {
				if err == context.Canceled || err == nats.ErrTimeout || err == nats.ErrConnectionClosed {
					if ctx.Err() != nil {
						return
					}
					continue
				}
				w.logger.Error("Fetcher loop error retrieving messages", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			for _, msg := range msgs {
				select {
				case w.msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// dispatchMessages hands buffered messages to the worker pool.
func (w *Worker) dispatchMessages(ctx context.Context) {
	defer w.stopWg.Done()

	for {
		observer.SetDLQQueueLength(len(w.msgCh))

		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.msgCh:
			if !ok {
				return
			}
			currentMsg := msg
			err := w.pool.Submit(func() {
				taskCtx, taskCancel := context.WithTimeout(context.Background(), 1*time.Minute)
				defer taskCancel()
				w.handleWithRetry(taskCtx, currentMsg)
			})
			if err != nil {
				w.logger.Error("Failed to submit task to ants pool", zap.Error(err))
				if nakErr := currentMsg.NakWithDelay(5 * time.Second); nakErr != nil {
					w.logger.Error("Failed to NAK message after pool submission error", zap.Error(nakErr))
				}
			}
		}
	}
}

// handleWithRetry replays one DLQ message through the router. Undecodable
// messages are terminated; failures under the retry ceiling are NAKed with
// backoff; exhausted messages are persisted and terminated.
func (w *Worker) handleWithRetry(ctx context.Context, msg *nats.Msg) {
	meta, err := msg.Metadata()
	if err != nil {
		w.logger.Error("Failed to get message metadata", zap.Error(err))
		if termErr := msg.Term(); termErr != nil {
			w.logger.Error("Failed to terminate message after metadata error", zap.Error(termErr))
		}
		observer.IncDLQProcessed("metadata_error")
		return
	}

	var payload model.DLQPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		w.logger.Error("Failed to unmarshal DLQ payload",
			zap.Error(err),
			zap.Uint64("sequence", meta.Sequence.Stream),
			zap.String("subject", msg.Subject),
		)
		if termErr := msg.Term(); termErr != nil {
			w.logger.Error("Failed to terminate message after unmarshal error", zap.Error(termErr))
		}
		observer.IncDLQProcessed("malformed")
		return
	}

	w.logger.Info("Processing DLQ message",
		zap.String("source_subject", payload.SourceSubject),
		zap.Uint64("stream_sequence", meta.Sequence.Stream),
		zap.Uint64("num_delivered", meta.NumDelivered),
		zap.Uint64("payload_retry_count", payload.RetryCount),
	)

	routerMetadata := &model.MessageMetadata{
		MessageSubject:   payload.SourceSubject,
		StreamSequence:   meta.Sequence.Stream,
		ConsumerSequence: meta.Sequence.Consumer,
		Timestamp:        meta.Timestamp,
		NumDelivered:     meta.NumDelivered,
	}
	handlerCtx := logger.WithLogger(ctx, w.logger.With(
		zap.String("original_subject", payload.SourceSubject),
	))

	processingErr := w.router.Route(handlerCtx, routerMetadata, payload.OriginalPayload)
	if processingErr == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Error("Failed to ACK successfully processed message", zap.Error(ackErr))
		}
		observer.IncDLQProcessed("success")
		return
	}

	w.logger.Warn("Failed to process event from DLQ",
		zap.String("source_subject", payload.SourceSubject),
		zap.Uint64("num_delivered", meta.NumDelivered),
		zap.Error(processingErr),
	)

	if payload.RetryCount >= maxRetries || meta.NumDelivered >= uint64(w.cfg.NATS.DLQMaxDeliver) {
		w.persistExhausted(ctx, msg, payload, processingErr)
		return
	}

	delay := calculateBackoffDelay(int(meta.NumDelivered), w.cfg.NATS.DLQBaseDelayMinutes, w.cfg.NATS.DLQMaxDelayMinutes)
	if nakErr := msg.NakWithDelay(delay); nakErr != nil {
		w.logger.Error("Failed to NAK message with delay", zap.Error(nakErr))
	}
	observer.IncDLQProcessed("retry")
}

// persistExhausted records the event in the dead letter table and terminates
// the stream message. The message is terminated even when the save fails:
// endless redelivery of a poison message helps no one.
func (w *Worker) persistExhausted(ctx context.Context, msg *nats.Msg, payload model.DLQPayload, processingErr error) {
	event := model.DeadLetterEvent{
		SourceSubject:   payload.SourceSubject,
		LastError:       processingErr.Error(),
		RetryCount:      int(payload.RetryCount),
		EventTimestamp:  payload.Timestamp,
		DLQPayload:      datatypes.JSON(msg.Data),
		OriginalPayload: datatypes.JSON(payload.OriginalPayload),
	}
	if saveErr := w.store.Save(ctx, event); saveErr != nil {
		w.logger.Error("Failed to save dead letter event, terminating message anyway",
			zap.Error(saveErr),
			zap.String("source_subject", payload.SourceSubject),
		)
	}
	if termErr := msg.Term(); termErr != nil {
		w.logger.Error("Failed to terminate exhausted message", zap.Error(termErr))
	}
	observer.IncDLQProcessed("exhausted")
}

// calculateBackoffDelay grows the redelivery delay exponentially with the
// attempt count, capped at the configured maximum.
func calculateBackoffDelay(retryCount int, baseDelayMinutes, maxDelayMinutes int) time.Duration {
	baseDelay := time.Duration(baseDelayMinutes) * time.Minute
	maxDelay := time.Duration(maxDelayMinutes) * time.Minute

	if retryCount <= 0 {
		return baseDelay
	}

	delay := baseDelay * time.Duration(1<<uint(retryCount-1))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

type antsLoggerAdapter struct {
	logger *zap.Logger
}

func newAntsLoggerAdapter(logger *zap.Logger) *antsLoggerAdapter {
	return &antsLoggerAdapter{logger: logger}
}

func (a *antsLoggerAdapter) Printf(format string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, args...))
}
