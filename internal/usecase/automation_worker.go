package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/config"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// AutomationTaskData is the unit of work submitted to the automation pool.
// It carries ids rather than the resolved entities so workers always operate
// on fresh rows.
type AutomationTaskData struct {
	Trigger        model.TriggerType
	ContactID      string
	ConversationID string
	RequestID      string
}

// IAutomationWorker defines the interface for the automation worker pool.
type IAutomationWorker interface {
	Submit(taskData AutomationTaskData) error
	Stop()
}

// AutomationWorker runs automation executions off the hot event path. A full
// queue blocks Submit briefly, then surfaces the overload to the caller; the
// triggering event is never failed over it.
type AutomationWorker struct {
	pool       *ants.PoolWithFunc
	engine     *AutomationEngine
	cfg        config.AutomationWorkerPoolConfig
	baseLogger *zap.Logger
}

var _ IAutomationWorker = (*AutomationWorker)(nil)

// NewAutomationWorker creates and initializes the automation worker pool.
func NewAutomationWorker(
	cfg config.AutomationWorkerPoolConfig,
	engine *AutomationEngine,
	baseLogger *zap.Logger,
) (*AutomationWorker, error) {
	worker := &AutomationWorker{
		engine:     engine,
		cfg:        cfg,
		baseLogger: baseLogger.Named("automation_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		taskData, ok := i.(AutomationTaskData)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.processTask(taskData)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in automation worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Automation worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("max_block", cfg.MaxBlock),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return worker, nil
}

// Submit hands an automation trigger to the pool. When the queue is full the
// caller blocks for at most the configured max block time before the overload
// surfaces.
func (w *AutomationWorker) Submit(taskData AutomationTaskData) error {
	observer.IncAutomationSubmitted(string(taskData.Trigger))
	observer.SetAutomationQueueLength(w.pool.Waiting())

	if err := w.invoke(taskData); err != nil {
		w.baseLogger.Warn("Failed to submit automation task to pool",
			zap.String("trigger", string(taskData.Trigger)),
			zap.String("contact_id", taskData.ContactID),
			zap.Error(err),
		)
		observer.IncAutomationProcessed(string(taskData.Trigger), "submit_error")
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("automation pool overload: %w", err)
		}
		return fmt.Errorf("failed to invoke automation task: %w", err)
	}
	return nil
}

// invoke bounds the time a saturated queue can hold the caller. The attempt
// keeps waiting in the background after the deadline, so at worst the
// automation fires late rather than never.
func (w *AutomationWorker) invoke(taskData AutomationTaskData) error {
	if w.cfg.MaxBlock <= 0 {
		return w.pool.Invoke(taskData)
	}

	done := make(chan error, 1)
	go func() { done <- w.pool.Invoke(taskData) }()

	timer := time.NewTimer(w.cfg.MaxBlock)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("submit blocked longer than %s: %w", w.cfg.MaxBlock, ants.ErrPoolOverload)
	}
}

// processTask is the body executed by each pool worker.
func (w *AutomationWorker) processTask(taskData AutomationTaskData) {
	ctx := context.Background()
	if taskData.RequestID != "" {
		ctx = logger.WithRequestID(ctx, taskData.RequestID)
	}
	ctx = logger.WithLogger(ctx, w.baseLogger.With(
		zap.String("trigger", string(taskData.Trigger)),
		zap.String("contact_id", taskData.ContactID),
	))

	start := time.Now()
	status := "success"
	if err := w.engine.Fire(ctx, taskData.Trigger, taskData.ContactID, taskData.ConversationID); err != nil {
		status = "failure"
	}
	observer.IncAutomationProcessed(string(taskData.Trigger), status)
	w.baseLogger.Debug("Finished automation task",
		zap.String("trigger", string(taskData.Trigger)),
		zap.Duration("duration", time.Since(start)),
		zap.String("final_status", status),
	)
}

// Stop gracefully shuts down the worker pool.
func (w *AutomationWorker) Stop() {
	if w.pool != nil {
		w.baseLogger.Info("Releasing automation worker pool")
		start := time.Now()
		w.pool.Release()
		w.baseLogger.Info("Automation worker pool released", zap.Duration("duration", time.Since(start)))
	}
}
