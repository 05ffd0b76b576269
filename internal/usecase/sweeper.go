package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// sweepTimeout bounds one sweeper run, including provider submissions.
const sweepTimeout = 5 * time.Minute

// CampaignSweeper periodically promotes scheduled campaigns whose
// scheduled_at has passed and submits them through the dispatcher.
type CampaignSweeper struct {
	cron       *cron.Cron
	service    *PipelineService
	schedule   string
	baseLogger *zap.Logger
}

// NewCampaignSweeper creates the sweeper with a cron schedule spec.
func NewCampaignSweeper(service *PipelineService, schedule string, baseLogger *zap.Logger) *CampaignSweeper {
	return &CampaignSweeper{
		cron:       cron.New(),
		service:    service,
		schedule:   schedule,
		baseLogger: baseLogger.Named("campaign_sweeper"),
	}
}

// Start registers the sweep job and starts the scheduler.
func (cs *CampaignSweeper) Start() error {
	_, err := cs.cron.AddFunc(cs.schedule, cs.sweep)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", cs.schedule, err)
	}
	cs.cron.Start()
	cs.baseLogger.Info("Campaign sweeper started", zap.String("schedule", cs.schedule))
	return nil
}

func (cs *CampaignSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	ctx = logger.WithLogger(ctx, cs.baseLogger)

	if err := cs.service.DispatchDueScheduled(ctx); err != nil {
		cs.baseLogger.Error("Scheduled campaign sweep finished with errors", zap.Error(err))
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (cs *CampaignSweeper) Stop() {
	sweepCtx := cs.cron.Stop()
	select {
	case <-sweepCtx.Done():
	case <-time.After(sweepTimeout):
		cs.baseLogger.Warn("Timed out waiting for in-flight sweep to finish")
	}
	cs.baseLogger.Info("Campaign sweeper stopped")
}
