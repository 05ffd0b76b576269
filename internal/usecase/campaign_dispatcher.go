package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/internal/transport"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// Dispatch creates one campaign per target segment and either sends them now,
// strictly in order with the configured inter-send gap, or persists them as
// scheduled rows for the sweeper. A failing segment is recorded and skipped;
// the remaining segments still get their turn.
func (s *PipelineService) Dispatch(ctx context.Context, req model.DispatchRequest) (*model.DispatchResult, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	defer func() {
		observer.ObserveDispatchDuration(time.Since(start))
	}()

	if req.SendMode == model.SendModeScheduled {
		return s.dispatchScheduled(ctx, req)
	}

	result := &model.DispatchResult{Failed: []string{}}
	for _, segmentID := range req.SegmentIDs {
		label := s.segmentLabel(ctx, segmentID)

		// One token, refilled per send interval: this is what spaces sends out.
		if err := s.sendLimiter.Wait(ctx); err != nil {
			log.Warn("Dispatch cancelled while waiting for send slot",
				zap.String("segment_id", segmentID), zap.Error(err))
			result.Failed = append(result.Failed, label)
			continue
		}

		if err := s.dispatchSegment(ctx, req, segmentID, label); err != nil {
			log.Error("Segment dispatch failed",
				zap.String("segment_id", segmentID),
				zap.Error(err),
			)
			observer.IncSegmentSend("failure")
			result.Failed = append(result.Failed, label)
			continue
		}
		observer.IncSegmentSend("success")
		result.Succeeded++
	}
	return result, nil
}

// dispatchScheduled persists one scheduled campaign per segment; the cron
// sweeper picks them up once scheduled_at passes.
func (s *PipelineService) dispatchScheduled(ctx context.Context, req model.DispatchRequest) (*model.DispatchResult, error) {
	log := logger.FromContext(ctx)

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return nil, apperrors.NewFatal(apperrors.ErrBadRequest, "invalid scheduled_at %q: %v", req.ScheduledAt, err)
	}

	result := &model.DispatchResult{Failed: []string{}}
	for _, segmentID := range req.SegmentIDs {
		label := s.segmentLabel(ctx, segmentID)

		campaign, err := s.buildCampaign(req, segmentID, label)
		if err != nil {
			result.Failed = append(result.Failed, label)
			continue
		}
		campaign.Status = model.CampaignScheduled
		campaign.ScheduledAt = &scheduledAt

		if err := s.campaignRepo.Create(ctx, *campaign); err != nil {
			log.Error("Failed to persist scheduled campaign",
				zap.String("segment_id", segmentID), zap.Error(err))
			result.Failed = append(result.Failed, label)
			continue
		}
		log.Info("Campaign scheduled",
			zap.String("campaign_id", campaign.ID),
			zap.String("segment_id", segmentID),
			zap.Time("scheduled_at", scheduledAt),
		)
		result.Succeeded++
	}
	return result, nil
}

// dispatchSegment creates and submits the campaign for one segment.
func (s *PipelineService) dispatchSegment(ctx context.Context, req model.DispatchRequest, segmentID, label string) error {
	campaign, err := s.buildCampaign(req, segmentID, label)
	if err != nil {
		return err
	}
	campaign.Status = model.CampaignSending

	if err := s.campaignRepo.Create(ctx, *campaign); err != nil {
		return fmt.Errorf("failed to persist campaign: %w", err)
	}
	return s.submitCampaign(ctx, campaign, segmentID, nil)
}

// submitCampaign counts the audience, hands the campaign to the email
// provider, and records the outcome on the persisted row. scheduledAt is nil
// for immediate sends.
func (s *PipelineService) submitCampaign(ctx context.Context, campaign *model.Campaign, segmentID string, scheduledAt *time.Time) error {
	log := logger.FromContext(ctx)

	contacts, err := s.contactRepo.ListBySegment(ctx, segmentID)
	if err != nil {
		s.markCampaignFailed(ctx, campaign.ID)
		return fmt.Errorf("failed to list segment contacts: %w", err)
	}
	if err := s.campaignRepo.SetTotalSent(ctx, campaign.ID, int64(len(contacts))); err != nil {
		log.Warn("Failed to record campaign audience size",
			zap.String("campaign_id", campaign.ID), zap.Error(err))
	}

	providerEmailID, err := s.campaignSubmitter.SubmitCampaign(ctx, transport.CampaignSubmission{
		Name:           campaign.Name,
		Subject:        campaign.Subject,
		Content:        campaign.Body,
		SegmentID:      segmentID,
		OrganizationID: s.organizationID,
		ScheduledAt:    scheduledAt,
	})
	if err != nil {
		s.markCampaignFailed(ctx, campaign.ID)
		return fmt.Errorf("provider rejected campaign: %w", err)
	}

	if err := s.campaignRepo.SetProviderEmailID(ctx, campaign.ID, providerEmailID); err != nil {
		// Without the provider id, delivery events for this campaign cannot be
		// correlated back; loud log, but the send already happened.
		log.Error("Failed to record provider email id",
			zap.String("campaign_id", campaign.ID),
			zap.String("provider_email_id", providerEmailID),
			zap.Error(err),
		)
	}
	if err := s.campaignRepo.UpdateStatus(ctx, campaign.ID, model.CampaignSent); err != nil {
		log.Warn("Failed to mark campaign as sent",
			zap.String("campaign_id", campaign.ID), zap.Error(err))
	}

	log.Info("Campaign dispatched",
		zap.String("campaign_id", campaign.ID),
		zap.String("segment_id", segmentID),
		zap.String("provider_email_id", providerEmailID),
		zap.Int("audience_size", len(contacts)),
	)
	return nil
}

// buildCampaign assembles the campaign row for one segment of a request.
func (s *PipelineService) buildCampaign(req model.DispatchRequest, segmentID, label string) (*model.Campaign, error) {
	if segmentID == "" {
		return nil, fmt.Errorf("empty segment id in dispatch request")
	}
	sid := segmentID
	return &model.Campaign{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s (%s)", req.Name, label),
		SegmentID: &sid,
		Subject:   req.Subject,
		Body:      req.Content,
	}, nil
}

// segmentLabel resolves a segment id to its name for campaign naming and the
// dispatch failure report. The raw id stands in when the segment cannot be
// loaded; a name lookup never fails a dispatch.
func (s *PipelineService) segmentLabel(ctx context.Context, segmentID string) string {
	if segmentID == "" {
		return segmentID
	}
	segment, err := s.segmentRepo.FindByID(ctx, segmentID)
	if err != nil || segment == nil || segment.Name == "" {
		if err != nil && !apperrors.IsNotFoundError(err) {
			logger.FromContext(ctx).Warn("Failed to resolve segment name",
				zap.String("segment_id", segmentID), zap.Error(err))
		}
		return segmentID
	}
	return segment.Name
}

func (s *PipelineService) markCampaignFailed(ctx context.Context, campaignID string) {
	if err := s.campaignRepo.UpdateStatus(ctx, campaignID, model.CampaignFailed); err != nil {
		logger.FromContext(ctx).Warn("Failed to mark campaign as failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
	}
}

// DispatchDueScheduled promotes scheduled campaigns whose time has come and
// submits them, honoring the same inter-send gap as immediate dispatch. The
// cron sweeper calls this.
func (s *PipelineService) DispatchDueScheduled(ctx context.Context) error {
	log := logger.FromContext(ctx)

	due, err := s.campaignRepo.FindDueScheduled(ctx, utils.Now())
	if err != nil {
		return fmt.Errorf("failed to load due scheduled campaigns: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	log.Info("Promoting due scheduled campaigns", zap.Int("count", len(due)))

	var firstErr error
	for _, campaign := range due {
		if err := s.sendLimiter.Wait(ctx); err != nil {
			return err
		}
		if campaign.SegmentID == nil {
			log.Warn("Scheduled campaign has no segment, marking failed",
				zap.String("campaign_id", campaign.ID))
			s.markCampaignFailed(ctx, campaign.ID)
			continue
		}
		if err := s.campaignRepo.UpdateStatus(ctx, campaign.ID, model.CampaignSending); err != nil {
			log.Error("Failed to claim scheduled campaign",
				zap.String("campaign_id", campaign.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.submitCampaign(ctx, &campaign, *campaign.SegmentID, nil); err != nil {
			log.Error("Scheduled campaign dispatch failed",
				zap.String("campaign_id", campaign.ID), zap.Error(err))
			observer.IncSegmentSend("failure")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		observer.IncSegmentSend("success")
	}
	return firstErr
}
