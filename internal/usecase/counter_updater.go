package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// CounterUpdatePath reports which write path applied a delivery event.
// Degraded is the read-modify-write fallback: it loses increments under
// concurrent writers, so callers and tests can tell the two apart.
type CounterUpdatePath string

const (
	PathAtomic   CounterUpdatePath = "atomic"
	PathDegraded CounterUpdatePath = "degraded"
	PathDropped  CounterUpdatePath = "dropped"
)

// CounterUpdateResult describes the outcome of applying one delivery event.
type CounterUpdateResult struct {
	Path       CounterUpdatePath
	CampaignID string
	Column     string
}

// ApplyEmailEvent applies one provider delivery event to its campaign's
// aggregate counters. Event types without a counter are dropped, not errors.
// The atomic single-statement increment is the primary path; if it fails the
// updater falls back to read-then-write and reports the degraded path.
func (s *PipelineService) ApplyEmailEvent(ctx context.Context, eventType, providerEmailID string) (*CounterUpdateResult, error) {
	log := logger.FromContext(ctx)

	column, ok := model.CounterColumnForEvent(eventType)
	if !ok {
		log.Debug("Delivery event type has no counter, dropping",
			zap.String("event_type", eventType))
		observer.IncCounterUpdate(eventType, string(PathDropped))
		return &CounterUpdateResult{Path: PathDropped}, nil
	}

	campaign, err := s.campaignRepo.FindByProviderEmailID(ctx, providerEmailID)
	if err != nil {
		observer.IncCounterUpdate(eventType, "failed")
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NewFatal(err, "no campaign for provider email id %s", providerEmailID)
		}
		return nil, fmt.Errorf("failed to look up campaign for delivery event: %w", err)
	}

	incErr := s.campaignRepo.IncrementCounter(ctx, campaign.ID, column)
	if incErr == nil {
		observer.IncCounterUpdate(eventType, string(PathAtomic))
		return &CounterUpdateResult{Path: PathAtomic, CampaignID: campaign.ID, Column: column}, nil
	}
	log.Warn("Atomic counter increment failed, falling back to read-then-write",
		zap.String("campaign_id", campaign.ID),
		zap.String("column", column),
		zap.Error(incErr),
	)

	current, err := s.campaignRepo.ReadCounter(ctx, campaign.ID, column)
	if err != nil {
		observer.IncCounterUpdate(eventType, "failed")
		return nil, fmt.Errorf("counter fallback read failed: %w", err)
	}
	if err := s.campaignRepo.WriteCounter(ctx, campaign.ID, column, current+1); err != nil {
		observer.IncCounterUpdate(eventType, "failed")
		return nil, fmt.Errorf("counter fallback write failed: %w", err)
	}

	observer.IncCounterUpdate(eventType, string(PathDegraded))
	return &CounterUpdateResult{Path: PathDegraded, CampaignID: campaign.ID, Column: column}, nil
}

// ForwardInboundEmail routes an email.received event through the forwarding
// rule table. Rules are independent: one failed forward does not stop the
// rest, and a matching-rule miss is a silent no-op.
func (s *PipelineService) ForwardInboundEmail(ctx context.Context, toAddress, subject, body string) error {
	log := logger.FromContext(ctx)

	rules, err := s.forwardingRepo.FindActiveByAddress(ctx, toAddress)
	if err != nil {
		return fmt.Errorf("failed to load forwarding rules for %s: %w", toAddress, err)
	}
	if len(rules) == 0 {
		log.Debug("No forwarding rules for address", zap.String("address", toAddress))
		return nil
	}

	var firstErr error
	for _, rule := range rules {
		if err := s.emailSender.Send(ctx, []string{rule.ForwardTo}, subject, body); err != nil {
			log.Error("Failed to forward inbound email",
				zap.String("rule_id", rule.ID),
				zap.String("forward_to", rule.ForwardTo),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		log.Info("Inbound email forwarded",
			zap.String("rule_id", rule.ID),
			zap.String("forward_to", rule.ForwardTo),
		)
	}
	return firstErr
}
