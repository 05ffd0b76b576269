package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/antaracrm/messaging-pipeline/internal/apperrors"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/transport"
)

func dispatchRequest(segments ...string) model.DispatchRequest {
	return model.DispatchRequest{
		Name:       "Spring promo",
		Subject:    "Big news",
		Content:    "<p>Hello</p>",
		SegmentIDs: segments,
		SendMode:   model.SendModeNow,
	}
}

func TestDispatch_SequentialWithFailureIsolation(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	var submitted []string
	m.segmentRepo.On("FindByID", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)
	m.campaignRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.contactRepo.On("ListBySegment", mock.Anything, mock.Anything).Return([]model.Contact{{ID: "c1"}, {ID: "c2"}}, nil)
	m.campaignRepo.On("SetTotalSent", mock.Anything, mock.Anything, int64(2)).Return(nil)

	m.submitter.On("SubmitCampaign", mock.Anything, mock.MatchedBy(func(sub transport.CampaignSubmission) bool {
		return sub.SegmentID != "seg-B"
	})).Run(func(args mock.Arguments) {
		sub := args.Get(1).(transport.CampaignSubmission)
		submitted = append(submitted, sub.SegmentID)
	}).Return("provider-id", nil)
	m.submitter.On("SubmitCampaign", mock.Anything, mock.MatchedBy(func(sub transport.CampaignSubmission) bool {
		return sub.SegmentID == "seg-B"
	})).Run(func(args mock.Arguments) {
		submitted = append(submitted, "seg-B")
	}).Return("", errors.New("provider rejected segment"))

	m.campaignRepo.On("SetProviderEmailID", mock.Anything, mock.Anything, "provider-id").Return(nil)
	m.campaignRepo.On("UpdateStatus", mock.Anything, mock.Anything, model.CampaignSent).Return(nil)
	m.campaignRepo.On("UpdateStatus", mock.Anything, mock.Anything, model.CampaignFailed).Return(nil)

	result, err := service.Dispatch(ctx, dispatchRequest("seg-A", "seg-B", "seg-C"))
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	// Unknown segments fall back to their raw ids in the failure report.
	assert.Equal(t, []string{"seg-B"}, result.Failed)

	// Sends happen strictly in request order, the failure notwithstanding.
	assert.Equal(t, []string{"seg-A", "seg-B", "seg-C"}, submitted)
}

func TestDispatch_FailedSegmentReportedByName(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	m.segmentRepo.On("FindByID", mock.Anything, "seg-A").
		Return(&model.Segment{ID: "seg-A", Name: "A"}, nil)
	m.segmentRepo.On("FindByID", mock.Anything, "seg-B").
		Return(&model.Segment{ID: "seg-B", Name: "B"}, nil)

	m.campaignRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.contactRepo.On("ListBySegment", mock.Anything, mock.Anything).Return([]model.Contact{{ID: "c1"}}, nil)
	m.campaignRepo.On("SetTotalSent", mock.Anything, mock.Anything, int64(1)).Return(nil)

	m.submitter.On("SubmitCampaign", mock.Anything, mock.MatchedBy(func(sub transport.CampaignSubmission) bool {
		return sub.SegmentID == "seg-A"
	})).Return("provider-id", nil)
	m.submitter.On("SubmitCampaign", mock.Anything, mock.MatchedBy(func(sub transport.CampaignSubmission) bool {
		return sub.SegmentID == "seg-B"
	})).Return("", errors.New("provider rejected segment"))

	m.campaignRepo.On("SetProviderEmailID", mock.Anything, mock.Anything, "provider-id").Return(nil)
	m.campaignRepo.On("UpdateStatus", mock.Anything, mock.Anything, model.CampaignSent).Return(nil)
	m.campaignRepo.On("UpdateStatus", mock.Anything, mock.Anything, model.CampaignFailed).Return(nil)

	result, err := service.Dispatch(ctx, dispatchRequest("seg-A", "seg-B"))
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, []string{"B"}, result.Failed)

	// The per-segment campaigns carry the segment name too.
	m.campaignRepo.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(campaign model.Campaign) bool {
		return campaign.Name == "Spring promo (A)"
	}))
	m.campaignRepo.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(campaign model.Campaign) bool {
		return campaign.Name == "Spring promo (B)"
	}))
}

func TestDispatch_OrganizationForwardedToProvider(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	m.segmentRepo.On("FindByID", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)
	m.campaignRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	m.contactRepo.On("ListBySegment", mock.Anything, "seg-A").Return([]model.Contact{}, nil)
	m.campaignRepo.On("SetTotalSent", mock.Anything, mock.Anything, int64(0)).Return(nil)
	m.submitter.On("SubmitCampaign", mock.Anything, mock.MatchedBy(func(sub transport.CampaignSubmission) bool {
		return sub.OrganizationID == "org-1" && sub.Subject == "Big news"
	})).Return("provider-id", nil)
	m.campaignRepo.On("SetProviderEmailID", mock.Anything, mock.Anything, "provider-id").Return(nil)
	m.campaignRepo.On("UpdateStatus", mock.Anything, mock.Anything, model.CampaignSent).Return(nil)

	result, err := service.Dispatch(ctx, dispatchRequest("seg-A"))
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	m.submitter.AssertExpectations(t)
}

func TestDispatch_ScheduledModePersistsWithoutSending(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	scheduledAt := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	req := dispatchRequest("seg-A", "seg-B")
	req.SendMode = model.SendModeScheduled
	req.ScheduledAt = scheduledAt.Format(time.RFC3339)

	m.segmentRepo.On("FindByID", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)
	m.campaignRepo.On("Create", mock.Anything, mock.MatchedBy(func(campaign model.Campaign) bool {
		return campaign.Status == model.CampaignScheduled &&
			campaign.ScheduledAt != nil &&
			campaign.ScheduledAt.Equal(scheduledAt)
	})).Return(nil)

	result, err := service.Dispatch(ctx, req)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Empty(t, result.Failed)
	m.submitter.AssertNotCalled(t, "SubmitCampaign", mock.Anything, mock.Anything)
}

func TestDispatch_ScheduledModeRejectsBadTimestamp(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	req := dispatchRequest("seg-A")
	req.SendMode = model.SendModeScheduled
	req.ScheduledAt = "tomorrow-ish"

	result, err := service.Dispatch(ctx, req)
	assert.Error(t, err)
	assert.Nil(t, result)
	m.campaignRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDispatchDueScheduled_PromotesAndSubmits(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	segmentID := "seg-A"
	due := []model.Campaign{{
		ID:        "camp-1",
		Name:      "Spring promo (seg-A)",
		SegmentID: &segmentID,
		Subject:   "Big news",
		Body:      "<p>Hello</p>",
		Status:    model.CampaignScheduled,
	}}
	m.campaignRepo.On("FindDueScheduled", mock.Anything, mock.Anything).Return(due, nil)
	m.campaignRepo.On("UpdateStatus", mock.Anything, "camp-1", model.CampaignSending).Return(nil)
	m.contactRepo.On("ListBySegment", mock.Anything, segmentID).Return([]model.Contact{{ID: "c1"}}, nil)
	m.campaignRepo.On("SetTotalSent", mock.Anything, "camp-1", int64(1)).Return(nil)
	m.submitter.On("SubmitCampaign", mock.Anything, mock.Anything).Return("provider-id", nil)
	m.campaignRepo.On("SetProviderEmailID", mock.Anything, "camp-1", "provider-id").Return(nil)
	m.campaignRepo.On("UpdateStatus", mock.Anything, "camp-1", model.CampaignSent).Return(nil)

	err := service.DispatchDueScheduled(ctx)
	assert.NoError(t, err)
	m.campaignRepo.AssertExpectations(t)
}

func TestDispatchDueScheduled_NothingDue(t *testing.T) {
	service, m := newTestService(t)
	ctx := testContext(t)

	m.campaignRepo.On("FindDueScheduled", mock.Anything, mock.Anything).Return([]model.Campaign{}, nil)

	err := service.DispatchDueScheduled(ctx)
	assert.NoError(t, err)
	m.submitter.AssertNotCalled(t, "SubmitCampaign", mock.Anything, mock.Anything)
}
