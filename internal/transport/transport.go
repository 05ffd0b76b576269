package transport

import (
	"context"
	"time"
)

// ChatSender delivers outbound chat messages through the messaging provider.
type ChatSender interface {
	// SendText sends a plain text message and returns the provider message id.
	SendText(ctx context.Context, to, text string) (string, error)
}

// EmailSender delivers single transactional emails (automation actions,
// forwarded inbound mail).
type EmailSender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// CampaignSubmission is the payload handed to the email provider for one
// per-segment bulk send.
type CampaignSubmission struct {
	Name           string     `json:"name"`
	Subject        string     `json:"subject"`
	Content        string     `json:"content"`
	SegmentID      string     `json:"segment_id"`
	OrganizationID string     `json:"organization_id"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
}

// CampaignSubmitter submits bulk campaign sends to the email provider.
type CampaignSubmitter interface {
	// SubmitCampaign submits one campaign and returns the provider email id
	// that later delivery events will reference.
	SubmitCampaign(ctx context.Context, submission CampaignSubmission) (string, error)
}
