package model

import (
	"time"
)

// Campaign status values.
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignSent      = "sent"
	CampaignFailed    = "failed"
)

// Delivery event types reported by the email provider. Each maps 1:1 to one
// aggregate counter column; anything else is acknowledged and dropped.
const (
	EmailEventDelivered  = "email.delivered"
	EmailEventOpened     = "email.opened"
	EmailEventClicked    = "email.clicked"
	EmailEventBounced    = "email.bounced"
	EmailEventComplained = "email.complained"
	EmailEventReceived   = "email.received" // routed to forwarding rules, never to counters
)

// counterColumns maps a delivery event type to the campaign counter it
// increments.
var counterColumns = map[string]string{
	EmailEventDelivered:  "total_delivered",
	EmailEventOpened:     "total_opened",
	EmailEventClicked:    "total_clicked",
	EmailEventBounced:    "total_bounced",
	EmailEventComplained: "total_complained",
}

// CounterColumnForEvent returns the campaign counter column for a delivery
// event type, or false for event types that do not touch counters.
func CounterColumnForEvent(eventType string) (string, bool) {
	col, ok := counterColumns[eventType]
	return col, ok
}

// IsCounterColumn reports whether the column is one of the campaign delivery
// counters. Storage uses it to reject arbitrary column names before they are
// interpolated into an increment expression.
func IsCounterColumn(column string) bool {
	for _, col := range counterColumns {
		if col == column {
			return true
		}
	}
	return false
}

// Campaign is one outbound bulk-send unit, scoped to a single segment.
// The dispatcher creates one campaign per target segment; only the delivery
// counter updater mutates the aggregate counters afterwards.
type Campaign struct {
	ID              string     `json:"id" gorm:"primaryKey;type:text"`
	Name            string     `json:"name" gorm:"type:text"`
	SegmentID       *string    `json:"segment_id,omitempty" gorm:"column:segment_id;type:text;index"` // nil = all contacts
	Subject         string     `json:"subject" gorm:"type:text"`
	Body            string     `json:"body" gorm:"type:text"`
	Status          string     `json:"status" gorm:"type:text;default:draft;index"`
	ProviderEmailID string     `json:"provider_email_id,omitempty" gorm:"column:provider_email_id;type:text;uniqueIndex:idx_campaigns_provider_email,where:provider_email_id <> ''"`
	TotalSent       int64      `json:"total_sent" gorm:"column:total_sent;default:0"`
	TotalDelivered  int64      `json:"total_delivered" gorm:"column:total_delivered;default:0"`
	TotalOpened     int64      `json:"total_opened" gorm:"column:total_opened;default:0"`
	TotalClicked    int64      `json:"total_clicked" gorm:"column:total_clicked;default:0"`
	TotalBounced    int64      `json:"total_bounced" gorm:"column:total_bounced;default:0"`
	TotalComplained int64      `json:"total_complained" gorm:"column:total_complained;default:0"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty" gorm:"column:scheduled_at;index"`
	CreatedAt       time.Time  `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Campaign model.
func (Campaign) TableName() string {
	return "campaigns"
}
