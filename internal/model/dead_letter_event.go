package model

import (
	"time"

	"gorm.io/datatypes"
)

// DeadLetterEvent is a durable record of an event the pipeline gave up on:
// either redelivery was exhausted on the DLQ stream, or the webhook layer
// could not hand the event to the ingestion buffer at all. The upstream
// provider always got a 200, so this table is the only trace of the loss.
type DeadLetterEvent struct {
	ID              uint           `gorm:"primaryKey"`
	CreatedAt       time.Time      // Automatically set by GORM
	SourceSubject   string         `gorm:"index;not null"` // Subject/endpoint the event arrived on
	LastError       string         // The last error message encountered
	RetryCount      int            // Final delivery attempt count
	EventTimestamp  time.Time      `gorm:"index"`               // Timestamp carried by the original event
	DLQPayload      datatypes.JSON `gorm:"type:jsonb"`          // Full DLQ envelope, when the event went through the stream
	OriginalPayload datatypes.JSON `gorm:"type:jsonb;not null"` // The event payload itself
	Resolved        bool           `gorm:"index;default:false"` // Manually resolved flag
	ResolvedAt      *time.Time     `gorm:"index"`
	Notes           string         `gorm:"type:text"`
}

// TableName specifies the table name for the DeadLetterEvent model.
func (DeadLetterEvent) TableName() string {
	return "dead_letter_events"
}
