package model

import (
	"time"

	"gorm.io/datatypes"
)

// Message direction values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Delivery status vocabulary. A message's status only moves forward through
// this ordering, never backwards.
const (
	StatusReceived  = "received"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// statusRank orders the delivery-status vocabulary. read and failed share the
// top rank: both are terminal.
var statusRank = map[string]int{
	StatusReceived:  0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusFailed:    3,
}

// StatusAdvances reports whether moving from to next is a forward transition.
// Unknown statuses never advance.
func StatusAdvances(from, next string) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		// Empty or unknown current status accepts any known status.
		_, known := statusRank[next]
		return known
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}
	return nextRank > fromRank
}

// Message is one unit of communication within a conversation.
type Message struct {
	ID                int64          `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationID    string         `json:"conversation_id" gorm:"column:conversation_id;type:text;index"`
	Direction         string         `json:"direction" gorm:"column:direction;type:text"`
	Content           string         `json:"content,omitempty" gorm:"column:content;type:text"`
	ProviderMessageID string         `json:"provider_message_id,omitempty" gorm:"column:provider_message_id;type:text;uniqueIndex:idx_messages_provider_id,where:provider_message_id <> ''"`
	Status            string         `json:"status,omitempty" gorm:"column:status;type:text"`
	MessageTimestamp  int64          `json:"message_timestamp,omitempty" gorm:"column:message_timestamp"`
	ReadAt            *time.Time     `json:"read_at,omitempty" gorm:"column:read_at"`
	CreatedAt         time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
	LastMetadata      datatypes.JSON `json:"last_metadata,omitempty" gorm:"type:jsonb;column:last_metadata"`
}

// TableName specifies the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}

// MessageConflictColumns returns the columns refreshed when an insert hits an
// already-persisted provider message id (duplicate webhook delivery).
func MessageConflictColumns() []string {
	return []string{"updated_at", "last_metadata"}
}
