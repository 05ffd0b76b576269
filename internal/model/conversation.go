package model

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation status values.
const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"
)

// ChannelWhatsApp is the only inbound chat channel the pipeline currently serves.
const ChannelWhatsApp = "whatsapp"

// Conversation is one open dialogue with a contact on one channel.
// A partial unique index enforces at most one open conversation per
// contact per channel; closed rows do not participate.
type Conversation struct {
	ID             string         `json:"id" gorm:"primaryKey;type:text"`
	ContactID      string         `json:"contact_id" gorm:"type:text;index;uniqueIndex:idx_conversations_open,where:status = 'open'"`
	Channel        string         `json:"channel" gorm:"type:text;uniqueIndex:idx_conversations_open,where:status = 'open'"`
	ChannelAddress string         `json:"channel_address,omitempty" gorm:"type:text;index"` // phone number on the channel
	Status         string         `json:"status" gorm:"type:text;default:open"`
	BotActive      bool           `json:"bot_active" gorm:"column:bot_active;default:true"`
	WelcomeSent    bool           `json:"welcome_sent" gorm:"column:welcome_sent;default:false"`
	LastActivityAt time.Time      `json:"last_activity_at,omitempty" gorm:"column:last_activity_at"`
	Tags           datatypes.JSON `json:"tags,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Conversation model.
func (Conversation) TableName() string {
	return "conversations"
}

// BotState is the derived conversational-bot state of a conversation.
type BotState string

const (
	// BotStateAwaitingWelcome: open conversation, greeting not yet issued.
	BotStateAwaitingWelcome BotState = "AWAITING_WELCOME"
	// BotStateMenuActive: greeting issued, bot still owns the conversation.
	BotStateMenuActive BotState = "MENU_ACTIVE"
	// BotStateHandedOff: a human operator has taken over.
	BotStateHandedOff BotState = "HANDED_OFF"
)

// BotState derives the state machine position from the two persisted flags.
// A conversation that does not exist yet is the implicit NEW state; the
// resolver creates it, which lands here as AWAITING_WELCOME.
func (c *Conversation) BotState() BotState {
	if !c.BotActive {
		return BotStateHandedOff
	}
	if !c.WelcomeSent {
		return BotStateAwaitingWelcome
	}
	return BotStateMenuActive
}
