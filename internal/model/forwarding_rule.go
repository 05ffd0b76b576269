package model

import "time"

// ForwardingRule routes inbound email.received events to an internal
// address. These rules live in their own table and never touch campaign
// counters.
type ForwardingRule struct {
	ID           string    `json:"id" gorm:"primaryKey;type:text"`
	MatchAddress string    `json:"match_address" gorm:"column:match_address;type:text;index"` // recipient address the rule matches
	ForwardTo    string    `json:"forward_to" gorm:"column:forward_to;type:text"`
	Active       bool      `json:"active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the ForwardingRule model.
func (ForwardingRule) TableName() string {
	return "forwarding_rules"
}
