package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// TriggerType enumerates the business events an automation can listen for.
type TriggerType string

const (
	TriggerNewLead         TriggerType = "new_lead"
	TriggerMessageReceived TriggerType = "message_received"
	TriggerStageChanged    TriggerType = "stage_changed"
)

// Action kinds an automation may declare. Unknown kinds are skipped at
// execution time, not rejected at storage time.
const (
	ActionCreateTask      = "create_task"
	ActionSendEmail       = "send_email"
	ActionSendChatMessage = "send_chat_message"
)

// AutomationAction is one step of an automation's action list.
type AutomationAction struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Automation is a stored rule: a trigger type plus an ordered action list.
// Operators create and edit automations; the pipeline only reads them.
type Automation struct {
	ID          string         `json:"id" gorm:"primaryKey;type:text"`
	Name        string         `json:"name" gorm:"type:text"`
	TriggerType TriggerType    `json:"trigger_type" gorm:"column:trigger_type;type:text;index"`
	Actions     datatypes.JSON `json:"actions" gorm:"type:jsonb"`
	Active      bool           `json:"active" gorm:"default:true;index"`
	CreatedAt   time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Automation model.
func (Automation) TableName() string {
	return "automations"
}

// DecodeActions unmarshals the stored action list, preserving declared order.
func (a *Automation) DecodeActions() ([]AutomationAction, error) {
	if len(a.Actions) == 0 {
		return nil, nil
	}
	var actions []AutomationAction
	if err := json.Unmarshal(a.Actions, &actions); err != nil {
		return nil, fmt.Errorf("automation %s has malformed actions: %w", a.ID, err)
	}
	return actions, nil
}

// Action config shapes. Each action type decodes its own blob; fields the
// blob omits fall back to subject-entity values at execution time.

type CreateTaskConfig struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueInHours  int    `json:"due_in_hours,omitempty"`
}

type SendEmailConfig struct {
	To      string `json:"to,omitempty"` // empty = the subject contact's email
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SendChatMessageConfig struct {
	To   string `json:"to,omitempty"` // empty = the subject contact's phone
	Text string `json:"text"`
}
