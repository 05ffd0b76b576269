package model

import "time"

// Task status values.
const (
	TaskOpen = "open"
	TaskDone = "done"
)

// Task is a follow-up item, typically created by an automation's
// create_task action.
type Task struct {
	ID          string     `json:"id" gorm:"primaryKey;type:text"`
	ContactID   string     `json:"contact_id,omitempty" gorm:"type:text;index"`
	Title       string     `json:"title" gorm:"type:text"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	Status      string     `json:"status" gorm:"type:text;default:open"`
	DueAt       *time.Time `json:"due_at,omitempty" gorm:"column:due_at"`
	CreatedAt   time.Time  `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Task model.
func (Task) TableName() string {
	return "tasks"
}
