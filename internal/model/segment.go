package model

import "time"

// Segment is a named set of contacts used as a campaign audience. Either
// explicit membership rows exist, or AllContacts marks the whole book.
// Read-only to the dispatcher.
type Segment struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	Name        string    `json:"name" gorm:"type:text"`
	AllContacts bool      `json:"all_contacts" gorm:"column:all_contacts;default:false"`
	CreatedAt   time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Segment model.
func (Segment) TableName() string {
	return "segments"
}

// SegmentMember links a contact into a segment.
type SegmentMember struct {
	ID        int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	SegmentID string    `json:"segment_id" gorm:"type:text;index;uniqueIndex:idx_segment_members_pair"`
	ContactID string    `json:"contact_id" gorm:"type:text;uniqueIndex:idx_segment_members_pair"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the SegmentMember model.
func (SegmentMember) TableName() string {
	return "segment_members"
}
