package model

import (
	"time"

	"gorm.io/datatypes"
)

// Lead source values recorded when the pipeline creates a contact.
const (
	LeadSourceWhatsApp = "whatsapp"
	LeadSourceManual   = "manual"
)

// Contact is the identity record for one person. The pipeline creates
// contacts on first sighting of a phone number; CRUD screens create the rest.
type Contact struct {
	ID           string         `json:"id" gorm:"primaryKey;type:text"`
	PhoneNumber  string         `json:"phone_number,omitempty" gorm:"type:text;uniqueIndex:idx_contacts_phone,where:phone_number <> ''"`
	DisplayName  string         `json:"display_name,omitempty" gorm:"type:text"`
	Email        string         `json:"email,omitempty" gorm:"type:text"`
	LeadSource   string         `json:"lead_source,omitempty" gorm:"type:text"`
	Tags         string         `json:"tags,omitempty" gorm:"type:text"` // comma-separated
	CreatedAt    time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
	LastMetadata datatypes.JSON `json:"last_metadata,omitempty" gorm:"type:jsonb;column:last_metadata"`
}

// TableName specifies the table name for the Contact model.
func (Contact) TableName() string {
	return "contacts"
}

// ContactConflictColumns returns the columns refreshed when an upsert hits an
// existing phone number. Identity fields (id, phone, lead_source, created_at)
// are never overwritten by a duplicate webhook delivery. display_name is not
// in this set: an event without a profile name must not wipe a name an
// operator set by hand, so the upsert adds it only when the event carried one.
func ContactConflictColumns() []string {
	return []string{"updated_at", "last_metadata"}
}

// FallbackDisplayName names a contact created from a message that carried no
// profile name.
func FallbackDisplayName(phone string) string {
	return "WhatsApp " + phone
}
