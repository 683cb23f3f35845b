package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ContactStatus represents the status of a contact
type ContactStatus string

const (
	ContactStatusActive   ContactStatus = "active"
	ContactStatusBlocked  ContactStatus = "blocked"
	ContactStatusInactive ContactStatus = "inactive"
)

// Valid checks if the status is valid
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusActive, ContactStatusBlocked, ContactStatusInactive:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ContactStatus
func (s *ContactStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ContactStatus(v)
	case []byte:
		*s = ContactStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ContactStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ContactStatus
func (s ContactStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ContactStatus: %s", s)
	}
	return string(s), nil
}

// Contact represents a recipient record owned by a user and a number instance.
// Phone is stored normalized (digits only, 55-prefixed). CelOwner is the
// normalized phone of the owning number, used to scope contact visibility.
// Labels are free-text tags stored as a TEXT[] column; LabelSummary is a
// denormalized comma-joined copy used for substring tag filtering.
type Contact struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"not null;index:idx_contacts_user_id;uniqueIndex:uk_contacts_phone_number_user" json:"user_id"`
	NumberID uint   `gorm:"not null;index:idx_contacts_number_id;uniqueIndex:uk_contacts_phone_number_user" json:"number_id"`
	CelOwner string `gorm:"size:20;not null;index:idx_contacts_cel_owner" json:"cel_owner"`

	Phone        string         `gorm:"size:20;not null;index:idx_contacts_phone;uniqueIndex:uk_contacts_phone_number_user" json:"phone"`
	Name         string         `gorm:"size:255" json:"name"`
	Labels       pq.StringArray `gorm:"type:text[];index:idx_contacts_labels_gin,using:gin" json:"labels"`
	LabelSummary string         `gorm:"type:text" json:"label_summary"`

	Status    ContactStatus  `gorm:"type:contact_status;not null;default:'active';index:idx_contacts_status" json:"status"`
	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_contacts_created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index:idx_contacts_deleted_at" json:"deleted_at,omitempty"`
}

func (Contact) TableName() string { return "contacts" }

// HasLabel reports whether the contact carries the given label
func (c *Contact) HasLabel(label string) bool {
	for _, l := range c.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// LabelMatch selects how a multi-label filter combines its labels
type LabelMatch string

const (
	// LabelMatchAny qualifies a contact carrying at least one requested label
	LabelMatchAny LabelMatch = "any"
	// LabelMatchAll qualifies a contact carrying every requested label
	LabelMatchAll LabelMatch = "all"
)

// Valid checks if the match mode is valid
func (m LabelMatch) Valid() bool {
	return m == LabelMatchAny || m == LabelMatchAll
}

// ContactFilter represents filter criteria for contact queries
type ContactFilter struct {
	ID         *uint
	UserID     *uint
	NumberID   *uint
	CelOwner   *string
	Phone      *string
	Status     *ContactStatus
	Labels     *pq.StringArray
	LabelMatch LabelMatch
	// Search matches name or phone (ILIKE)
	Search *string
	// TagContains substring-matches the label summary field
	TagContains   *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
