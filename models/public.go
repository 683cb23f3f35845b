package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// PublicKind selects the audience-resolution strategy for a public
type PublicKind string

const (
	// PublicKindLabel is computed on demand from contacts matching labels
	PublicKindLabel PublicKind = "label"
	// PublicKindSimplified is a materialized snapshot filtered from another public
	PublicKindSimplified PublicKind = "simplified"
	// PublicKindCustom is a materialized snapshot derived from an uploaded file
	PublicKindCustom PublicKind = "custom"
)

// Valid checks if the kind is valid
func (k PublicKind) Valid() bool {
	switch k {
	case PublicKindLabel, PublicKindSimplified, PublicKindCustom:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PublicKind
func (k *PublicKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*k = PublicKind(v)
	case []byte:
		*k = PublicKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PublicKind", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PublicKind
func (k PublicKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid PublicKind: %s", k)
	}
	return string(k), nil
}

// PublicStatus represents the resolution status of a public
type PublicStatus string

const (
	PublicStatusPending   PublicStatus = "pending"
	PublicStatusQueued    PublicStatus = "queued"
	PublicStatusResolving PublicStatus = "resolving"
	PublicStatusReady     PublicStatus = "ready"
	PublicStatusCanceled  PublicStatus = "canceled"
	PublicStatusFailed    PublicStatus = "failed"
)

// Valid checks if the status is valid
func (s PublicStatus) Valid() bool {
	switch s {
	case PublicStatusPending, PublicStatusQueued, PublicStatusResolving,
		PublicStatusReady, PublicStatusCanceled, PublicStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from this status
func (s PublicStatus) Terminal() bool {
	return s == PublicStatusCanceled || s == PublicStatusFailed
}

// Scan implements the sql.Scanner interface for PublicStatus
func (s *PublicStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = PublicStatus(v)
	case []byte:
		*s = PublicStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PublicStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PublicStatus
func (s PublicStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid PublicStatus: %s", s)
	}
	return string(s), nil
}

// Public represents a named, resolvable recipient group targeted by campaigns.
// Label publics resolve on demand; simplified and custom publics materialize
// snapshot rows (PublicContact) through the public-resolution queues.
type Public struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	UUID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_publics_uuid;index:idx_publics_uuid" json:"uuid"`
	UserID uint       `gorm:"not null;index:idx_publics_user_id" json:"user_id"`
	Name   string     `gorm:"size:255;not null" json:"name"`
	Kind   PublicKind `gorm:"type:public_kind;not null;index:idx_publics_kind" json:"kind"`

	Status PublicStatus `gorm:"type:public_status;not null;default:'pending';index:idx_publics_status" json:"status"`

	// Label strategy
	Labels     pq.StringArray `gorm:"type:text[]" json:"labels,omitempty"`
	LabelMatch LabelMatch     `gorm:"size:10;not null;default:'any'" json:"label_match"`

	// Simplified strategy: source public plus search/tag filters
	SourcePublicID *uint   `gorm:"index:idx_publics_source_public_id" json:"source_public_id,omitempty"`
	Search         *string `gorm:"size:255" json:"search,omitempty"`
	Tag            *string `gorm:"size:255" json:"tag,omitempty"`

	// Custom strategy: uploaded spreadsheet
	FilePath *string `gorm:"size:512" json:"file_path,omitempty"`

	TotalContacts int        `gorm:"not null;default:0" json:"total_contacts"`
	LastError     *string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_publics_created_at" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Public) TableName() string {
	return "publics"
}

// BeforeCreate is called before creating a new record
func (p *Public) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PublicStatusPending
	}
	if p.LabelMatch == "" {
		p.LabelMatch = LabelMatchAny
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (p *Public) BeforeUpdate(tx *gorm.DB) error {
	p.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// Canceled reports whether the public was canceled. Resolution completing
// after cancellation must discard its result.
func (p *Public) Canceled() bool {
	return p.Status == PublicStatusCanceled
}

// PublicFilter represents filter criteria for public queries
type PublicFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	UserID         *uint
	Kind           *PublicKind
	Status         *PublicStatus
	SourcePublicID *uint
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

// PublicContact is a materialized snapshot row of a simplified or custom
// public. Phone is stored normalized; ContactID is set when the row
// originated from an existing contact.
type PublicContact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PublicID  uint      `gorm:"not null;index:idx_public_contacts_public_id" json:"public_id"`
	ContactID *uint     `gorm:"index:idx_public_contacts_contact_id" json:"contact_id,omitempty"`
	Phone     string    `gorm:"size:20;not null;index:idx_public_contacts_phone" json:"phone"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (PublicContact) TableName() string { return "public_contacts" }

// PublicContactFilter represents filter criteria for snapshot rows
type PublicContactFilter struct {
	ID       *uint
	PublicID *uint
	Phone    *string
}
