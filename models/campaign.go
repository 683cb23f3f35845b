package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// CampaignStatus represents the status of a campaign
type CampaignStatus string

const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusQueued    CampaignStatus = "queued"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCanceled  CampaignStatus = "canceled"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusPending, CampaignStatusScheduled, CampaignStatusQueued,
		CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted,
		CampaignStatusCanceled, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from this status
func (s CampaignStatus) Terminal() bool {
	switch s {
	case CampaignStatusCompleted, CampaignStatusCanceled, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Dispatchable reports whether the scheduler may pick this status up
func (s CampaignStatus) Dispatchable() bool {
	return s == CampaignStatusPending || s == CampaignStatusScheduled
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// MessageVariant is one templated message body of a campaign. Variants are
// assigned to recipients round-robin in dispatch order.
type MessageVariant struct {
	Body string `json:"body"`
}

// MessageVariants is the ordered list of variants stored as JSONB
type MessageVariants []MessageVariant

// Value implements the driver.Valuer interface for MessageVariants
func (v MessageVariants) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// Scan implements the sql.Scanner interface for MessageVariants
func (v *MessageVariants) Scan(value any) error {
	if value == nil {
		*v = nil
		return nil
	}

	var bytes []byte
	switch val := value.(type) {
	case []byte:
		bytes = val
	case string:
		bytes = []byte(val)
	default:
		return fmt.Errorf("cannot scan %T into MessageVariants", value)
	}

	return json.Unmarshal(bytes, v)
}

// Campaign represents a unit of outbound work: a batch of templated messages
// dispatched to a resolved audience.
type Campaign struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid;index:idx_campaigns_uuid" json:"uuid"`
	UserID     uint            `gorm:"not null;index:idx_campaigns_user_id" json:"user_id"`
	PublicID   uint            `gorm:"not null;index:idx_campaigns_public_id" json:"public_id"`
	NumberID   uint            `gorm:"not null;index:idx_campaigns_number_id" json:"number_id"`
	Status     CampaignStatus  `gorm:"type:campaign_status;not null;default:'pending';index:idx_campaigns_status" json:"status"`
	Variants   MessageVariants `gorm:"type:jsonb;not null" json:"variants"`
	ScheduleAt *time.Time      `gorm:"index:idx_campaigns_schedule_at" json:"schedule_at,omitempty"`

	// Audience size snapshot taken at creation time
	TotalContacts int `gorm:"not null;default:0" json:"total_contacts"`

	LastError *string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `gorm:"index:idx_campaigns_updated_at" json:"updated_at,omitempty"`

	// Relations
	Public *Public `gorm:"foreignKey:PublicID;references:ID" json:"public,omitempty"`
	Number *Number `gorm:"foreignKey:NumberID;references:ID" json:"number,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		if c.ScheduleAt != nil {
			c.Status = CampaignStatusScheduled
		} else {
			c.Status = CampaignStatusPending
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// Due reports whether the campaign is eligible for dispatch at the given time
func (c *Campaign) Due(now time.Time) bool {
	if !c.Status.Dispatchable() {
		return false
	}
	if c.ScheduleAt == nil {
		return true
	}
	return !c.ScheduleAt.After(now)
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusPending, CampaignStatusScheduled:
		return newStatus == CampaignStatusQueued ||
			newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusCanceled
	case CampaignStatusQueued:
		return newStatus == CampaignStatusActive ||
			newStatus == CampaignStatusCanceled
	case CampaignStatusActive:
		return newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusFailed ||
			newStatus == CampaignStatusCanceled
	case CampaignStatusPaused:
		return newStatus == CampaignStatusPending ||
			newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusCanceled
	default:
		return false
	}
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID             *uint           `json:"id,omitempty"`
	UUID           *uuid.UUID      `json:"uuid,omitempty"`
	UserID         *uint           `json:"user_id,omitempty"`
	PublicID       *uint           `json:"public_id,omitempty"`
	NumberID       *uint           `json:"number_id,omitempty"`
	Status         *CampaignStatus `json:"status,omitempty"`
	ScheduleAfter  *time.Time      `json:"schedule_after,omitempty"`
	ScheduleBefore *time.Time      `json:"schedule_before,omitempty"`
	CreatedAfter   *time.Time      `json:"created_after,omitempty"`
	CreatedBefore  *time.Time      `json:"created_before,omitempty"`
}
