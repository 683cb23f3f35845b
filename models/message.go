package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// MessageStatus represents the delivery status of an outbound message
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

// Valid checks if the status is valid
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusPending, MessageStatusSent, MessageStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MessageStatus
func (s *MessageStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = MessageStatus(v)
	case []byte:
		*s = MessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageStatus
func (s MessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid MessageStatus: %s", s)
	}
	return string(s), nil
}

// Message is one outbound message row produced by a campaign dispatch.
// JobID ties the row to the queue job that carries it, so a redelivered
// job can detect work it already performed.
type Message struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	CampaignID uint          `gorm:"not null;index:idx_messages_campaign_id" json:"campaign_id"`
	UserID     uint          `gorm:"not null;index:idx_messages_user_id" json:"user_id"`
	ContactID  *uint         `gorm:"index:idx_messages_contact_id" json:"contact_id,omitempty"`
	Phone      string        `gorm:"size:20;not null;index:idx_messages_phone" json:"phone"`
	Body       string        `gorm:"type:text;not null" json:"body"`
	Status     MessageStatus `gorm:"type:message_status;not null;default:'pending';index:idx_messages_status" json:"status"`
	JobID      string        `gorm:"size:64;index:idx_messages_job_id" json:"job_id"`
	Error      *string       `gorm:"type:text" json:"error,omitempty"`
	SentAt     *time.Time    `json:"sent_at,omitempty"`
	CreatedAt  time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_messages_created_at" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Message) TableName() string { return "messages" }

// MessageFilter represents filter criteria for message queries
type MessageFilter struct {
	ID            *uint
	CampaignID    *uint
	UserID        *uint
	ContactID     *uint
	Phone         *string
	Status        *MessageStatus
	JobID         *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
