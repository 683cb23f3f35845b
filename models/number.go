package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/zapflowbr/zapflow/utils"
)

// ConnectionState is the reported channel state of a number instance
type ConnectionState string

const (
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateDisconnected ConnectionState = "disconnected"
)

// Number represents a channel sender instance owned by a user.
// Contact synchronization targets numbers that are enabled and connected.
// Table: numbers
// Unique by instance name
// Timestamps default to UTC at DB level
type Number struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_numbers_uuid;index:idx_numbers_uuid" json:"uuid"`

	UserID       uint   `gorm:"not null;index:idx_numbers_user_id" json:"user_id"`
	InstanceName string `gorm:"size:255;not null;uniqueIndex:uk_numbers_instance_name" json:"instance_name"`
	// OwnerPhone is the normalized phone of the account behind the instance (cel_owner source)
	OwnerPhone string `gorm:"size:20;not null;index:idx_numbers_owner_phone" json:"owner_phone"`

	Enabled         *bool           `gorm:"default:true;index:idx_numbers_enabled" json:"enabled"`
	ConnectionState ConnectionState `gorm:"size:20;not null;default:'disconnected';index:idx_numbers_connection_state" json:"connection_state"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_numbers_created_at" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Number) TableName() string { return "numbers" }

// Syncable reports whether the contact-sync scheduler should target this number
func (n *Number) Syncable() bool {
	return utils.IsTrue(n.Enabled) && n.ConnectionState == ConnectionStateConnected
}

// NumberFilter represents filter criteria for number queries
type NumberFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	UserID          *uint
	InstanceName    *string
	OwnerPhone      *string
	Enabled         *bool
	ConnectionState *ConnectionState
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
