package dto

import (
	"time"
)

// MessageVariantDTO is one message body variant
type MessageVariantDTO struct {
	Body string `json:"body" validate:"required,min=1,max=4096"`
}

// CampaignDTO represents a campaign in API responses
type CampaignDTO struct {
	UUID          string              `json:"uuid"`
	PublicID      uint                `json:"public_id"`
	NumberID      uint                `json:"number_id"`
	Status        string              `json:"status"`
	Variants      []MessageVariantDTO `json:"variants"`
	ScheduleAt    *string             `json:"schedule_at,omitempty"`
	TotalContacts int                 `json:"total_contacts"`
	LastError     *string             `json:"last_error,omitempty"`
	CreatedAt     string              `json:"created_at"`
}

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	UserID     uint                `json:"-"`
	PublicUUID string              `json:"public_uuid" validate:"required,uuid4"`
	NumberUUID string              `json:"number_uuid" validate:"required,uuid4"`
	Variants   []MessageVariantDTO `json:"variants" validate:"required,min=1,max=10,dive"`
	ScheduleAt *time.Time          `json:"schedule_at,omitempty"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message  string      `json:"message"`
	Campaign CampaignDTO `json:"campaign"`
}

// GetCampaignRequest represents the request to get an existing campaign
type GetCampaignRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// ListCampaignsRequest represents filter criteria for listing campaigns
type ListCampaignsRequest struct {
	UserID   uint    `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=pending scheduled queued active paused completed canceled failed"`
	Page     int     `json:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCampaignsResponse represents the response to list campaigns
type ListCampaignsResponse struct {
	Message   string        `json:"message"`
	Campaigns []CampaignDTO `json:"campaigns"`
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
}

// CancelCampaignRequest represents the request to cancel a campaign
type CancelCampaignRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// CancelCampaignResponse represents the response to cancel a campaign
type CancelCampaignResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// PauseCampaignRequest represents the request to pause a campaign
type PauseCampaignRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// PauseCampaignResponse represents the response to pause a campaign
type PauseCampaignResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ResumeCampaignRequest represents the request to resume a paused campaign
type ResumeCampaignRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// ResumeCampaignResponse represents the response to resume a paused campaign
type ResumeCampaignResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ListCampaignMessagesRequest represents the request to list the messages of a campaign
type ListCampaignMessagesRequest struct {
	UUID     string  `json:"-"`
	UserID   uint    `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=pending sent failed"`
	Page     int     `json:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCampaignMessagesResponse represents the response to list the messages of a campaign
type ListCampaignMessagesResponse struct {
	Message  string       `json:"message"`
	Messages []MessageDTO `json:"messages"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// MessageDTO represents a single campaign message in API responses
type MessageDTO struct {
	ID         uint    `json:"id"`
	CampaignID uint    `json:"campaign_id"`
	Phone      string  `json:"phone"`
	Body       string  `json:"body"`
	Status     string  `json:"status"`
	Error      *string `json:"error,omitempty"`
	SentAt     *string `json:"sent_at,omitempty"`
}
