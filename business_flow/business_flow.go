// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToCampaignDTO converts a campaign model to its API representation
func ToCampaignDTO(campaign models.Campaign) dto.CampaignDTO {
	variants := make([]dto.MessageVariantDTO, 0, len(campaign.Variants))
	for _, v := range campaign.Variants {
		variants = append(variants, dto.MessageVariantDTO{Body: v.Body})
	}

	out := dto.CampaignDTO{
		UUID:          campaign.UUID.String(),
		PublicID:      campaign.PublicID,
		NumberID:      campaign.NumberID,
		Status:        campaign.Status.String(),
		Variants:      variants,
		TotalContacts: campaign.TotalContacts,
		LastError:     campaign.LastError,
		CreatedAt:     campaign.CreatedAt.Format(time.RFC3339),
	}
	if campaign.ScheduleAt != nil {
		s := campaign.ScheduleAt.Format(time.RFC3339)
		out.ScheduleAt = &s
	}
	return out
}

// ToPublicDTO converts a public model to its API representation
func ToPublicDTO(public models.Public) dto.PublicDTO {
	return dto.PublicDTO{
		UUID:          public.UUID.String(),
		Name:          public.Name,
		Kind:          string(public.Kind),
		Status:        string(public.Status),
		Labels:        public.Labels,
		LabelMatch:    string(public.LabelMatch),
		Search:        public.Search,
		Tag:           public.Tag,
		TotalContacts: public.TotalContacts,
		LastError:     public.LastError,
		CreatedAt:     public.CreatedAt.Format(time.RFC3339),
	}
}

// ToContactDTO converts a contact model to its API representation
func ToContactDTO(contact models.Contact) dto.ContactDTO {
	return dto.ContactDTO{
		ID:           contact.ID,
		Phone:        contact.Phone,
		Name:         contact.Name,
		Labels:       contact.Labels,
		LabelSummary: contact.LabelSummary,
		Status:       string(contact.Status),
		CreatedAt:    contact.CreatedAt.Format(time.RFC3339),
	}
}

// ToMessageDTO converts a message model to its API representation
func ToMessageDTO(message models.Message) dto.MessageDTO {
	out := dto.MessageDTO{
		ID:         message.ID,
		CampaignID: message.CampaignID,
		Phone:      message.Phone,
		Body:       message.Body,
		Status:     string(message.Status),
		Error:      message.Error,
	}
	if message.SentAt != nil {
		s := message.SentAt.Format(time.RFC3339)
		out.SentAt = &s
	}
	return out
}

// ToNumberDTO converts a number model to its API representation
func ToNumberDTO(number models.Number) dto.NumberDTO {
	out := dto.NumberDTO{
		UUID:            number.UUID.String(),
		InstanceName:    number.InstanceName,
		OwnerPhone:      number.OwnerPhone,
		Enabled:         number.Enabled != nil && *number.Enabled,
		ConnectionState: string(number.ConnectionState),
	}
	if number.LastSyncAt != nil {
		s := number.LastSyncAt.Format(time.RFC3339)
		out.LastSyncAt = &s
	}
	return out
}
