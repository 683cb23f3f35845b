package dto

// PublicDTO represents an audience public in API responses
type PublicDTO struct {
	UUID          string   `json:"uuid"`
	Name          string   `json:"name"`
	Kind          string   `json:"kind"`
	Status        string   `json:"status"`
	Labels        []string `json:"labels,omitempty"`
	LabelMatch    string   `json:"label_match,omitempty"`
	Search        *string  `json:"search,omitempty"`
	Tag           *string  `json:"tag,omitempty"`
	TotalContacts int      `json:"total_contacts"`
	LastError     *string  `json:"last_error,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

// CreateLabelPublicRequest represents the request to create a label-based public
type CreateLabelPublicRequest struct {
	UserID     uint     `json:"-"`
	Name       string   `json:"name" validate:"required,min=1,max=255"`
	Labels     []string `json:"labels" validate:"required,min=1,dive,min=1,max=255"`
	LabelMatch string   `json:"label_match" validate:"omitempty,oneof=any all"`
}

// CreateSimplifiedPublicRequest represents the request to derive a public from an existing one
type CreateSimplifiedPublicRequest struct {
	UserID           uint    `json:"-"`
	Name             string  `json:"name" validate:"required,min=1,max=255"`
	SourcePublicUUID string  `json:"source_public_uuid" validate:"required,uuid4"`
	Search           *string `json:"search,omitempty" validate:"omitempty,max=255"`
	Tag              *string `json:"tag,omitempty" validate:"omitempty,max=255"`
}

// CreateCustomPublicRequest represents the request to build a public from an uploaded file
type CreateCustomPublicRequest struct {
	UserID   uint   `json:"-"`
	Name     string `json:"-" validate:"required,min=1,max=255"`
	FileName string `json:"-"`
	FilePath string `json:"-"`
}

// CreatePublicResponse represents the response to create a public
type CreatePublicResponse struct {
	Message string    `json:"message"`
	Public  PublicDTO `json:"public"`
}

// GetPublicRequest represents the request to get an existing public
type GetPublicRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// ListPublicsRequest represents filter criteria for listing publics
type ListPublicsRequest struct {
	UserID   uint    `json:"-"`
	Kind     *string `json:"kind,omitempty" validate:"omitempty,oneof=label simplified custom"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=pending queued resolving ready canceled failed"`
	Page     int     `json:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListPublicsResponse represents the response to list publics
type ListPublicsResponse struct {
	Message  string      `json:"message"`
	Publics  []PublicDTO `json:"publics"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// CancelPublicRequest represents the request to cancel a resolving public
type CancelPublicRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// CancelPublicResponse represents the response to cancel a public
type CancelPublicResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ListPublicRecipientsRequest represents the request to list the resolved recipients of a public
type ListPublicRecipientsRequest struct {
	UUID     string `json:"-"`
	UserID   uint   `json:"-"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// RecipientDTO is one resolved recipient of a public
type RecipientDTO struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// ListPublicRecipientsResponse represents the response to list the recipients of a public
type ListPublicRecipientsResponse struct {
	Message    string         `json:"message"`
	Recipients []RecipientDTO `json:"recipients"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
