package dto

// ContactDTO represents a contact in API responses
type ContactDTO struct {
	ID           uint     `json:"id"`
	Phone        string   `json:"phone"`
	Name         string   `json:"name,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	LabelSummary string   `json:"label_summary,omitempty"`
	Status       string   `json:"status"`
	CreatedAt    string   `json:"created_at"`
}

// ListContactsRequest represents filter criteria for listing contacts
type ListContactsRequest struct {
	UserID     uint     `json:"-"`
	NumberUUID *string  `json:"number_uuid,omitempty" validate:"omitempty,uuid4"`
	Search     *string  `json:"search,omitempty" validate:"omitempty,max=255"`
	Labels     []string `json:"labels,omitempty"`
	LabelMatch string   `json:"label_match" validate:"omitempty,oneof=any all"`
	Page       int      `json:"page" validate:"omitempty,min=1"`
	PageSize   int      `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListContactsResponse represents the response to list contacts
type ListContactsResponse struct {
	Message  string       `json:"message"`
	Contacts []ContactDTO `json:"contacts"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// ImportContactsRequest represents an uploaded contact file import.
// Label, when set, is stamped onto every imported contact.
type ImportContactsRequest struct {
	UserID     uint   `json:"-"`
	NumberUUID string `json:"-" validate:"required,uuid4"`
	FileName   string `json:"-"`
	Label      string `json:"-" validate:"omitempty,max=100"`
	DryRun     bool   `json:"-"`
}

// ImportRowError describes one rejected line of an import file
type ImportRowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportSummaryDTO aggregates the result of a contact import
type ImportSummaryDTO struct {
	TotalLines int              `json:"total_lines"`
	Imported   int              `json:"imported"`
	Duplicates int              `json:"duplicates"`
	Invalid    int              `json:"invalid"`
	Errors     []ImportRowError `json:"errors,omitempty"`
	Preview    []ContactDTO     `json:"preview,omitempty"`
}

// ImportContactsResponse represents the response to a contact import
type ImportContactsResponse struct {
	Message string           `json:"message"`
	Summary ImportSummaryDTO `json:"summary"`
}

// DeleteContactRequest represents the request to soft-delete a contact
type DeleteContactRequest struct {
	ID     uint `json:"-"`
	UserID uint `json:"-"`
}

// DeleteContactResponse represents the response to delete a contact
type DeleteContactResponse struct {
	Message string `json:"message"`
}

// NumberDTO represents a connected channel number in API responses
type NumberDTO struct {
	UUID            string  `json:"uuid"`
	InstanceName    string  `json:"instance_name"`
	OwnerPhone      string  `json:"owner_phone"`
	Enabled         bool    `json:"enabled"`
	ConnectionState string  `json:"connection_state"`
	LastSyncAt      *string `json:"last_sync_at,omitempty"`
}

// ListNumbersResponse represents the response to list numbers
type ListNumbersResponse struct {
	Message string      `json:"message"`
	Numbers []NumberDTO `json:"numbers"`
}
