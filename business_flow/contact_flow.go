// Package businessflow contains the core business logic and use cases for contact workflows
package businessflow

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/xuri/excelize/v2"
	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
)

// ContactFlow handles the contact base business logic
type ContactFlow interface {
	ListContacts(ctx context.Context, req *dto.ListContactsRequest, metadata *ClientMetadata) (*dto.ListContactsResponse, error)
	DeleteContact(ctx context.Context, req *dto.DeleteContactRequest, metadata *ClientMetadata) (*dto.DeleteContactResponse, error)
	// ExportContacts renders the user's contacts as an xlsx workbook
	ExportContacts(ctx context.Context, userID uint, metadata *ClientMetadata) (*excelize.File, error)
	ListNumbers(ctx context.Context, userID uint, metadata *ClientMetadata) (*dto.ListNumbersResponse, error)
}

// ContactFlowImpl implements the contact business flow
type ContactFlowImpl struct {
	contactRepo repository.ContactRepository
	numberRepo  repository.NumberRepository
}

// NewContactFlow creates a new contact flow instance
func NewContactFlow(
	contactRepo repository.ContactRepository,
	numberRepo repository.NumberRepository,
) ContactFlow {
	return &ContactFlowImpl{
		contactRepo: contactRepo,
		numberRepo:  numberRepo,
	}
}

// ListContacts returns a filtered page of the user's contact base
func (s *ContactFlowImpl) ListContacts(ctx context.Context, req *dto.ListContactsRequest, metadata *ClientMetadata) (*dto.ListContactsResponse, error) {
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_VALIDATION_FAILED", "Contact list validation failed", err)
	}

	filter := models.ContactFilter{UserID: &req.UserID}
	if req.NumberUUID != nil {
		number, err := s.numberRepo.ByUUID(ctx, *req.NumberUUID)
		if err != nil {
			return nil, NewBusinessError("NUMBER_LOOKUP_FAILED", "Failed to lookup number", err)
		}
		if number == nil || number.UserID != req.UserID {
			return nil, NewBusinessError("NUMBER_NOT_FOUND", "Number not found", ErrNumberNotFound)
		}
		filter.NumberID = &number.ID
	}
	if req.Search != nil && *req.Search != "" {
		filter.Search = req.Search
	}
	if len(req.Labels) > 0 {
		labels := pq.StringArray(req.Labels)
		filter.Labels = &labels
		filter.LabelMatch = models.LabelMatch(req.LabelMatch)
		if filter.LabelMatch == "" {
			filter.LabelMatch = models.LabelMatchAny
		}
	}

	contacts, err := s.contactRepo.ByFilter(ctx, filter, "name ASC, id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to list contacts", err)
	}

	out := make([]dto.ContactDTO, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, ToContactDTO(*c))
	}

	return &dto.ListContactsResponse{
		Message:  "Contacts retrieved successfully",
		Contacts: out,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// DeleteContact soft-deletes a contact. The phone becomes importable again;
// messages already created keep their reference.
func (s *ContactFlowImpl) DeleteContact(ctx context.Context, req *dto.DeleteContactRequest, metadata *ClientMetadata) (*dto.DeleteContactResponse, error) {
	contact, err := s.contactRepo.ByID(ctx, req.ID)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LOOKUP_FAILED", "Failed to lookup contact", err)
	}
	if contact == nil {
		return nil, NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", ErrContactNotFound)
	}
	if contact.UserID != req.UserID {
		return nil, NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", ErrContactNotFound)
	}

	if err := s.contactRepo.SoftDelete(ctx, contact.ID); err != nil {
		return nil, NewBusinessError("CONTACT_DELETE_FAILED", "Failed to delete contact", err)
	}

	return &dto.DeleteContactResponse{Message: "Contact deleted successfully"}, nil
}

// ExportContacts writes the user's full contact base into an xlsx workbook
func (s *ContactFlowImpl) ExportContacts(ctx context.Context, userID uint, metadata *ClientMetadata) (*excelize.File, error) {
	contacts, err := s.contactRepo.ByFilter(ctx, models.ContactFilter{UserID: &userID}, "name ASC, id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("CONTACT_EXPORT_FAILED", "Failed to load contacts for export", err)
	}

	workbook := excelize.NewFile()
	sheet := workbook.GetSheetName(0)

	headers := []string{"Telefone", "Nome", "Etiquetas", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := workbook.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write export header: %w", err)
		}
	}

	for rowIdx, contact := range contacts {
		values := []any{
			contact.Phone,
			contact.Name,
			contact.LabelSummary,
			string(contact.Status),
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := workbook.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write export row: %w", err)
			}
		}
	}

	return workbook, nil
}

// ListNumbers returns the user's channel numbers
func (s *ContactFlowImpl) ListNumbers(ctx context.Context, userID uint, metadata *ClientMetadata) (*dto.ListNumbersResponse, error) {
	numbers, err := s.numberRepo.ByFilter(ctx, models.NumberFilter{UserID: &userID}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("NUMBER_LIST_FAILED", "Failed to list numbers", err)
	}

	out := make([]dto.NumberDTO, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, ToNumberDTO(*n))
	}

	return &dto.ListNumbersResponse{
		Message: "Numbers retrieved successfully",
		Numbers: out,
	}, nil
}
