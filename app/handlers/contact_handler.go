package handlers

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/zapflowbr/zapflow/app/dto"
	businessflow "github.com/zapflowbr/zapflow/business_flow"
)

// ContactHandlerInterface defines the contract for contact handlers
type ContactHandlerInterface interface {
	ListContacts(c fiber.Ctx) error
	DeleteContact(c fiber.Ctx) error
	ImportContacts(c fiber.Ctx) error
	ImportContactsDryRun(c fiber.Ctx) error
	ExportContacts(c fiber.Ctx) error
	ListNumbers(c fiber.Ctx) error
}

// ContactHandler handles contact HTTP requests
type ContactHandler struct {
	contactFlow   businessflow.ContactFlow
	importFlow    businessflow.ContactImportFlow
	maxImportSize int64
	validator     *validator.Validate
}

// NewContactHandler creates a new contact handler. maxImportSize caps uploaded
// import files in bytes; zero keeps the 10 MiB default.
func NewContactHandler(contactFlow businessflow.ContactFlow, importFlow businessflow.ContactImportFlow, maxImportSize int64) *ContactHandler {
	if maxImportSize <= 0 {
		maxImportSize = 10 << 20
	}
	return &ContactHandler{
		contactFlow:   contactFlow,
		importFlow:    importFlow,
		maxImportSize: maxImportSize,
		validator:     validator.New(),
	}
}

func (h *ContactHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ContactHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListContacts returns the authenticated user's contacts
// @Summary List Contacts
// @Description List the authenticated user's contacts with search, label, and number filters
// @Tags Contacts
// @Produce json
// @Param number_uuid query string false "Filter by number UUID"
// @Param search query string false "Search by name or phone"
// @Param labels query string false "Comma-separated labels"
// @Param label_match query string false "Label match mode: any or all (default any)"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20)"
// @Success 200 {object} dto.APIResponse{data=dto.ListContactsResponse} "Contacts retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid filter or pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/contacts [get]
func (h *ContactHandler) ListContacts(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListContactsRequest{
		UserID:     userID,
		LabelMatch: c.Query("label_match"),
		Page:       fiber.Query(c, "page", 0),
		PageSize:   fiber.Query(c, "page_size", 0),
	}
	if numberUUID := c.Query("number_uuid"); numberUUID != "" {
		req.NumberUUID = &numberUUID
	}
	if search := c.Query("search"); search != "" {
		req.Search = &search
	}
	if labels := c.Query("labels"); labels != "" {
		for _, label := range strings.Split(labels, ",") {
			if label = strings.TrimSpace(label); label != "" {
				req.Labels = append(req.Labels, label)
			}
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.contactFlow.ListContacts(createRequestContext(c, "/api/v1/contacts"), &req, metadata)
	if err != nil {
		return h.contactError(c, err, "Failed to list contacts", "CONTACT_LIST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// DeleteContact soft-deletes one of the user's contacts
// @Summary Delete Contact
// @Description Soft-delete one of the authenticated user's contacts
// @Tags Contacts
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} dto.APIResponse "Contact deleted successfully"
// @Failure 400 {object} dto.APIResponse "Invalid contact ID"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Contact not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/contacts/{id} [delete]
func (h *ContactHandler) DeleteContact(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	contactID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || contactID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid contact ID", "INVALID_CONTACT_ID", nil)
	}

	req := dto.DeleteContactRequest{ID: uint(contactID), UserID: userID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.contactFlow.DeleteContact(createRequestContext(c, "/api/v1/contacts/"+c.Params("id")), &req, metadata)
	if err != nil {
		if businessflow.IsContactNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", "CONTACT_NOT_FOUND", nil)
		}
		return h.contactError(c, err, "Contact deletion failed", "CONTACT_DELETE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, nil)
}

// ImportContacts imports contacts from an uploaded CSV or XLSX file
// @Summary Import Contacts
// @Description Import contacts from an uploaded CSV or XLSX file into one of the user's numbers
// @Tags Contacts
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX contact file"
// @Param number_uuid formData string true "Number UUID the contacts belong to"
// @Param label formData string false "Label stamped onto every imported contact"
// @Success 200 {object} dto.APIResponse{data=dto.ImportSummaryDTO} "Contacts imported successfully"
// @Failure 400 {object} dto.APIResponse "Invalid file or no phone column"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Number not found"
// @Failure 413 {object} dto.APIResponse "File exceeds the size limit"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/contacts/import [post]
func (h *ContactHandler) ImportContacts(c fiber.Ctx) error {
	return h.runImport(c, false, "/api/v1/contacts/import")
}

// ImportContactsDryRun validates an import file without persisting anything
// @Summary Validate Contact Import
// @Description Run an import file through validation and summarize the result without writing anything
// @Tags Contacts
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX contact file"
// @Param number_uuid formData string true "Number UUID the contacts belong to"
// @Param label formData string false "Label that would be stamped onto the contacts"
// @Success 200 {object} dto.APIResponse{data=dto.ImportSummaryDTO} "Import dry run completed"
// @Failure 400 {object} dto.APIResponse "Invalid file or no phone column"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Number not found"
// @Failure 413 {object} dto.APIResponse "File exceeds the size limit"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/contacts/import/test [post]
func (h *ContactHandler) ImportContactsDryRun(c fiber.Ctx) error {
	return h.runImport(c, true, "/api/v1/contacts/import/test")
}

func (h *ContactHandler) runImport(c fiber.Ctx, dryRun bool, endpoint string) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "INVALID_FILE", nil)
	}
	if fileHeader.Size > h.maxImportSize {
		return h.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "Import file exceeds the size limit", "IMPORT_FILE_TOO_LARGE", nil)
	}

	req := dto.ImportContactsRequest{
		UserID:     userID,
		NumberUUID: c.FormValue("number_uuid"),
		FileName:   fileHeader.Filename,
		Label:      c.FormValue("label"),
		DryRun:     dryRun,
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to read uploaded file", "INVALID_FILE", nil)
	}
	defer file.Close()

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.importFlow.Import(createRequestContext(c, endpoint), &req, file, metadata)
	if err != nil {
		switch {
		case businessflow.IsImportFileEmpty(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Import file is empty", "IMPORT_FILE_EMPTY", nil)
		case businessflow.IsImportColumnsNotFound(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Could not locate a phone column in the file", "IMPORT_COLUMNS_NOT_FOUND", nil)
		case businessflow.IsUnsupportedFileFormat(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported file format", "UNSUPPORTED_FILE_FORMAT", nil)
		case businessflow.IsImportFileTooLarge(err):
			return h.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "Import file exceeds the size limit", "IMPORT_FILE_TOO_LARGE", nil)
		}
		return h.contactError(c, err, "Contact import failed", "CONTACT_IMPORT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result.Summary)
}

// ExportContacts streams the user's contacts as an xlsx download
// @Summary Export Contacts
// @Description Download all of the authenticated user's contacts as an xlsx workbook
// @Tags Contacts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file "Contacts workbook"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/contacts/export [get]
func (h *ContactHandler) ExportContacts(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	workbook, err := h.contactFlow.ExportContacts(createRequestContext(c, "/api/v1/contacts/export"), userID, metadata)
	if err != nil {
		log.Println("Contact export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Contact export failed", "CONTACT_EXPORT_FAILED", nil)
	}
	defer workbook.Close()

	fileName := fmt.Sprintf("contatos-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, fileName))

	if err := workbook.Write(c.Response().BodyWriter()); err != nil {
		log.Println("Contact export write failed", err)
		return err
	}
	return nil
}

// ListNumbers returns the user's connected channel numbers
// @Summary List Numbers
// @Description List the authenticated user's channel numbers and their connection state
// @Tags Numbers
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListNumbersResponse} "Numbers retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/numbers [get]
func (h *ContactHandler) ListNumbers(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.contactFlow.ListNumbers(createRequestContext(c, "/api/v1/numbers"), userID, metadata)
	if err != nil {
		log.Println("Number listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list numbers", "NUMBER_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// contactError maps the shared number and pagination errors, falling back to 500
func (h *ContactHandler) contactError(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsNumberNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Number not found", "NUMBER_NOT_FOUND", nil)
	}
	if businessflow.IsNumberAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Number access denied", "NUMBER_ACCESS_DENIED", nil)
	}
	if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}
