package handlers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/zapflowbr/zapflow/app/dto"
	businessflow "github.com/zapflowbr/zapflow/business_flow"
)

// PublicHandlerInterface defines the contract for public handlers
type PublicHandlerInterface interface {
	CreateLabelPublic(c fiber.Ctx) error
	CreateSimplifiedPublic(c fiber.Ctx) error
	CreateCustomPublic(c fiber.Ctx) error
	GetPublic(c fiber.Ctx) error
	ListPublics(c fiber.Ctx) error
	CancelPublic(c fiber.Ctx) error
	ListRecipients(c fiber.Ctx) error
}

// PublicHandler handles audience-public HTTP requests
type PublicHandler struct {
	publicFlow businessflow.PublicFlow
	uploadDir  string
	validator  *validator.Validate
}

// NewPublicHandler creates a new public handler. Uploaded contact files for
// custom publics are persisted under uploadDir for the resolution workers.
func NewPublicHandler(publicFlow businessflow.PublicFlow, uploadDir string) *PublicHandler {
	if uploadDir == "" {
		uploadDir = filepath.Join("data", "uploads")
	}
	return &PublicHandler{
		publicFlow: publicFlow,
		uploadDir:  uploadDir,
		validator:  validator.New(),
	}
}

func (h *PublicHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PublicHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateLabelPublic creates a label-based public
// @Summary Create Label Public
// @Description Create an audience public whose recipients are resolved from contact labels at dispatch time
// @Tags Publics
// @Accept json
// @Produce json
// @Param request body dto.CreateLabelPublicRequest true "Label public creation data"
// @Success 201 {object} dto.APIResponse{data=dto.PublicDTO} "Public created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or no labels"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/publics/labels [post]
func (h *PublicHandler) CreateLabelPublic(c fiber.Ctx) error {
	var req dto.CreateLabelPublicRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.publicFlow.CreateLabelPublic(createRequestContext(c, "/api/v1/publics/labels"), &req, metadata)
	if err != nil {
		if businessflow.IsPublicLabelsRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one label is required", "PUBLIC_VALIDATION_FAILED", nil)
		}
		return h.publicError(c, err, "Public creation failed", "PUBLIC_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result.Public)
}

// CreateSimplifiedPublic derives a filtered public from an existing one
// @Summary Create Simplified Public
// @Description Derive a new public by filtering an existing public's recipients; materialized by a background worker
// @Tags Publics
// @Accept json
// @Produce json
// @Param request body dto.CreateSimplifiedPublicRequest true "Simplified public creation data"
// @Success 201 {object} dto.APIResponse{data=dto.PublicDTO} "Public created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Source public not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/publics/simplified [post]
func (h *PublicHandler) CreateSimplifiedPublic(c fiber.Ctx) error {
	var req dto.CreateSimplifiedPublicRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.publicFlow.CreateSimplifiedPublic(createRequestContext(c, "/api/v1/publics/simplified"), &req, metadata)
	if err != nil {
		return h.publicError(c, err, "Public creation failed", "PUBLIC_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result.Public)
}

// CreateCustomPublic builds a public from an uploaded contact file
// @Summary Create Custom Public
// @Description Create a public from an uploaded CSV or XLSX contact file; resolved by a background worker
// @Tags Publics
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX contact file"
// @Param name formData string true "Public name"
// @Success 201 {object} dto.APIResponse{data=dto.PublicDTO} "Public created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid file"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/publics/custom [post]
func (h *PublicHandler) CreateCustomPublic(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "INVALID_FILE", nil)
	}

	name := c.FormValue("name")
	req := dto.CreateCustomPublicRequest{
		UserID:   userID,
		Name:     name,
		FileName: fileHeader.Filename,
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	// Persist the upload where the resolution worker can read it
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		log.Println("Upload directory creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store uploaded file", "UPLOAD_FAILED", nil)
	}
	storedPath := filepath.Join(h.uploadDir, fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(fileHeader.Filename)))
	if err := c.SaveFile(fileHeader, storedPath); err != nil {
		log.Println("Upload save failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store uploaded file", "UPLOAD_FAILED", nil)
	}
	req.FilePath = storedPath

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.publicFlow.CreateCustomPublic(createRequestContext(c, "/api/v1/publics/custom"), &req, metadata)
	if err != nil {
		return h.publicError(c, err, "Public creation failed", "PUBLIC_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result.Public)
}

// GetPublic returns a single public by UUID
// @Summary Get Public
// @Description Retrieve one of the authenticated user's publics by UUID
// @Tags Publics
// @Produce json
// @Param uuid path string true "Public UUID"
// @Success 200 {object} dto.APIResponse{data=dto.PublicDTO} "Public retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Public belongs to another user"
// @Failure 404 {object} dto.APIResponse "Public not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/publics/{uuid} [get]
func (h *PublicHandler) GetPublic(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.GetPublicRequest{UUID: c.Params("uuid"), UserID: userID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.publicFlow.GetPublic(createRequestContext(c, "/api/v1/publics/"+req.UUID), &req, metadata)
	if err != nil {
		return h.publicError(c, err, "Failed to retrieve public", "PUBLIC_GET_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Public retrieved successfully", result)
}

// ListPublics returns the authenticated user's publics
// @Summary List Publics
// @Description List the authenticated user's publics with optional kind and status filters
// @Tags Publics
// @Produce json
// @Param kind query string false "Filter by public kind: label, simplified, or custom"
// @Param status query string false "Filter by public status"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20)"
// @Success 200 {object} dto.APIResponse{data=dto.ListPublicsResponse} "Publics retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid filter or pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/publics [get]
func (h *PublicHandler) ListPublics(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListPublicsRequest{
		UserID:   userID,
		Page:     fiber.Query(c, "page", 0),
		PageSize: fiber.Query(c, "page_size", 0),
	}
	if kind := c.Query("kind"); kind != "" {
		req.Kind = &kind
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.publicFlow.ListPublics(createRequestContext(c, "/api/v1/publics"), &req, metadata)
	if err != nil {
		log.Println("Public listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list publics", "PUBLIC_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// CancelPublic requests cancellation of a public's resolution
// @Summary Cancel Public
// @Description Cancel a public before its resolution completes; campaigns targeting it will not dispatch
// @Tags Publics
// @Produce json
// @Param uuid path string true "Public UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CancelPublicResponse} "Public canceled successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Public not found"
// @Failure 409 {object} dto.APIResponse "Public can no longer be canceled"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/publics/{uuid}/cancel [post]
func (h *PublicHandler) CancelPublic(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.CancelPublicRequest{UUID: c.Params("uuid"), UserID: userID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.publicFlow.CancelPublic(createRequestContext(c, "/api/v1/publics/"+req.UUID+"/cancel"), &req, metadata)
	if err != nil {
		if businessflow.IsPublicNotReady(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Public can no longer be canceled", "PUBLIC_NOT_CANCELABLE", nil)
		}
		return h.publicError(c, err, "Public cancellation failed", "PUBLIC_CANCEL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ListRecipients returns the resolved recipients of a public
// @Summary List Public Recipients
// @Description List the resolved recipients of a ready public with pagination
// @Tags Publics
// @Produce json
// @Param uuid path string true "Public UUID"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20)"
// @Success 200 {object} dto.APIResponse{data=dto.ListPublicRecipientsResponse} "Recipients retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Public not found"
// @Failure 409 {object} dto.APIResponse "Public is not ready"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/publics/{uuid}/recipients [get]
func (h *PublicHandler) ListRecipients(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListPublicRecipientsRequest{
		UUID:     c.Params("uuid"),
		UserID:   userID,
		Page:     fiber.Query(c, "page", 0),
		PageSize: fiber.Query(c, "page_size", 0),
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.publicFlow.ListRecipients(createRequestContext(c, "/api/v1/publics/"+req.UUID+"/recipients"), &req, metadata)
	if err != nil {
		if businessflow.IsPublicNotReady(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Public is not ready", "PUBLIC_NOT_READY", nil)
		}
		return h.publicError(c, err, "Failed to list recipients", "RECIPIENT_LIST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// publicError maps the shared public lookup errors, falling back to 500
func (h *PublicHandler) publicError(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsPublicNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Public not found", "PUBLIC_NOT_FOUND", nil)
	}
	if businessflow.IsPublicAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Public access denied", "PUBLIC_ACCESS_DENIED", nil)
	}
	if businessflow.IsPublicNotReady(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "Public is not ready", "PUBLIC_NOT_READY", nil)
	}
	if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}
