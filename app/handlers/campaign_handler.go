package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/zapflowbr/zapflow/app/dto"
	businessflow "github.com/zapflowbr/zapflow/business_flow"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	CancelCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	ResumeCampaign(c fiber.Ctx) error
	ListCampaignMessages(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCampaign handles the campaign creation process
// @Summary Create Campaign
// @Description Create a new message campaign targeting a resolved public through a connected number
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CampaignDTO} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Public or number not found"
// @Failure 409 {object} dto.APIResponse "Public not ready or number disconnected"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	result, err := h.campaignFlow.CreateCampaign(createRequestContext(c, "/api/v1/campaigns"), &req, metadata)
	if err != nil {
		if businessflow.IsPublicNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Public not found", "PUBLIC_NOT_FOUND", nil)
		}
		if businessflow.IsPublicAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Public access denied", "PUBLIC_ACCESS_DENIED", nil)
		}
		if businessflow.IsPublicNotReady(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Public is not ready", "PUBLIC_NOT_READY", nil)
		}
		if businessflow.IsNumberNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Number not found", "NUMBER_NOT_FOUND", nil)
		}
		if businessflow.IsNumberDisconnected(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Number is not connected", "NUMBER_DISCONNECTED", nil)
		}
		if businessflow.IsScheduleTimeInPast(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule time is in the past", "SCHEDULE_TIME_IN_PAST", nil)
		}

		log.Println("Campaign creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result.Campaign)
}

// GetCampaign returns a single campaign by UUID
// @Summary Get Campaign
// @Description Retrieve one of the authenticated user's campaigns by UUID
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignDTO} "Campaign retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Campaign belongs to another user"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.GetCampaignRequest{UUID: c.Params("uuid"), UserID: userID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.GetCampaign(createRequestContext(c, "/api/v1/campaigns/"+req.UUID), &req, metadata)
	if err != nil {
		return h.campaignError(c, err, "Failed to retrieve campaign", "CAMPAIGN_GET_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// ListCampaigns returns the authenticated user's campaigns
// @Summary List Campaigns
// @Description List the authenticated user's campaigns with optional status filter and pagination
// @Tags Campaigns
// @Produce json
// @Param status query string false "Filter by campaign status"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse} "Campaigns retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid filter or pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListCampaignsRequest{
		UserID:   userID,
		Page:     fiber.Query(c, "page", 0),
		PageSize: fiber.Query(c, "page_size", 0),
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.ListCampaigns(createRequestContext(c, "/api/v1/campaigns"), &req, metadata)
	if err != nil {
		log.Println("Campaign listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list campaigns", "CAMPAIGN_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// CancelCampaign requests cancellation of a campaign
// @Summary Cancel Campaign
// @Description Cancel a campaign that has not finished dispatching; pending sends are dropped
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CancelCampaignResponse} "Campaign canceled successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign can no longer be canceled"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid}/cancel [post]
func (h *CampaignHandler) CancelCampaign(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.CancelCampaignRequest{UUID: c.Params("uuid"), UserID: userID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.CancelCampaign(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/cancel"), &req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotCancelable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign can no longer be canceled", "CAMPAIGN_NOT_CANCELABLE", nil)
		}
		return h.campaignError(c, err, "Campaign cancellation failed", "CAMPAIGN_CANCEL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// PauseCampaign pauses a not-yet-dispatched campaign
// @Summary Pause Campaign
// @Description Pause a campaign before the scheduler picks it up, keeping it out of dispatch
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.PauseCampaignResponse} "Campaign paused successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign can no longer be paused"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid}/pause [post]
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.PauseCampaignRequest{UUID: c.Params("uuid"), UserID: userID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.PauseCampaign(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/pause"), &req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotPausable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign can no longer be paused", "CAMPAIGN_NOT_PAUSABLE", nil)
		}
		return h.campaignError(c, err, "Campaign pause failed", "CAMPAIGN_PAUSE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ResumeCampaign resumes a paused campaign
// @Summary Resume Campaign
// @Description Return a paused campaign to the scheduler's scan
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ResumeCampaignResponse} "Campaign resumed successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign is not paused"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid}/resume [post]
func (h *CampaignHandler) ResumeCampaign(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ResumeCampaignRequest{UUID: c.Params("uuid"), UserID: userID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.ResumeCampaign(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/resume"), &req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotPaused(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign is not paused", "CAMPAIGN_NOT_PAUSED", nil)
		}
		return h.campaignError(c, err, "Campaign resume failed", "CAMPAIGN_RESUME_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ListCampaignMessages returns the delivery records of a campaign
// @Summary List Campaign Messages
// @Description List the per-recipient delivery records of a campaign with optional status filter and pagination
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param status query string false "Filter by message status"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignMessagesResponse} "Messages retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid filter or pagination"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{uuid}/messages [get]
func (h *CampaignHandler) ListCampaignMessages(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListCampaignMessagesRequest{
		UUID:     c.Params("uuid"),
		UserID:   userID,
		Page:     fiber.Query(c, "page", 0),
		PageSize: fiber.Query(c, "page_size", 0),
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.ListCampaignMessages(createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/messages"), &req, metadata)
	if err != nil {
		return h.campaignError(c, err, "Failed to list campaign messages", "MESSAGE_LIST_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// campaignError maps the shared campaign lookup errors, falling back to 500
func (h *CampaignHandler) campaignError(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsCampaignNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	}
	if businessflow.IsCampaignAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "CAMPAIGN_ACCESS_DENIED", nil)
	}
	if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}
