// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign lifecycle business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	GetCampaign(ctx context.Context, req *dto.GetCampaignRequest, metadata *ClientMetadata) (*dto.CampaignDTO, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error)
	CancelCampaign(ctx context.Context, req *dto.CancelCampaignRequest, metadata *ClientMetadata) (*dto.CancelCampaignResponse, error)
	PauseCampaign(ctx context.Context, req *dto.PauseCampaignRequest, metadata *ClientMetadata) (*dto.PauseCampaignResponse, error)
	ResumeCampaign(ctx context.Context, req *dto.ResumeCampaignRequest, metadata *ClientMetadata) (*dto.ResumeCampaignResponse, error)
	ListCampaignMessages(ctx context.Context, req *dto.ListCampaignMessagesRequest, metadata *ClientMetadata) (*dto.ListCampaignMessagesResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	publicRepo   repository.PublicRepository
	numberRepo   repository.NumberRepository
	messageRepo  repository.MessageRepository
	resolver     AudienceResolver
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	publicRepo repository.PublicRepository,
	numberRepo repository.NumberRepository,
	messageRepo repository.MessageRepository,
	resolver AudienceResolver,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		publicRepo:   publicRepo,
		numberRepo:   numberRepo,
		messageRepo:  messageRepo,
		resolver:     resolver,
		db:           db,
	}
}

// CreateCampaign validates the audience and number, snapshots the audience
// size, and persists the campaign. A campaign with no schedule time becomes
// pending and is picked up on the scheduler's next tick; a scheduled one
// waits for its schedule time.
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	if len(req.Variants) == 0 {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignVariantsRequired)
	}
	if req.ScheduleAt != nil && req.ScheduleAt.Before(utils.UTCNow()) {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrScheduleTimeInPast)
	}

	public, err := s.publicRepo.ByUUID(ctx, req.PublicUUID)
	if err != nil {
		return nil, NewBusinessError("PUBLIC_LOOKUP_FAILED", "Failed to lookup public", err)
	}
	if public == nil {
		return nil, NewBusinessError("PUBLIC_NOT_FOUND", "Public not found", ErrPublicNotFound)
	}
	if public.UserID != req.UserID {
		return nil, NewBusinessError("PUBLIC_ACCESS_DENIED", "Public access denied", ErrPublicAccessDenied)
	}
	if public.Kind != models.PublicKindLabel && public.Status != models.PublicStatusReady {
		return nil, NewBusinessError("PUBLIC_NOT_READY", "Public is not ready", ErrPublicNotReady)
	}

	number, err := s.numberRepo.ByUUID(ctx, req.NumberUUID)
	if err != nil {
		return nil, NewBusinessError("NUMBER_LOOKUP_FAILED", "Failed to lookup number", err)
	}
	if number == nil {
		return nil, NewBusinessError("NUMBER_NOT_FOUND", "Number not found", ErrNumberNotFound)
	}
	if number.UserID != req.UserID {
		return nil, NewBusinessError("NUMBER_ACCESS_DENIED", "Number access denied", ErrNumberAccessDenied)
	}
	if number.ConnectionState != models.ConnectionStateConnected {
		return nil, NewBusinessError("NUMBER_DISCONNECTED", "Number is not connected", ErrNumberDisconnected)
	}

	totalContacts, err := s.resolver.Count(ctx, public)
	if err != nil {
		return nil, NewBusinessError("AUDIENCE_COUNT_FAILED", "Failed to count audience", err)
	}

	variants := make(models.MessageVariants, 0, len(req.Variants))
	for _, v := range req.Variants {
		variants = append(variants, models.MessageVariant{Body: v.Body})
	}

	campaign := &models.Campaign{
		UUID:          uuid.New(),
		UserID:        req.UserID,
		PublicID:      public.ID,
		NumberID:      number.ID,
		Variants:      variants,
		ScheduleAt:    req.ScheduleAt,
		TotalContacts: totalContacts,
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Save(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		Message:  "Campaign created successfully",
		Campaign: ToCampaignDTO(*campaign),
	}, nil
}

// GetCampaign returns a single campaign owned by the requesting user
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, req *dto.GetCampaignRequest, metadata *ClientMetadata) (*dto.CampaignDTO, error) {
	campaign, err := s.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	out := ToCampaignDTO(*campaign)
	return &out, nil
}

// ListCampaigns returns the user's campaigns, newest first
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, metadata *ClientMetadata) (*dto.ListCampaignsResponse, error) {
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_VALIDATION_FAILED", "Campaign list validation failed", err)
	}

	filter := models.CampaignFilter{UserID: &req.UserID}
	if req.Status != nil {
		status := models.CampaignStatus(*req.Status)
		filter.Status = &status
	}

	campaigns, err := s.campaignRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	out := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, ToCampaignDTO(*c))
	}

	return &dto.ListCampaignsResponse{
		Message:   "Campaigns retrieved successfully",
		Campaigns: out,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// CancelCampaign requests cancellation. Canceling an already canceled
// campaign is a no-op; completed and failed campaigns can no longer be
// canceled. Messages already handed to the channel are not recalled.
func (s *CampaignFlowImpl) CancelCampaign(ctx context.Context, req *dto.CancelCampaignRequest, metadata *ClientMetadata) (*dto.CancelCampaignResponse, error) {
	campaign, err := s.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	if campaign.Status == models.CampaignStatusCanceled {
		return &dto.CancelCampaignResponse{
			Message: "Campaign already canceled",
			Status:  campaign.Status.String(),
		}, nil
	}
	if campaign.Status.Terminal() {
		return nil, NewBusinessError("CAMPAIGN_NOT_CANCELABLE", "Campaign can no longer be canceled", ErrCampaignNotCancelable)
	}

	cancelable := []models.CampaignStatus{
		models.CampaignStatusPending,
		models.CampaignStatusScheduled,
		models.CampaignStatusQueued,
		models.CampaignStatusActive,
		models.CampaignStatusPaused,
	}
	moved, err := s.campaignRepo.TransitionStatus(ctx, campaign.ID, cancelable, models.CampaignStatusCanceled)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CANCEL_FAILED", "Campaign cancellation failed", err)
	}
	if !moved {
		// Lost the race against a worker finishing the campaign
		return nil, NewBusinessError("CAMPAIGN_NOT_CANCELABLE", "Campaign can no longer be canceled", ErrCampaignNotCancelable)
	}

	return &dto.CancelCampaignResponse{
		Message: "Campaign canceled successfully",
		Status:  models.CampaignStatusCanceled.String(),
	}, nil
}

// PauseCampaign takes a not-yet-dispatched campaign out of the scheduler's
// view. Running campaigns cannot be paused mid-dispatch.
func (s *CampaignFlowImpl) PauseCampaign(ctx context.Context, req *dto.PauseCampaignRequest, metadata *ClientMetadata) (*dto.PauseCampaignResponse, error) {
	campaign, err := s.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	pausable := []models.CampaignStatus{
		models.CampaignStatusPending,
		models.CampaignStatusScheduled,
	}
	moved, err := s.campaignRepo.TransitionStatus(ctx, campaign.ID, pausable, models.CampaignStatusPaused)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_PAUSE_FAILED", "Campaign pause failed", err)
	}
	if !moved {
		return nil, NewBusinessError("CAMPAIGN_NOT_PAUSABLE", "Campaign can no longer be paused", ErrCampaignNotPausable)
	}

	return &dto.PauseCampaignResponse{
		Message: "Campaign paused successfully",
		Status:  models.CampaignStatusPaused.String(),
	}, nil
}

// ResumeCampaign puts a paused campaign back into the scheduler's view,
// restoring scheduled or pending depending on whether a schedule time exists
func (s *CampaignFlowImpl) ResumeCampaign(ctx context.Context, req *dto.ResumeCampaignRequest, metadata *ClientMetadata) (*dto.ResumeCampaignResponse, error) {
	campaign, err := s.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	target := models.CampaignStatusPending
	if campaign.ScheduleAt != nil {
		target = models.CampaignStatusScheduled
	}

	moved, err := s.campaignRepo.TransitionStatus(ctx, campaign.ID, []models.CampaignStatus{models.CampaignStatusPaused}, target)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_RESUME_FAILED", "Campaign resume failed", err)
	}
	if !moved {
		return nil, NewBusinessError("CAMPAIGN_NOT_PAUSED", "Campaign is not paused", ErrCampaignNotPaused)
	}

	return &dto.ResumeCampaignResponse{
		Message: "Campaign resumed successfully",
		Status:  target.String(),
	}, nil
}

// ListCampaignMessages returns the per-recipient delivery records of a campaign
func (s *CampaignFlowImpl) ListCampaignMessages(ctx context.Context, req *dto.ListCampaignMessagesRequest, metadata *ClientMetadata) (*dto.ListCampaignMessagesResponse, error) {
	campaign, err := s.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_VALIDATION_FAILED", "Message list validation failed", err)
	}

	filter := models.MessageFilter{CampaignID: &campaign.ID}
	if req.Status != nil {
		status := models.MessageStatus(*req.Status)
		filter.Status = &status
	}

	messages, err := s.messageRepo.ByFilter(ctx, filter, "id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to list campaign messages", err)
	}

	out := make([]dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, ToMessageDTO(*m))
	}

	return &dto.ListCampaignMessagesResponse{
		Message:  "Messages retrieved successfully",
		Messages: out,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ownedCampaign loads a campaign by UUID and enforces ownership
func (s *CampaignFlowImpl) ownedCampaign(ctx context.Context, uuidStr string, userID uint) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.ByUUID(ctx, uuidStr)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.UserID != userID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign access denied", ErrCampaignAccessDenied)
	}
	return campaign, nil
}

// normalizePage applies defaults and bounds to pagination parameters
func normalizePage(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}
