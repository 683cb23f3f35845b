// Package businessflow contains the core business logic and use cases for audience public workflows
package businessflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/app/queue"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
	"gorm.io/gorm"
)

// PublicFlow handles the audience public lifecycle business logic
type PublicFlow interface {
	CreateLabelPublic(ctx context.Context, req *dto.CreateLabelPublicRequest, metadata *ClientMetadata) (*dto.CreatePublicResponse, error)
	CreateSimplifiedPublic(ctx context.Context, req *dto.CreateSimplifiedPublicRequest, metadata *ClientMetadata) (*dto.CreatePublicResponse, error)
	CreateCustomPublic(ctx context.Context, req *dto.CreateCustomPublicRequest, metadata *ClientMetadata) (*dto.CreatePublicResponse, error)
	GetPublic(ctx context.Context, req *dto.GetPublicRequest, metadata *ClientMetadata) (*dto.PublicDTO, error)
	ListPublics(ctx context.Context, req *dto.ListPublicsRequest, metadata *ClientMetadata) (*dto.ListPublicsResponse, error)
	CancelPublic(ctx context.Context, req *dto.CancelPublicRequest, metadata *ClientMetadata) (*dto.CancelPublicResponse, error)
	ListRecipients(ctx context.Context, req *dto.ListPublicRecipientsRequest, metadata *ClientMetadata) (*dto.ListPublicRecipientsResponse, error)
}

// PublicFlowImpl implements the public business flow
type PublicFlowImpl struct {
	publicRepo repository.PublicRepository
	resolver   AudienceResolver
	dispatcher queue.Dispatcher
	db         *gorm.DB
}

// NewPublicFlow creates a new public flow instance
func NewPublicFlow(
	publicRepo repository.PublicRepository,
	resolver AudienceResolver,
	dispatcher queue.Dispatcher,
	db *gorm.DB,
) PublicFlow {
	return &PublicFlowImpl{
		publicRepo: publicRepo,
		resolver:   resolver,
		dispatcher: dispatcher,
		db:         db,
	}
}

// CreateLabelPublic creates a label-based public. Label publics need no
// materialization and are ready immediately; their membership is computed
// at dispatch time so contacts labeled later are still reached.
func (s *PublicFlowImpl) CreateLabelPublic(ctx context.Context, req *dto.CreateLabelPublicRequest, metadata *ClientMetadata) (*dto.CreatePublicResponse, error) {
	if len(req.Labels) == 0 {
		return nil, NewBusinessError("PUBLIC_VALIDATION_FAILED", "Public validation failed", ErrPublicLabelsRequired)
	}

	match := models.LabelMatch(req.LabelMatch)
	if match == "" {
		match = models.LabelMatchAny
	}

	public := &models.Public{
		UUID:       uuid.New(),
		UserID:     req.UserID,
		Name:       req.Name,
		Kind:       models.PublicKindLabel,
		Status:     models.PublicStatusReady,
		Labels:     pq.StringArray(req.Labels),
		LabelMatch: match,
	}

	count, err := s.resolver.Count(ctx, public)
	if err != nil {
		return nil, NewBusinessError("AUDIENCE_COUNT_FAILED", "Failed to count audience", err)
	}
	public.TotalContacts = count

	if err := s.publicRepo.Save(ctx, public); err != nil {
		return nil, NewBusinessError("PUBLIC_CREATION_FAILED", "Public creation failed", err)
	}

	return &dto.CreatePublicResponse{
		Message: "Public created successfully",
		Public:  ToPublicDTO(*public),
	}, nil
}

// CreateSimplifiedPublic derives a new public from an existing one by
// filtering its membership. Resolution happens asynchronously on the
// simplified-public queue.
func (s *PublicFlowImpl) CreateSimplifiedPublic(ctx context.Context, req *dto.CreateSimplifiedPublicRequest, metadata *ClientMetadata) (*dto.CreatePublicResponse, error) {
	source, err := s.ownedPublic(ctx, req.SourcePublicUUID, req.UserID)
	if err != nil {
		return nil, err
	}
	if source.Kind != models.PublicKindLabel && source.Status != models.PublicStatusReady {
		return nil, NewBusinessError("PUBLIC_NOT_READY", "Source public is not ready", ErrPublicNotReady)
	}

	public := &models.Public{
		UUID:           uuid.New(),
		UserID:         req.UserID,
		Name:           req.Name,
		Kind:           models.PublicKindSimplified,
		Status:         models.PublicStatusPending,
		SourcePublicID: &source.ID,
		Search:         req.Search,
		Tag:            req.Tag,
	}

	if err := s.createAndEnqueue(ctx, public, queue.QueueSimplifiedPublic); err != nil {
		return nil, err
	}

	return &dto.CreatePublicResponse{
		Message: "Public queued for resolution",
		Public:  ToPublicDTO(*public),
	}, nil
}

// CreateCustomPublic builds a public from an uploaded contact file.
// Parsing and materialization happen asynchronously on the custom-public
// queue; the handler has already persisted the file to disk.
func (s *PublicFlowImpl) CreateCustomPublic(ctx context.Context, req *dto.CreateCustomPublicRequest, metadata *ClientMetadata) (*dto.CreatePublicResponse, error) {
	if req.FilePath == "" {
		return nil, NewBusinessError("PUBLIC_VALIDATION_FAILED", "Public validation failed", ErrPublicFileRequired)
	}

	public := &models.Public{
		UUID:     uuid.New(),
		UserID:   req.UserID,
		Name:     req.Name,
		Kind:     models.PublicKindCustom,
		Status:   models.PublicStatusPending,
		FilePath: &req.FilePath,
	}

	if err := s.createAndEnqueue(ctx, public, queue.QueueCustomPublic); err != nil {
		return nil, err
	}

	return &dto.CreatePublicResponse{
		Message: "Public queued for resolution",
		Public:  ToPublicDTO(*public),
	}, nil
}

// createAndEnqueue persists a pending public, moves it to queued, and hands
// a resolution job to the queue. The status transition happens before the
// enqueue so a crash in between leaves a queued public that operators can
// requeue, never a dispatched job for a pending public.
func (s *PublicFlowImpl) createAndEnqueue(ctx context.Context, public *models.Public, queueName string) error {
	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.publicRepo.Save(txCtx, public); err != nil {
			return err
		}
		moved, err := s.publicRepo.TransitionStatus(txCtx, public.ID, []models.PublicStatus{models.PublicStatusPending}, models.PublicStatusQueued)
		if err != nil {
			return err
		}
		if moved {
			public.Status = models.PublicStatusQueued
		}
		return nil
	})
	if err != nil {
		return NewBusinessError("PUBLIC_CREATION_FAILED", "Public creation failed", err)
	}

	payload := queue.SimplifiedPublicJob{PublicID: public.ID, UserID: public.UserID}
	if queueName == queue.QueueCustomPublic {
		custom := queue.CustomPublicJob{PublicID: public.ID, UserID: public.UserID}
		if _, err := s.dispatcher.Enqueue(ctx, queueName, queue.JobTypeResolvePublic, custom); err != nil {
			return NewBusinessError("PUBLIC_ENQUEUE_FAILED", "Failed to enqueue public resolution", err)
		}
		return nil
	}
	if _, err := s.dispatcher.Enqueue(ctx, queueName, queue.JobTypeResolvePublic, payload); err != nil {
		return NewBusinessError("PUBLIC_ENQUEUE_FAILED", "Failed to enqueue public resolution", err)
	}
	return nil
}

// GetPublic returns a single public owned by the requesting user
func (s *PublicFlowImpl) GetPublic(ctx context.Context, req *dto.GetPublicRequest, metadata *ClientMetadata) (*dto.PublicDTO, error) {
	public, err := s.ownedPublic(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	out := ToPublicDTO(*public)
	return &out, nil
}

// ListPublics returns the user's publics, newest first
func (s *PublicFlowImpl) ListPublics(ctx context.Context, req *dto.ListPublicsRequest, metadata *ClientMetadata) (*dto.ListPublicsResponse, error) {
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("PUBLIC_LIST_VALIDATION_FAILED", "Public list validation failed", err)
	}

	filter := models.PublicFilter{UserID: &req.UserID}
	if req.Kind != nil {
		kind := models.PublicKind(*req.Kind)
		filter.Kind = &kind
	}
	if req.Status != nil {
		status := models.PublicStatus(*req.Status)
		filter.Status = &status
	}

	publics, err := s.publicRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("PUBLIC_LIST_FAILED", "Failed to list publics", err)
	}

	out := make([]dto.PublicDTO, 0, len(publics))
	for _, p := range publics {
		out = append(out, ToPublicDTO(*p))
	}

	return &dto.ListPublicsResponse{
		Message:  "Publics retrieved successfully",
		Publics:  out,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// CancelPublic requests cancellation of a public's resolution. A worker
// mid-resolution observes the canceled status at its next checkpoint and
// abandons the work. Canceling an already canceled public is a no-op.
func (s *PublicFlowImpl) CancelPublic(ctx context.Context, req *dto.CancelPublicRequest, metadata *ClientMetadata) (*dto.CancelPublicResponse, error) {
	public, err := s.ownedPublic(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	if public.Status == models.PublicStatusCanceled {
		return &dto.CancelPublicResponse{
			Message: "Public already canceled",
			Status:  string(public.Status),
		}, nil
	}
	if public.Status.Terminal() {
		return nil, NewBusinessError("PUBLIC_NOT_CANCELABLE", "Public can no longer be canceled", ErrPublicNotReady)
	}

	cancelable := []models.PublicStatus{
		models.PublicStatusPending,
		models.PublicStatusQueued,
		models.PublicStatusResolving,
	}
	moved, err := s.publicRepo.TransitionStatus(ctx, public.ID, cancelable, models.PublicStatusCanceled)
	if err != nil {
		return nil, NewBusinessError("PUBLIC_CANCEL_FAILED", "Public cancellation failed", err)
	}
	if !moved {
		return nil, NewBusinessError("PUBLIC_NOT_CANCELABLE", "Public can no longer be canceled", ErrPublicNotReady)
	}

	return &dto.CancelPublicResponse{
		Message: "Public canceled successfully",
		Status:  string(models.PublicStatusCanceled),
	}, nil
}

// ListRecipients returns a page of the public's resolved recipients
func (s *PublicFlowImpl) ListRecipients(ctx context.Context, req *dto.ListPublicRecipientsRequest, metadata *ClientMetadata) (*dto.ListPublicRecipientsResponse, error) {
	public, err := s.ownedPublic(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	if public.Kind != models.PublicKindLabel && public.Status != models.PublicStatusReady {
		return nil, NewBusinessError("PUBLIC_NOT_READY", "Public is not ready", ErrPublicNotReady)
	}

	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LIST_VALIDATION_FAILED", "Recipient list validation failed", err)
	}

	recipients, err := s.resolver.Resolve(ctx, public)
	if err != nil {
		return nil, NewBusinessError("AUDIENCE_RESOLVE_FAILED", "Failed to resolve audience", err)
	}

	start := (page - 1) * pageSize
	if start > len(recipients) {
		start = len(recipients)
	}
	end := start + pageSize
	if end > len(recipients) {
		end = len(recipients)
	}

	out := make([]dto.RecipientDTO, 0, end-start)
	for _, rec := range recipients[start:end] {
		out = append(out, dto.RecipientDTO{Phone: rec.Phone, Name: rec.Name})
	}

	return &dto.ListPublicRecipientsResponse{
		Message:    "Recipients retrieved successfully",
		Recipients: out,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ownedPublic loads a public by UUID and enforces ownership
func (s *PublicFlowImpl) ownedPublic(ctx context.Context, uuidStr string, userID uint) (*models.Public, error) {
	public, err := s.publicRepo.ByUUID(ctx, uuidStr)
	if err != nil {
		return nil, NewBusinessError("PUBLIC_LOOKUP_FAILED", "Failed to lookup public", err)
	}
	if public == nil {
		return nil, NewBusinessError("PUBLIC_NOT_FOUND", "Public not found", ErrPublicNotFound)
	}
	if public.UserID != userID {
		return nil, NewBusinessError("PUBLIC_ACCESS_DENIED", "Public access denied", ErrPublicAccessDenied)
	}
	return public, nil
}
