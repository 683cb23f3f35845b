// Package businessflow contains the core business logic for public materialization
package businessflow

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// PublicResolutionFlow materializes simplified and custom publics into
// snapshot rows. It is driven by the public resolution workers, not by
// HTTP handlers.
type PublicResolutionFlow interface {
	ResolveSimplified(ctx context.Context, publicID uint) error
	ResolveCustom(ctx context.Context, publicID uint) error
	// MarkResolutionFailed records the terminal failure of a resolution
	// whose retries are exhausted
	MarkResolutionFailed(ctx context.Context, publicID uint, reason string) error
}

// PublicResolutionFlowImpl implements the public resolution business flow
type PublicResolutionFlowImpl struct {
	publicRepo        repository.PublicRepository
	publicContactRepo repository.PublicContactRepository
	contactRepo       repository.ContactRepository
	resolver          AudienceResolver
	db                *gorm.DB
}

// NewPublicResolutionFlow creates a new public resolution flow instance
func NewPublicResolutionFlow(
	publicRepo repository.PublicRepository,
	publicContactRepo repository.PublicContactRepository,
	contactRepo repository.ContactRepository,
	resolver AudienceResolver,
	db *gorm.DB,
) PublicResolutionFlow {
	return &PublicResolutionFlowImpl{
		publicRepo:        publicRepo,
		publicContactRepo: publicContactRepo,
		contactRepo:       contactRepo,
		resolver:          resolver,
		db:                db,
	}
}

// ResolveSimplified filters the source public's membership and writes the
// result as snapshot rows. Cancellation is re-checked between the expensive
// steps; a canceled public aborts with ErrPublicCanceled.
func (s *PublicResolutionFlowImpl) ResolveSimplified(ctx context.Context, publicID uint) error {
	public, err := s.claimResolving(ctx, publicID)
	if err != nil {
		return err
	}

	if public.SourcePublicID == nil {
		return ErrPublicSourceRequired
	}
	source, err := s.publicRepo.ByID(ctx, *public.SourcePublicID)
	if err != nil {
		return fmt.Errorf("failed to load source public: %w", err)
	}
	if source == nil {
		return ErrPublicNotFound
	}

	recipients, err := s.resolver.Resolve(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to resolve source public: %w", err)
	}

	filtered, err := s.applySimplifiedFilters(ctx, public, recipients)
	if err != nil {
		return err
	}

	return s.materialize(ctx, public, filtered)
}

// ResolveCustom parses the public's uploaded file and writes the valid,
// deduplicated rows as snapshot rows.
func (s *PublicResolutionFlowImpl) ResolveCustom(ctx context.Context, publicID uint) error {
	public, err := s.claimResolving(ctx, publicID)
	if err != nil {
		return err
	}

	if public.FilePath == nil || *public.FilePath == "" {
		return ErrPublicFileRequired
	}
	file, err := os.Open(*public.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open contact file: %w", err)
	}
	defer file.Close()

	rows, err := parseContactRows(*public.FilePath, file)
	if err != nil {
		return fmt.Errorf("failed to parse contact file: %w", err)
	}

	recipients := make([]Recipient, 0, len(rows))
	for _, row := range rows {
		phone := utils.NormalizePhone(row.Phone)
		if !utils.IsValidBrazilianPhone(phone) {
			continue
		}
		recipients = append(recipients, Recipient{
			Phone: phone,
			Name:  strings.TrimSpace(row.Name),
		})
	}

	return s.materialize(ctx, public, DedupeByPhone(recipients))
}

// MarkResolutionFailed stamps the failure reason and moves the public to failed
func (s *PublicResolutionFlowImpl) MarkResolutionFailed(ctx context.Context, publicID uint, reason string) error {
	if err := s.publicRepo.SetLastError(ctx, publicID, reason); err != nil {
		return err
	}
	_, err := s.publicRepo.TransitionStatus(ctx, publicID,
		[]models.PublicStatus{models.PublicStatusQueued, models.PublicStatusResolving},
		models.PublicStatusFailed)
	return err
}

// claimResolving moves a public into resolving and returns it. Redelivered
// jobs find the public already resolving and claim it again; a canceled
// public aborts the resolution.
func (s *PublicResolutionFlowImpl) claimResolving(ctx context.Context, publicID uint) (*models.Public, error) {
	claimable := []models.PublicStatus{models.PublicStatusQueued, models.PublicStatusResolving}
	moved, err := s.publicRepo.TransitionStatus(ctx, publicID, claimable, models.PublicStatusResolving)
	if err != nil {
		return nil, fmt.Errorf("failed to claim public %d: %w", publicID, err)
	}

	public, err := s.publicRepo.ByID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load public %d: %w", publicID, err)
	}
	if public == nil {
		return nil, ErrPublicNotFound
	}
	if public.Canceled() {
		return nil, ErrPublicCanceled
	}
	if !moved {
		return nil, fmt.Errorf("public %d is not resolvable in status %s", publicID, public.Status)
	}
	return public, nil
}

// applySimplifiedFilters narrows recipients by the public's search and tag.
// The tag filter needs the contact's label summary, so recipients without a
// backing contact are dropped when a tag is set.
func (s *PublicResolutionFlowImpl) applySimplifiedFilters(ctx context.Context, public *models.Public, recipients []Recipient) ([]Recipient, error) {
	search := ""
	if public.Search != nil {
		search = strings.ToLower(strings.TrimSpace(*public.Search))
	}
	tag := ""
	if public.Tag != nil {
		tag = strings.ToLower(strings.TrimSpace(*public.Tag))
	}
	if search == "" && tag == "" {
		return recipients, nil
	}

	out := make([]Recipient, 0, len(recipients))
	for _, rec := range recipients {
		if search != "" &&
			!strings.Contains(strings.ToLower(rec.Name), search) &&
			!strings.Contains(rec.Phone, search) {
			continue
		}
		if tag != "" {
			if rec.ContactID == nil {
				continue
			}
			contact, err := s.contactRepo.ByID(ctx, *rec.ContactID)
			if err != nil {
				return nil, fmt.Errorf("failed to load contact %d: %w", *rec.ContactID, err)
			}
			if contact == nil || !strings.Contains(strings.ToLower(contact.LabelSummary), tag) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// materialize replaces the public's snapshot rows and marks it ready. The
// cancel status is re-checked right before the write, and SetResolved only
// lands on a still-resolving row, so a cancellation racing the final write
// is never overwritten.
func (s *PublicResolutionFlowImpl) materialize(ctx context.Context, public *models.Public, recipients []Recipient) error {
	current, err := s.publicRepo.ByID(ctx, public.ID)
	if err != nil {
		return fmt.Errorf("failed to reload public %d: %w", public.ID, err)
	}
	if current == nil || current.Canceled() {
		return ErrPublicCanceled
	}

	rows := make([]*models.PublicContact, 0, len(recipients))
	for _, rec := range recipients {
		rows = append(rows, &models.PublicContact{
			PublicID:  public.ID,
			ContactID: rec.ContactID,
			Phone:     rec.Phone,
			Name:      rec.Name,
		})
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		// Redelivered jobs rewrite the snapshot from scratch
		if err := s.publicContactRepo.DeleteByPublic(txCtx, public.ID); err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := s.publicContactRepo.SaveBatch(txCtx, rows); err != nil {
				return err
			}
		}
		return s.publicRepo.SetResolved(txCtx, public.ID, len(rows))
	})
	if err != nil {
		return fmt.Errorf("failed to materialize public %d: %w", public.ID, err)
	}
	return nil
}
