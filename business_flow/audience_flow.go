// Package businessflow contains the core business logic and use cases for audience resolution
package businessflow

import (
	"context"

	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
)

// Recipient is one resolved member of an audience, keyed by normalized phone
type Recipient struct {
	ContactID *uint
	Phone     string
	Name      string
}

// AudienceResolver turns a public into its recipient list. Label publics are
// resolved on demand against the contact base; simplified and custom publics
// read the snapshot rows materialized by their resolution workers. All three
// strategies produce the same output shape, deduplicated by phone.
type AudienceResolver interface {
	Resolve(ctx context.Context, public *models.Public) ([]Recipient, error)
	Count(ctx context.Context, public *models.Public) (int, error)
}

// AudienceResolverImpl implements AudienceResolver
type AudienceResolverImpl struct {
	contactRepo       repository.ContactRepository
	publicContactRepo repository.PublicContactRepository
}

// NewAudienceResolver creates a new audience resolver instance
func NewAudienceResolver(
	contactRepo repository.ContactRepository,
	publicContactRepo repository.PublicContactRepository,
) AudienceResolver {
	return &AudienceResolverImpl{
		contactRepo:       contactRepo,
		publicContactRepo: publicContactRepo,
	}
}

// Resolve returns the full recipient list of a public
func (r *AudienceResolverImpl) Resolve(ctx context.Context, public *models.Public) ([]Recipient, error) {
	switch public.Kind {
	case models.PublicKindLabel:
		return r.resolveLabeled(ctx, public)
	case models.PublicKindSimplified, models.PublicKindCustom:
		return r.resolveMaterialized(ctx, public)
	default:
		return nil, ErrUnsupportedPublicKind
	}
}

// Count returns the audience size without loading recipient rows where possible
func (r *AudienceResolverImpl) Count(ctx context.Context, public *models.Public) (int, error) {
	switch public.Kind {
	case models.PublicKindLabel:
		count, err := r.contactRepo.Count(ctx, r.labelFilter(public))
		return int(count), err
	case models.PublicKindSimplified, models.PublicKindCustom:
		if public.Status == models.PublicStatusReady {
			return public.TotalContacts, nil
		}
		count, err := r.publicContactRepo.Count(ctx, models.PublicContactFilter{PublicID: &public.ID})
		return int(count), err
	default:
		return 0, ErrUnsupportedPublicKind
	}
}

// resolveLabeled matches the user's active contacts against the public's labels
func (r *AudienceResolverImpl) resolveLabeled(ctx context.Context, public *models.Public) ([]Recipient, error) {
	// Newest contact rows win the phone dedupe below
	contacts, err := r.contactRepo.ByFilter(ctx, r.labelFilter(public), "id DESC", 0, 0)
	if err != nil {
		return nil, err
	}

	recipients := make([]Recipient, 0, len(contacts))
	for _, c := range contacts {
		id := c.ID
		recipients = append(recipients, Recipient{
			ContactID: &id,
			Phone:     c.Phone,
			Name:      c.Name,
		})
	}
	return DedupeByPhone(recipients), nil
}

// resolveMaterialized reads the snapshot rows written during resolution
func (r *AudienceResolverImpl) resolveMaterialized(ctx context.Context, public *models.Public) ([]Recipient, error) {
	rows, err := r.publicContactRepo.ListByPublic(ctx, public.ID)
	if err != nil {
		return nil, err
	}

	recipients := make([]Recipient, 0, len(rows))
	for _, row := range rows {
		recipients = append(recipients, Recipient{
			ContactID: row.ContactID,
			Phone:     row.Phone,
			Name:      row.Name,
		})
	}
	return DedupeByPhone(recipients), nil
}

func (r *AudienceResolverImpl) labelFilter(public *models.Public) models.ContactFilter {
	status := models.ContactStatusActive
	match := public.LabelMatch
	if match == "" {
		match = models.LabelMatchAny
	}
	labels := public.Labels
	return models.ContactFilter{
		UserID:     &public.UserID,
		Status:     &status,
		Labels:     &labels,
		LabelMatch: match,
	}
}

// DedupeByPhone keeps the first occurrence of each phone, preserving order.
// A contact imported twice or matched by several labels receives one message.
func DedupeByPhone(recipients []Recipient) []Recipient {
	seen := make(map[string]struct{}, len(recipients))
	out := make([]Recipient, 0, len(recipients))
	for _, rec := range recipients {
		if _, ok := seen[rec.Phone]; ok {
			continue
		}
		seen[rec.Phone] = struct{}{}
		out = append(out, rec)
	}
	return out
}
