// Package businessflow contains the core business logic for channel contact synchronization
package businessflow

import (
	"context"
	"fmt"

	"github.com/zapflowbr/zapflow/app/services"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/repository"
	"github.com/zapflowbr/zapflow/utils"
)

// ContactSyncFlow pulls the contact book of a connected number into the
// local contact base. Driven by the contact-sync scheduler.
type ContactSyncFlow interface {
	SyncNumber(ctx context.Context, number *models.Number) (SyncReport, error)
}

// SyncReport summarizes one contact-book pull
type SyncReport struct {
	Total    int
	Imported int
}

// ContactSyncFlowImpl implements the contact sync business flow
type ContactSyncFlowImpl struct {
	contactRepo repository.ContactRepository
	numberRepo  repository.NumberRepository
	puller      services.ContactPuller
}

// NewContactSyncFlow creates a new contact sync flow instance
func NewContactSyncFlow(
	contactRepo repository.ContactRepository,
	numberRepo repository.NumberRepository,
	puller services.ContactPuller,
) ContactSyncFlow {
	return &ContactSyncFlowImpl{
		contactRepo: contactRepo,
		numberRepo:  numberRepo,
		puller:      puller,
	}
}

// SyncNumber imports previously unknown contacts from the channel's contact
// book and stamps the sync time
func (s *ContactSyncFlowImpl) SyncNumber(ctx context.Context, number *models.Number) (SyncReport, error) {
	pulled, err := s.puller.PullContacts(ctx, number.InstanceName)
	if err != nil {
		return SyncReport{}, fmt.Errorf("failed to pull contacts for %s: %w", number.InstanceName, err)
	}

	report := SyncReport{Total: len(pulled)}
	for _, entry := range pulled {
		exists, err := s.contactRepo.ExistsByPhone(ctx, number.UserID, number.ID, entry.Phone)
		if err != nil {
			return report, fmt.Errorf("failed to check contact %s: %w", entry.Phone, err)
		}
		if exists {
			continue
		}

		contact := &models.Contact{
			UserID:   number.UserID,
			NumberID: number.ID,
			CelOwner: number.OwnerPhone,
			Phone:    entry.Phone,
			Name:     entry.Name,
			Status:   models.ContactStatusActive,
		}
		if err := s.contactRepo.Save(ctx, contact); err != nil {
			return report, fmt.Errorf("failed to save contact %s: %w", entry.Phone, err)
		}
		report.Imported++
	}

	if err := s.numberRepo.MarkSynced(ctx, number.ID, utils.UTCNow()); err != nil {
		return report, err
	}
	return report, nil
}
