// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/zapflowbr/zapflow/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Update(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	// ListDue returns dispatchable campaigns whose schedule time has passed,
	// ordered by schedule time ascending (oldest first)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	// TransitionStatus performs a single conditional status update and reports
	// whether a row actually transitioned. It is the only sanctioned way to
	// move a campaign between states under concurrent schedulers and workers.
	TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error)
	SetLastError(ctx context.Context, id uint, reason string) error
}

// ContactRepository defines operations for contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	// ExistsByPhone checks the import uniqueness invariant: a non-deleted
	// contact with the same normalized phone under the same number and user
	ExistsByPhone(ctx context.Context, userID, numberID uint, phone string) (bool, error)
	SoftDelete(ctx context.Context, id uint) error
}

// PublicRepository defines operations for publics
type PublicRepository interface {
	Repository[models.Public, models.PublicFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Public, error)
	TransitionStatus(ctx context.Context, id uint, from []models.PublicStatus, to models.PublicStatus) (bool, error)
	SetResolved(ctx context.Context, id uint, totalContacts int) error
	SetLastError(ctx context.Context, id uint, reason string) error
}

// PublicContactRepository defines operations for materialized snapshot rows
type PublicContactRepository interface {
	Repository[models.PublicContact, models.PublicContactFilter]
	ListByPublic(ctx context.Context, publicID uint) ([]*models.PublicContact, error)
	DeleteByPublic(ctx context.Context, publicID uint) error
}

// NumberRepository defines operations for number instances
type NumberRepository interface {
	Repository[models.Number, models.NumberFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Number, error)
	// ListSyncable returns numbers that are enabled and reporting a connected
	// channel state, the contact-sync scheduler's target set
	ListSyncable(ctx context.Context) ([]*models.Number, error)
	MarkSynced(ctx context.Context, id uint, at time.Time) error
}

// MessageRepository defines operations for outbound messages
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	// MarkSent and MarkFailed update delivery outcome for a message row
	MarkSent(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	CountByJobID(ctx context.Context, jobID string) (int64, error)
}
