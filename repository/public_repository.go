package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// PublicRepositoryImpl implements PublicRepository
type PublicRepositoryImpl struct {
	*BaseRepository[models.Public, models.PublicFilter]
}

func NewPublicRepository(db *gorm.DB) PublicRepository {
	return &PublicRepositoryImpl{BaseRepository: NewBaseRepository[models.Public, models.PublicFilter](db)}
}

func (r *PublicRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Public, error) {
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid public UUID: %w", err)
	}
	rows, err := r.ByFilter(ctx, models.PublicFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *PublicRepositoryImpl) applyFilter(db *gorm.DB, f models.PublicFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.Kind != nil {
		db = db.Where("kind = ?", *f.Kind)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.SourcePublicID != nil {
		db = db.Where("source_public_id = ?", *f.SourcePublicID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *PublicRepositoryImpl) ByFilter(ctx context.Context, filter models.PublicFilter, orderBy string, limit, offset int) ([]*models.Public, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Public{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Public
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find publics by filter: %w", err)
	}
	return rows, nil
}

// TransitionStatus moves a public between states with one conditional UPDATE
func (r *PublicRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from []models.PublicStatus, to models.PublicStatus) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Public{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition public %d to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetResolved marks a public ready with its materialized contact count, but
// only while it is still resolving: a cancellation that landed in between
// wins and the late result is discarded.
func (r *PublicRepositoryImpl) SetResolved(ctx context.Context, id uint, totalContacts int) error {
	db := r.getDB(ctx)
	if err := db.Model(&models.Public{}).
		Where("id = ? AND status = ?", id, models.PublicStatusResolving).
		Updates(map[string]any{
			"status":         models.PublicStatusReady,
			"total_contacts": totalContacts,
			"updated_at":     utils.UTCNow(),
		}).Error; err != nil {
		return fmt.Errorf("failed to mark public %d resolved: %w", id, err)
	}
	return nil
}

func (r *PublicRepositoryImpl) SetLastError(ctx context.Context, id uint, reason string) error {
	db := r.getDB(ctx)
	if err := db.Model(&models.Public{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_error": reason, "updated_at": utils.UTCNow()}).Error; err != nil {
		return fmt.Errorf("failed to set public last error: %w", err)
	}
	return nil
}

func (r *PublicRepositoryImpl) Count(ctx context.Context, filter models.PublicFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Public{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PublicRepositoryImpl) Exists(ctx context.Context, filter models.PublicFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PublicContactRepositoryImpl implements PublicContactRepository
type PublicContactRepositoryImpl struct {
	*BaseRepository[models.PublicContact, models.PublicContactFilter]
}

func NewPublicContactRepository(db *gorm.DB) PublicContactRepository {
	return &PublicContactRepositoryImpl{BaseRepository: NewBaseRepository[models.PublicContact, models.PublicContactFilter](db)}
}

func (r *PublicContactRepositoryImpl) applyFilter(db *gorm.DB, f models.PublicContactFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.PublicID != nil {
		db = db.Where("public_id = ?", *f.PublicID)
	}
	if f.Phone != nil {
		db = db.Where("phone = ?", *f.Phone)
	}
	return db
}

func (r *PublicContactRepositoryImpl) ByFilter(ctx context.Context, filter models.PublicContactFilter, orderBy string, limit, offset int) ([]*models.PublicContact, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PublicContact{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PublicContact
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find public contacts by filter: %w", err)
	}
	return rows, nil
}

func (r *PublicContactRepositoryImpl) ListByPublic(ctx context.Context, publicID uint) ([]*models.PublicContact, error) {
	return r.ByFilter(ctx, models.PublicContactFilter{PublicID: &publicID}, "id DESC", 0, 0)
}

func (r *PublicContactRepositoryImpl) DeleteByPublic(ctx context.Context, publicID uint) error {
	db := r.getDB(ctx)
	if err := db.Where("public_id = ?", publicID).Delete(&models.PublicContact{}).Error; err != nil {
		return fmt.Errorf("failed to delete public contacts for public %d: %w", publicID, err)
	}
	return nil
}

func (r *PublicContactRepositoryImpl) Count(ctx context.Context, filter models.PublicContactFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PublicContact{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PublicContactRepositoryImpl) Exists(ctx context.Context, filter models.PublicContactFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
