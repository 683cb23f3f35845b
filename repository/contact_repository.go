package repository

import (
	"context"
	"fmt"

	"github.com/zapflowbr/zapflow/models"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db)}
}

func (r *ContactRepositoryImpl) applyFilter(db *gorm.DB, f models.ContactFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.NumberID != nil {
		db = db.Where("number_id = ?", *f.NumberID)
	}
	if f.CelOwner != nil {
		db = db.Where("cel_owner = ?", *f.CelOwner)
	}
	if f.Phone != nil {
		db = db.Where("phone = ?", *f.Phone)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Labels != nil && len(*f.Labels) > 0 {
		// && is array overlap (any), @> is containment (all)
		if f.LabelMatch == models.LabelMatchAll {
			db = db.Where("labels @> ?", *f.Labels)
		} else {
			db = db.Where("labels && ?", *f.Labels)
		}
	}
	if f.Search != nil && *f.Search != "" {
		pattern := "%" + *f.Search + "%"
		db = db.Where("name ILIKE ? OR phone ILIKE ?", pattern, pattern)
	}
	if f.TagContains != nil && *f.TagContains != "" {
		db = db.Where("label_summary ILIKE ?", "%"+*f.TagContains+"%")
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find contacts by filter: %w", err)
	}
	return rows, nil
}

// ExistsByPhone checks the import uniqueness invariant; soft-deleted rows are
// excluded by gorm's DeletedAt handling.
func (r *ContactRepositoryImpl) ExistsByPhone(ctx context.Context, userID, numberID uint, phone string) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Contact{}).
		Where("user_id = ? AND number_id = ? AND phone = ?", userID, numberID, phone).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check contact existence: %w", err)
	}
	return count > 0, nil
}

func (r *ContactRepositoryImpl) SoftDelete(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	if err := db.Delete(&models.Contact{}, id).Error; err != nil {
		return fmt.Errorf("failed to soft delete contact %d: %w", id, err)
	}
	return nil
}

func (r *ContactRepositoryImpl) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ContactRepositoryImpl) Exists(ctx context.Context, filter models.ContactFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
