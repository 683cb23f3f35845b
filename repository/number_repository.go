package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// NumberRepositoryImpl implements NumberRepository
type NumberRepositoryImpl struct {
	*BaseRepository[models.Number, models.NumberFilter]
}

func NewNumberRepository(db *gorm.DB) NumberRepository {
	return &NumberRepositoryImpl{BaseRepository: NewBaseRepository[models.Number, models.NumberFilter](db)}
}

func (r *NumberRepositoryImpl) applyFilter(db *gorm.DB, f models.NumberFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.InstanceName != nil {
		db = db.Where("instance_name = ?", *f.InstanceName)
	}
	if f.OwnerPhone != nil {
		db = db.Where("owner_phone = ?", *f.OwnerPhone)
	}
	if f.Enabled != nil {
		db = db.Where("enabled = ?", *f.Enabled)
	}
	if f.ConnectionState != nil {
		db = db.Where("connection_state = ?", *f.ConnectionState)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *NumberRepositoryImpl) ByFilter(ctx context.Context, filter models.NumberFilter, orderBy string, limit, offset int) ([]*models.Number, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Number{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Number
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find numbers by filter: %w", err)
	}
	return rows, nil
}

func (r *NumberRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Number, error) {
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid number UUID: %w", err)
	}
	rows, err := r.ByFilter(ctx, models.NumberFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *NumberRepositoryImpl) ListSyncable(ctx context.Context) ([]*models.Number, error) {
	enabled := true
	state := models.ConnectionStateConnected
	return r.ByFilter(ctx, models.NumberFilter{Enabled: &enabled, ConnectionState: &state}, "id ASC", 0, 0)
}

func (r *NumberRepositoryImpl) MarkSynced(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)
	if err := db.Model(&models.Number{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_sync_at": at, "updated_at": utils.UTCNow()}).Error; err != nil {
		return fmt.Errorf("failed to mark number %d synced: %w", id, err)
	}
	return nil
}

func (r *NumberRepositoryImpl) Count(ctx context.Context, filter models.NumberFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Number{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *NumberRepositoryImpl) Exists(ctx context.Context, filter models.NumberFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
