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

// CampaignRepositoryImpl implements CampaignRepository
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db)}
}

func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Campaign, error) {
	parsed, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid campaign UUID: %w", err)
	}
	rows, err := r.ByFilter(ctx, models.CampaignFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.PublicID != nil {
		db = db.Where("public_id = ?", *f.PublicID)
	}
	if f.NumberID != nil {
		db = db.Where("number_id = ?", *f.NumberID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.ScheduleAfter != nil {
		db = db.Where("schedule_at >= ?", *f.ScheduleAfter)
	}
	if f.ScheduleBefore != nil {
		db = db.Where("schedule_at < ?", *f.ScheduleBefore)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}
	return rows, nil
}

// ListDue returns dispatchable campaigns whose schedule time has passed,
// oldest schedule first so a backlog drains fairly.
func (r *CampaignRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Campaign{}).
		Where("status IN ?", []models.CampaignStatus{models.CampaignStatusPending, models.CampaignStatusScheduled}).
		Where("schedule_at IS NULL OR schedule_at <= ?", now).
		Order("schedule_at ASC NULLS FIRST")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}
	return rows, nil
}

// TransitionStatus moves a campaign between states with one conditional UPDATE.
// Zero affected rows means another actor won the race or the campaign already
// reached a terminal state.
func (r *CampaignRepositoryImpl) TransitionStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition campaign %d to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *CampaignRepositoryImpl) SetLastError(ctx context.Context, id uint, reason string) error {
	db := r.getDB(ctx)
	if err := db.Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_error": reason, "updated_at": utils.UTCNow()}).Error; err != nil {
		return fmt.Errorf("failed to set campaign last error: %w", err)
	}
	return nil
}

func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
