package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/zapflowbr/zapflow/models"
	"github.com/zapflowbr/zapflow/utils"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db)}
}

func (r *MessageRepositoryImpl) applyFilter(db *gorm.DB, f models.MessageFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.ContactID != nil {
		db = db.Where("contact_id = ?", *f.ContactID)
	}
	if f.Phone != nil {
		db = db.Where("phone = ?", *f.Phone)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.JobID != nil {
		db = db.Where("job_id = ?", *f.JobID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find messages by filter: %w", err)
	}
	return rows, nil
}

func (r *MessageRepositoryImpl) MarkSent(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)
	if err := db.Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.MessageStatusSent,
			"sent_at":    at,
			"error":      nil,
			"updated_at": utils.UTCNow(),
		}).Error; err != nil {
		return fmt.Errorf("failed to mark message %d sent: %w", id, err)
	}
	return nil
}

func (r *MessageRepositoryImpl) MarkFailed(ctx context.Context, id uint, reason string) error {
	db := r.getDB(ctx)
	if err := db.Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.MessageStatusFailed,
			"error":      reason,
			"updated_at": utils.UTCNow(),
		}).Error; err != nil {
		return fmt.Errorf("failed to mark message %d failed: %w", id, err)
	}
	return nil
}

func (r *MessageRepositoryImpl) CountByJobID(ctx context.Context, jobID string) (int64, error) {
	return r.Count(ctx, models.MessageFilter{JobID: &jobID})
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepositoryImpl) Exists(ctx context.Context, filter models.MessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
