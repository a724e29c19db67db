package gormstore

import (
	"context"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func openStatuses() []string {
	out := make([]string, len(types.OpenQueueStatuses))
	for i, s := range types.OpenQueueStatuses {
		out[i] = string(s)
	}
	return out
}

// CreateQueueItem relies on the partial unique index idx_queue_open_content:
// the insert is skipped when an open row exists, and that row is returned.
func (s *GormStore) CreateQueueItem(ctx context.Context, item *models.QueueItem) (*models.QueueItem, bool, error) {
	var existing models.QueueItem
	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "content_id"}, {Name: "content_type"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "status IN ('pending', 'in_review')"},
			}},
			DoNothing: true,
		}).Create(item)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			created = true
			existing = *item
			return nil
		}
		return tx.Where("content_id = ? AND content_type = ? AND status IN ?",
			item.ContentID, item.ContentType, openStatuses()).
			First(&existing).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &existing, created, nil
}

func (s *GormStore) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	var item models.QueueItem
	if err := s.DB.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "queue item %s", id)
	}
	return &item, nil
}

func (s *GormStore) OpenQueueItem(ctx context.Context, contentID, contentType string) (*models.QueueItem, error) {
	var item models.QueueItem
	err := s.DB.WithContext(ctx).
		Where("content_id = ? AND content_type = ? AND status IN ?", contentID, contentType, openStatuses()).
		First(&item).Error
	if err != nil {
		return nil, notFound(err, "no open queue item for %s/%s", contentType, contentID)
	}
	return &item, nil
}

func (s *GormStore) ListQueueItems(ctx context.Context, f store.QueueFilter) ([]models.QueueItem, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.QueueItem{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}
	if f.Severity != "" {
		query = query.Where("severity = ?", f.Severity)
	}
	if f.AssignedTo != "" {
		query = query.Where("assigned_to = ?", f.AssignedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.QueueItem
	query = query.Order("created_at ASC").Offset(f.Offset)
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *GormStore) AssignQueueItem(ctx context.Context, id, moderatorID string) (*models.QueueItem, error) {
	res := s.DB.WithContext(ctx).Model(&models.QueueItem{}).
		Where("id = ? AND status = ?", id, types.QueueStatusPending).
		Updates(map[string]interface{}{
			"status":      types.QueueStatusInReview,
			"assigned_to": moderatorID,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	item, err := s.GetQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, types.ErrConflict
	}
	return item, nil
}

func (s *GormStore) CompleteQueueItem(ctx context.Context, id string, c store.QueueCompletion) (*models.QueueItem, error) {
	res := s.DB.WithContext(ctx).Model(&models.QueueItem{}).
		Where("id = ? AND status IN ?", id, openStatuses()).
		Updates(map[string]interface{}{
			"status":            c.Status,
			"reviewed_at":       c.At,
			"reviewed_by":       c.ReviewerID,
			"review_notes":      c.Notes,
			"escalation_reason": c.EscalationReason,
			"updated_at":        c.At,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	item, err := s.GetQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, types.ErrConflict
	}
	return item, nil
}

func (s *GormStore) InReviewCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		AssignedTo string
		Count      int
	}
	err := s.DB.WithContext(ctx).Model(&models.QueueItem{}).
		Select("assigned_to, COUNT(*) AS count").
		Where("status = ? AND assigned_to IS NOT NULL", types.QueueStatusInReview).
		Group("assigned_to").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.AssignedTo] = r.Count
	}
	return counts, nil
}

func (s *GormStore) QueueCounts(ctx context.Context) (map[string]int64, error) {
	return groupCounts(s.DB.WithContext(ctx).Model(&models.QueueItem{}))
}

func groupCounts(query *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
