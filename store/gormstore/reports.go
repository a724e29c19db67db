package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"gorm.io/gorm"
)

func (s *GormStore) FindOpenReport(ctx context.Context, key store.ReportKey, since time.Time) (*models.UserReport, error) {
	query := s.DB.WithContext(ctx).
		Where("reporter_id = ? AND report_type = ? AND created_at >= ? AND status IN ?",
			key.ReporterID, key.ReportType, since, openReportStatuses())
	if key.ReportedUserID != "" {
		query = query.Where("reported_user_id = ?", key.ReportedUserID)
	} else {
		query = query.Where("reported_user_id IS NULL")
	}
	if key.ContentID != "" {
		query = query.Where("content_id = ? AND content_type = ?", key.ContentID, key.ContentType)
	} else {
		query = query.Where("content_id IS NULL")
	}

	var r models.UserReport
	err := query.Order("created_at ASC").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) CreateReport(ctx context.Context, r *models.UserReport) error {
	return s.DB.WithContext(ctx).Create(r).Error
}

func (s *GormStore) GetReport(ctx context.Context, id string) (*models.UserReport, error) {
	var r models.UserReport
	if err := s.DB.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "report %s", id)
	}
	return &r, nil
}

// ResolveReport closes an open report. ErrConflict means another resolution
// got there first.
func (s *GormStore) ResolveReport(ctx context.Context, id string, res store.ReportResolution) (*models.UserReport, error) {
	result := s.DB.WithContext(ctx).Model(&models.UserReport{}).
		Where("id = ? AND status IN ?", id, openReportStatuses()).
		Updates(map[string]interface{}{
			"status":       res.Status,
			"resolved_by":  res.ResolverID,
			"resolved_at":  res.At,
			"resolution":   res.Resolution,
			"action_taken": res.ActionTaken,
			"updated_at":   res.At,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return nil, types.ErrConflict
	}
	return report, nil
}

func openReportStatuses() []string {
	return []string{string(types.ReportStatusPending), string(types.ReportStatusInvestigating)}
}

func (s *GormStore) ListReports(ctx context.Context, f store.ReportFilter) ([]models.UserReport, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.UserReport{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.ReportType != "" {
		query = query.Where("report_type = ?", f.ReportType)
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.UserReport
	query = query.Order("created_at DESC").Offset(f.Offset)
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	if err := query.Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// CountContentReports ignores reports a moderator dismissed.
func (s *GormStore) CountContentReports(ctx context.Context, contentID, contentType string, since time.Time) (int, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.UserReport{}).
		Where("content_id = ? AND content_type = ? AND created_at >= ? AND status <> ?",
			contentID, contentType, since, types.ReportStatusDismissed).
		Count(&n).Error
	return int(n), err
}

// CountUserReports counts reports naming the user directly or targeting one of their posts.
func (s *GormStore) CountUserReports(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.UserReport{}).
		Where("created_at >= ?", since).
		Where(s.DB.Where("reported_user_id = ?", userID).
			Or("content_type = ? AND content_id IN (?)", types.ContentTypePost,
				s.DB.Model(&models.Post{}).Select("id").Where("user_id = ?", userID))).
		Count(&n).Error
	return int(n), err
}

func (s *GormStore) ReportCounts(ctx context.Context) (map[string]int64, error) {
	return groupCounts(s.DB.WithContext(ctx).Model(&models.UserReport{}))
}
