// Package gormstore implements store.Store on Postgres through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	DB *gorm.DB
}

var _ store.Store = (*GormStore)(nil)

func New(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NotFoundf(format, args...)
	}
	return err
}

func (s *GormStore) SaveResult(ctx context.Context, rec *models.ModerationRecord) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

func (s *GormStore) LatestResult(ctx context.Context, contentID, contentType string) (*models.ModerationRecord, error) {
	var rec models.ModerationRecord
	err := s.DB.WithContext(ctx).
		Where("content_id = ? AND content_type = ?", contentID, contentType).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		return nil, notFound(err, "no moderation result for %s/%s", contentType, contentID)
	}
	return &rec, nil
}

func (s *GormStore) UserHistory(ctx context.Context, userID string, since time.Time) (store.UserHistory, error) {
	var row struct {
		Total    int
		Rejected int
		Severe   int
	}
	err := s.DB.WithContext(ctx).Model(&models.ModerationRecord{}).
		Select(`COUNT(*) AS total,
			COUNT(*) FILTER (WHERE NOT is_approved) AS rejected,
			COUNT(*) FILTER (WHERE severity IN ?) AS severe`,
			[]string{string(types.SeverityHigh), string(types.SeverityCritical)}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&row).Error
	if err != nil {
		return store.UserHistory{}, err
	}
	return store.UserHistory{Total: row.Total, Rejected: row.Rejected, Severe: row.Severe}, nil
}

func (s *GormStore) CountDuplicates(ctx context.Context, contentHash, excludeUserID string, since time.Time) (int, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.ModerationRecord{}).
		Where("content_hash = ? AND user_id <> ? AND created_at >= ?", contentHash, excludeUserID, since).
		Count(&n).Error
	return int(n), err
}

func (s *GormStore) ResultStats(ctx context.Context, since time.Time) (store.ResultStats, error) {
	stats := store.ResultStats{TopFlags: make(map[string]int64)}
	var row struct {
		Total       int64
		Approved    int64
		NeedsReview int64
	}
	db := s.DB.WithContext(ctx)
	err := db.Model(&models.ModerationRecord{}).
		Select(`COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_approved) AS approved,
			COUNT(*) FILTER (WHERE requires_human_review) AS needs_review`).
		Where("created_at >= ?", since).
		Scan(&row).Error
	if err != nil {
		return stats, err
	}
	stats.Total = row.Total
	stats.Approved = row.Approved
	stats.Rejected = row.Total - row.Approved
	stats.NeedsReview = row.NeedsReview

	var flags []struct {
		Flag  string
		Count int64
	}
	err = db.Raw(`SELECT flag, COUNT(*) AS count
		FROM moderation_records, unnest(flags) AS flag
		WHERE created_at >= ?
		GROUP BY flag ORDER BY count DESC LIMIT 10`, since).
		Scan(&flags).Error
	if err != nil {
		return stats, err
	}
	for _, f := range flags {
		stats.TopFlags[f.Flag] = f.Count
	}
	return stats, nil
}

func (s *GormStore) CreateAppeal(ctx context.Context, a *models.Appeal) error {
	return s.DB.WithContext(ctx).Create(a).Error
}

func (s *GormStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	return s.DB.WithContext(ctx).Create(n).Error
}

func (s *GormStore) LoadRuleStates(ctx context.Context) ([]models.RuleState, error) {
	var states []models.RuleState
	if err := s.DB.WithContext(ctx).Find(&states).Error; err != nil {
		return nil, fmt.Errorf("loading rule states: %w", err)
	}
	return states, nil
}

func (s *GormStore) SaveRuleState(ctx context.Context, st *models.RuleState) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rule_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "updated_by", "updated_at"}),
	}).Create(st).Error
}
