package gormstore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/types"
	"gorm.io/gorm"
)

// contentModel returns the table backing a content type and the column that
// holds its author.
func contentModel(ct types.ContentType) (interface{}, string, error) {
	switch ct {
	case types.ContentTypePost:
		return &models.Post{}, "user_id", nil
	case types.ContentTypeComment:
		return &models.Comment{}, "user_id", nil
	case types.ContentTypeImage:
		return &models.PostMedia{}, "user_id", nil
	case types.ContentTypeMessage:
		return &models.Message{}, "sender_id", nil
	case types.ContentTypeProfile:
		return &models.User{}, "id", nil
	}
	return nil, "", types.Validationf("unknown content type %q", ct)
}

func (s *GormStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		return nil, notFound(err, "user %s", userID)
	}
	return &u, nil
}

func (s *GormStore) ContentAuthor(ctx context.Context, contentID string, ct types.ContentType) (string, error) {
	model, ownerCol, err := contentModel(ct)
	if err != nil {
		return "", err
	}
	var owners []string
	err = s.DB.WithContext(ctx).Model(model).
		Where("id = ?", contentID).
		Limit(1).
		Pluck(ownerCol, &owners).Error
	if err != nil {
		return "", err
	}
	if len(owners) == 0 || owners[0] == "" {
		return "", types.NotFoundf("%s %s", ct, contentID)
	}
	return owners[0], nil
}

func (s *GormStore) CountUserContent(ctx context.Context, userID string, ct types.ContentType, since time.Time) (int, error) {
	model, ownerCol, err := contentModel(ct)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.DB.WithContext(ctx).Model(model).
		Where(fmt.Sprintf("%s = ? AND created_at >= ?", ownerCol), userID, since).
		Count(&n).Error
	return int(n), err
}

func (s *GormStore) FollowerCount(ctx context.Context, userID string) (int, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Follow{}).
		Where("following_user_id = ? AND status = ?", userID, "accepted").
		Count(&n).Error
	return int(n), err
}

// EngagementRate is likes per post over the last 30 days, normalized by audience size.
func (s *GormStore) EngagementRate(ctx context.Context, userID string) (float64, error) {
	since := time.Now().Add(-30 * 24 * time.Hour)
	db := s.DB.WithContext(ctx)

	var posts int64
	if err := db.Model(&models.Post{}).Where("user_id = ? AND created_at >= ?", userID, since).Count(&posts).Error; err != nil {
		return 0, err
	}
	if posts == 0 {
		return 0, nil
	}
	var likes int64
	err := db.Model(&models.Like{}).
		Joins("JOIN posts ON posts.id = likes.post_id").
		Where("posts.user_id = ? AND likes.created_at >= ?", userID, since).
		Count(&likes).Error
	if err != nil {
		return 0, err
	}
	followers, err := s.FollowerCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	audience := math.Max(float64(followers), 1)
	return math.Min(float64(likes)/float64(posts)/audience, 1), nil
}

func (s *GormStore) ListActiveModerators(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where("is_moderator = ? AND is_active = ?", true, true).
		Find(&users).Error
	return users, err
}

func (s *GormStore) updateContent(ctx context.Context, contentID string, ct types.ContentType, updates map[string]interface{}) error {
	model, _, err := contentModel(ct)
	if err != nil {
		return err
	}
	if ct == types.ContentTypeProfile {
		hidden, _ := updates["is_hidden"].(bool)
		updates = map[string]interface{}{"profile_hidden": hidden}
	}
	res := s.DB.WithContext(ctx).Model(model).Where("id = ?", contentID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.NotFoundf("%s %s", ct, contentID)
	}
	return nil
}

func (s *GormStore) HideContent(ctx context.Context, contentID string, ct types.ContentType) error {
	return s.updateContent(ctx, contentID, ct, map[string]interface{}{
		"is_hidden":         true,
		"is_approved":       false,
		"moderation_status": models.ContentStatusHidden,
	})
}

func (s *GormStore) ApproveContent(ctx context.Context, contentID string, ct types.ContentType) error {
	return s.updateContent(ctx, contentID, ct, map[string]interface{}{
		"is_hidden":         false,
		"is_approved":       true,
		"moderation_status": models.ContentStatusApproved,
	})
}

func (s *GormStore) RemoveContent(ctx context.Context, contentID string, ct types.ContentType) error {
	return s.updateContent(ctx, contentID, ct, map[string]interface{}{
		"is_hidden":         true,
		"is_approved":       false,
		"moderation_status": models.ContentStatusRemoved,
	})
}

func (s *GormStore) updateUser(ctx context.Context, userID string, query func(*gorm.DB) *gorm.DB, updates map[string]interface{}) error {
	db := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID)
	if query != nil {
		db = query(db)
	}
	res := db.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// either missing or already in the target state
		if _, err := s.GetUser(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) FlagUser(ctx context.Context, userID string) error {
	status := gorm.Expr("CASE WHEN account_status = ? THEN ? ELSE account_status END",
		models.AccountStatusActive, models.AccountStatusFlagged)
	return s.updateUser(ctx, userID, nil, map[string]interface{}{
		"flag_count":     gorm.Expr("flag_count + ?", 1),
		"account_status": status,
	})
}

func (s *GormStore) WarnUser(ctx context.Context, userID string) error {
	return s.updateUser(ctx, userID, nil, map[string]interface{}{
		"warning_count": gorm.Expr("warning_count + ?", 1),
	})
}

func (s *GormStore) SuspendUser(ctx context.Context, userID string, until time.Time) error {
	return s.updateUser(ctx, userID, func(db *gorm.DB) *gorm.DB {
		return db.Where("account_status <> ?", models.AccountStatusBanned).
			Where("suspended_until IS NULL OR suspended_until < ?", until)
	}, map[string]interface{}{
		"account_status":  models.AccountStatusSuspended,
		"suspended_until": until,
	})
}

func (s *GormStore) BanUser(ctx context.Context, userID string, at time.Time) error {
	return s.updateUser(ctx, userID, func(db *gorm.DB) *gorm.DB {
		return db.Where("account_status <> ?", models.AccountStatusBanned)
	}, map[string]interface{}{
		"account_status": models.AccountStatusBanned,
		"banned_at":      at,
		"is_active":      false,
	})
}

func (s *GormStore) LiftExpiredSuspensions(ctx context.Context, now time.Time) (int, error) {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("account_status = ? AND suspended_until <= ?", models.AccountStatusSuspended, now).
		Updates(map[string]interface{}{
			"account_status":  models.AccountStatusActive,
			"suspended_until": nil,
		})
	return int(res.RowsAffected), res.Error
}

func (s *GormStore) LogActivity(ctx context.Context, entry *models.ActivityLog) error {
	return s.DB.WithContext(ctx).Create(entry).Error
}
