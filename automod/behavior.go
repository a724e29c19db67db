package automod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
)

// BehaviorSource computes a user's behavior snapshot.
type BehaviorSource interface {
	Compute(ctx context.Context, userID string) (types.UserBehaviorMetrics, error)
}

type behaviorStore interface {
	store.ContentStore
	CountUserReports(ctx context.Context, userID string, since time.Time) (int, error)
}

// BehaviorService derives UserBehaviorMetrics from storage on every call.
type BehaviorService struct {
	store behaviorStore
	now   func() time.Time
}

func NewBehaviorService(s behaviorStore) *BehaviorService {
	return &BehaviorService{store: s, now: time.Now}
}

// Compute builds a fresh snapshot. Users unknown to the store are treated as
// brand-new accounts.
func (b *BehaviorService) Compute(ctx context.Context, userID string) (types.UserBehaviorMetrics, error) {
	now := b.now()
	m := types.UserBehaviorMetrics{UserID: userID}

	user, err := b.store.GetUser(ctx, userID)
	switch {
	case errors.Is(err, types.ErrNotFound):
	case err != nil:
		return m, fmt.Errorf("loading user: %w", err)
	default:
		m.AccountAge = now.Sub(user.CreatedAt)
	}

	if m.PostsLastHour, err = b.store.CountUserContent(ctx, userID, types.ContentTypePost, now.Add(-time.Hour)); err != nil {
		return m, fmt.Errorf("counting recent posts: %w", err)
	}
	if m.PostsLastDay, err = b.store.CountUserContent(ctx, userID, types.ContentTypePost, now.Add(-24*time.Hour)); err != nil {
		return m, fmt.Errorf("counting daily posts: %w", err)
	}
	if m.CommentsLastDay, err = b.store.CountUserContent(ctx, userID, types.ContentTypeComment, now.Add(-24*time.Hour)); err != nil {
		return m, fmt.Errorf("counting daily comments: %w", err)
	}
	if m.ReportsReceived, err = b.store.CountUserReports(ctx, userID, now.Add(-types.USER_HISTORY_WINDOW)); err != nil {
		return m, fmt.Errorf("counting reports: %w", err)
	}
	if m.FollowerCount, err = b.store.FollowerCount(ctx, userID); err != nil {
		return m, fmt.Errorf("counting followers: %w", err)
	}
	if m.EngagementRate, err = b.store.EngagementRate(ctx, userID); err != nil {
		return m, fmt.Errorf("computing engagement: %w", err)
	}

	m.SuspiciousActivity = m.PostsLastHour > 10 ||
		(m.AccountAge < 24*time.Hour && m.PostsLastDay > 5) ||
		m.ReportsReceived >= 5 ||
		(m.FollowerCount == 0 && m.PostsLastDay+m.CommentsLastDay > 50)
	return m, nil
}
