package memstore

import (
	"context"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/types"
)

func (s *MemStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.Users[userID]
	if !ok {
		return nil, types.NotFoundf("user %s", userID)
	}
	out := *u
	return &out, nil
}

func (s *MemStore) CountUserContent(ctx context.Context, userID string, ct types.ContentType, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, owner := range s.ContentOwner {
		if owner == userID && k.ct == ct && !s.ContentTimes[k].Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) FollowerCount(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Followers[userID], nil
}

func (s *MemStore) EngagementRate(ctx context.Context, userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Engagement[userID], nil
}

func (s *MemStore) ListActiveModerators(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.Users {
		if u.IsModerator && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *MemStore) ContentAuthor(ctx context.Context, contentID string, ct types.ContentType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ct == types.ContentTypeProfile {
		if _, ok := s.Users[contentID]; ok {
			return contentID, nil
		}
	}
	owner, ok := s.ContentOwner[contentKey{contentID, ct}]
	if !ok || owner == "" {
		return "", types.NotFoundf("%s %s", ct, contentID)
	}
	return owner, nil
}

func (s *MemStore) mutateContent(contentID string, ct types.ContentType, fn func(m *models.Moderatable)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Content[contentKey{contentID, ct}]
	if !ok {
		return types.NotFoundf("%s %s", ct, contentID)
	}
	fn(m)
	return nil
}

func (s *MemStore) HideContent(ctx context.Context, contentID string, ct types.ContentType) error {
	return s.mutateContent(contentID, ct, func(m *models.Moderatable) {
		m.IsHidden = true
		m.IsApproved = false
		m.ModerationStatus = models.ContentStatusHidden
	})
}

func (s *MemStore) ApproveContent(ctx context.Context, contentID string, ct types.ContentType) error {
	return s.mutateContent(contentID, ct, func(m *models.Moderatable) {
		m.IsHidden = false
		m.IsApproved = true
		m.ModerationStatus = models.ContentStatusApproved
	})
}

func (s *MemStore) RemoveContent(ctx context.Context, contentID string, ct types.ContentType) error {
	return s.mutateContent(contentID, ct, func(m *models.Moderatable) {
		m.IsHidden = true
		m.IsApproved = false
		m.ModerationStatus = models.ContentStatusRemoved
	})
}

func (s *MemStore) mutateUser(userID string, fn func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.Users[userID]
	if !ok {
		return types.NotFoundf("user %s", userID)
	}
	fn(u)
	return nil
}

func (s *MemStore) FlagUser(ctx context.Context, userID string) error {
	return s.mutateUser(userID, func(u *models.User) {
		u.FlagCount++
		if u.AccountStatus == models.AccountStatusActive || u.AccountStatus == "" {
			u.AccountStatus = models.AccountStatusFlagged
		}
	})
}

func (s *MemStore) WarnUser(ctx context.Context, userID string) error {
	return s.mutateUser(userID, func(u *models.User) {
		u.WarningCount++
	})
}

func (s *MemStore) SuspendUser(ctx context.Context, userID string, until time.Time) error {
	return s.mutateUser(userID, func(u *models.User) {
		if u.AccountStatus == models.AccountStatusBanned {
			return
		}
		u.AccountStatus = models.AccountStatusSuspended
		if u.SuspendedUntil == nil || u.SuspendedUntil.Before(until) {
			u.SuspendedUntil = &until
		}
	})
}

func (s *MemStore) BanUser(ctx context.Context, userID string, at time.Time) error {
	return s.mutateUser(userID, func(u *models.User) {
		if u.BannedAt == nil {
			u.BannedAt = &at
		}
		u.AccountStatus = models.AccountStatusBanned
		u.IsActive = false
	})
}

func (s *MemStore) LiftExpiredSuspensions(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.Users {
		if u.AccountStatus == models.AccountStatusSuspended && u.SuspendedUntil != nil && !u.SuspendedUntil.After(now) {
			u.AccountStatus = models.AccountStatusActive
			u.SuspendedUntil = nil
			n++
		}
	}
	return n, nil
}

func (s *MemStore) LogActivity(ctx context.Context, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.Activity = append(s.Activity, *entry)
	return nil
}
