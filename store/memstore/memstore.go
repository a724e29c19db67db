// Package memstore is an in-process implementation of store.Store. It is used
// by tests and by STORAGE_DRIVER=memory for local development.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
)

type contentKey struct {
	id string
	ct types.ContentType
}

type MemStore struct {
	mu sync.Mutex

	Results       []models.ModerationRecord
	Queue         map[string]*models.QueueItem
	Reports       map[string]*models.UserReport
	Appeals       []models.Appeal
	Notifications []models.Notification
	RuleStates    map[string]models.RuleState
	Users         map[string]*models.User
	Content       map[contentKey]*models.Moderatable
	ContentOwner  map[contentKey]string
	ContentTimes  map[contentKey]time.Time
	Followers     map[string]int
	Engagement    map[string]float64
	Activity      []models.ActivityLog
}

var _ store.Store = (*MemStore)(nil)

func New() *MemStore {
	return &MemStore{
		Queue:        make(map[string]*models.QueueItem),
		Reports:      make(map[string]*models.UserReport),
		RuleStates:   make(map[string]models.RuleState),
		Users:        make(map[string]*models.User),
		Content:      make(map[contentKey]*models.Moderatable),
		ContentOwner: make(map[contentKey]string),
		ContentTimes: make(map[contentKey]time.Time),
		Followers:    make(map[string]int),
		Engagement:   make(map[string]float64),
	}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

// fixture helpers

func (s *MemStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.AccountStatus == "" {
		u.AccountStatus = models.AccountStatusActive
	}
	s.Users[u.ID] = &u
}

func (s *MemStore) PutContent(contentID string, ct types.ContentType, userID string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := contentKey{contentID, ct}
	s.Content[k] = &models.Moderatable{ModerationStatus: models.ContentStatusPending}
	s.ContentOwner[k] = userID
	s.ContentTimes[k] = createdAt
}

func (s *MemStore) ContentState(contentID string, ct types.ContentType) (models.Moderatable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Content[contentKey{contentID, ct}]
	if !ok {
		return models.Moderatable{}, false
	}
	return *m, true
}

func (s *MemStore) User(userID string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.Users[userID]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// results

func (s *MemStore) SaveResult(ctx context.Context, rec *models.ModerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.Results = append(s.Results, *rec)
	return nil
}

func (s *MemStore) LatestResult(ctx context.Context, contentID, contentType string) (*models.ModerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.ModerationRecord
	for i := range s.Results {
		r := &s.Results[i]
		if r.ContentID != contentID || r.ContentType != contentType {
			continue
		}
		if latest == nil || !r.CreatedAt.Before(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, types.NotFoundf("no moderation result for %s/%s", contentType, contentID)
	}
	out := *latest
	return &out, nil
}

func (s *MemStore) UserHistory(ctx context.Context, userID string, since time.Time) (store.UserHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var h store.UserHistory
	for _, r := range s.Results {
		if r.UserID != userID || r.CreatedAt.Before(since) {
			continue
		}
		h.Total++
		if !r.IsApproved {
			h.Rejected++
		}
		if types.Severity(r.Severity).AtLeast(types.SeverityHigh) {
			h.Severe++
		}
	}
	return h, nil
}

func (s *MemStore) CountDuplicates(ctx context.Context, contentHash, excludeUserID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.Results {
		if r.ContentHash == contentHash && r.UserID != excludeUserID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) ResultStats(ctx context.Context, since time.Time) (store.ResultStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := store.ResultStats{TopFlags: make(map[string]int64)}
	for _, r := range s.Results {
		if r.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		if r.IsApproved {
			stats.Approved++
		} else {
			stats.Rejected++
		}
		if r.RequiresHumanReview {
			stats.NeedsReview++
		}
		for _, f := range r.Flags {
			stats.TopFlags[f]++
		}
	}
	return stats, nil
}

// queue

func (s *MemStore) openItemLocked(contentID, contentType string) *models.QueueItem {
	for _, it := range s.Queue {
		if it.ContentID == contentID && it.ContentType == contentType && types.QueueStatus(it.Status).Open() {
			return it
		}
	}
	return nil
}

func (s *MemStore) CreateQueueItem(ctx context.Context, item *models.QueueItem) (*models.QueueItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.openItemLocked(item.ContentID, item.ContentType); existing != nil {
		out := *existing
		return &out, false, nil
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	stored := *item
	s.Queue[item.ID] = &stored
	out := stored
	return &out, true, nil
}

func (s *MemStore) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.Queue[id]
	if !ok {
		return nil, types.NotFoundf("queue item %s", id)
	}
	out := *it
	return &out, nil
}

func (s *MemStore) OpenQueueItem(ctx context.Context, contentID, contentType string) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.openItemLocked(contentID, contentType)
	if it == nil {
		return nil, types.NotFoundf("no open queue item for %s/%s", contentType, contentID)
	}
	out := *it
	return &out, nil
}

func (s *MemStore) ListQueueItems(ctx context.Context, f store.QueueFilter) ([]models.QueueItem, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueueItem
	for _, it := range s.Queue {
		if f.Status != "" && it.Status != string(f.Status) {
			continue
		}
		if f.Priority != "" && it.Priority != string(f.Priority) {
			continue
		}
		if f.Severity != "" && it.Severity != string(f.Severity) {
			continue
		}
		if f.AssignedTo != "" && (it.AssignedTo == nil || *it.AssignedTo != f.AssignedTo) {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	total := int64(len(out))
	return paginate(out, f.Offset, f.Limit), total, nil
}

func (s *MemStore) AssignQueueItem(ctx context.Context, id, moderatorID string) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.Queue[id]
	if !ok {
		return nil, types.NotFoundf("queue item %s", id)
	}
	if it.Status != string(types.QueueStatusPending) {
		return nil, types.ErrConflict
	}
	it.Status = string(types.QueueStatusInReview)
	it.AssignedTo = &moderatorID
	it.UpdatedAt = time.Now()
	out := *it
	return &out, nil
}

func (s *MemStore) CompleteQueueItem(ctx context.Context, id string, c store.QueueCompletion) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.Queue[id]
	if !ok {
		return nil, types.NotFoundf("queue item %s", id)
	}
	if !types.QueueStatus(it.Status).Open() {
		return nil, types.ErrConflict
	}
	at := c.At
	reviewer := c.ReviewerID
	it.Status = string(c.Status)
	it.ReviewedAt = &at
	it.ReviewedBy = &reviewer
	it.ReviewNotes = c.Notes
	it.EscalationReason = c.EscalationReason
	it.UpdatedAt = at
	out := *it
	return &out, nil
}

func (s *MemStore) InReviewCounts(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, it := range s.Queue {
		if it.Status == string(types.QueueStatusInReview) && it.AssignedTo != nil {
			counts[*it.AssignedTo]++
		}
	}
	return counts, nil
}

func (s *MemStore) QueueCounts(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, it := range s.Queue {
		counts[it.Status]++
	}
	return counts, nil
}

// reports

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *MemStore) FindOpenReport(ctx context.Context, key store.ReportKey, since time.Time) (*models.UserReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.UserReport
	for _, r := range s.Reports {
		if r.ReporterID != key.ReporterID || r.ReportType != string(key.ReportType) {
			continue
		}
		if strVal(r.ReportedUserID) != key.ReportedUserID || strVal(r.ContentID) != key.ContentID || strVal(r.ContentType) != key.ContentType {
			continue
		}
		if r.CreatedAt.Before(since) || !types.ReportStatus(r.Status).Open() {
			continue
		}
		if found == nil || r.CreatedAt.Before(found.CreatedAt) {
			found = r
		}
	}
	if found == nil {
		return nil, nil
	}
	out := *found
	return &out, nil
}

func (s *MemStore) CreateReport(ctx context.Context, r *models.UserReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	stored := *r
	s.Reports[r.ID] = &stored
	return nil
}

func (s *MemStore) GetReport(ctx context.Context, id string) (*models.UserReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Reports[id]
	if !ok {
		return nil, types.NotFoundf("report %s", id)
	}
	out := *r
	return &out, nil
}

func (s *MemStore) ResolveReport(ctx context.Context, id string, res store.ReportResolution) (*models.UserReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Reports[id]
	if !ok {
		return nil, types.NotFoundf("report %s", id)
	}
	if !types.ReportStatus(r.Status).Open() {
		return nil, types.ErrConflict
	}
	at := res.At
	resolver := res.ResolverID
	r.Status = string(res.Status)
	r.ResolvedAt = &at
	r.ResolvedBy = &resolver
	r.Resolution = res.Resolution
	r.ActionTaken = string(res.ActionTaken)
	r.UpdatedAt = at
	out := *r
	return &out, nil
}

func (s *MemStore) ListReports(ctx context.Context, f store.ReportFilter) ([]models.UserReport, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserReport
	for _, r := range s.Reports {
		if f.Status != "" && r.Status != string(f.Status) {
			continue
		}
		if f.ReportType != "" && r.ReportType != string(f.ReportType) {
			continue
		}
		if f.Priority != "" && r.Priority != string(f.Priority) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	return paginate(out, f.Offset, f.Limit), total, nil
}

func (s *MemStore) CountContentReports(ctx context.Context, contentID, contentType string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.Reports {
		if r.Status == string(types.ReportStatusDismissed) {
			continue
		}
		if strVal(r.ContentID) == contentID && strVal(r.ContentType) == contentType && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) CountUserReports(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.Reports {
		if r.CreatedAt.Before(since) {
			continue
		}
		if strVal(r.ReportedUserID) == userID {
			n++
			continue
		}
		if r.ContentID != nil && r.ContentType != nil && s.ContentOwner[contentKey{*r.ContentID, types.ContentType(*r.ContentType)}] == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) ReportCounts(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, r := range s.Reports {
		counts[r.Status]++
	}
	return counts, nil
}

// appeals, notifications, rule states

func (s *MemStore) CreateAppeal(ctx context.Context, a *models.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.Appeals = append(s.Appeals, *a)
	return nil
}

func (s *MemStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.Notifications = append(s.Notifications, *n)
	return nil
}

func (s *MemStore) NotificationsFor(userID string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.Notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (s *MemStore) LoadRuleStates(ctx context.Context) ([]models.RuleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RuleState, 0, len(s.RuleStates))
	for _, st := range s.RuleStates {
		out = append(out, st)
	}
	return out, nil
}

func (s *MemStore) SaveRuleState(ctx context.Context, st *models.RuleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RuleStates[st.RuleID] = *st
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
