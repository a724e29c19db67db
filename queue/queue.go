// Package queue owns the human review queue: deduplicated creation,
// assignment and review completion.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/notify"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
)

type queueStore interface {
	store.QueueStore
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListActiveModerators(ctx context.Context) ([]models.User, error)
	ApproveContent(ctx context.Context, contentID string, ct types.ContentType) error
	HideContent(ctx context.Context, contentID string, ct types.ContentType) error
	LogActivity(ctx context.Context, entry *models.ActivityLog) error
}

type EnqueueRequest struct {
	ContentID   string
	ContentType types.ContentType
	UserID      string
	Priority    types.Priority
	Flags       []string
	Reasons     []string
	Severity    types.Severity
	Confidence  float64
}

type ReviewDecision struct {
	Decision         types.QueueStatus `json:"decision" binding:"required"`
	ReviewerID       string            `json:"-"`
	Notes            string            `json:"notes"`
	EscalationReason string            `json:"escalationReason"`
}

type Queue struct {
	store  queueStore
	notify *notify.Dispatcher
	log    *zap.Logger
	now    func() time.Time
	pick   func(n int) int
}

func New(s queueStore, d *notify.Dispatcher, log *zap.Logger) *Queue {
	return &Queue{
		store:  s,
		notify: d,
		log:    log.Named("queue"),
		now:    time.Now,
		pick:   rand.Intn,
	}
}

// Enqueue creates a pending item unless the content already has an open one,
// in which case the existing item is returned with created=false.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (*models.QueueItem, bool, error) {
	if req.ContentID == "" {
		return nil, false, types.Validationf("contentId is required")
	}
	if !req.ContentType.Valid() {
		return nil, false, types.Validationf("invalid content type %q", req.ContentType)
	}
	if req.Severity == "" {
		req.Severity = types.SeverityLow
	}
	if !req.Severity.Valid() {
		return nil, false, types.Validationf("invalid severity %q", req.Severity)
	}
	if req.Priority == "" {
		req.Priority = types.PriorityForSeverity(req.Severity)
	}
	if !req.Priority.Valid() {
		return nil, false, types.Validationf("invalid priority %q", req.Priority)
	}

	now := q.now()
	item := &models.QueueItem{
		ID:          uuid.NewString(),
		ContentID:   req.ContentID,
		ContentType: string(req.ContentType),
		UserID:      req.UserID,
		Priority:    string(req.Priority),
		Status:      string(types.QueueStatusPending),
		Flags:       pq.StringArray(types.UnionStrings(req.Flags)),
		Reasons:     pq.StringArray(types.UnionStrings(req.Reasons)),
		Severity:    string(req.Severity),
		Confidence:  req.Confidence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stored, created, err := q.store.CreateQueueItem(ctx, item)
	if err != nil {
		return nil, false, fmt.Errorf("creating queue item: %w", err)
	}
	if !created {
		q.log.Debug("open queue item already exists",
			zap.String("content_id", req.ContentID),
			zap.String("content_type", string(req.ContentType)),
			zap.String("queue_item_id", stored.ID))
		return stored, false, nil
	}

	queueItemsCreated.WithLabelValues(stored.Priority).Inc()
	q.log.Info("queue item created",
		zap.String("queue_item_id", stored.ID),
		zap.String("content_id", stored.ContentID),
		zap.String("priority", stored.Priority))
	if req.Priority.Broadcast() {
		q.broadcast(ctx, stored)
	}
	return stored, true, nil
}

func (q *Queue) broadcast(ctx context.Context, item *models.QueueItem) {
	mods, err := q.store.ListActiveModerators(ctx)
	if err != nil {
		q.log.Warn("listing moderators for broadcast", zap.Error(err))
		return
	}
	for _, m := range mods {
		q.notify.Send(notify.Notification{
			UserID:   m.ID,
			Type:     notify.TypeQueueItem,
			Title:    "Urgent moderation needed",
			Message:  fmt.Sprintf("A %s priority %s needs review", item.Priority, item.ContentType),
			Priority: types.Priority(item.Priority),
			Data: map[string]any{
				"queueItemId": item.ID,
				"contentId":   item.ContentID,
				"contentType": item.ContentType,
			},
		})
	}
}

func (q *Queue) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	return q.store.GetQueueItem(ctx, id)
}

func (q *Queue) List(ctx context.Context, f store.QueueFilter) ([]models.QueueItem, int64, error) {
	if f.Status != "" && !f.Status.Open() && !f.Status.Terminal() {
		return nil, 0, types.Validationf("invalid status %q", f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, 0, types.Validationf("invalid priority %q", f.Priority)
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, 0, types.Validationf("invalid severity %q", f.Severity)
	}
	return q.store.ListQueueItems(ctx, f)
}

// Assign hands a pending item to a moderator.
func (q *Queue) Assign(ctx context.Context, id, moderatorID string) (*models.QueueItem, error) {
	mod, err := q.store.GetUser(ctx, moderatorID)
	if err != nil {
		return nil, err
	}
	if !mod.IsModerator || !mod.IsActive {
		return nil, types.Validationf("user %s is not an active moderator", moderatorID)
	}
	item, err := q.store.AssignQueueItem(ctx, id, moderatorID)
	if errors.Is(err, types.ErrConflict) {
		return nil, fmt.Errorf("queue item %s is not pending: %w", id, err)
	}
	if err != nil {
		return nil, err
	}

	q.log.Info("queue item assigned", zap.String("queue_item_id", id), zap.String("moderator_id", moderatorID))
	q.notify.Send(notify.Notification{
		UserID:   moderatorID,
		Type:     notify.TypeQueueAssignment,
		Title:    "New moderation assignment",
		Message:  fmt.Sprintf("You have been assigned a %s to review", item.ContentType),
		Priority: types.Priority(item.Priority),
		Data:     map[string]any{"queueItemId": item.ID},
	})
	return item, nil
}

// AutoAssign picks the active moderator with the fewest items in review,
// breaking ties at random.
func (q *Queue) AutoAssign(ctx context.Context, id string) (*models.QueueItem, error) {
	mods, err := q.store.ListActiveModerators(ctx)
	if err != nil {
		return nil, err
	}
	if len(mods) == 0 {
		return nil, types.NotFoundf("no active moderators")
	}
	workload, err := q.store.InReviewCounts(ctx)
	if err != nil {
		return nil, err
	}

	best := -1
	var candidates []string
	for _, m := range mods {
		n := workload[m.ID]
		switch {
		case best < 0 || n < best:
			best = n
			candidates = []string{m.ID}
		case n == best:
			candidates = append(candidates, m.ID)
		}
	}
	return q.Assign(ctx, id, candidates[q.pick(len(candidates))])
}

// CompleteReview moves an open item to a terminal state and applies the
// decision to the content. Escalations are recorded but not rerouted.
func (q *Queue) CompleteReview(ctx context.Context, id string, d ReviewDecision) (*models.QueueItem, error) {
	if !d.Decision.Terminal() {
		return nil, types.Validationf("decision must be approved, rejected or escalated")
	}
	if d.ReviewerID == "" {
		return nil, types.Validationf("reviewer is required")
	}
	if d.Decision == types.QueueStatusEscalated && d.EscalationReason == "" {
		d.EscalationReason = d.Notes
	}

	item, err := q.store.CompleteQueueItem(ctx, id, store.QueueCompletion{
		Status:           d.Decision,
		ReviewerID:       d.ReviewerID,
		Notes:            d.Notes,
		EscalationReason: d.EscalationReason,
		At:               q.now(),
	})
	if errors.Is(err, types.ErrConflict) {
		return nil, fmt.Errorf("queue item %s is already closed: %w", id, err)
	}
	if err != nil {
		return nil, err
	}

	ct := types.ContentType(item.ContentType)
	var activity string
	switch d.Decision {
	case types.QueueStatusApproved:
		activity = "content_approved"
		err = q.store.ApproveContent(ctx, item.ContentID, ct)
	case types.QueueStatusRejected:
		activity = "content_hidden"
		err = q.store.HideContent(ctx, item.ContentID, ct)
	case types.QueueStatusEscalated:
		activity = "review_escalated"
		q.log.Info("queue item escalated",
			zap.String("queue_item_id", id),
			zap.String("reviewer_id", d.ReviewerID),
			zap.String("reason", d.EscalationReason))
	}
	if err != nil {
		// the review stands even if the content is gone
		q.log.Warn("applying review decision",
			zap.String("queue_item_id", id),
			zap.String("content_id", item.ContentID),
			zap.Error(err))
	}
	reviewsCompleted.WithLabelValues(string(d.Decision)).Inc()

	if err := q.store.LogActivity(ctx, &models.ActivityLog{
		UserID:      item.UserID,
		ContentID:   item.ContentID,
		ContentType: item.ContentType,
		Activity:    activity,
		ActorID:     d.ReviewerID,
		Details:     d.Notes,
	}); err != nil {
		q.log.Warn("recording review activity", zap.Error(err))
	}
	return item, nil
}
