package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/notify"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/store/memstore"
	"github.com/snap-point/moderation-api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store    *memstore.MemStore
	dispatch *notify.Dispatcher
	queue    *Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := memstore.New()
	ms.PutUser(models.User{ID: "mod1", Username: "mod1", IsModerator: true, IsActive: true})
	ms.PutUser(models.User{ID: "mod2", Username: "mod2", IsModerator: true, IsActive: true})
	ms.PutUser(models.User{ID: "retired", Username: "retired", IsModerator: true, IsActive: false})
	ms.PutUser(models.User{ID: "u1", Username: "u1", IsActive: true})
	ms.PutContent("p1", types.ContentTypePost, "u1", time.Now())

	d := notify.NewDispatcher(notify.NewStoreNotifier(ms), zap.NewNop())
	return &fixture{store: ms, dispatch: d, queue: New(ms, d, zap.NewNop())}
}

func p1Request() EnqueueRequest {
	return EnqueueRequest{
		ContentID:   "p1",
		ContentType: types.ContentTypePost,
		UserID:      "u1",
		Severity:    types.SeverityMedium,
		Flags:       []string{"spam"},
		Reasons:     []string{"looks like spam"},
		Confidence:  0.6,
	}
}

func openCount(t *testing.T, ms *memstore.MemStore, contentID string) int {
	t.Helper()
	items, _, err := ms.ListQueueItems(context.Background(), store.QueueFilter{})
	require.NoError(t, err)
	n := 0
	for _, it := range items {
		if it.ContentID == contentID && types.QueueStatus(it.Status).Open() {
			n++
		}
	}
	return n
}

func TestEnqueueDedupsOpenItems(t *testing.T) {
	f := newFixture(t)
	first, created, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, string(types.QueueStatusPending), first.Status)
	assert.Equal(t, string(types.PriorityMedium), first.Priority)

	second, created, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, openCount(t, f.store, "p1"))
}

func TestEnqueueConcurrentSubmissions(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item, _, err := f.queue.Enqueue(context.Background(), p1Request())
			if assert.NoError(t, err) {
				ids[i] = item.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, openCount(t, f.store, "p1"))
}

func TestEnqueueAfterCloseCreatesNewItem(t *testing.T) {
	f := newFixture(t)
	first, _, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	_, err = f.queue.CompleteReview(context.Background(), first.ID, ReviewDecision{
		Decision: types.QueueStatusApproved, ReviewerID: "mod1",
	})
	require.NoError(t, err)

	second, created, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnqueueValidation(t *testing.T) {
	f := newFixture(t)
	req := p1Request()
	req.ContentType = "video"
	_, _, err := f.queue.Enqueue(context.Background(), req)
	assert.True(t, errors.Is(err, types.ErrValidation))

	req = p1Request()
	req.ContentID = ""
	_, _, err = f.queue.Enqueue(context.Background(), req)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestUrgentItemsBroadcastToActiveModerators(t *testing.T) {
	f := newFixture(t)
	req := p1Request()
	req.Severity = types.SeverityCritical
	item, _, err := f.queue.Enqueue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, string(types.PriorityUrgent), item.Priority)

	f.dispatch.Flush()
	assert.Len(t, f.store.NotificationsFor("mod1"), 1)
	assert.Len(t, f.store.NotificationsFor("mod2"), 1)
	assert.Empty(t, f.store.NotificationsFor("retired"))
}

func TestMediumItemsDoNotBroadcast(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	f.dispatch.Flush()
	assert.Empty(t, f.store.NotificationsFor("mod1"))
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	item, _, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)

	assigned, err := f.queue.Assign(context.Background(), item.ID, "mod1")
	require.NoError(t, err)
	assert.Equal(t, string(types.QueueStatusInReview), assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "mod1", *assigned.AssignedTo)

	f.dispatch.Flush()
	notes := f.store.NotificationsFor("mod1")
	require.Len(t, notes, 1)
	assert.Equal(t, notify.TypeQueueAssignment, notes[0].Type)

	_, err = f.queue.Assign(context.Background(), item.ID, "mod2")
	assert.True(t, errors.Is(err, types.ErrConflict))
}

func TestAssignRejectsNonModerators(t *testing.T) {
	f := newFixture(t)
	item, _, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)

	_, err = f.queue.Assign(context.Background(), item.ID, "u1")
	assert.True(t, errors.Is(err, types.ErrValidation))
	_, err = f.queue.Assign(context.Background(), item.ID, "retired")
	assert.True(t, errors.Is(err, types.ErrValidation))
	_, err = f.queue.Assign(context.Background(), "missing", "mod1")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestAutoAssignPicksLowestWorkload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutContent("p2", types.ContentTypePost, "u1", time.Now())
	f.store.PutContent("p3", types.ContentTypePost, "u1", time.Now())

	busy, _, err := f.queue.Enqueue(ctx, p1Request())
	require.NoError(t, err)
	_, err = f.queue.Assign(ctx, busy.ID, "mod1")
	require.NoError(t, err)

	req := p1Request()
	req.ContentID = "p2"
	next, _, err := f.queue.Enqueue(ctx, req)
	require.NoError(t, err)

	assigned, err := f.queue.AutoAssign(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, "mod2", *assigned.AssignedTo)
}

func TestAutoAssignBreaksTiesWithPicker(t *testing.T) {
	f := newFixture(t)
	var offered int
	f.queue.pick = func(n int) int {
		offered = n
		return n - 1
	}
	item, _, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)

	assigned, err := f.queue.AutoAssign(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, offered)
	assert.Contains(t, []string{"mod1", "mod2"}, *assigned.AssignedTo)
}

func TestAutoAssignWithoutModerators(t *testing.T) {
	ms := memstore.New()
	q := New(ms, nil, zap.NewNop())
	ms.PutContent("p1", types.ContentTypePost, "u1", time.Now())
	item, _, err := q.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	_, err = q.AutoAssign(context.Background(), item.ID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestCompleteReviewApplies(t *testing.T) {
	tests := []struct {
		decision types.QueueStatus
		status   string
		hidden   bool
	}{
		{types.QueueStatusApproved, models.ContentStatusApproved, false},
		{types.QueueStatusRejected, models.ContentStatusHidden, true},
		{types.QueueStatusEscalated, models.ContentStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			f := newFixture(t)
			item, _, err := f.queue.Enqueue(context.Background(), p1Request())
			require.NoError(t, err)

			done, err := f.queue.CompleteReview(context.Background(), item.ID, ReviewDecision{
				Decision:   tt.decision,
				ReviewerID: "mod1",
				Notes:      "checked",
			})
			require.NoError(t, err)
			assert.Equal(t, string(tt.decision), done.Status)
			require.NotNil(t, done.ReviewedAt)
			require.NotNil(t, done.ReviewedBy)
			assert.Equal(t, "mod1", *done.ReviewedBy)

			state, ok := f.store.ContentState("p1", types.ContentTypePost)
			require.True(t, ok)
			assert.Equal(t, tt.status, state.ModerationStatus)
			assert.Equal(t, tt.hidden, state.IsHidden)
			assert.Len(t, f.store.Activity, 1)
		})
	}
}

func TestCompleteReviewTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	item, _, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	d := ReviewDecision{Decision: types.QueueStatusRejected, ReviewerID: "mod1"}
	_, err = f.queue.CompleteReview(context.Background(), item.ID, d)
	require.NoError(t, err)
	_, err = f.queue.CompleteReview(context.Background(), item.ID, d)
	assert.True(t, errors.Is(err, types.ErrConflict))
}

func TestCompleteReviewRejectsNonTerminalDecision(t *testing.T) {
	f := newFixture(t)
	item, _, err := f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	_, err = f.queue.CompleteReview(context.Background(), item.ID, ReviewDecision{
		Decision: types.QueueStatusInReview, ReviewerID: "mod1",
	})
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestCompleteReviewToleratesMissingContent(t *testing.T) {
	f := newFixture(t)
	req := p1Request()
	req.ContentID = "deleted"
	item, _, err := f.queue.Enqueue(context.Background(), req)
	require.NoError(t, err)
	done, err := f.queue.CompleteReview(context.Background(), item.ID, ReviewDecision{
		Decision: types.QueueStatusRejected, ReviewerID: "mod1",
	})
	require.NoError(t, err)
	assert.Equal(t, string(types.QueueStatusRejected), done.Status)
}

func TestListValidatesFilters(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.queue.List(context.Background(), store.QueueFilter{Status: "weird"})
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, _, err = f.queue.Enqueue(context.Background(), p1Request())
	require.NoError(t, err)
	items, total, err := f.queue.List(context.Background(), store.QueueFilter{Status: types.QueueStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, items, 1)
}
