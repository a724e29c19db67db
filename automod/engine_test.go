package automod

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/store/memstore"
	"github.com/snap-point/moderation-api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store    *memstore.MemStore
	registry *Registry
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := memstore.New()
	ms.PutUser(models.User{ID: "u1", Username: "alice", CreatedAt: time.Now().Add(-90 * 24 * time.Hour), IsActive: true})
	reg, err := NewRegistry(DefaultRules(), ms, zap.NewNop())
	require.NoError(t, err)
	return &fixture{
		store:    ms,
		registry: reg,
		engine:   NewEngine(reg, NewBehaviorService(ms), ms, zap.NewNop()),
	}
}

func post(id, userID, text string) types.ContentToModerate {
	return types.ContentToModerate{ID: id, Type: types.ContentTypePost, UserID: userID, Content: text}
}

func triggeredIDs(o Outcome) []string {
	var ids []string
	for _, r := range o.Triggered {
		ids = append(ids, r.ID)
	}
	return ids
}

func (f *fixture) addReports(t *testing.T, contentID string, n int) {
	t.Helper()
	ct := string(types.ContentTypePost)
	for i := 0; i < n; i++ {
		id := contentID
		require.NoError(t, f.store.CreateReport(context.Background(), &models.UserReport{
			ID:          fmt.Sprintf("r-%s-%d", contentID, i),
			ReporterID:  fmt.Sprintf("reporter-%d", i),
			ContentID:   &id,
			ContentType: &ct,
			ReportType:  string(types.ReportSpam),
			Reason:      "spam",
			Status:      string(types.ReportStatusPending),
			Priority:    string(types.PriorityMedium),
		}))
	}
}

func TestCleanContentTriggersNothing(t *testing.T) {
	f := newFixture(t)
	out, err := f.engine.ApplyRules(context.Background(), post("p1", "u1", "A quiet afternoon in the park."))
	require.NoError(t, err)
	assert.Empty(t, out.Triggered)
	assert.Nil(t, out.Signal.Approved)
	assert.Nil(t, out.Signal.Confidence)
	assert.Equal(t, types.SeverityLow, out.Signal.Severity)
	assert.False(t, out.Signal.RequiresHumanReview)
}

func TestMultipleReportsHidesContent(t *testing.T) {
	f := newFixture(t)
	f.addReports(t, "p1", 3)

	out, err := f.engine.ApplyRules(context.Background(), post("p1", "u1", "hello"))
	require.NoError(t, err)
	assert.Contains(t, triggeredIDs(out), "multiple_reports")
	assert.Contains(t, out.Signal.AutoActions, types.ActionHideContent)
	require.NotNil(t, out.Signal.Approved)
	assert.False(t, *out.Signal.Approved)
	assert.Equal(t, types.SeverityHigh, out.Signal.Severity)
}

func TestTwoReportsDoNotTrigger(t *testing.T) {
	f := newFixture(t)
	f.addReports(t, "p1", 2)

	out, err := f.engine.ApplyRules(context.Background(), post("p1", "u1", "hello"))
	require.NoError(t, err)
	assert.NotContains(t, triggeredIDs(out), "multiple_reports")
}

func TestNewAccountBurst(t *testing.T) {
	f := newFixture(t)
	f.store.PutUser(models.User{ID: "fresh", Username: "fresh", CreatedAt: time.Now().Add(-time.Hour), IsActive: true})
	for i := 0; i < 6; i++ {
		f.store.PutContent(fmt.Sprintf("fp%d", i), types.ContentTypePost, "fresh", time.Now())
	}

	out, err := f.engine.ApplyRules(context.Background(), post("fp5", "fresh", "hello world"))
	require.NoError(t, err)
	assert.Contains(t, triggeredIDs(out), "new_account_spam")
	assert.NotContains(t, triggeredIDs(out), "rapid_posting")
	assert.Contains(t, out.Signal.AutoActions, types.ActionFlagUser)
	assert.True(t, out.Behavior.SuspiciousActivity)
	assert.Nil(t, out.Signal.Approved)
}

func TestRapidPosting(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 11; i++ {
		f.store.PutContent(fmt.Sprintf("rp%d", i), types.ContentTypePost, "u1", time.Now())
	}
	out, err := f.engine.ApplyRules(context.Background(), post("rp10", "u1", "again"))
	require.NoError(t, err)
	assert.Contains(t, triggeredIDs(out), "rapid_posting")
	assert.Contains(t, out.Signal.AutoActions, types.ActionSendWarning)
}

func TestSpamAndSuspiciousLinks(t *testing.T) {
	f := newFixture(t)
	text := "CLICK HERE to win!!!!!!!!!!!! http://bit.ly/x1 http://bit.ly/x2 http://bit.ly/x3"
	out, err := f.engine.ApplyRules(context.Background(), post("p1", "u1", text))
	require.NoError(t, err)
	ids := triggeredIDs(out)
	assert.Contains(t, ids, "spam_content")
	assert.Contains(t, ids, "suspicious_links")
	assert.True(t, out.Signal.RequiresHumanReview)
	assert.Contains(t, out.Signal.AutoActions, types.ActionRequireReview)
}

func TestDuplicateContentFromOtherUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveResult(context.Background(), &models.ModerationRecord{
		ID:          "r1",
		ContentID:   "other",
		ContentType: string(types.ContentTypePost),
		UserID:      "u2",
		ContentHash: ContentHash("Check   out this amazing view"),
		IsApproved:  true,
		Severity:    string(types.SeverityLow),
		CreatedAt:   time.Now(),
	}))

	out, err := f.engine.ApplyRules(context.Background(), post("p1", "u1", "check out this AMAZING view"))
	require.NoError(t, err)
	assert.Contains(t, triggeredIDs(out), "duplicate_content")

	// the author's own earlier copy does not count
	out, err = f.engine.ApplyRules(context.Background(), post("p2", "u2", "check out this amazing view"))
	require.NoError(t, err)
	assert.NotContains(t, triggeredIDs(out), "duplicate_content")
}

func TestContentHash(t *testing.T) {
	assert.Empty(t, ContentHash("   "))
	assert.Equal(t, ContentHash("Héllo   World"), ContentHash("hello world"))
	assert.NotEqual(t, ContentHash("hello world"), ContentHash("hello there"))
	assert.Len(t, ContentHash("x"), 64)
}

type countingStore struct {
	*memstore.MemStore
	reportCalls atomic.Int32
	failReports bool
}

func (c *countingStore) CountContentReports(ctx context.Context, contentID, contentType string, since time.Time) (int, error) {
	c.reportCalls.Add(1)
	if c.failReports {
		return 0, errors.New("reports table unavailable")
	}
	return c.MemStore.CountContentReports(ctx, contentID, contentType, since)
}

func TestDeactivatedRuleIsNeverEvaluated(t *testing.T) {
	ms := memstore.New()
	cs := &countingStore{MemStore: ms}
	reg, err := NewRegistry(DefaultRules(), ms, zap.NewNop())
	require.NoError(t, err)
	eng := NewEngine(reg, NewBehaviorService(ms), cs, zap.NewNop())

	_, err = reg.SetActive(context.Background(), "multiple_reports", false, "admin1")
	require.NoError(t, err)

	out, err := eng.ApplyRules(context.Background(), post("p1", "u1", "hello"))
	require.NoError(t, err)
	assert.Zero(t, cs.reportCalls.Load())
	assert.NotContains(t, out.Signal.Flags, "multiple_reports")
}

func TestRuleFailureIsIsolated(t *testing.T) {
	ms := memstore.New()
	cs := &countingStore{MemStore: ms, failReports: true}
	reg, err := NewRegistry(DefaultRules(), nil, zap.NewNop())
	require.NoError(t, err)
	eng := NewEngine(reg, NewBehaviorService(ms), cs, zap.NewNop())

	text := "buy now buy now http://bit.ly/a"
	out, err := eng.ApplyRules(context.Background(), post("p1", "u1", text))
	require.NoError(t, err)
	assert.Equal(t, []string{"multiple_reports"}, out.Failed)
	assert.Contains(t, triggeredIDs(out), "spam_content")
	assert.Contains(t, triggeredIDs(out), "suspicious_links")
}

type brokenBehavior struct{}

func (brokenBehavior) Compute(ctx context.Context, userID string) (types.UserBehaviorMetrics, error) {
	return types.UserBehaviorMetrics{}, errors.New("db down")
}

func TestBehaviorFailureIsClassifierError(t *testing.T) {
	ms := memstore.New()
	reg, err := NewRegistry(DefaultRules(), nil, zap.NewNop())
	require.NoError(t, err)
	eng := NewEngine(reg, brokenBehavior{}, ms, zap.NewNop())

	_, err = eng.ApplyRules(context.Background(), post("p1", "u1", "hello"))
	var cerr *types.ClassifierError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, EngineName, cerr.Classifier)
}

func TestSuspiciousLinks(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"see https://example.com/about", 0},
		{"go to http://192.168.0.1/login", 1},
		{"free stuff at www.prizes.tk now", 1},
		{"short http://bit.ly/abc and https://tinyurl.com/x", 2},
		{"https://xn--pple-43d.com", 1},
		{"no links here", 0},
	}
	for _, tt := range tests {
		assert.Len(t, SuspiciousLinks(tt.text), tt.want, tt.text)
	}
}
