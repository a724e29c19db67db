package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/automod"
	"github.com/snap-point/moderation-api/classifier"
	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/moderation"
	"github.com/snap-point/moderation-api/notify"
	"github.com/snap-point/moderation-api/queue"
	"github.com/snap-point/moderation-api/reports"
	"github.com/snap-point/moderation-api/store/memstore"
	"github.com/snap-point/moderation-api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type server struct {
	router *gin.Engine
	store  *memstore.MemStore
	queue  *queue.Queue
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	ms := memstore.New()
	ms.PutUser(models.User{ID: "author", Username: "author", IsActive: true, CreatedAt: time.Now().Add(-90 * 24 * time.Hour)})
	ms.PutUser(models.User{ID: "reporter", Username: "reporter", IsActive: true})
	ms.PutUser(models.User{ID: "mod1", Username: "mod1", IsActive: true, IsModerator: true})
	ms.PutUser(models.User{ID: "admin", Username: "admin", IsActive: true, IsAdmin: true})
	ms.PutContent("p1", types.ContentTypePost, "author", time.Now())

	dispatcher := notify.NewDispatcher(notify.NewStoreNotifier(ms), log)
	registry, err := automod.NewRegistry(automod.DefaultRules(), ms, log)
	require.NoError(t, err)
	engine := automod.NewEngine(registry, automod.NewBehaviorService(ms), ms, log)
	images := classifier.NewImageClassifier(classifier.HeuristicVision{}, classifier.ImageClassifierOptions{}, log)
	q := queue.New(ms, dispatcher, log)
	orch := moderation.New(classifier.NewTextClassifier(log), images, classifier.NewQualityAnalyzer(log), engine,
		ms, q, dispatcher, moderation.Options{}, log)

	r := gin.New()
	SetupRoutes(r, Dependencies{
		Store:        ms,
		Orchestrator: orch,
		Queue:        q,
		Reports:      reports.New(ms, q, dispatcher, 0, log),
		Registry:     registry,
		Images:       images,
		JWTSecret:    testSecret,
		Log:          log,
	})
	t.Cleanup(dispatcher.Flush)
	return &server{router: r, store: ms, queue: q}
}

func token(t *testing.T, userID string, moderator, admin bool) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":      userID,
		"is_moderator": moderator,
		"is_admin":     admin,
		"exp":          time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *server) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Meta       map[string]any  `json:"meta"`
	Pagination map[string]any  `json:"pagination"`
	Error      string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func TestPublicEndpoints(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(6), health["rules"])

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthentication(t *testing.T) {
	s := newServer(t)
	body := map[string]any{"id": "p1", "type": "post", "userId": "author", "content": "hi"}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/moderate", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/moderate", "not-a-jwt", body).Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "author"}).SignedString([]byte("other"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/moderate", forged, body).Code)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"is_admin": true}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/moderate", noUser, body).Code)
}

func TestModerateEndpoints(t *testing.T) {
	s := newServer(t)
	tok := token(t, "author", false, false)

	w := s.do(t, http.MethodPost, "/api/moderate", tok, map[string]any{
		"id": "p1", "type": "post", "userId": "author", "content": "Lovely sunset walk at the beach with friends",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res types.ModerationResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.True(t, res.Severity.Valid())
	assert.Len(t, s.store.Results, 1)

	w = s.do(t, http.MethodPost, "/api/moderate", tok, map[string]any{"type": "post", "userId": "author"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPost, "/api/moderate", tok, map[string]any{"id": "x", "type": "video", "userId": "author"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/moderate/bulk", tok, map[string]any{"items": []map[string]any{
		{"id": "b1", "type": "comment", "userId": "author", "content": "nice"},
		{"id": "b2", "type": "video", "userId": "author"},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	e := decode(t, w)
	assert.Equal(t, float64(2), e.Meta["total"])
	assert.Equal(t, float64(1), e.Meta["failed"])

	w = s.do(t, http.MethodPost, "/api/moderate/bulk", tok, map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/moderate/images", tok, map[string]any{
		"urls": []string{"https://cdn.example.com/cat.jpg", "ftp://cdn.example.com/cat.jpg"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var items []classifier.ImageItemResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &items))
	require.Len(t, items, 2)
	assert.Contains(t, items[1].Result.Flags, "invalid_image_url")
}

func TestStatusAppealAndStatistics(t *testing.T) {
	s := newServer(t)
	author := token(t, "author", false, false)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/status/p1/post", author, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/status/p1/video", author, nil).Code)

	w := s.do(t, http.MethodPost, "/api/moderate", author, map[string]any{
		"id": "p1", "type": "post", "userId": "author", "content": "hello everyone",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/status/p1/post", author, nil).Code)

	appeal := map[string]any{"contentId": "p1", "contentType": "post", "reason": "please look again"}
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/appeal", token(t, "reporter", false, false), appeal).Code)
	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/appeal", author, appeal).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/appeal", author, map[string]any{"contentId": "p1"}).Code)

	w = s.do(t, http.MethodGet, "/api/statistics", author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats moderation.Statistics
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &stats))
	assert.Equal(t, int64(1), stats.Last24Hours.Total)
}

func TestReportEndpoints(t *testing.T) {
	s := newServer(t)
	reporter := token(t, "reporter", false, false)
	mod := token(t, "mod1", true, false)
	body := map[string]any{"contentId": "p1", "contentType": "post", "reportType": "spam", "reason": "ads everywhere"}

	w := s.do(t, http.MethodPost, "/api/report", reporter, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first models.UserReport
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &first))

	w = s.do(t, http.MethodPost, "/api/report", reporter, body)
	require.Equal(t, http.StatusOK, w.Code)
	var second models.UserReport
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &second))
	assert.Equal(t, first.ID, second.ID)

	w = s.do(t, http.MethodPost, "/api/report", reporter, map[string]any{"reportType": "spam", "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPost, "/api/report", reporter, map[string]any{"reportedUserId": "reporter", "reportType": "spam", "reason": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/reports", reporter, nil).Code)

	w = s.do(t, http.MethodGet, "/api/reports?status=pending", mod, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w).Pagination["totalItems"])
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/reports?reportType=nope", mod, nil).Code)

	resolve := map[string]any{"resolution": "confirmed spam", "action": "warn_user"}
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPut, "/api/reports/"+first.ID+"/resolve", reporter, resolve).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/reports/"+first.ID+"/resolve", mod, resolve).Code)
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPut, "/api/reports/"+first.ID+"/resolve", mod, resolve).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/reports/missing/resolve", mod, resolve).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/reports/"+first.ID+"/resolve", mod, map[string]any{"action": "nuke"}).Code)
}

func TestQueueEndpoints(t *testing.T) {
	s := newServer(t)
	mod := token(t, "mod1", true, false)
	item, _, err := s.queue.Enqueue(context.Background(), queue.EnqueueRequest{
		ContentID: "p1", ContentType: types.ContentTypePost, UserID: "author", Severity: types.SeverityMedium,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/queue", token(t, "author", false, false), nil).Code)

	w := s.do(t, http.MethodGet, "/api/queue?status=pending", mod, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w).Pagination["totalItems"])
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/queue?status=weird", mod, nil).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/queue/"+item.ID, mod, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/queue/missing", mod, nil).Code)

	w = s.do(t, http.MethodPut, "/api/queue/"+item.ID+"/assign", mod, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var assigned models.QueueItem
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &assigned))
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "mod1", *assigned.AssignedTo)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPut, "/api/queue/"+item.ID+"/assign", mod, map[string]any{"auto": true}).Code)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/queue/"+item.ID+"/review", mod, map[string]any{"decision": "in_review"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/queue/"+item.ID+"/review", mod, map[string]any{}).Code)
	w = s.do(t, http.MethodPut, "/api/queue/"+item.ID+"/review", mod, map[string]any{"decision": "rejected", "notes": "spam"})
	require.Equal(t, http.StatusOK, w.Code)

	state, _ := s.store.ContentState("p1", types.ContentTypePost)
	assert.True(t, state.IsHidden)
}

func TestRuleEndpoints(t *testing.T) {
	s := newServer(t)
	mod := token(t, "mod1", true, false)
	admin := token(t, "admin", false, true)

	w := s.do(t, http.MethodGet, "/api/rules", mod, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rules []automod.RuleView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rules))
	assert.Len(t, rules, 6)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/rules", token(t, "author", false, false), nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPut, "/api/rules/spam_content", mod, map[string]any{"isActive": false}).Code)

	w = s.do(t, http.MethodPut, "/api/rules/spam_content", admin, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code)
	var view automod.RuleView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.False(t, view.IsActive)
	assert.False(t, s.store.RuleStates["spam_content"].IsActive)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/rules/nope", admin, map[string]any{"isActive": true}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/rules/spam_content", admin, map[string]any{}).Code)
}

func TestModerateRequiresOwnershipOrPrivilege(t *testing.T) {
	s := newServer(t)
	abusive := map[string]any{
		"id": "p1", "type": "post", "userId": "author",
		"content": "kys nobody likes you i know where you live",
	}

	w := s.do(t, http.MethodPost, "/api/moderate", token(t, "reporter", false, false), abusive)
	assert.Equal(t, http.StatusForbidden, w.Code)
	state, _ := s.store.ContentState("p1", types.ContentTypePost)
	assert.False(t, state.IsHidden)
	author, _ := s.store.User("author")
	assert.Zero(t, author.WarningCount)
	assert.Empty(t, s.store.Results)

	w = s.do(t, http.MethodPost, "/api/moderate/bulk", token(t, "reporter", false, false), map[string]any{
		"items": []map[string]any{
			{"id": "c1", "type": "comment", "userId": "reporter", "content": "nice"},
			abusive,
		},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, s.store.Results)

	service, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "ingest", "is_service": true,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/moderate", service, abusive).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/moderate", token(t, "mod1", true, false), abusive).Code)
}
