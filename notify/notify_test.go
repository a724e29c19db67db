package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/snap-point/moderation-api/store/memstore"
	"github.com/snap-point/moderation-api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	if b, ok := message.([]byte); ok {
		f.payloads = append(f.payloads, b)
	}
	return redis.NewIntResult(1, f.err)
}

type failing struct{}

func (failing) CreateNotification(ctx context.Context, n Notification) error {
	return errors.New("smtp down")
}

func sample() Notification {
	return Notification{
		UserID:   "mod1",
		Type:     TypeQueueItem,
		Title:    "New item",
		Message:  "post p1 needs review",
		Priority: types.PriorityHigh,
		Data:     map[string]any{"queueItemId": "q1"},
	}
}

func TestStoreNotifierPersists(t *testing.T) {
	ms := memstore.New()
	require.NoError(t, NewStoreNotifier(ms).CreateNotification(context.Background(), sample()))

	got := ms.NotificationsFor("mod1")
	require.Len(t, got, 1)
	assert.Equal(t, TypeQueueItem, got[0].Type)
	assert.Equal(t, "high", got[0].Priority)
	assert.JSONEq(t, `{"queueItemId":"q1"}`, got[0].Data)
	assert.NotEmpty(t, got[0].ID)
}

func TestRedisNotifierPublishesPerUser(t *testing.T) {
	pub := &fakePublisher{}
	r := &RedisNotifier{client: pub, prefix: "notifications/"}
	require.NoError(t, r.CreateNotification(context.Background(), sample()))

	require.Equal(t, []string{"notifications/mod1"}, pub.channels)
	var decoded Notification
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, "post p1 needs review", decoded.Message)
}

func TestMultiJoinsErrors(t *testing.T) {
	ms := memstore.New()
	m := Multi{NewStoreNotifier(ms), failing{}}
	err := m.CreateNotification(context.Background(), sample())
	require.Error(t, err)
	// the healthy notifier still delivered
	assert.Len(t, ms.NotificationsFor("mod1"), 1)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	ms := memstore.New()
	d := NewDispatcher(Multi{failing{}, NewStoreNotifier(ms)}, zap.NewNop())
	for i := 0; i < 3; i++ {
		d.Send(sample())
	}
	d.Flush()
	assert.Len(t, ms.NotificationsFor("mod1"), 3)
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Send(sample())
	d.Flush()
}
