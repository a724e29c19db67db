// Package notify delivers moderator and user notifications. Delivery is fire
// and forget from the pipeline's point of view.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
)

const (
	TypeQueueItem        = "moderation_queue_item"
	TypeQueueAssignment  = "moderation_assignment"
	TypeContentAction    = "content_moderated"
	TypeReportResolution = "report_resolved"
	TypeAccountAction    = "account_action"
)

type Notification struct {
	UserID   string         `json:"userId"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Priority types.Priority `json:"priority"`
	Data     map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// StoreNotifier persists notifications for the in-app inbox.
type StoreNotifier struct {
	store store.NotificationStore
}

func NewStoreNotifier(s store.NotificationStore) *StoreNotifier {
	return &StoreNotifier{store: s}
}

func (s *StoreNotifier) CreateNotification(ctx context.Context, n Notification) error {
	var data string
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return err
		}
		data = string(raw)
	}
	return s.store.SaveNotification(ctx, &models.Notification{
		ID:        uuid.NewString(),
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  string(n.Priority),
		Data:      data,
		CreatedAt: time.Now(),
	})
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes notifications on a per-user channel for realtime
// delivery.
type RedisNotifier struct {
	client publisher
	prefix string
}

func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &RedisNotifier{client: rdb, prefix: "notifications/"}, nil
}

func Channel(prefix, userID string) string {
	return prefix + userID
}

func (r *RedisNotifier) CreateNotification(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, Channel(r.prefix, n.UserID), payload).Err()
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) CreateNotification(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.CreateNotification(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher sends notifications in the background. Failures are logged and
// never reach the caller.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, timeout: 5 * time.Second, log: log.Named("notify")}
}

func (d *Dispatcher) Send(n Notification) {
	if d == nil || d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.CreateNotification(ctx, n); err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("user_id", n.UserID),
				zap.String("type", n.Type),
				zap.Error(err))
		}
	}()
}

// Flush blocks until every notification sent so far has been attempted.
func (d *Dispatcher) Flush() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
