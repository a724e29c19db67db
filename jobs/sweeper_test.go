package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweepLiftsExpiredSuspensions(t *testing.T) {
	ms := memstore.New()
	ms.PutUser(models.User{ID: "expired", Username: "expired", IsActive: true})
	ms.PutUser(models.User{ID: "serving", Username: "serving", IsActive: true})
	ctx := context.Background()
	require.NoError(t, ms.SuspendUser(ctx, "expired", time.Now().Add(-time.Minute)))
	require.NoError(t, ms.SuspendUser(ctx, "serving", time.Now().Add(time.Hour)))

	n, err := NewSweeper(ms, zap.NewNop()).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u, _ := ms.User("expired")
	assert.Equal(t, models.AccountStatusActive, u.AccountStatus)
	assert.Nil(t, u.SuspendedUntil)
	u, _ = ms.User("serving")
	assert.Equal(t, models.AccountStatusSuspended, u.AccountStatus)
}

type brokenStore struct{}

func (brokenStore) LiftExpiredSuspensions(ctx context.Context, now time.Time) (int, error) {
	return 0, errors.New("db down")
}

func TestSweepReportsStoreErrors(t *testing.T) {
	_, err := NewSweeper(brokenStore{}, zap.NewNop()).Sweep(context.Background())
	assert.Error(t, err)
}

func TestSchedule(t *testing.T) {
	s := NewSweeper(memstore.New(), zap.NewNop())
	assert.NoError(t, s.Schedule("@every 5m"))
	assert.NoError(t, s.Schedule("*/10 * * * *"))
	assert.Error(t, s.Schedule("every now and then"))
	s.Start()
	s.Stop()
}
