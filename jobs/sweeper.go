// Package jobs holds the periodic maintenance tasks of the moderation service.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type suspensionStore interface {
	LiftExpiredSuspensions(ctx context.Context, now time.Time) (int, error)
}

// Sweeper restores accounts whose temporary suspension has run out.
type Sweeper struct {
	store   suspensionStore
	cron    *cron.Cron
	log     *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewSweeper(s suspensionStore, log *zap.Logger) *Sweeper {
	return &Sweeper{
		store:   s,
		cron:    cron.New(),
		log:     log.Named("jobs"),
		now:     time.Now,
		timeout: time.Minute,
	}
}

// Schedule registers the sweep under a standard cron spec or descriptor such
// as "@every 5m".
func (s *Sweeper) Schedule(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { _, _ = s.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("scheduling suspension sweep %q: %w", spec, err)
	}
	return nil
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() { <-s.cron.Stop().Done() }

// Sweep lifts every suspension that expired before now.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.store.LiftExpiredSuspensions(ctx, s.now())
	if err != nil {
		s.log.Error("suspension sweep failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.log.Info("lifted expired suspensions", zap.Int("count", n))
	}
	return n, nil
}
