// Package scheduler runs the periodic maintenance jobs: expiring listings
// and pruning old weekly share counters.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"bigbag/internal/shares"
	"bigbag/internal/store"
)

const (
	ExpireSpec = "@hourly"
	PruneSpec  = "30 3 * * *"

	jobTimeout = 5 * time.Minute
)

type Store interface {
	store.OfferStore
	store.CouponStore
	store.AdStore
}

type Scheduler struct {
	cron           *cron.Cron
	store          Store
	shares         *shares.Service
	retentionWeeks int
	now            func() time.Time
}

// slogAdapter lets cron report through the default slog logger.
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

func New(st Store, sh *shares.Service, retentionWeeks int) (*Scheduler, error) {
	logger := slogAdapter{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		store:          st,
		shares:         sh,
		retentionWeeks: retentionWeeks,
		now:            func() time.Time { return time.Now().UTC() },
	}

	if _, err := s.cron.AddFunc(ExpireSpec, s.job("expire_listings", s.ExpireListings)); err != nil {
		return nil, fmt.Errorf("schedule expiry: %w", err)
	}
	if _, err := s.cron.AddFunc(PruneSpec, s.job("prune_shares", s.PruneShares)); err != nil {
		return nil, fmt.Errorf("schedule prune: %w", err)
	}
	return s, nil
}

func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			slog.Error("Scheduled job failed", "job", name, "error", err)
			return
		}
		slog.Debug("Scheduled job finished", "job", name, "duration", time.Since(start))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExpireListings deactivates offers, coupons and ads whose end has passed.
func (s *Scheduler) ExpireListings(ctx context.Context) error {
	now := s.now()
	offers, err := s.store.DeactivateExpiredOffers(ctx, now)
	if err != nil {
		return fmt.Errorf("offers: %w", err)
	}
	coupons, err := s.store.DeactivateExpiredCoupons(ctx, now)
	if err != nil {
		return fmt.Errorf("coupons: %w", err)
	}
	ads, err := s.store.DeactivateExpiredAds(ctx, now)
	if err != nil {
		return fmt.Errorf("ads: %w", err)
	}
	if offers+coupons+ads > 0 {
		slog.Info("Expired listings deactivated", "offers", offers, "coupons", coupons, "ads", ads)
	}
	return nil
}

// PruneShares drops weekly share counters outside the retention window.
func (s *Scheduler) PruneShares(ctx context.Context) error {
	_, err := s.shares.Prune(ctx, s.shares.RetentionHorizon(s.retentionWeeks))
	return err
}
